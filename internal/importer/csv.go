package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chrisrogers37/really-personal-finance/internal/model"
)

const (
	usDateFormat = "1/2/2006"
	bom          = "\uFEFF"

	// bofaHeader is the column header line that follows the summary preamble
	// in Bank of America statement downloads.
	bofaHeader = "date,description,amount,running bal."

	beginningBalance = "beginning balance"
)

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Layout is a delimited export layout: it recognizes its own header shape
// and parses content in that shape.
type Layout interface {
	Parser
	Detect(lines []string) bool
}

// DelimitedParser picks the first Layout whose Detect accepts the file.
type DelimitedParser struct {
	layouts []Layout
}

// NewDelimitedParser returns a parser that tries layouts in order.
func NewDelimitedParser(layouts ...Layout) *DelimitedParser {
	return &DelimitedParser{layouts: layouts}
}

// DefaultLayouts returns the built-in layouts in detection order. The
// preamble layout comes first because its header may sit anywhere.
func DefaultLayouts() []Layout {
	return []Layout{&BofAParser{}, &AmexParser{}, &HeaderlessParser{}}
}

// Name returns the parser name.
func (p *DelimitedParser) Name() string { return "csv" }

// Parse classifies content by header shape and parses it.
func (p *DelimitedParser) Parse(content string) model.ParseResult {
	content = strings.TrimPrefix(content, bom)
	if strings.TrimSpace(content) == "" {
		return emptyResult(model.FormatUnknownCSV)
	}

	lines := splitLines(content)
	for _, l := range p.layouts {
		if l.Detect(lines) {
			return l.Parse(content)
		}
	}

	return model.ParseResult{
		Format: model.FormatUnknownCSV,
		Errors: []string{fmt.Sprintf("Unknown CSV format. Headers: %q", strings.TrimSpace(lines[0]))},
	}
}

// AmexParser parses American Express activity downloads: a single header row
// containing Date, Description and Amount (other columns ignored).
type AmexParser struct{}

// Name returns the parser name.
func (p *AmexParser) Name() string { return string(model.FormatAmexCSV) }

// Detect reports whether the first line names date, description and amount columns.
func (p *AmexParser) Detect(lines []string) bool {
	if len(lines) == 0 {
		return false
	}
	cols := headerColumns(splitHeader(lines[0]))
	_, hasDate := cols["date"]
	_, hasDesc := cols["description"]
	_, hasAmount := cols["amount"]
	return hasDate && hasDesc && hasAmount
}

// Parse reads an Amex CSV. Dates may be MM/DD/YYYY or ISO.
func (p *AmexParser) Parse(content string) model.ParseResult {
	content = strings.TrimPrefix(content, bom)
	if strings.TrimSpace(content) == "" {
		return emptyResult(model.FormatAmexCSV)
	}
	c := newCollector(model.FormatAmexCSV, anyDate)
	c.readHeaded(content)
	return c.result()
}

// BofAParser parses Bank of America statement downloads, which open with a
// summary block before the real column header.
type BofAParser struct{}

// Name returns the parser name.
func (p *BofAParser) Name() string { return string(model.FormatBofACSV) }

// Detect reports whether any line is the statement column header.
func (p *BofAParser) Detect(lines []string) bool {
	return bofaHeaderIndex(lines) >= 0
}

// Parse skips the preamble, recording its length in SkippedRows.
func (p *BofAParser) Parse(content string) model.ParseResult {
	content = strings.TrimPrefix(content, bom)
	if strings.TrimSpace(content) == "" {
		return emptyResult(model.FormatBofACSV)
	}

	lines := splitLines(content)
	idx := bofaHeaderIndex(lines)
	if idx < 0 {
		return model.ParseResult{
			Format: model.FormatBofACSV,
			Errors: []string{"Could not find column headers in BofA CSV"},
		}
	}

	c := newCollector(model.FormatBofACSV, usDate)
	c.readHeaded(strings.Join(lines[idx:], "\n"))
	res := c.result()
	res.SkippedRows = idx
	return res
}

func bofaHeaderIndex(lines []string) int {
	for i, line := range lines {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), bofaHeader) {
			return i
		}
	}
	return -1
}

// HeaderlessParser parses bare date,description,amount rows with ISO dates
// and no header.
type HeaderlessParser struct{}

// Name returns the parser name.
func (p *HeaderlessParser) Name() string { return string(model.FormatHeaderlessCSV) }

// Detect reports whether the first field of the first line is an ISO date.
func (p *HeaderlessParser) Detect(lines []string) bool {
	if len(lines) == 0 {
		return false
	}
	fields := splitHeader(lines[0])
	return len(fields) > 0 && isoDatePattern.MatchString(fields[0])
}

// Parse reads every row as date, description, amount.
func (p *HeaderlessParser) Parse(content string) model.ParseResult {
	content = strings.TrimPrefix(content, bom)
	if strings.TrimSpace(content) == "" {
		return emptyResult(model.FormatHeaderlessCSV)
	}
	c := newCollector(model.FormatHeaderlessCSV, isoDate)
	for _, rec := range c.records(content) {
		c.add(rec, field(rec, 0), field(rec, 1), field(rec, 2))
	}
	return c.result()
}

// collector applies the shared row rules and accumulates a ParseResult.
type collector struct {
	format model.Format
	date   func(string) (string, bool)
	txns   []model.Transaction
	errs   []string
}

func newCollector(format model.Format, date func(string) (string, bool)) *collector {
	return &collector{format: format, date: date, errs: []string{}}
}

func (c *collector) result() model.ParseResult {
	return model.ParseResult{Format: c.format, Transactions: c.txns, Errors: c.errs}
}

// readHeaded reads content whose first record is a header naming the
// date, description and amount columns.
func (c *collector) readHeaded(content string) {
	recs := c.records(content)
	if len(recs) == 0 {
		return
	}
	cols := headerColumns(recs[0])
	for _, rec := range recs[1:] {
		c.add(rec, column(rec, cols, "date"), column(rec, cols, "description"), column(rec, cols, "amount"))
	}
}

// records returns the non-blank records of content. Malformed lines are
// reported and skipped.
func (c *collector) records(content string) [][]string {
	r := newCSVReader(content)
	var recs [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return recs
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				c.errs = append(c.errs, fmt.Sprintf("Malformed row at line %d: %v", perr.Line, perr.Err))
				continue
			}
			c.errs = append(c.errs, fmt.Sprintf("Reading CSV: %v", err))
			return recs
		}
		if blankRecord(rec) {
			continue
		}
		recs = append(recs, rec)
	}
}

func (c *collector) add(rec []string, dateRaw, desc, amountRaw string) {
	if strings.Contains(strings.ToLower(desc), beginningBalance) {
		return
	}

	if dateRaw == "" || desc == "" {
		c.errs = append(c.errs, fmt.Sprintf("Skipped row with missing fields: %q", strings.Join(rec, ",")))
		return
	}
	if amountRaw == "" {
		c.errs = append(c.errs, fmt.Sprintf("Skipped row with missing amount: %q", desc))
		return
	}

	amount, err := decimal.NewFromString(strings.ReplaceAll(amountRaw, ",", ""))
	if err != nil {
		c.errs = append(c.errs, fmt.Sprintf("Invalid amount %q for %q", amountRaw, desc))
		return
	}

	date, ok := c.date(dateRaw)
	if !ok {
		c.errs = append(c.errs, fmt.Sprintf("Invalid date %q for %q", dateRaw, desc))
		return
	}

	c.txns = append(c.txns, model.Transaction{
		Date:        date,
		Description: desc,
		Amount:      ToLedger(c.format, amount),
	})
}

func newCSVReader(content string) *csv.Reader {
	r := csv.NewReader(strings.NewReader(content))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	return r
}

func emptyResult(format model.Format) model.ParseResult {
	return model.ParseResult{Format: format, Errors: []string{"Empty file"}}
}

func splitLines(content string) []string {
	lines := strings.Split(content, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// splitHeader splits a single line on commas, trimming spaces and quotes.
func splitHeader(line string) []string {
	parts := strings.Split(strings.TrimSpace(line), ",")
	for i, p := range parts {
		parts[i] = strings.Trim(strings.TrimSpace(p), `"`)
	}
	return parts
}

// headerColumns maps lowercased header names to their column index.
func headerColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, bom)))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	return cols
}

func column(rec []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok {
		return ""
	}
	return field(rec, i)
}

func field(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func blankRecord(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func isoDate(s string) (string, bool) {
	if !isoDatePattern.MatchString(s) {
		return "", false
	}
	if _, err := time.Parse(time.DateOnly, s); err != nil {
		return "", false
	}
	return s, true
}

func usDate(s string) (string, bool) {
	t, err := time.Parse(usDateFormat, s)
	if err != nil {
		return "", false
	}
	return t.Format(time.DateOnly), true
}

func anyDate(s string) (string, bool) {
	if d, ok := isoDate(s); ok {
		return d, true
	}
	return usDate(s)
}
