package importer

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chrisrogers37/really-personal-finance/internal/model"
)

const (
	ofxDateFormat = "20060102"
	ofxTxnOpen    = "<STMTTRN>"
	ofxTxnClose   = "</STMTTRN>"
)

// OFXParser parses OFX 1.x (SGML) and 2.x (XML) statements, which covers
// QFX and QBO downloads as well.
type OFXParser struct{}

// Name returns the parser name.
func (p *OFXParser) Name() string { return string(model.FormatOFX) }

// Parse extracts every STMTTRN block from content.
func (p *OFXParser) Parse(content string) model.ParseResult {
	res := model.ParseResult{Format: model.FormatOFX, Errors: []string{}}
	if strings.TrimSpace(content) == "" {
		res.Errors = append(res.Errors, "Empty file")
		return res
	}

	res.AccountHint = ofxTag(content, "ACCTID")

	for _, block := range ofxBlocks(content) {
		txn, diag := parseOFXBlock(block)
		if diag != "" {
			res.Errors = append(res.Errors, diag)
			continue
		}
		res.Transactions = append(res.Transactions, txn)
	}

	if len(res.Transactions) == 0 && !strings.Contains(content, ofxTxnOpen) {
		res.Errors = append(res.Errors, "No transaction blocks found in OFX file")
	}
	return res
}

// parseOFXBlock returns the block's transaction, or a diagnostic when the
// block has to be skipped.
func parseOFXBlock(block string) (model.Transaction, string) {
	dateRaw := ofxTag(block, "DTPOSTED")
	amountRaw := ofxTag(block, "TRNAMT")
	fitID := ofxTag(block, "FITID")

	ref := fitID
	if ref == "" {
		ref = "unknown"
	}

	if dateRaw == "" || amountRaw == "" {
		return model.Transaction{}, fmt.Sprintf("Skipped transaction with missing date or amount (FITID: %s)", ref)
	}

	amount, err := decimal.NewFromString(amountRaw)
	if err != nil {
		return model.Transaction{}, fmt.Sprintf("Invalid amount %q (FITID: %s)", amountRaw, ref)
	}

	date, ok := ofxDate(dateRaw)
	if !ok {
		return model.Transaction{}, fmt.Sprintf("Invalid date %q (FITID: %s)", dateRaw, ref)
	}

	return model.Transaction{
		Date:        date,
		Description: ofxTag(block, "NAME"),
		Amount:      ToLedger(model.FormatOFX, amount),
		ExternalID:  fitID,
		Memo:        ofxTag(block, "MEMO"),
		Type:        ofxTag(block, "TRNTYPE"),
	}, ""
}

// ofxDate keeps the leading YYYYMMDD of an OFX datetime, dropping any time
// and timezone suffix.
func ofxDate(raw string) (string, bool) {
	if len(raw) < len(ofxDateFormat) {
		return "", false
	}
	t, err := time.Parse(ofxDateFormat, raw[:len(ofxDateFormat)])
	if err != nil {
		return "", false
	}
	return t.Format(time.DateOnly), true
}

// ofxBlocks returns the body of every STMTTRN aggregate. A block ends at its
// closing tag, at the next opening tag, or at end of input.
func ofxBlocks(content string) []string {
	var blocks []string
	rest := content
	for {
		i := strings.Index(rest, ofxTxnOpen)
		if i < 0 {
			return blocks
		}
		rest = rest[i+len(ofxTxnOpen):]

		end := len(rest)
		next := len(rest)
		if j := strings.Index(rest, ofxTxnClose); j >= 0 {
			end, next = j, j+len(ofxTxnClose)
		}
		if j := strings.Index(rest, ofxTxnOpen); j >= 0 && j < end {
			end, next = j, j
		}
		blocks = append(blocks, rest[:end])
		rest = rest[next:]
	}
}

// ofxTag returns the trimmed value of tag in s, or "" when absent.
// The XML form <TAG>v</TAG> is tried across all occurrences first; then the
// SGML form <TAG>v, where v runs to the next newline or tag.
func ofxTag(s, tag string) string {
	open := "<" + tag + ">"
	closing := "</" + tag + ">"

	for rest := s; ; {
		i := strings.Index(rest, open)
		if i < 0 {
			break
		}
		rest = rest[i+len(open):]
		j := strings.IndexByte(rest, '<')
		if j >= 0 && strings.HasPrefix(rest[j:], closing) {
			return strings.TrimSpace(rest[:j])
		}
	}

	for rest := s; ; {
		i := strings.Index(rest, open)
		if i < 0 {
			return ""
		}
		rest = rest[i+len(open):]
		end := strings.IndexAny(rest, "<\n")
		if end < 0 {
			end = len(rest)
		}
		if end > 0 {
			return strings.TrimSpace(rest[:end])
		}
	}
}
