package importer

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chrisrogers37/really-personal-finance/internal/model"
)

// Parser converts raw file text into canonical transactions. Parse never
// fails: problems are reported in ParseResult.Errors.
type Parser interface {
	Name() string
	Parse(content string) model.ParseResult
}

// ErrUnknownFormat is returned by ParseAs for a name no parser is registered under.
var ErrUnknownFormat = errors.New("unknown format")

// MatchFunc decides whether a rule applies to a file.
type MatchFunc func(content, filename string) bool

// Rule pairs a detection predicate with the parser it selects.
type Rule struct {
	Name   string
	Match  MatchFunc
	Parser Parser
}

// Registry holds named parsers and the ordered detection rules.
type Registry struct {
	parsers map[string]Parser
	rules   []Rule
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser by name. Panics on duplicate name.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Name())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser name: " + key)
	}
	r.parsers[key] = p
}

// AddRule appends a detection rule. Rules are evaluated in the order added.
func (r *Registry) AddRule(name string, match MatchFunc, p Parser) {
	r.rules = append(r.rules, Rule{Name: name, Match: match, Parser: p})
}

// Get returns the parser registered as name, or nil.
func (r *Registry) Get(name string) Parser {
	return r.parsers[strings.ToLower(name)]
}

// Names returns the registered parser names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.parsers))
	for n := range r.parsers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Rules returns the detection rules in evaluation order.
func (r *Registry) Rules() []Rule {
	return append([]Rule(nil), r.rules...)
}

// Detect returns the first rule matching the file, or false.
func (r *Registry) Detect(content, filename string) (Rule, bool) {
	for _, rule := range r.rules {
		if rule.Match(content, filename) {
			return rule, true
		}
	}
	return Rule{}, false
}

// DetectAndParse parses content with the parser of the first matching rule.
func (r *Registry) DetectAndParse(content, filename string) model.ParseResult {
	rule, ok := r.Detect(content, filename)
	if !ok {
		return model.ParseResult{
			Format: model.FormatUnknownCSV,
			Errors: []string{fmt.Sprintf("No parser for %q", filename)},
		}
	}
	return rule.Parser.Parse(content)
}

// ParseAs parses content with the parser registered as name, skipping detection.
func (r *Registry) ParseAs(name, content string) (model.ParseResult, error) {
	p := r.Get(name)
	if p == nil {
		return model.ParseResult{}, fmt.Errorf("%w %q (known: %s)", ErrUnknownFormat, name, strings.Join(r.Names(), ", "))
	}
	return p.Parse(content), nil
}

// DefaultRegistry returns a registry with all built-in parsers and the
// standard detection order: OFX by extension, OFX by content, delimited text.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	ofx := &OFXParser{}
	layouts := DefaultLayouts()
	delimited := NewDelimitedParser(layouts...)

	r.Register(ofx)
	r.Register(delimited)
	for _, l := range layouts {
		r.Register(l)
	}

	r.AddRule("ofx-extension", HasOFXExtension, ofx)
	r.AddRule("ofx-content", LooksLikeOFX, ofx)
	r.AddRule("delimited", Always, delimited)
	return r
}

// ofxExtensions are the OFX-family filename extensions, lowercased.
var ofxExtensions = map[string]bool{"ofx": true, "qfx": true, "qbo": true}

// HasOFXExtension matches filenames ending in .ofx, .qfx or .qbo.
func HasOFXExtension(_, filename string) bool {
	return ofxExtensions[extension(filename)]
}

// LooksLikeOFX matches content that opens with an XML declaration or carries
// an <OFX> root, whatever the filename says.
func LooksLikeOFX(content, _ string) bool {
	trimmed := strings.TrimLeft(content, " \t\r\n\uFEFF")
	return strings.HasPrefix(trimmed, "<?xml") || strings.Contains(trimmed, "<OFX>")
}

// Always matches every file.
func Always(_, _ string) bool { return true }

func extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}
