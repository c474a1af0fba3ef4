// Package compliance keeps a generated document's inline citations and its
// references block in agreement, using only the approved reference catalog.
package compliance

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/rxwizard/internal/catalog"
	"github.com/ppiankov/rxwizard/internal/extract"
	"github.com/ppiankov/rxwizard/internal/model"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// ErrUnknownReference means a document cites a number the catalog does not define.
// Dropping such a citation silently would itself be a compliance failure.
var ErrUnknownReference = errors.New("reference not in catalog")

// ErrNotConverged is returned if rebuilding the references block does not yield a valid document
var ErrNotConverged = errors.New("references block did not converge")

const maxRebuildPasses = 3

// Engine validates and corrects citation integrity
type Engine struct {
	catalog *catalog.Catalog
	logger  *zap.Logger
}

// NewEngine creates an engine over an immutable catalog
func NewEngine(c *catalog.Catalog, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{catalog: c, logger: logger}
}

// Catalog returns the catalog the engine checks against
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// analysis is one parse of a document with its references blocks located
type analysis struct {
	doc      *extract.Document
	blocks   []extract.Section
	cited    []int
	declared []int
}

func analyze(htmlContent string) analysis {
	doc := extract.Parse(htmlContent)
	blocks := doc.FindSections(extract.ReferencesRule)

	spans := make([]extract.Span, len(blocks))
	declared := make(map[int]bool)
	for i, b := range blocks {
		spans[i] = b.Span
		for _, n := range b.Entries() {
			declared[n] = true
		}
	}

	cited := make(map[int]bool)
	for _, m := range doc.Markers(spans...) {
		for _, n := range m.Numbers {
			cited[n] = true
		}
	}

	return analysis{
		doc:      doc,
		blocks:   blocks,
		cited:    extract.SortedKeys(cited),
		declared: extract.SortedKeys(declared),
	}
}

func (a analysis) spans() []extract.Span {
	spans := make([]extract.Span, len(a.blocks))
	for i, b := range a.blocks {
		spans[i] = b.Span
	}
	return spans
}

// ExtractRequired returns the references the body's claims call for: the union of every
// matching claim pattern's refs, plus the catalog base reference unconditionally.
// Text inside the references block is not body copy and is not matched.
func (e *Engine) ExtractRequired(htmlContent string) []int {
	a := analyze(htmlContent)
	text := a.doc.VisibleText(a.spans()...)

	required := map[int]bool{e.catalog.Base(): true}
	for _, p := range e.catalog.Patterns() {
		if p.Pattern.MatchString(text) {
			for _, n := range p.Refs {
				required[n] = true
			}
		}
	}
	return extract.SortedKeys(required)
}

// ExtractCited returns the numbers named by inline citation markers outside the references block
func (e *Engine) ExtractCited(htmlContent string) []int {
	return analyze(htmlContent).cited
}

// ExtractDeclared returns the numbers listed in the references block
func (e *Engine) ExtractDeclared(htmlContent string) []int {
	return analyze(htmlContent).declared
}

// Validate compares cited and declared references; the document is valid iff they are equal
func (e *Engine) Validate(htmlContent string) model.ValidationResult {
	return e.validate(analyze(htmlContent))
}

func (e *Engine) validate(a analysis) model.ValidationResult {
	missing := difference(a.cited, a.declared)
	extra := difference(a.declared, a.cited)
	unknown := e.catalog.Unknown(a.cited)
	if unknown == nil {
		unknown = []int{}
	}

	return model.ValidationResult{
		Valid:    len(missing) == 0 && len(extra) == 0,
		Cited:    a.cited,
		Declared: a.declared,
		Missing:  missing,
		Extra:    extra,
		Unknown:  unknown,
	}
}

// PostProcess rebuilds the references block from the body's citations when it is out of sync.
// The rebuilt block lists exactly the cited references and sits immediately before the
// Important Safety Information block, else before </body>, else at the end of the document.
// A valid document is returned unchanged, so running PostProcess twice equals running it once.
func (e *Engine) PostProcess(htmlContent string) (model.PostProcessResult, error) {
	out := htmlContent

	for pass := 0; pass < maxRebuildPasses; pass++ {
		a := analyze(out)
		v := e.validate(a)

		if len(v.Unknown) > 0 {
			return model.PostProcessResult{HTML: htmlContent, References: v.Cited},
				fmt.Errorf("%w: cited %s", ErrUnknownReference, joinInts(v.Unknown))
		}

		if v.Valid {
			return model.PostProcessResult{
				HTML:        out,
				References:  v.Cited,
				WasModified: out != htmlContent,
			}, nil
		}

		e.logger.Debug("rebuilding references block",
			zap.Ints("cited", v.Cited),
			zap.Ints("declared", v.Declared),
			zap.Ints("missing", v.Missing),
			zap.Ints("extra", v.Extra),
			zap.Int("blocks_removed", len(a.blocks)),
		)

		out = removeSpans(out, a.spans())
		if len(v.Cited) > 0 {
			block, err := e.RenderReferences(v.Cited)
			if err != nil {
				return model.PostProcessResult{HTML: htmlContent, References: v.Cited}, err
			}
			out = insertBlock(out, block)
		}
	}

	return model.PostProcessResult{HTML: htmlContent}, ErrNotConverged
}

// RenderReferences renders a references block listing refs in ascending order
func (e *Engine) RenderReferences(refs []int) (string, error) {
	refs = union(refs)

	var b strings.Builder
	b.WriteString("<div class=\"references\">\n")
	b.WriteString("<h4>References</h4>\n")
	for _, n := range refs {
		text, ok := e.catalog.Citation(n)
		if !ok {
			return "", fmt.Errorf("%w: %d", ErrUnknownReference, n)
		}
		fmt.Fprintf(&b, "<p>%d. %s</p>\n", n, html.EscapeString(text))
	}
	b.WriteString("</div>")
	return b.String(), nil
}

// Audit compares the references the body's claims call for with those it cites.
// It is advisory: a document can be valid and still have uncited claims.
func (e *Engine) Audit(htmlContent string) model.AuditResult {
	a := analyze(htmlContent)
	text := a.doc.VisibleText(a.spans()...)

	required := map[int]bool{e.catalog.Base(): true}
	var matches []model.PatternMatch
	for _, p := range e.catalog.Patterns() {
		loc := p.Pattern.FindStringIndex(text)
		if loc == nil {
			continue
		}
		for _, n := range p.Refs {
			required[n] = true
		}
		excerpt := extract.SentenceAt(text, loc[0])
		if excerpt == "" {
			excerpt = text[loc[0]:loc[1]]
		}
		matches = append(matches, model.PatternMatch{
			Description: p.Description,
			Priority:    p.Priority,
			Refs:        p.Refs,
			Excerpt:     excerpt,
		})
	}

	req := extract.SortedKeys(required)
	return model.AuditResult{
		Required: req,
		Cited:    a.cited,
		Uncited:  difference(req, a.cited),
		Matches:  matches,
	}
}

// removeSpans cuts the given non-overlapping spans out of s, together with one
// line break left dangling after each cut
func removeSpans(s string, spans []extract.Span) string {
	var b strings.Builder
	pos := 0
	for _, sp := range spans {
		if sp.Start < pos {
			continue
		}
		b.WriteString(s[pos:sp.Start])
		pos = sp.End
		if pos < len(s) && s[pos] == '\n' && (sp.Start == 0 || s[sp.Start-1] == '\n') {
			pos++
		}
	}
	b.WriteString(s[pos:])
	return b.String()
}

func insertBlock(s, block string) string {
	doc := extract.Parse(s)

	at := -1
	if sec, ok := doc.FindSection(extract.SafetyRule); ok {
		at = sec.Start
	} else if body := closedElement(doc, "body"); body != nil {
		at = body.InnerEnd
	} else if root := closedElement(doc, "html"); root != nil {
		at = root.InnerEnd
	} else if tail, ok := doc.OpenTail(); ok {
		at = tail
	}

	if at < 0 {
		if s != "" && !strings.HasSuffix(s, "\n") {
			s += "\n"
		}
		return s + block + "\n"
	}

	prefix := s[:at]
	if prefix != "" && !strings.HasSuffix(prefix, "\n") {
		prefix += "\n"
	}
	return prefix + block + "\n" + s[at:]
}

// closedElement finds the first element with an explicit end tag
func closedElement(doc *extract.Document, tag string) *extract.Node {
	return extract.FindFirst(doc.Root, func(n *extract.Node) bool {
		return n.Kind == extract.ElementNode && n.Tag == tag && n.InnerEnd < n.End
	})
}

func joinInts(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}
