package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// SectionRule identifies a trailing document block by its fixed heading or a marker class/id
type SectionRule struct {
	Name    string
	Heading *regexp.Regexp
	Classes []string
}

var (
	// ReferencesRule finds the declared references block
	ReferencesRule = SectionRule{
		Name:    "references",
		Heading: regexp.MustCompile(`(?i)^references?\s*:?$`),
		Classes: []string{"references", "reference-list"},
	}

	// SafetyRule finds the Important Safety Information block
	SafetyRule = SectionRule{
		Name:    "safety",
		Heading: regexp.MustCompile(`(?i)^(indications?(\s+and\s+usage)?\s+(and|&)\s+)?important\s+safety\s+information\s*:?$`),
		Classes: []string{"isi", "safety-information", "important-safety-information"},
	}
)

// An entry line starts with its reference number: "1.", "1)", "[1]" or "1 "
var leadingNumberRe = regexp.MustCompile(`^\s*\[?(\d{1,3})(?:[.):\]]|\s|$)`)

// Outside a marked block a line only reads as an entry with punctuated numbering
var entryPrefixRe = regexp.MustCompile(`^\s*(?:\d{1,3}[.)]|\[\d{1,3}\])`)

// Elements that may hold a whole section when the heading is their first text
var containerTags = map[string]bool{
	"div": true, "section": true, "aside": true, "footer": true, "article": true,
	"p": true, "td": true, "dl": true, "blockquote": true,
}

// Elements that start a new line of text
var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "tr": true, "td": true, "dd": true, "dt": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "aside": true, "footer": true, "header": true,
	"ul": true, "ol": true, "table": true, "blockquote": true,
}

var inlineTags = map[string]bool{
	"a": true, "span": true, "em": true, "strong": true, "b": true, "i": true, "u": true,
	"sup": true, "sub": true, "small": true, "font": true,
}

// Section is a located block of the document
type Section struct {
	Span
	Heading *Node   // Heading text node; nil when the block was found by class/id without one
	Nodes   []*Node // Top-level nodes making up the block, in order
}

func (r SectionRule) marks(n *Node) bool {
	if n.Kind != ElementNode {
		return false
	}
	id := n.AttrVal("id")
	for _, c := range r.Classes {
		if n.HasClass(c) || strings.EqualFold(id, c) {
			return true
		}
	}
	return false
}

func (r SectionRule) isHeading(text string) bool {
	return r.Heading.MatchString(collapseSpace(text))
}

// FindSections returns every block matching the rule, ordered by position.
// Blocks never nest: text inside an already located block is not considered again.
func (d *Document) FindSections(rule SectionRule) []Section {
	var sections []Section

	covered := func(offset int) bool {
		for _, s := range sections {
			if s.Contains(offset) {
				return true
			}
		}
		return false
	}

	Walk(d.Root, func(n *Node) bool {
		if n.Kind != ElementNode || hiddenTags[n.Tag] {
			return false
		}
		if !rule.marks(n) {
			return true
		}
		sec := Section{Span: n.Span(), Nodes: []*Node{n}}
		if first := FirstText(n); first != nil && rule.isHeading(first.Text) {
			sec.Heading = first
		}
		sections = append(sections, sec)
		return false
	})

	Walk(d.Root, func(n *Node) bool {
		if n.Kind == ElementNode {
			return !hiddenTags[n.Tag] && !covered(n.Start)
		}
		if covered(n.Start) || !rule.isHeading(n.Text) {
			return false
		}
		if sec, ok := sectionFromHeading(n); ok {
			sections = append(sections, sec)
		}
		return false
	})

	sort.Slice(sections, func(i, j int) bool { return sections[i].Start < sections[j].Start })
	return sections
}

// FindSection returns the first block matching the rule
func (d *Document) FindSection(rule SectionRule) (Section, bool) {
	sections := d.FindSections(rule)
	if len(sections) == 0 {
		return Section{}, false
	}
	return sections[0], true
}

// sectionFromHeading grows a block outward from its heading text.
// The innermost container that starts with the heading and holds more text is the block.
// Otherwise the block is the heading element plus the entry-like siblings that follow it.
func sectionFromHeading(heading *Node) (Section, bool) {
	for p := heading.Parent; p != nil; p = p.Parent {
		if p.Tag == "a" {
			return Section{}, false
		}
	}

	e := heading
	for p := heading.Parent; p != nil && p.Parent != nil && p.Tag != "body" && p.Tag != "html"; p = p.Parent {
		if FirstText(p) != heading {
			break
		}
		if containerTags[p.Tag] && hasTextAfter(p, heading) {
			return Section{Span: p.Span(), Heading: heading, Nodes: []*Node{p}}, true
		}
		e = p
	}

	parent := e.Parent
	if parent == nil {
		return Section{}, false
	}

	idx := indexOf(parent.Children, e)

	// An inline heading with text before it is a mention, not a heading
	if e.Kind == TextNode || inlineTags[e.Tag] {
		for _, sib := range parent.Children[:idx] {
			if FirstText(sib) != nil {
				return Section{}, false
			}
		}
	}

	nodes := []*Node{e}
	end := e.End
	for _, sib := range parent.Children[idx+1:] {
		if sib.Kind == TextNode && strings.TrimSpace(sib.Text) == "" {
			continue
		}
		if sib.Kind == ElementNode && sib.Tag == "br" {
			continue
		}
		if !looksLikeEntry(sib) {
			break
		}
		nodes = append(nodes, sib)
		end = sib.End
	}

	return Section{Span: Span{Start: e.Start, End: end}, Heading: heading, Nodes: nodes}, true
}

func hasTextAfter(n, after *Node) bool {
	for _, t := range TextNodes(n) {
		if t.Start > after.Start {
			return true
		}
	}
	return false
}

// looksLikeEntry decides whether a sibling after a references heading continues the list.
// Anything carrying a citation marker is body copy.
func looksLikeEntry(n *Node) bool {
	if n.Kind == ElementNode {
		if hiddenTags[n.Tag] {
			return false
		}
		if len(markersUnder(n, nil)) > 0 {
			return false
		}
		if n.Tag == "ol" || n.Tag == "ul" {
			return true
		}
	}
	first := FirstText(n)
	if first == nil {
		return false
	}
	return entryPrefixRe.MatchString(first.Text)
}

func indexOf(nodes []*Node, n *Node) int {
	for i, c := range nodes {
		if c == n {
			return i
		}
	}
	return 0
}

// LeadingNumber reads the reference number an entry line starts with
func LeadingNumber(text string) (int, bool) {
	m := leadingNumberRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Entries returns the reference numbers a section lists, ascending.
// Each line contributes its leading number; items of an <ol> without one contribute their ordinal.
func (s Section) Entries() []int {
	seen := make(map[int]bool)
	lineStart := true
	ordinal := 0

	var visit func(n *Node)
	visit = func(n *Node) {
		if n.Kind == TextNode {
			if strings.TrimSpace(n.Text) == "" {
				return
			}
			if n == s.Heading {
				lineStart = true
				return
			}
			if lineStart {
				if num, ok := LeadingNumber(n.Text); ok {
					seen[num] = true
				} else if ordinal > 0 {
					seen[ordinal] = true
				}
				ordinal = 0
				lineStart = false
			}
			return
		}

		if hiddenTags[n.Tag] {
			return
		}
		if n.Tag == "br" {
			lineStart = true
			return
		}
		if blockTags[n.Tag] {
			lineStart = true
		}

		if n.Tag == "ol" {
			next := 1
			if start, err := strconv.Atoi(n.AttrVal("start")); err == nil {
				next = start
			}
			for _, c := range n.Children {
				if c.Kind == ElementNode && c.Tag == "li" {
					lineStart = true
					ordinal = next
					next++
					visit(c)
					ordinal = 0
					continue
				}
				visit(c)
			}
			lineStart = true
			return
		}

		for _, c := range n.Children {
			visit(c)
		}
		if blockTags[n.Tag] {
			lineStart = true
		}
	}

	for _, n := range s.Nodes {
		visit(n)
	}
	return SortedKeys(seen)
}
