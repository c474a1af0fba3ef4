package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// NodeKind distinguishes element nodes from text nodes
type NodeKind int

const (
	ElementNode NodeKind = iota
	TextNode
)

// Node is an HTML node that remembers where it sits in the source string.
// Offsets let callers cut and splice the original markup without re-rendering it.
type Node struct {
	Kind     NodeKind
	Tag      string // Lowercase tag name for elements
	Attr     []html.Attribute
	Text     string // Unescaped text for text nodes
	Start    int    // Offset of the first byte of the start tag (or text)
	End      int    // Offset just past the end tag (or text)
	InnerEnd int    // Offset of the end tag; equals End when the element was closed implicitly
	Parent   *Node
	Children []*Node
}

// Document is a parsed HTML string
type Document struct {
	Source string
	Root   *Node

	openAt int // start of a construct that runs unterminated to EOF, -1 when none
}

// Elements whose content the tokenizer reads as raw text up to the matching end tag
var rawTextTags = map[string]bool{
	"iframe": true, "noembed": true, "noframes": true, "noscript": true, "plaintext": true,
	"script": true, "style": true, "textarea": true, "title": true, "xmp": true,
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true,
	"img": true, "input": true, "link": true, "meta": true, "param": true,
	"source": true, "track": true, "wbr": true,
}

// Block-level start tags that implicitly close an open <p>
var closesParagraph = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "div": true,
	"dl": true, "fieldset": true, "footer": true, "form": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "header": true, "hr": true,
	"main": true, "nav": true, "ol": true, "p": true, "pre": true, "section": true,
	"table": true, "ul": true,
}

// Parse tokenizes htmlContent into a position-aware node tree.
// It never fails: malformed markup yields a best-effort tree covering the whole input.
func Parse(htmlContent string) *Document {
	root := &Node{Kind: ElementNode, Tag: "#document", Start: 0, End: len(htmlContent), InnerEnd: len(htmlContent)}
	z := html.NewTokenizer(strings.NewReader(htmlContent))
	stack := []*Node{root}
	offset := 0
	openAt := -1

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}

		// Raw must be read before Text/TagName, which may reuse its buffer
		start := offset
		offset += len(z.Raw())
		top := stack[len(stack)-1]

		switch tt {
		case html.CommentToken:
			if offset == len(htmlContent) && swallowsTail(htmlContent[start:]) {
				openAt = start
			}

		case html.TextToken:
			top.Children = append(top.Children, &Node{
				Kind:   TextNode,
				Text:   string(z.Text()),
				Start:  start,
				End:    offset,
				Parent: top,
			})

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			var attrs []html.Attribute
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				attrs = append(attrs, html.Attribute{Key: string(key), Val: string(val)})
			}

			stack = closeImplicit(stack, tag, start)
			top = stack[len(stack)-1]

			n := &Node{Kind: ElementNode, Tag: tag, Attr: attrs, Start: start, End: offset, InnerEnd: offset, Parent: top}
			top.Children = append(top.Children, n)
			if tt == html.StartTagToken && !voidElements[tag] {
				stack = append(stack, n)
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			for i := len(stack) - 1; i > 0; i-- {
				if stack[i].Tag != tag {
					continue
				}
				for j := len(stack) - 1; j > i; j-- {
					stack[j].End = start
					stack[j].InnerEnd = start
				}
				stack[i].InnerEnd = start
				stack[i].End = offset
				stack = stack[:i]
				break
			}
		}
	}

	// A tag cut off at EOF is dropped by the tokenizer
	if offset < len(htmlContent) && openAt < 0 {
		openAt = offset
	}

	for j := len(stack) - 1; j > 0; j-- {
		stack[j].End = len(htmlContent)
		stack[j].InnerEnd = len(htmlContent)
		if rawTextTags[stack[j].Tag] || hiddenTags[stack[j].Tag] || stack[j].Tag == "sup" {
			if openAt < 0 || stack[j].Start < openAt {
				openAt = stack[j].Start
			}
		}
	}

	return &Document{Source: htmlContent, Root: root, openAt: openAt}
}

// swallowsTail reports whether markup appended after raw would be read as part of it
func swallowsTail(raw string) bool {
	z := html.NewTokenizer(strings.NewReader(raw + "<p>"))
	z.Next()
	return len(z.Raw()) > len(raw)
}

// OpenTail returns the offset where a construct left open at the end of the source
// begins: an unterminated comment or tag, a raw-text or hidden element, or a <sup>.
// Markup appended to the source would be read as part of it.
func (d *Document) OpenTail() (int, bool) {
	return d.openAt, d.openAt >= 0
}

// closeImplicit pops elements whose end tag HTML allows to be omitted
func closeImplicit(stack []*Node, tag string, at int) []*Node {
	top := stack[len(stack)-1]

	closes := false
	switch top.Tag {
	case "p":
		closes = closesParagraph[tag]
	case "li":
		closes = tag == "li"
	case "td", "th":
		closes = tag == "td" || tag == "th" || tag == "tr"
	case "tr":
		closes = tag == "tr"
	case "dt", "dd":
		closes = tag == "dt" || tag == "dd"
	}

	if !closes || len(stack) == 1 {
		return stack
	}
	top.End = at
	top.InnerEnd = at
	return stack[:len(stack)-1]
}

// AttrVal returns the value of an attribute, or "" when absent
func (n *Node) AttrVal(key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// HasClass checks if a node has a specific CSS class
func (n *Node) HasClass(className string) bool {
	if n.Kind != ElementNode {
		return false
	}
	for _, class := range strings.Fields(n.AttrVal("class")) {
		if strings.EqualFold(class, className) {
			return true
		}
	}
	return false
}

// Walk visits n and its descendants in document order.
// Returning false from fn skips the node's children.
func Walk(n *Node, fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// FindAll finds all nodes matching a predicate
func FindAll(n *Node, predicate func(*Node) bool) []*Node {
	var results []*Node
	Walk(n, func(node *Node) bool {
		if predicate(node) {
			results = append(results, node)
		}
		return true
	})
	return results
}

// FindFirst finds the first node matching a predicate in document order
func FindFirst(n *Node, predicate func(*Node) bool) *Node {
	var result *Node

	var walk func(*Node) bool
	walk = func(node *Node) bool {
		if predicate(node) {
			result = node
			return true
		}
		for _, c := range node.Children {
			if walk(c) {
				return true
			}
		}
		return false
	}

	walk(n)
	return result
}

// Span is a half-open byte range of the source
type Span struct {
	Start int
	End   int
}

// Contains reports whether offset lies inside the span
func (s Span) Contains(offset int) bool {
	return offset >= s.Start && offset < s.End
}

// Span returns the node's byte range
func (n *Node) Span() Span {
	return Span{Start: n.Start, End: n.End}
}

func inAny(spans []Span, offset int) bool {
	for _, s := range spans {
		if s.Contains(offset) {
			return true
		}
	}
	return false
}
