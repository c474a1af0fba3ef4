package extract

import (
	"strings"
)

// Elements whose text never reaches the reader
var hiddenTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "iframe": true, "template": true, "title": true,
}

// VisibleText extracts the readable text of the document, skipping scripts/styles
// and anything inside the excluded spans
func (d *Document) VisibleText(exclude ...Span) string {
	var buf strings.Builder

	Walk(d.Root, func(n *Node) bool {
		if n.Kind == ElementNode {
			if hiddenTags[n.Tag] || inAny(exclude, n.Start) {
				return false
			}
			return true
		}

		if inAny(exclude, n.Start) {
			return false
		}
		text := strings.TrimSpace(n.Text)
		if text != "" {
			buf.WriteString(text)
			buf.WriteString(" ")
		}
		return false
	})

	return collapseSpace(buf.String())
}

// TextNodes returns the non-blank visible text nodes under n in document order
func TextNodes(n *Node) []*Node {
	var texts []*Node
	Walk(n, func(node *Node) bool {
		if node.Kind == ElementNode {
			return !hiddenTags[node.Tag]
		}
		if strings.TrimSpace(node.Text) != "" {
			texts = append(texts, node)
		}
		return false
	})
	return texts
}

// FirstText returns the first non-blank visible text node under n
func FirstText(n *Node) *Node {
	if n.Kind == TextNode {
		if strings.TrimSpace(n.Text) == "" {
			return nil
		}
		return n
	}
	return FindFirst(n, func(node *Node) bool {
		return node.Kind == TextNode && strings.TrimSpace(node.Text) != "" && !hiddenAncestor(node, n)
	})
}

// InnerText concatenates the visible text under n
func InnerText(n *Node) string {
	if n.Kind == TextNode {
		return n.Text
	}
	var buf strings.Builder
	for _, t := range TextNodes(n) {
		buf.WriteString(t.Text)
	}
	return buf.String()
}

func hiddenAncestor(n, stop *Node) bool {
	for p := n.Parent; p != nil && p != stop; p = p.Parent {
		if hiddenTags[p.Tag] {
			return true
		}
	}
	return false
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Sentences splits text into sentences (simple heuristic).
// Fragments shorter than minLen are dropped.
func Sentences(text string, minLen int) []string {
	text = strings.ReplaceAll(text, "\n", " ")

	var sentences []string
	var current strings.Builder

	flush := func() {
		sentence := strings.TrimSpace(current.String())
		if len(sentence) >= minLen && sentence != "" {
			sentences = append(sentences, sentence)
		}
		current.Reset()
	}

	for i, r := range text {
		current.WriteRune(r)

		if r == '.' || r == '!' || r == '?' {
			// Look ahead to avoid splitting on decimals and abbreviations like "et al.,"
			if i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\t') {
				flush()
			}
		}
	}

	if current.Len() > 0 {
		flush()
	}

	return sentences
}

// SentenceAt returns the sentence of text that contains the byte offset
func SentenceAt(text string, offset int) string {
	pos := 0
	for _, s := range Sentences(text, 1) {
		idx := strings.Index(text[pos:], s)
		if idx < 0 {
			continue
		}
		start := pos + idx
		end := start + len(s)
		if offset >= start && offset < end {
			return s
		}
		pos = end
	}
	return ""
}
