package extract

import (
	"sort"
	"strconv"
	"strings"
)

// Widest range a single marker may expand ("2-4" is three references, "2-400" is not a range)
const maxCitationRange = 50

// Marker is one inline citation (<sup>1,2</sup>)
type Marker struct {
	Span
	Text    string
	Numbers []int
}

// Markers returns every inline citation marker outside the excluded spans.
// Superscripts without reference numbers (®, ™, footnote daggers) are skipped.
func (d *Document) Markers(exclude ...Span) []Marker {
	return markersUnder(d.Root, exclude)
}

func markersUnder(root *Node, exclude []Span) []Marker {
	var markers []Marker

	Walk(root, func(n *Node) bool {
		if n.Kind != ElementNode {
			return false
		}
		if hiddenTags[n.Tag] || inAny(exclude, n.Start) {
			return false
		}
		if n.Tag != "sup" {
			return true
		}

		text := InnerText(n)
		if nums := ParseMarker(text); len(nums) > 0 {
			markers = append(markers, Marker{Span: n.Span(), Text: text, Numbers: nums})
		}
		return false
	})

	return markers
}

// ParseMarker reads the reference numbers of a citation marker.
// Parts are comma separated; "2-4" and "2–4" expand to 2, 3, 4.
func ParseMarker(text string) []int {
	seen := make(map[int]bool)

	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		part = strings.NewReplacer("–", "-", "—", "-", "‑", "-").Replace(part)
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			from, errLo := strconv.Atoi(strings.TrimSpace(lo))
			to, errHi := strconv.Atoi(strings.TrimSpace(hi))
			if errLo != nil || errHi != nil || from <= 0 || to <= 0 {
				continue
			}
			if to >= from && to-from <= maxCitationRange {
				for n := from; n <= to; n++ {
					seen[n] = true
				}
			} else {
				seen[from] = true
				seen[to] = true
			}
			continue
		}

		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 {
			continue
		}
		seen[n] = true
	}

	return SortedKeys(seen)
}

// SortedKeys returns the set members in ascending order
func SortedKeys(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
