package extract

import (
	"reflect"
	"strings"
	"testing"
)

func TestFindSection_ClassMarkedBlock(t *testing.T) {
	src := `<body><p>Body<sup>1</sup></p><div class="references"><h4>References</h4><p>1. Label</p><p>2. Study</p></div></body>`
	doc := Parse(src)

	sec, ok := doc.FindSection(ReferencesRule)
	if !ok {
		t.Fatal("Expected to find references block")
	}
	if got := src[sec.Start:sec.End]; !strings.HasPrefix(got, `<div class="references">`) || !strings.HasSuffix(got, "</div>") {
		t.Errorf("Unexpected block span: %q", got)
	}
	if sec.Heading == nil {
		t.Error("Expected heading to be recorded")
	}
	if got := sec.Entries(); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Errorf("Expected entries [1 2], got %v", got)
	}
}

func TestFindSection_HeadingWithSiblingEntries(t *testing.T) {
	src := `<body><p>Copy.</p><h3>References:</h3><p>1. Label</p><p>3. Study</p><p>Unsubscribe here</p></body>`
	doc := Parse(src)

	sec, ok := doc.FindSection(ReferencesRule)
	if !ok {
		t.Fatal("Expected to find references block")
	}
	got := src[sec.Start:sec.End]
	if got != `<h3>References:</h3><p>1. Label</p><p>3. Study</p>` {
		t.Errorf("Unexpected block span: %q", got)
	}
	if entries := sec.Entries(); !reflect.DeepEqual(entries, []int{1, 3}) {
		t.Errorf("Expected entries [1 3], got %v", entries)
	}
}

func TestFindSection_ContainerStartingWithHeading(t *testing.T) {
	src := `<table><tr><td><strong>References</strong><br>1. Label<br>2. Study</td></tr></table>`
	doc := Parse(src)

	sec, ok := doc.FindSection(ReferencesRule)
	if !ok {
		t.Fatal("Expected to find references block")
	}
	if !strings.HasPrefix(src[sec.Start:sec.End], "<td>") {
		t.Errorf("Expected td to be the block, got %q", src[sec.Start:sec.End])
	}
	if entries := sec.Entries(); !reflect.DeepEqual(entries, []int{1, 2}) {
		t.Errorf("Expected entries [1 2], got %v", entries)
	}
}

func TestFindSection_OrderedListOrdinals(t *testing.T) {
	src := `<section><h2>References</h2><ol start="2"><li>Study A</li><li>5. Study B</li><li>Study C</li></ol></section>`
	doc := Parse(src)

	sec, ok := doc.FindSection(ReferencesRule)
	if !ok {
		t.Fatal("Expected to find references block")
	}
	if entries := sec.Entries(); !reflect.DeepEqual(entries, []int{2, 4, 5}) {
		t.Errorf("Expected entries [2 4 5], got %v", entries)
	}
}

func TestFindSection_IgnoresMentions(t *testing.T) {
	src := `<p>See <a href="#isi">Important Safety Information</a> below.</p><p>Please read the references carefully.</p>`
	doc := Parse(src)

	if _, ok := doc.FindSection(SafetyRule); ok {
		t.Error("Expected linked mention not to count as a safety heading")
	}
	if _, ok := doc.FindSection(ReferencesRule); ok {
		t.Error("Expected prose mention not to count as a references heading")
	}
}

func TestFindSection_Safety(t *testing.T) {
	src := `<body><p>Copy</p><div><h3>Indication and Important Safety Information</h3><p>Serious infections may occur.</p></div></body>`
	doc := Parse(src)

	sec, ok := doc.FindSection(SafetyRule)
	if !ok {
		t.Fatal("Expected to find safety block")
	}
	if !strings.HasPrefix(src[sec.Start:], "<div><h3>Indication") {
		t.Errorf("Expected safety block to start at its container, got %q", src[sec.Start:])
	}
}

func TestFindSections_Multiple(t *testing.T) {
	src := `<p>References</p><p>1. A</p><p>Middle copy.</p><div class="references"><p>2. B</p></div>`
	doc := Parse(src)

	secs := doc.FindSections(ReferencesRule)
	if len(secs) != 2 {
		t.Fatalf("Expected 2 blocks, got %d", len(secs))
	}
	if secs[0].Start > secs[1].Start {
		t.Error("Expected sections ordered by position")
	}
}

func TestLeadingNumber(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"1. Label", 1, true},
		{" 12) Study", 12, true},
		{"[3] Data on file", 3, true},
		{"4 Smith J", 4, true},
		{"7", 7, true},
		{"2024 guidelines", 0, false},
		{"Label 1.", 0, false},
	}
	for _, tt := range tests {
		got, ok := LeadingNumber(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("LeadingNumber(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFindSection_StopsAtBodyCopy(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		block   string
		entries []int
	}{
		{
			name:    "copy with marker",
			src:     `<h4>References</h4><p>1. PI</p><p>16 weeks of therapy led to clear skin<sup>2</sup>.</p>`,
			block:   `<h4>References</h4><p>1. PI</p>`,
			entries: []int{1},
		},
		{
			name:    "bare count",
			src:     `<p>References</p><p>1 in 3 patients improved</p>`,
			block:   `<p>References</p>`,
			entries: []int{},
		},
		{
			name:    "bracketed entries",
			src:     `<h4>References</h4><p>[1] PI</p><p>2) Study</p><p>Footer</p>`,
			block:   `<h4>References</h4><p>[1] PI</p><p>2) Study</p>`,
			entries: []int{1, 2},
		},
		{
			name:    "list with marker",
			src:     `<h4>References</h4><ul><li>Clear skin<sup>3</sup></li></ul>`,
			block:   `<h4>References</h4>`,
			entries: []int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sec, ok := Parse(tt.src).FindSection(ReferencesRule)
			if !ok {
				t.Fatal("Expected to find references block")
			}
			if got := tt.src[sec.Start:sec.End]; got != tt.block {
				t.Errorf("Expected block %q, got %q", tt.block, got)
			}
			if got := sec.Entries(); !reflect.DeepEqual(got, tt.entries) {
				t.Errorf("Expected entries %v, got %v", tt.entries, got)
			}
		})
	}
}

func TestSection_BareNumbersInMarkedBlock(t *testing.T) {
	src := `<div class="references"><p>1 Smith J. Study.</p><p>2 Data on file.</p></div>`
	sec, ok := Parse(src).FindSection(ReferencesRule)
	if !ok {
		t.Fatal("Expected to find references block")
	}
	if got := sec.Entries(); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Errorf("Expected entries [1 2], got %v", got)
	}
}
