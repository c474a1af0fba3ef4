package compliance

import (
	"strings"
	"testing"

	"github.com/ppiankov/rxwizard/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	return NewEngine(c, nil)
}

const missingRefDoc = `<html><body>
<p>Zentrova helped patients reach clearer skin<sup>1,2</sup>.</p>
<p><strong>References</strong></p>
<p>1. Zentrova Prescribing Information.</p>
</body></html>`

func TestValidate_MissingReference(t *testing.T) {
	e := newTestEngine(t)

	v := e.Validate(missingRefDoc)
	assert.False(t, v.Valid)
	assert.Equal(t, []int{1, 2}, v.Cited)
	assert.Equal(t, []int{1}, v.Declared)
	assert.Equal(t, []int{2}, v.Missing)
	assert.Empty(t, v.Extra)
	assert.Empty(t, v.Unknown)
}

func TestPostProcess_AddsMissingReference(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.PostProcess(missingRefDoc)
	require.NoError(t, err)
	assert.True(t, res.WasModified)
	assert.Equal(t, []int{1, 2}, res.References)

	assert.Contains(t, res.HTML, "<p>1. Zentrova (zentrovimab) injection")
	assert.Contains(t, res.HTML, "<p>2. Alvarez M")
	assert.NotContains(t, res.HTML, "<p>1. Zentrova Prescribing Information.</p>")

	v := e.Validate(res.HTML)
	assert.True(t, v.Valid)
	assert.Equal(t, []int{1, 2}, v.Declared)
}

func TestValidate_ExtraReference(t *testing.T) {
	e := newTestEngine(t)
	doc := `<p>Dosing<sup>1</sup></p><h3>References</h3><p>1. PI</p><p>4. Data on file</p>`

	v := e.Validate(doc)
	assert.False(t, v.Valid)
	assert.Empty(t, v.Missing)
	assert.Equal(t, []int{4}, v.Extra)

	res, err := e.PostProcess(doc)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, e.ExtractDeclared(res.HTML))
	assert.NotContains(t, res.HTML, "Data on file")
}

func TestValidate_NoCitationsIsTriviallyValid(t *testing.T) {
	e := newTestEngine(t)

	for _, doc := range []string{"", "<p>Plain copy.</p>", "<<<not html"} {
		v := e.Validate(doc)
		assert.True(t, v.Valid, doc)
		assert.Empty(t, v.Cited)

		res, err := e.PostProcess(doc)
		require.NoError(t, err)
		assert.False(t, res.WasModified)
		assert.Equal(t, doc, res.HTML)
	}
}

func TestPostProcess_StaleBlockWithoutCitationsIsRemoved(t *testing.T) {
	e := newTestEngine(t)
	doc := "<p>Plain copy.</p>\n<div class=\"references\"><p>1. PI</p></div>\n"

	res, err := e.PostProcess(doc)
	require.NoError(t, err)
	assert.True(t, res.WasModified)
	assert.Equal(t, "<p>Plain copy.</p>\n", res.HTML)
	assert.Empty(t, res.References)
}

func TestPostProcess_InsertsBeforeSafetyInformation(t *testing.T) {
	e := newTestEngine(t)
	doc := `<html><body>
<p>Selectively blocks IL-23<sup>5</sup>.</p>
<div class="isi"><h3>Important Safety Information</h3><p>Serious infections may occur<sup>1</sup>.</p></div>
<p>Unsubscribe</p>
</body></html>`

	res, err := e.PostProcess(doc)
	require.NoError(t, err)

	refsAt := strings.Index(res.HTML, `<div class="references">`)
	isiAt := strings.Index(res.HTML, `<div class="isi">`)
	require.GreaterOrEqual(t, refsAt, 0)
	assert.Less(t, refsAt, isiAt)
	assert.Equal(t, []int{1, 5}, e.ExtractDeclared(res.HTML))
}

func TestPostProcess_InsertsBeforeBodyEnd(t *testing.T) {
	e := newTestEngine(t)
	doc := `<html><body><p>Every 8 weeks<sup>4</sup>.</p></body></html>`

	res, err := e.PostProcess(doc)
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(res.HTML, "</div>\n</body></html>"), res.HTML)
}

func TestPostProcess_AppendsWithoutBody(t *testing.T) {
	e := newTestEngine(t)
	doc := `<p>Every 8 weeks<sup>4</sup>.</p>`

	res, err := e.PostProcess(doc)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.HTML, doc+"\n<div class=\"references\">"))
	assert.True(t, strings.HasSuffix(res.HTML, "</div>\n"))
}

func TestPostProcess_AscendingOrder(t *testing.T) {
	e := newTestEngine(t)
	doc := `<p>Itch relief<sup>6</sup> and clearance<sup>2</sup> with dosing<sup>1</sup>.</p>`

	res, err := e.PostProcess(doc)
	require.NoError(t, err)

	one := strings.Index(res.HTML, "<p>1. ")
	two := strings.Index(res.HTML, "<p>2. ")
	six := strings.Index(res.HTML, "<p>6. ")
	assert.True(t, one < two && two < six, "expected ascending order, got %s", res.HTML)
}

func TestPostProcess_UnknownReferenceIsFatal(t *testing.T) {
	e := newTestEngine(t)
	doc := `<p>Claim<sup>1,42</sup>.</p>`

	assert.Equal(t, []int{42}, e.Validate(doc).Unknown)

	res, err := e.PostProcess(doc)
	require.ErrorIs(t, err, ErrUnknownReference)
	assert.Contains(t, err.Error(), "42")
	assert.Equal(t, doc, res.HTML)
}

func TestExtractCited_IgnoresMarkersInsideReferencesBlock(t *testing.T) {
	e := newTestEngine(t)
	doc := `<p>Copy<sup>2</sup></p><div class="references"><p>2. Study<sup>7</sup></p></div>`

	assert.Equal(t, []int{2}, e.ExtractCited(doc))
	assert.True(t, e.Validate(doc).Valid)
}

func TestExtractRequired_BaseFloor(t *testing.T) {
	e := newTestEngine(t)

	for _, doc := range []string{"", "<p>Nothing to see.</p>", missingRefDoc} {
		assert.Contains(t, e.ExtractRequired(doc), e.Catalog().Base(), doc)
	}
	assert.Equal(t, []int{1}, e.ExtractRequired("<p>Nothing to see.</p>"))
}

func TestExtractRequired_UnionOfAllMatches(t *testing.T) {
	e := newTestEngine(t)
	doc := `<p>78% of patients achieved PASI 90 with a well-tolerated safety profile, recommended in guidelines.</p>`

	assert.Equal(t, []int{1, 2, 7, 8}, e.ExtractRequired(doc))
}

func TestExtractRequired_SkipsReferencesBlockText(t *testing.T) {
	e := newTestEngine(t)
	doc := `<p>Plain copy.</p><div class="references"><p>7. Integrated safety analysis; adverse events.</p></div>`

	assert.Equal(t, []int{1}, e.ExtractRequired(doc))
}

func TestAudit(t *testing.T) {
	e := newTestEngine(t)
	doc := `<p>Zentrova selectively blocks IL-23<sup>5</sup>. Patients reported less itch.</p>`

	a := e.Audit(doc)
	assert.Equal(t, []int{1, 5, 6}, a.Required)
	assert.Equal(t, []int{5}, a.Cited)
	assert.Equal(t, []int{1, 6}, a.Uncited)

	var excerpts []string
	for _, m := range a.Matches {
		excerpts = append(excerpts, m.Excerpt)
	}
	assert.Contains(t, excerpts, "Patients reported less itch.")
}

// Compliance idempotence and soundness over a spread of document shapes
func TestPostProcess_Properties(t *testing.T) {
	e := newTestEngine(t)

	docs := map[string]string{
		"missing":  missingRefDoc,
		"empty":    ``,
		"no block": `<p>Clear skin<sup>2</sup> every 8 weeks<sup>1, 4</sup>.</p>`,
		"range":    `<p>Durable<sup>2-4</sup>.</p><h3>References:</h3><p>2. A</p>`,
		"two blocks": `<p>MOA<sup>5</sup></p><p>References</p><p>1. PI</p>
<p>More copy<sup>1</sup></p><div class="references"><h4>References</h4><p>5. MOA</p><p>8. Guidelines</p></div>`,
		"ordered list": `<body><p>Itch<sup>6</sup></p><section><h2>References</h2><ol><li>PI</li><li>Study</li></ol></section></body>`,
		"isi table": `<table><tr><td>Copy<sup>3</sup></td></tr><tr><td><b>Important Safety Information</b><br>Risk of infections.</td></tr></table>`,
		"valid": `<p>Copy<sup>1</sup></p><div class="references"><p>1. PI</p></div>`,
		"stale only": `<p>Copy.</p><p>References</p><p>1. PI</p>`,
		"br lines":   `<p>Copy<sup>1,2</sup></p><p><strong>References:</strong> 1. PI<br>3. Wrong</p><p>Footer</p>`,

		"unterminated comment": `<p>Claim<sup>1</sup></p><!-- trailing note`,
		"unclosed script":      `<p>Claim<sup>1</sup></p><script>var x = 1;`,
		"unclosed textarea":    `<p>Claim<sup>1</sup></p><textarea>draft`,
		"unclosed title":       `<p>Claim<sup>1</sup></p><title>x`,
		"unclosed marker":      `<p>Claim<sup>1</sup> and more<sup>2`,
		"numbered copy after heading": `<p>Dosing<sup>1</sup></p><h4>References</h4><p>1. PI</p>` +
			`<p>16 weeks of therapy led to clear skin<sup>2</sup>.</p>`,
		"count after heading": `<p>References</p><p>1 in 3 patients improved<sup>2</sup></p>`,
	}

	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			cited := e.ExtractCited(doc)

			once, err := e.PostProcess(doc)
			require.NoError(t, err)

			a := analyze(doc)
			for _, m := range a.doc.Markers(a.spans()...) {
				assert.Contains(t, once.HTML, doc[m.Start:m.End], "citation marker dropped")
			}

			v := e.Validate(once.HTML)
			assert.True(t, v.Valid, "not valid after post-processing: %+v\n%s", v, once.HTML)
			assert.Equal(t, cited, e.ExtractDeclared(once.HTML))
			assert.Equal(t, cited, once.References)

			twice, err := e.PostProcess(once.HTML)
			require.NoError(t, err)
			assert.Equal(t, once.HTML, twice.HTML)
			assert.False(t, twice.WasModified)
		})
	}
}

func TestPostProcess_TruncatedDocuments(t *testing.T) {
	e := newTestEngine(t)
	body := `<p>Claim<sup>1</sup></p>`

	for _, tail := range []string{
		"<!-- trailing note",
		"<script>var x = 1;",
		"<textarea>draft",
		"<title>x",
	} {
		t.Run(tail, func(t *testing.T) {
			res, err := e.PostProcess(body + tail)
			require.NoError(t, err)
			assert.True(t, res.WasModified)
			assert.True(t, strings.HasSuffix(res.HTML, "</div>\n"+tail), "block not placed before the open tail:\n%s", res.HTML)

			v := e.Validate(res.HTML)
			assert.True(t, v.Valid)
			assert.Equal(t, []int{1}, v.Declared)
		})
	}
}

func TestPostProcess_KeepsNumberedCopyAfterHeading(t *testing.T) {
	e := newTestEngine(t)
	doc := `<p>Dosing<sup>1</sup></p><h4>References</h4><p>1. PI</p><p>16 weeks of therapy led to clear skin<sup>2</sup>.</p>`

	assert.Equal(t, []int{1, 2}, e.ExtractCited(doc))
	assert.Equal(t, []int{1}, e.ExtractDeclared(doc))

	res, err := e.PostProcess(doc)
	require.NoError(t, err)
	assert.Contains(t, res.HTML, "<p>16 weeks of therapy led to clear skin<sup>2</sup>.</p>")
	assert.Equal(t, []int{1, 2}, e.ExtractDeclared(res.HTML))

	doc = `<p>References</p><p>1 in 3 patients improved<sup>2</sup></p>`
	res, err = e.PostProcess(doc)
	require.NoError(t, err)
	assert.Contains(t, res.HTML, "<p>1 in 3 patients improved<sup>2</sup></p>")
	assert.Equal(t, []int{2}, e.ExtractDeclared(res.HTML))
}

func TestRenderReferences_EscapesCitationText(t *testing.T) {
	c, err := catalog.New("t", "p", 1, []catalog.Reference{{Number: 1, Citation: "A & B <study>"}}, nil)
	require.NoError(t, err)
	e := NewEngine(c, nil)

	block, err := e.RenderReferences([]int{1})
	require.NoError(t, err)
	assert.Contains(t, block, "<p>1. A &amp; B &lt;study&gt;</p>")

	_, err = e.RenderReferences([]int{2})
	require.ErrorIs(t, err, ErrUnknownReference)
}
