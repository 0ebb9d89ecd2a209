package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articlePage = `<!DOCTYPE html>
<html>
<body>
<nav>Home | About | Contact</nav>
<header><div class="banner">Big Banner</div></header>
<main>
<h1 id="story">The Story</h1>
<p>This opening paragraph carries enough words to look like genuine article
content rather than navigation chrome, which matters for density checks.</p>
<p>A second paragraph keeps the scoring honest by adding more prose and a
<a href="/next" title="next page">link to the next page</a>.</p>
<img src="/figure.png" alt="a figure" title="Figure 1">
<ul><li>alpha</li><li>beta</li></ul>
<ol><li>first</li><li>second</li></ol>
</main>
<aside class="sidebar"><a href="/a">a</a><a href="/b">b</a><a href="/c">c</a></aside>
<footer>Copyright</footer>
</body>
</html>`

func TestExtractArticle(t *testing.T) {
	e := New(nil)

	content, err := e.Extract(articlePage, Options{})
	require.NoError(t, err)

	assert.Contains(t, content.Text, "opening paragraph")
	assert.NotContains(t, content.Text, "Home | About")
	assert.NotContains(t, content.Text, "Copyright")
	assert.NotContains(t, content.Text, "Big Banner")

	require.Len(t, content.Headings, 1)
	assert.Equal(t, 1, content.Headings[0].Level)
	assert.Equal(t, "The Story", content.Headings[0].Text)
	assert.Equal(t, "story", content.Headings[0].ID)

	require.Len(t, content.Links, 1)
	assert.Equal(t, "/next", content.Links[0].URL)
	assert.Equal(t, "next page", content.Links[0].Title)

	require.Len(t, content.Images, 1)
	assert.Equal(t, "/figure.png", content.Images[0].Src)
	assert.Equal(t, "a figure", content.Images[0].Alt)

	require.Len(t, content.Lists, 2)
	assert.Equal(t, "unordered", content.Lists[0].Type)
	assert.Equal(t, []string{"alpha", "beta"}, content.Lists[0].Items)
	assert.Equal(t, "ordered", content.Lists[1].Type)

	m := content.Metrics
	assert.Positive(t, m.CharCount)
	assert.Positive(t, m.WordCount)
	assert.Equal(t, 2, m.ParagraphCount)
	assert.Equal(t, 1, m.HeadingCount)
	assert.Equal(t, 1, m.LinkCount)
	assert.Equal(t, 1, m.ImageCount)
	assert.Equal(t, 2, m.ListCount)
	assert.Equal(t, 1, m.ReadingTimeMinutes)
}

func TestExtractEmptyDocument(t *testing.T) {
	e := New(nil)

	_, err := e.Extract("<html><body></body></html>", Options{})
	assert.ErrorIs(t, err, ErrNoContent)

	_, err = e.Extract("", Options{})
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestExtractScoredCandidate(t *testing.T) {
	// No semantic container: the content div must win by score over the
	// link-heavy navigation div.
	page := `<html><body>
<div class="links"><a href="/1">one</a> <a href="/2">two</a> <a href="/3">three</a></div>
<div class="post-text">
<h2>Scored Content</h2>
<p>` + strings.Repeat("Plenty of realistic sentence text goes here. ", 20) + `</p>
<p>` + strings.Repeat("And a second paragraph of comparable length. ", 20) + `</p>
</div>
</body></html>`

	e := New(nil)
	content, err := e.Extract(page, Options{})
	require.NoError(t, err)

	assert.Contains(t, content.Text, "Scored Content")
	assert.NotContains(t, content.Text, "three")
}

func TestExtractCustomRemoveSelectors(t *testing.T) {
	page := `<html><body><main>
<div class="promo-box">Subscribe now</div>
<p>Body text that should survive the custom removal selector with room to
spare for the density pruning pass.</p>
</main></body></html>`

	e := New(nil)
	content, err := e.Extract(page, Options{RemoveSelectors: []string{".promo-box"}})
	require.NoError(t, err)
	assert.NotContains(t, content.Text, "Subscribe now")
	assert.Contains(t, content.Text, "Body text")
}

func TestExtractIdempotent(t *testing.T) {
	e := New(nil)

	first, err := e.Extract(articlePage, Options{})
	require.NoError(t, err)

	second, err := e.Extract("<html><body>"+first.HTML+"</body></html>", Options{})
	require.NoError(t, err)

	assert.Equal(t, first.Headings, second.Headings)
	assert.Equal(t, first.Links, second.Links)
	assert.Equal(t, first.Lists, second.Lists)
}

func TestMergeShortParagraphs(t *testing.T) {
	page := `<html><body><main>
<p>tiny one</p>
<p>tiny two</p>
<p>` + strings.Repeat("long paragraph body text ", 10) + `</p>
</main></body></html>`

	e := New(nil)
	content, err := e.Extract(page, Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, content.Metrics.ParagraphCount)
	assert.Contains(t, content.Text, "tiny one tiny two")
}

func TestStripAttributesKeepsHeadingIDs(t *testing.T) {
	doc := mustDoc(t, `<div>
<h2 id="setup" class="fancy" style="color:red">Setup</h2>
<a href="/docs" rel="nofollow" title="docs">docs</a>
</div>`)
	sel := doc.Find("div").First()

	stripAttributes(sel)

	h := sel.Find("h2")
	assert.Equal(t, "setup", h.AttrOr("id", ""))
	_, hasClass := h.Attr("class")
	assert.False(t, hasClass)
	_, hasStyle := h.Attr("style")
	assert.False(t, hasStyle)

	a := sel.Find("a")
	assert.Equal(t, "/docs", a.AttrOr("href", ""))
	assert.Equal(t, "docs", a.AttrOr("title", ""))
	_, hasRel := a.Attr("rel")
	assert.False(t, hasRel)
}

func TestScoreWeights(t *testing.T) {
	w := DefaultScoreWeights()

	richDoc := mustDoc(t, `<div class="article-content">
<h2>Title</h2>
<p>`+strings.Repeat("text ", 200)+`</p>
<p>`+strings.Repeat("more ", 200)+`</p>
<ul><li>x</li></ul>
</div>`)
	navDoc := mustDoc(t, `<div class="sidebar-nav">
<a href="/1">one</a><a href="/2">two</a><a href="/3">three</a>
</div>`)

	rich := w.Score(richDoc.Find("div").First())
	nav := w.Score(navDoc.Find("div").First())

	assert.Greater(t, rich, w.MinCandidateScore)
	assert.Less(t, nav, w.MinCandidateScore)
	assert.Greater(t, rich, nav)
}

func mustDoc(t *testing.T, fragment string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	require.NoError(t, err)
	return doc
}
