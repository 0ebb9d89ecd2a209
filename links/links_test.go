package links

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `
<html><body>
  <a href="/docs/guide">Guide</a>
  <a href="https://example.com/pricing" title="Pricing page">Pricing</a>
  <a href="https://other.org/about">About elsewhere</a>
  <a href="#top">Back to top</a>
  <a href="mailto:team@example.com">Email us</a>
  <a href="tel:+15551234567">Call us</a>
  <a href="/files/report.pdf">Annual report</a>
  <a href="javascript:void(0)">Ignored</a>
  <a href="//cdn.example.com/asset.js">Protocol relative</a>
  <a href="/logo-link"><img src="/logo.png" alt="Company logo"></a>
  <map><area href="/map-target" alt="Region"></map>
  <img src="/hero.jpg" alt="Hero image">
</body></html>`

func mustDiscover(t *testing.T, html string, opts Options) *Result {
	t.Helper()
	res, err := Discover(html, "https://example.com/page", opts)
	require.NoError(t, err)
	return res
}

func find(t *testing.T, res *Result, url string) Link {
	t.Helper()
	for _, l := range res.Links {
		if l.URL == url {
			return l
		}
	}
	t.Fatalf("link %q not found in %d results", url, len(res.Links))
	return Link{}
}

func TestDiscoverCategorization(t *testing.T) {
	res := mustDiscover(t, samplePage, Options{})

	assert.Equal(t, CategoryInternal, find(t, res, "https://example.com/docs/guide").Category)
	assert.Equal(t, CategoryInternal, find(t, res, "https://example.com/pricing").Category)
	assert.Equal(t, CategoryExternal, find(t, res, "https://other.org/about").Category)
	assert.Equal(t, CategoryAnchor, find(t, res, "#top").Category)
	assert.Equal(t, CategoryEmail, find(t, res, "mailto:team@example.com").Category)
	assert.Equal(t, CategoryPhone, find(t, res, "tel:+15551234567").Category)
	assert.Equal(t, CategoryFile, find(t, res, "https://example.com/files/report.pdf").Category)
}

func TestDiscoverSkipsJavascriptHrefs(t *testing.T) {
	res := mustDiscover(t, samplePage, Options{})
	for _, l := range res.Links {
		assert.NotContains(t, l.URL, "javascript:")
	}
}

func TestDiscoverResolvesRelativeAndProtocolRelative(t *testing.T) {
	res := mustDiscover(t, samplePage, Options{})

	find(t, res, "https://example.com/docs/guide")
	find(t, res, "https://cdn.example.com/asset.js")
	find(t, res, "https://example.com/map-target")
}

func TestDiscoverTitlePrecedence(t *testing.T) {
	res := mustDiscover(t, samplePage, Options{})

	assert.Equal(t, "Pricing page", find(t, res, "https://example.com/pricing").Title, "title attr wins")
	assert.Equal(t, "Guide", find(t, res, "https://example.com/docs/guide").Title, "visible text")
	assert.Equal(t, "Company logo", find(t, res, "https://example.com/logo-link").Title, "image alt")

	res = mustDiscover(t, `<a href="/x" aria-label="Accessible name">text</a>`, Options{})
	assert.Equal(t, "Accessible name", find(t, res, "https://example.com/x").Title, "aria-label beats text")

	res = mustDiscover(t, `<a href="https://example.com/bare"></a>`, Options{})
	assert.Equal(t, "https://example.com/bare", find(t, res, "https://example.com/bare").Title, "href fallback")
}

func TestDiscoverImages(t *testing.T) {
	without := mustDiscover(t, samplePage, Options{})
	for _, l := range without.Links {
		assert.NotEqual(t, CategoryImage, l.Category)
	}

	with := mustDiscover(t, samplePage, Options{IncludeImages: true})
	hero := find(t, with, "https://example.com/hero.jpg")
	assert.Equal(t, CategoryImage, hero.Category)
	assert.Equal(t, "Hero image", hero.Title)
}

func TestDiscoverDedup(t *testing.T) {
	page := `
	  <a href="/dup">short</a>
	  <a href="/dup">a considerably longer label</a>
	  <a href="/dup">mid label</a>`

	res := mustDiscover(t, page, Options{RemoveDuplicates: true})
	require.Len(t, res.Links, 1)
	assert.Equal(t, "a considerably longer label", res.Links[0].Title)

	res = mustDiscover(t, page, Options{})
	assert.Len(t, res.Links, 3)
}

func TestDiscoverStats(t *testing.T) {
	res := mustDiscover(t, samplePage, Options{})

	assert.Equal(t, len(res.Links), res.Stats.Total)
	// other.org plus the cdn subdomain, which does not match the base host.
	assert.Equal(t, 2, res.Stats.ByCategory[CategoryExternal])
	assert.Equal(t, 1, res.Stats.ByCategory[CategoryFile])
	assert.Equal(t, 1, res.Stats.ByExtension[".pdf"])
	// example.com, other.org, cdn.example.com
	assert.Equal(t, 3, res.Stats.DistinctHosts)
}

func TestDiscoverEmptyDocument(t *testing.T) {
	res := mustDiscover(t, "<html><body></body></html>", Options{})
	assert.Empty(t, res.Links)
	assert.Equal(t, 0, res.Stats.Total)
}
