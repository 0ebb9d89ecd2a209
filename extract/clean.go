package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// boilerplateSelectors are always removed before candidate selection.
var boilerplateSelectors = []string{
	"script", "style", "noscript", "iframe", "object", "embed",
	"nav", "header", "footer", "aside",
	"[role=navigation]", "[role=banner]", "[role=complementary]",
	"[aria-hidden=true]", "[hidden]",
}

// boilerplateClassKeywords mark wrapper elements removed by class or id.
var boilerplateClassKeywords = []string{
	"advert", "banner", "breadcrumb", "comment", "cookie", "menu",
	"navbar", "navigation", "popup", "share", "sidebar", "social",
	"sponsor",
}

// keptAttributes is the attribute whitelist applied while cleaning. Element
// ids survive so heading anchors stay addressable after extraction.
var keptAttributes = map[string]bool{
	"href": true, "src": true, "alt": true, "title": true, "id": true,
}

// Density-pruning thresholds: fragments below these are leftover chrome.
const (
	minDensityRatio    = 0.1
	shortFragmentChars = 200
	denseLinkCount     = 3
)

// shortParagraphChars is the merge threshold for adjacent paragraphs.
const shortParagraphChars = 50

// removeBoilerplate strips known non-content elements from the document.
func removeBoilerplate(doc *goquery.Document, extra []string) {
	for _, selector := range boilerplateSelectors {
		doc.Find(selector).Remove()
	}
	for _, selector := range extra {
		doc.Find(selector).Remove()
	}

	doc.Find("div, section, ul").Each(func(_ int, sel *goquery.Selection) {
		marker := strings.ToLower(sel.AttrOr("class", "") + " " + sel.AttrOr("id", ""))
		if marker == " " {
			return
		}
		for _, kw := range boilerplateClassKeywords {
			if strings.Contains(marker, kw) {
				sel.Remove()
				return
			}
		}
	})

	doc.Find(`[style]`).Each(func(_ int, sel *goquery.Selection) {
		style := strings.ReplaceAll(sel.AttrOr("style", ""), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			sel.Remove()
		}
	})
}

// pruneLowDensity drops containers whose text-to-markup ratio marks them as
// leftover navigation or advertising fragments.
func pruneLowDensity(doc *goquery.Document) {
	doc.Find("div, section").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		markup, err := goquery.OuterHtml(sel)
		if err != nil || len(markup) == 0 {
			return
		}

		links := sel.Find("a").Length()
		images := sel.Find("img").Length()

		// Link farms: barely any text, several links or images.
		if len(text) < shortFragmentChars/4 && links+images > 2 {
			sel.Remove()
			return
		}

		ratio := float64(len(text)) / float64(len(markup))
		if ratio < minDensityRatio && len(text) < shortFragmentChars && links >= denseLinkCount {
			sel.Remove()
		}
	})
}

// cleanSubtree normalizes the winning candidate in place: scripts and styles
// go, attributes are whitelisted, text-only divs become paragraphs, empty
// paragraphs are dropped, and adjacent short paragraphs are merged.
func cleanSubtree(sel *goquery.Selection) {
	sel.Find("script, style, noscript").Remove()

	stripAttributes(sel)

	sel.Find("div").Each(func(_ int, div *goquery.Selection) {
		if div.Children().Length() == 0 {
			if text := strings.TrimSpace(div.Text()); text != "" {
				div.ReplaceWithHtml("<p>" + html.EscapeString(normalizeSpace(text)) + "</p>")
			}
		}
	})

	sel.Find("p").Each(func(_ int, p *goquery.Selection) {
		if strings.TrimSpace(p.Text()) == "" && p.Find("img").Length() == 0 {
			p.Remove()
		}
	})

	mergeShortParagraphs(sel)
}

// stripAttributes removes every attribute except the whitelist and data-*.
func stripAttributes(sel *goquery.Selection) {
	sel.Find("*").Each(func(_ int, el *goquery.Selection) {
		node := el.Nodes[0]
		kept := node.Attr[:0]
		for _, attr := range node.Attr {
			if keptAttributes[attr.Key] || strings.HasPrefix(attr.Key, "data-") {
				kept = append(kept, attr)
			}
		}
		node.Attr = kept
	})
}

// mergeShortParagraphs joins runs of adjacent paragraphs shorter than the
// merge threshold into a single paragraph.
func mergeShortParagraphs(sel *goquery.Selection) {
	sel.Find("p").Each(func(_ int, p *goquery.Selection) {
		if len(p.Nodes) == 0 || p.Nodes[0].Parent == nil {
			return // already merged away
		}
		text := strings.TrimSpace(p.Text())
		if len(text) >= shortParagraphChars || text == "" {
			return
		}

		next := p.Next()
		for next.Length() > 0 && goquery.NodeName(next) == "p" {
			nextText := strings.TrimSpace(next.Text())
			if len(nextText) >= shortParagraphChars || nextText == "" {
				break
			}
			text = text + " " + nextText
			toRemove := next
			next = next.Next()
			toRemove.Remove()
		}

		if text != strings.TrimSpace(p.Text()) {
			p.SetText(text)
		}
	})
}
