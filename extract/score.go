package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// defaultContentSelectors are tried in priority order before scoring.
var defaultContentSelectors = []string{
	"main",
	"article",
	"[role=main]",
	"#content",
	".content",
	".main-content",
	".post-content",
	".article-content",
	".entry-content",
}

// contentKeywords suggest a container holds primary content.
var contentKeywords = []string{
	"article", "blog", "body", "content", "entry", "main", "page",
	"post", "story", "text",
}

// negativeKeywords suggest navigation, chrome, or advertising.
var negativeKeywords = []string{
	"advert", "banner", "breadcrumb", "comment", "footer", "header",
	"masthead", "menu", "nav", "promo", "related", "share", "sidebar",
	"social", "sponsor", "widget",
}

// ScoreWeights are the readability-style scoring constants.
//
// The values are empirical calibration targets inherited from field use, not
// derived quantities. They are exposed as configuration so deployments can
// tune them without a rebuild.
type ScoreWeights struct {
	TextLengthDivisor      float64 // +min(textLen/divisor, TextLengthCap)
	TextLengthCap          float64
	ParagraphWeight        float64 // +min(weight*paragraphs, ParagraphCap)
	ParagraphCap           float64
	AvgParagraphDiv        float64 // +min(avgParagraphLen/divisor, AvgParagraphCap)
	AvgParagraphCap        float64
	ContentKeywordBoost    float64
	NegativeKeywordPenalty float64
	LinkDensityLimit       float64 // penalty applies above this ratio
	LinkDensityPenalty     float64
	HeadingWeight          float64 // per heading
	ListWeight             float64 // per list
	ImageWeight            float64 // +min(weight*images, ImageCap)
	ImageCap               float64
	MinCandidateScore      float64 // below this the fallback chain applies
}

// DefaultScoreWeights returns the calibrated scoring constants.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		TextLengthDivisor:      100,
		TextLengthCap:          25,
		ParagraphWeight:        2,
		ParagraphCap:           20,
		AvgParagraphDiv:        50,
		AvgParagraphCap:        15,
		ContentKeywordBoost:    25,
		NegativeKeywordPenalty: 15,
		LinkDensityLimit:       0.3,
		LinkDensityPenalty:     20,
		HeadingWeight:          3,
		ListWeight:             2,
		ImageWeight:            2,
		ImageCap:               10,
		MinCandidateScore:      10,
	}
}

// Score rates how likely sel is to be the page's primary content region.
func (w ScoreWeights) Score(sel *goquery.Selection) float64 {
	text := strings.TrimSpace(sel.Text())
	textLen := float64(len(text))

	score := minf(textLen/w.TextLengthDivisor, w.TextLengthCap)

	paragraphs := sel.Find("p")
	paragraphCount := float64(paragraphs.Length())
	score += minf(w.ParagraphWeight*paragraphCount, w.ParagraphCap)

	if paragraphCount > 0 {
		var paragraphChars float64
		paragraphs.Each(func(_ int, p *goquery.Selection) {
			paragraphChars += float64(len(strings.TrimSpace(p.Text())))
		})
		avgLen := paragraphChars / paragraphCount
		score += minf(avgLen/w.AvgParagraphDiv, w.AvgParagraphCap)
	}

	marker := strings.ToLower(sel.AttrOr("class", "") + " " + sel.AttrOr("id", ""))
	if containsAny(marker, contentKeywords) {
		score += w.ContentKeywordBoost
	}
	if containsAny(marker, negativeKeywords) {
		score -= w.NegativeKeywordPenalty
	}

	if textLen > 0 {
		var linkChars float64
		sel.Find("a").Each(func(_ int, a *goquery.Selection) {
			linkChars += float64(len(strings.TrimSpace(a.Text())))
		})
		if linkChars/textLen > w.LinkDensityLimit {
			score -= w.LinkDensityPenalty
		}
	}

	score += w.HeadingWeight * float64(sel.Find("h1, h2, h3, h4, h5, h6").Length())
	score += w.ListWeight * float64(sel.Find("ul, ol").Length())
	score += minf(w.ImageWeight*float64(sel.Find("img").Length()), w.ImageCap)

	return score
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
