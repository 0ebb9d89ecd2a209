// Package extract isolates the substantive content of a web page from its
// boilerplate and derives structured sub-elements and size metrics.
//
// Extraction runs in five stages: selector-based boilerplate removal,
// text-density pruning of leftover fragments, candidate selection (semantic
// selectors first, then readability-style scoring of generic containers,
// then a go-readability parse as a last resort before falling back to body),
// subtree cleaning, and derivation of headings/links/images/lists plus
// metrics.
package extract

import (
	"errors"
	"log/slog"
	"math"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// ErrNoContent is returned when the document has no extractable content.
var ErrNoContent = errors.New("no content found")

// wordsPerMinute is the reading speed used for the reading-time estimate.
const wordsPerMinute = 200

// Options controls a single extraction.
type Options struct {
	// RemoveSelectors are removed in addition to the built-in boilerplate
	// selectors.
	RemoveSelectors []string

	// ContentSelectors overrides the semantic candidate selectors tried
	// before scoring.
	ContentSelectors []string

	// BaseURL is used by the readability fallback to resolve relative
	// references. Optional.
	BaseURL string
}

// Heading is a document heading inside the extracted content.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
	ID    string `json:"id,omitempty"`
}

// Link is a hyperlink inside the extracted content.
type Link struct {
	Text  string `json:"text"`
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// Image is an image inside the extracted content.
type Image struct {
	Src   string `json:"src"`
	Alt   string `json:"alt,omitempty"`
	Title string `json:"title,omitempty"`
}

// List is an ordered or unordered list inside the extracted content.
type List struct {
	Type  string   `json:"type"` // "ordered" or "unordered"
	Items []string `json:"items"`
}

// Metrics summarizes the size and composition of extracted content.
type Metrics struct {
	CharCount          int `json:"char_count"`
	WordCount          int `json:"word_count"`
	ParagraphCount     int `json:"paragraph_count"`
	HeadingCount       int `json:"heading_count"`
	LinkCount          int `json:"link_count"`
	ImageCount         int `json:"image_count"`
	ListCount          int `json:"list_count"`
	ReadingTimeMinutes int `json:"reading_time_minutes"`
}

// Content is the stateless value object produced by extraction.
type Content struct {
	HTML     string    `json:"html"`
	Text     string    `json:"text"`
	Headings []Heading `json:"headings"`
	Links    []Link    `json:"links"`
	Images   []Image   `json:"images"`
	Lists    []List    `json:"lists"`
	Metrics  Metrics   `json:"metrics"`
}

// Extractor finds and cleans the main content region of a page.
type Extractor struct {
	weights ScoreWeights
	logger  *slog.Logger
}

// New creates an extractor with default scoring weights.
func New(logger *slog.Logger) *Extractor {
	return NewWithWeights(DefaultScoreWeights(), logger)
}

// NewWithWeights creates an extractor with custom scoring weights.
func NewWithWeights(weights ScoreWeights, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{weights: weights, logger: logger}
}

// Extract isolates the main content of rawHTML.
func (e *Extractor) Extract(rawHTML string, opts Options) (*Content, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, ErrNoContent
	}

	body := doc.Find("body").First()
	if body.Length() == 0 || strings.TrimSpace(body.Text()) == "" && body.Find("img").Length() == 0 {
		return nil, ErrNoContent
	}

	removeBoilerplate(doc, opts.RemoveSelectors)
	pruneLowDensity(doc)

	candidate := e.selectCandidate(doc, opts)
	if candidate == nil {
		return nil, ErrNoContent
	}

	cleanSubtree(candidate)

	content := deriveContent(candidate)
	if content.Metrics.CharCount == 0 && content.Metrics.ImageCount == 0 {
		return nil, ErrNoContent
	}
	return content, nil
}

// selectCandidate returns the best content root: semantic selectors first,
// then scored generic containers, then a readability parse, then body.
func (e *Extractor) selectCandidate(doc *goquery.Document, opts Options) *goquery.Selection {
	selectors := opts.ContentSelectors
	if len(selectors) == 0 {
		selectors = defaultContentSelectors
	}

	var best *goquery.Selection
	bestScore := math.Inf(-1)

	for _, selector := range selectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		score := e.weights.Score(sel)
		// Ties favor earlier selectors in priority order.
		if score > bestScore {
			best, bestScore = sel, score
		}
	}

	if best == nil || bestScore < e.weights.MinCandidateScore {
		doc.Find("div, section, article").Each(func(_ int, sel *goquery.Selection) {
			if score := e.weights.Score(sel); score > bestScore {
				best, bestScore = sel, score
			}
		})
	}

	if best != nil && bestScore >= e.weights.MinCandidateScore {
		e.logger.Debug("content candidate selected", "score", bestScore)
		return best
	}

	if fallback := e.readabilityFallback(doc, opts.BaseURL); fallback != nil {
		return fallback
	}

	body := doc.Find("body").First()
	if body.Length() == 0 {
		return nil
	}
	return body
}

// readabilityFallback runs go-readability over the document when scoring
// found nothing convincing. Returns nil when readability finds nothing
// either.
func (e *Extractor) readabilityFallback(doc *goquery.Document, baseURL string) *goquery.Selection {
	rawHTML, err := doc.Html()
	if err != nil {
		return nil
	}

	pageURL, err := url.Parse(baseURL)
	if err != nil || pageURL.Host == "" {
		pageURL = &url.URL{Scheme: "https", Host: "unknown.invalid"}
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), pageURL)
	if err != nil || strings.TrimSpace(article.TextContent) == "" {
		return nil
	}

	parsed, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return nil
	}
	body := parsed.Find("body").First()
	if body.Length() == 0 {
		return nil
	}
	e.logger.Debug("readability fallback used", "chars", len(article.TextContent))
	return body
}

// deriveContent builds the structured value object from a cleaned subtree.
func deriveContent(sel *goquery.Selection) *Content {
	text := normalizeSpace(sel.Text())

	content := &Content{
		HTML: outerHTML(sel),
		Text: text,
	}

	sel.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, h *goquery.Selection) {
		level := int(h.Nodes[0].Data[1] - '0')
		content.Headings = append(content.Headings, Heading{
			Level: level,
			Text:  normalizeSpace(h.Text()),
			ID:    h.AttrOr("id", ""),
		})
	})

	sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		content.Links = append(content.Links, Link{
			Text:  normalizeSpace(a.Text()),
			URL:   a.AttrOr("href", ""),
			Title: a.AttrOr("title", ""),
		})
	})

	sel.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		content.Images = append(content.Images, Image{
			Src:   img.AttrOr("src", ""),
			Alt:   img.AttrOr("alt", ""),
			Title: img.AttrOr("title", ""),
		})
	})

	sel.Find("ul, ol").Each(func(_ int, list *goquery.Selection) {
		listType := "unordered"
		if goquery.NodeName(list) == "ol" {
			listType = "ordered"
		}
		var items []string
		list.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
			items = append(items, normalizeSpace(li.Text()))
		})
		content.Lists = append(content.Lists, List{Type: listType, Items: items})
	})

	words := len(strings.Fields(text))
	content.Metrics = Metrics{
		CharCount:          len(text),
		WordCount:          words,
		ParagraphCount:     sel.Find("p").Length(),
		HeadingCount:       len(content.Headings),
		LinkCount:          len(content.Links),
		ImageCount:         len(content.Images),
		ListCount:          len(content.Lists),
		ReadingTimeMinutes: readingTime(words),
	}

	return content
}

func readingTime(words int) int {
	if words == 0 {
		return 0
	}
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

func outerHTML(sel *goquery.Selection) string {
	out, err := goquery.OuterHtml(sel)
	if err != nil {
		return ""
	}
	return out
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
