// Package markdown transduces cleaned HTML into semantically faithful
// Markdown.
//
// The conversion core is a html-to-markdown converter augmented with explicit
// rules for the structures default conversion loses: tables, fenced code
// blocks with language tags, nested and explicitly numbered lists,
// blockquotes, strikethrough, sub/superscript, hard breaks, and horizontal
// rules. Pre-processing collapses run-on whitespace and merges consecutive
// line breaks into paragraph breaks; post-processing enforces the whitespace
// and formatting contract documented on Postprocess.
package markdown

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// HeadingStyle selects the produced heading syntax.
type HeadingStyle string

// Supported heading styles.
const (
	HeadingATX    HeadingStyle = "atx"
	HeadingSetext HeadingStyle = "setext"
)

// Options controls conversion output style.
type Options struct {
	// HeadingStyle is "atx" (default) or "setext".
	HeadingStyle HeadingStyle

	// BulletMarker is the unordered list marker, "-" by default.
	BulletMarker string

	// LinkStyle is "inlined" (default) or "referenced".
	LinkStyle string
}

// DefaultOptions returns the default conversion style.
func DefaultOptions() Options {
	return Options{
		HeadingStyle: HeadingATX,
		BulletMarker: "-",
		LinkStyle:    "inlined",
	}
}

// Metrics summarizes the composition of produced Markdown.
type Metrics struct {
	CharCount      int `json:"char_count"`
	WordCount      int `json:"word_count"`
	ParagraphCount int `json:"paragraph_count"`
	HeadingCount   int `json:"heading_count"`
	LinkCount      int `json:"link_count"`
	ImageCount     int `json:"image_count"`
	ListItemCount  int `json:"list_item_count"`
	CodeBlockCount int `json:"code_block_count"`
	TableCount     int `json:"table_count"`
}

// Quality carries diagnostic conversion-quality scores. They inform
// monitoring, not pass/fail decisions.
type Quality struct {
	// ContentPreservationRatio compares Markdown word count to source HTML
	// text word count; 1.0 means no measurable loss.
	ContentPreservationRatio float64 `json:"content_preservation_ratio"`

	// StructureScore awards 0.2 for each structural feature class present
	// in the output (headings, lists, links, emphasis, code), capped at 1.0.
	StructureScore float64 `json:"structure_score"`
}

// Result is the outcome of one conversion.
type Result struct {
	Markdown string  `json:"markdown"`
	Metrics  Metrics `json:"metrics"`
	Quality  Quality `json:"quality"`
}

// Converter converts HTML to Markdown.
type Converter struct {
	opts Options
	conv *md.Converter
}

// New creates a converter with the given output style.
func New(opts Options) *Converter {
	if opts.BulletMarker == "" {
		opts.BulletMarker = "-"
	}
	if opts.HeadingStyle == "" {
		opts.HeadingStyle = HeadingATX
	}
	if opts.LinkStyle == "" {
		opts.LinkStyle = "inlined"
	}

	conv := md.NewConverter("", true, &md.Options{
		HeadingStyle:     string(opts.HeadingStyle),
		BulletListMarker: opts.BulletMarker,
		CodeBlockStyle:   "fenced",
		Fence:            "```",
		HorizontalRule:   "---",
		LinkStyle:        opts.LinkStyle,
	})
	conv.AddRules(customRules(opts)...)

	return &Converter{opts: opts, conv: conv}
}

// Convert transforms HTML into Markdown with metrics and quality scores.
func (c *Converter) Convert(rawHTML string) (*Result, error) {
	prepared := Preprocess(rawHTML)

	markdown, err := c.conv.ConvertString(prepared)
	if err != nil {
		return nil, err
	}

	markdown = Postprocess(markdown)

	return &Result{
		Markdown: markdown,
		Metrics:  measure(markdown),
		Quality:  scoreQuality(rawHTML, markdown),
	}, nil
}

// scoreQuality compares the produced Markdown against the source HTML text.
func scoreQuality(rawHTML, markdown string) Quality {
	sourceWords := htmlWordCount(rawHTML)
	markdownWords := len(strings.Fields(stripSyntax(markdown)))

	ratio := 1.0
	if sourceWords > 0 {
		ratio = float64(markdownWords) / float64(sourceWords)
	}

	var structure float64
	for _, re := range structureFeatures {
		if re.MatchString(markdown) {
			structure += 0.2
		}
	}
	if structure > 1.0 {
		structure = 1.0
	}

	return Quality{
		ContentPreservationRatio: ratio,
		StructureScore:           structure,
	}
}

// htmlWordCount counts words in the text content of an HTML fragment.
func htmlWordCount(rawHTML string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return 0
	}
	return len(strings.Fields(doc.Text()))
}
