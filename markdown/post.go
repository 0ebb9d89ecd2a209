package markdown

import (
	"fmt"
	"regexp"
	"strings"
)

// Pre-compiled regexes; conversion runs per page and these are hot.
var (
	preBlockRe    = regexp.MustCompile(`(?is)<pre[^>]*>.*?</pre>`)
	multiBrRe     = regexp.MustCompile(`(?i)(?:<br[^>]*>\s*){2,}`)
	runOnSpaceRe  = regexp.MustCompile(`[ \t\r\f]{2,}`)
	blankLinesRe  = regexp.MustCompile(`\n{3,}`)
	headingSpace  = regexp.MustCompile(`(?m)^(#{1,6})[ \t]+`)
	bulletSpace   = regexp.MustCompile(`(?m)^([ \t]*[-*+])[ \t]+`)
	orderedSpace  = regexp.MustCompile(`(?m)^([ \t]*\d+\.)[ \t]+`)
	quoteSpace    = regexp.MustCompile(`(?m)^(>+)[ \t]*`)
	tableLineRe   = regexp.MustCompile(`(?m)^\|.*\|[ \t]*$`)
	escapedPipeRe = regexp.MustCompile(`\\\|`)
)

// Preprocess normalizes HTML before conversion: run-on whitespace collapses
// to a single space (preformatted blocks are preserved verbatim) and runs of
// consecutive <br> become paragraph breaks.
func Preprocess(rawHTML string) string {
	var preBlocks []string
	rawHTML = preBlockRe.ReplaceAllStringFunc(rawHTML, func(block string) string {
		preBlocks = append(preBlocks, block)
		return fmt.Sprintf("\x00pre:%d\x00", len(preBlocks)-1)
	})

	rawHTML = multiBrRe.ReplaceAllString(rawHTML, "<p></p>")
	rawHTML = runOnSpaceRe.ReplaceAllString(rawHTML, " ")

	for i, block := range preBlocks {
		rawHTML = strings.Replace(rawHTML, fmt.Sprintf("\x00pre:%d\x00", i), block, 1)
	}
	return rawHTML
}

// Postprocess enforces the output whitespace contract: marker spacing is
// normalized first, then line-trailing whitespace is trimmed, blank-line runs
// are capped at two, table cells get uniform padding, and the document ends
// with exactly one newline.
func Postprocess(markdown string) string {
	markdown = strings.ReplaceAll(markdown, "\r\n", "\n")

	markdown = headingSpace.ReplaceAllString(markdown, "$1 ")
	markdown = bulletSpace.ReplaceAllString(markdown, "$1 ")
	markdown = orderedSpace.ReplaceAllString(markdown, "$1 ")
	markdown = quoteSpace.ReplaceAllString(markdown, "$1 ")

	markdown = tableLineRe.ReplaceAllStringFunc(markdown, normalizeTableLine)

	lines := strings.Split(markdown, "\n")
	for i, line := range lines {
		lines[i] = trimTrailing(line)
	}
	markdown = strings.Join(lines, "\n")

	markdown = blankLinesRe.ReplaceAllString(markdown, "\n\n")
	markdown = strings.TrimSpace(markdown)

	if markdown == "" {
		return ""
	}
	return markdown + "\n"
}

// trimTrailing removes trailing whitespace but keeps a Markdown hard break
// (exactly two trailing spaces) intact.
func trimTrailing(line string) string {
	trimmed := strings.TrimRight(line, " \t")
	if trimmed != line && strings.HasSuffix(line, "  ") && trimmed != "" {
		return trimmed + "  "
	}
	return trimmed
}

// normalizeTableLine re-pads the cells of a pipe-table row.
func normalizeTableLine(line string) string {
	// Protect escaped pipes from the cell split.
	sentinel := "\x00pipe\x00"
	protected := escapedPipeRe.ReplaceAllString(line, sentinel)

	trimmed := strings.Trim(strings.TrimSpace(protected), "|")
	cells := strings.Split(trimmed, "|")
	for i, cell := range cells {
		cells[i] = strings.TrimSpace(cell)
	}
	rebuilt := "| " + strings.Join(cells, " | ") + " |"
	return strings.ReplaceAll(rebuilt, sentinel, `\|`)
}

// structureFeatures detect the feature classes counted by the structure
// score: headings, lists, links, emphasis, code.
var structureFeatures = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^#{1,6} `),
	regexp.MustCompile(`(?m)^[ \t]*(?:[-*+]|\d+\.) `),
	regexp.MustCompile(`\[[^\]]+\]\([^)]+\)`),
	regexp.MustCompile(`\*\*[^*\n]+\*\*|_[^_\n]+_|\*[^*\n]+\*`),
	regexp.MustCompile("```|`[^`\n]+`"),
}

var (
	mdHeadingRe   = regexp.MustCompile(`(?m)^#{1,6} `)
	mdListItemRe  = regexp.MustCompile(`(?m)^[ \t]*(?:[-*+]|\d+\.) `)
	mdLinkRe      = regexp.MustCompile(`[^!]\[[^\]]*\]\([^)]+\)|^\[[^\]]*\]\([^)]+\)`)
	mdImageRe     = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	mdFenceRe     = regexp.MustCompile("(?m)^```")
	mdTableSepRe  = regexp.MustCompile(`(?m)^\|(?: ---(?: \|)?)+$`)
	mdParagraphRe = regexp.MustCompile(`(?m)^[^\s#>|\-*+` + "`" + `!\d]`)
	syntaxCharsRe = regexp.MustCompile("[#*_~`>|]")
)

// measure computes composition metrics for produced Markdown.
func measure(markdown string) Metrics {
	plain := stripSyntax(markdown)

	return Metrics{
		CharCount:      len(markdown),
		WordCount:      len(strings.Fields(plain)),
		ParagraphCount: len(mdParagraphRe.FindAllString(markdown, -1)),
		HeadingCount:   len(mdHeadingRe.FindAllString(markdown, -1)),
		LinkCount:      len(mdLinkRe.FindAllString(markdown, -1)),
		ImageCount:     len(mdImageRe.FindAllString(markdown, -1)),
		ListItemCount:  len(mdListItemRe.FindAllString(markdown, -1)),
		CodeBlockCount: len(mdFenceRe.FindAllString(markdown, -1)) / 2,
		TableCount:     len(mdTableSepRe.FindAllString(markdown, -1)),
	}
}

// stripSyntax removes Markdown syntax characters for word counting.
func stripSyntax(markdown string) string {
	return syntaxCharsRe.ReplaceAllString(markdown, " ")
}
