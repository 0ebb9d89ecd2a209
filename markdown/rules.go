package markdown

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

var languageClassRe = regexp.MustCompile(`language-([a-zA-Z0-9+#-]+)`)

// customRules returns the explicit conversion rules layered over the default
// commonmark rules. Default conversion loses tables, code languages, list
// numbering, and inline marks with no Markdown syntax; these rules keep them.
func customRules(opts Options) []md.Rule {
	return []md.Rule{
		blockquoteRule(),
		tableRule(),
		codeBlockRule(),
		listRule(),
		listItemRule(opts),
		linkRule(),
		imageRule(),
		strikethroughRule(),
		rawInlineRule(),
		hardBreakRule(),
		horizontalRuleRule(),
	}
}

// blockquoteRule prefixes every line with "> " and trims leading/trailing
// blank lines inside the quote.
func blockquoteRule() md.Rule {
	return md.Rule{
		Filter: []string{"blockquote"},
		Replacement: func(content string, _ *goquery.Selection, _ *md.Options) *string {
			content = strings.Trim(content, "\n")
			if content == "" {
				return md.String("")
			}
			lines := strings.Split(content, "\n")
			for i, line := range lines {
				lines[i] = "> " + line
			}
			return md.String("\n\n" + strings.Join(lines, "\n") + "\n\n")
		},
	}
}

// tableRule renders rows as pipe tables. Header rows get a separator line;
// pipe characters inside cells are escaped so they cannot break the grid.
func tableRule() md.Rule {
	return md.Rule{
		Filter: []string{"table"},
		Replacement: func(_ string, selec *goquery.Selection, _ *md.Options) *string {
			var lines []string
			var headerDone bool

			selec.Find("tr").Each(func(_ int, row *goquery.Selection) {
				var cells []string
				isHeader := row.Find("th").Length() > 0
				row.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
					text := strings.Join(strings.Fields(cell.Text()), " ")
					cells = append(cells, strings.ReplaceAll(text, "|", `\|`))
				})
				if len(cells) == 0 {
					return
				}

				lines = append(lines, "| "+strings.Join(cells, " | ")+" |")

				if isHeader && !headerDone {
					separators := make([]string, len(cells))
					for i := range separators {
						separators[i] = "---"
					}
					lines = append(lines, "| "+strings.Join(separators, " | ")+" |")
					headerDone = true
				}
			})

			if len(lines) == 0 {
				return md.String("")
			}
			return md.String("\n\n" + strings.Join(lines, "\n") + "\n\n")
		},
	}
}

// codeBlockRule emits fenced blocks with a language tag taken from a
// data-language attribute or a language-* class.
func codeBlockRule() md.Rule {
	return md.Rule{
		Filter: []string{"pre"},
		Replacement: func(_ string, selec *goquery.Selection, _ *md.Options) *string {
			code := selec.Find("code").First()
			var text, language string
			if code.Length() > 0 {
				text = code.Text()
				language = codeLanguage(code)
			} else {
				text = selec.Text()
			}
			if language == "" {
				language = codeLanguage(selec)
			}

			text = strings.Trim(text, "\n")
			return md.String("\n\n```" + language + "\n" + text + "\n```\n\n")
		},
	}
}

func codeLanguage(sel *goquery.Selection) string {
	if lang := sel.AttrOr("data-language", ""); lang != "" {
		return lang
	}
	if m := languageClassRe.FindStringSubmatch(sel.AttrOr("class", "")); m != nil {
		return m[1]
	}
	return ""
}

// listRule surrounds a whole list with blank lines.
func listRule() md.Rule {
	return md.Rule{
		Filter: []string{"ul", "ol"},
		Replacement: func(content string, selec *goquery.Selection, _ *md.Options) *string {
			content = strings.Trim(content, "\n")
			if content == "" {
				return md.String("")
			}
			// Nested lists become continuation lines of their parent item.
			if selec.Parents().Is("li") {
				return md.String("\n" + content)
			}
			return md.String("\n\n" + content + "\n\n")
		},
	}
}

// listItemRule writes one item per line. Ordered numbering respects an
// explicit start attribute and the item's position; nested content is
// indented by four spaces.
func listItemRule(opts Options) md.Rule {
	return md.Rule{
		Filter: []string{"li"},
		Replacement: func(content string, selec *goquery.Selection, _ *md.Options) *string {
			parent := selec.Parent()

			prefix := opts.BulletMarker + " "
			if goquery.NodeName(parent) == "ol" {
				start := 1
				if attr, ok := parent.Attr("start"); ok {
					if n, err := strconv.Atoi(strings.TrimSpace(attr)); err == nil {
						start = n
					}
				}
				prefix = fmt.Sprintf("%d. ", start+itemIndex(selec))
			}

			content = strings.Trim(content, "\n")
			content = strings.ReplaceAll(content, "\n", "\n    ")
			return md.String(prefix + content + "\n")
		},
	}
}

// itemIndex counts preceding li siblings, ignoring text nodes.
func itemIndex(selec *goquery.Selection) int {
	return selec.PrevAllFiltered("li").Length()
}

// linkRule inlines links and keeps the title attribute as a quoted suffix.
func linkRule() md.Rule {
	return md.Rule{
		Filter: []string{"a"},
		Replacement: func(content string, selec *goquery.Selection, _ *md.Options) *string {
			href := strings.TrimSpace(selec.AttrOr("href", ""))
			text := strings.TrimSpace(content)
			if href == "" {
				return md.String(text)
			}
			if text == "" {
				text = href
			}
			if title := strings.TrimSpace(selec.AttrOr("title", "")); title != "" {
				return md.String(fmt.Sprintf(`[%s](%s "%s")`, text, href, title))
			}
			return md.String(fmt.Sprintf("[%s](%s)", text, href))
		},
	}
}

// imageRule drops images without a src and keeps the title as a suffix.
func imageRule() md.Rule {
	return md.Rule{
		Filter: []string{"img"},
		Replacement: func(_ string, selec *goquery.Selection, _ *md.Options) *string {
			src := strings.TrimSpace(selec.AttrOr("src", ""))
			if src == "" {
				return md.String("")
			}
			alt := strings.TrimSpace(selec.AttrOr("alt", ""))
			if title := strings.TrimSpace(selec.AttrOr("title", "")); title != "" {
				return md.String(fmt.Sprintf(`![%s](%s "%s")`, alt, src, title))
			}
			return md.String(fmt.Sprintf("![%s](%s)", alt, src))
		},
	}
}

// strikethroughRule renders del/s/strike as ~~text~~.
func strikethroughRule() md.Rule {
	return md.Rule{
		Filter: []string{"del", "s", "strike"},
		Replacement: func(content string, _ *goquery.Selection, _ *md.Options) *string {
			content = strings.TrimSpace(content)
			if content == "" {
				return md.String("")
			}
			return md.String("~~" + content + "~~")
		},
	}
}

// rawInlineRule keeps sub/superscript as raw tags: Markdown has no native
// syntax for either.
func rawInlineRule() md.Rule {
	return md.Rule{
		Filter: []string{"sub", "sup"},
		Replacement: func(content string, selec *goquery.Selection, _ *md.Options) *string {
			tag := goquery.NodeName(selec)
			return md.String("<" + tag + ">" + strings.TrimSpace(content) + "</" + tag + ">")
		},
	}
}

// hardBreakRule renders <br> as a Markdown hard line break.
func hardBreakRule() md.Rule {
	return md.Rule{
		Filter: []string{"br"},
		Replacement: func(_ string, _ *goquery.Selection, _ *md.Options) *string {
			return md.String("  \n")
		},
	}
}

func horizontalRuleRule() md.Rule {
	return md.Rule{
		Filter: []string{"hr"},
		Replacement: func(_ string, _ *goquery.Selection, _ *md.Options) *string {
			return md.String("\n\n---\n\n")
		},
	}
}
