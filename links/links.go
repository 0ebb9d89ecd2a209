// Package links discovers and categorizes hyperlinks in fetched HTML.
package links

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/c360studio/webmill/weburl"
)

// Category classifies a discovered link.
type Category string

const (
	CategoryInternal Category = "internal"
	CategoryExternal Category = "external"
	CategoryAnchor   Category = "anchor"
	CategoryEmail    Category = "email"
	CategoryPhone    Category = "phone"
	CategoryFile     Category = "file"
	CategoryImage    Category = "image"
)

// fileExtensions is the fixed set of document, media, and archive
// extensions that force the file category.
var fileExtensions = map[string]struct{}{
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {},
	".ppt": {}, ".pptx": {}, ".odt": {}, ".ods": {}, ".csv": {},
	".txt": {}, ".rtf": {}, ".epub": {},
	".mp3": {}, ".mp4": {}, ".wav": {}, ".avi": {}, ".mov": {},
	".mkv": {}, ".webm": {}, ".flac": {},
	".zip": {}, ".tar": {}, ".gz": {}, ".rar": {}, ".7z": {},
	".dmg": {}, ".iso": {}, ".exe": {},
}

// Link is a single discovered hyperlink or image reference.
type Link struct {
	URL      string   `json:"url"`
	Title    string   `json:"title"`
	Category Category `json:"category"`
}

// Options controls discovery behavior.
type Options struct {
	IncludeImages    bool
	RemoveDuplicates bool
}

// Stats summarizes a discovery result.
type Stats struct {
	Total         int              `json:"total"`
	ByCategory    map[Category]int `json:"byCategory"`
	DistinctHosts int              `json:"distinctHosts"`
	ByExtension   map[string]int   `json:"byExtension"`
}

// Result holds all discovered links grouped by category plus statistics.
type Result struct {
	Links      []Link              `json:"links"`
	Categories map[Category][]Link `json:"categories"`
	Stats      Stats               `json:"stats"`
}

// Discover parses html and returns every link from a[href] and area[href],
// plus img[src] when requested. Relative references are resolved against
// baseURL; anchors, mailto:, tel:, and javascript: pass through unresolved.
func Discover(html, baseURL string, opts Options) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL %q: %w", baseURL, err)
	}
	baseDomain := weburl.ExtractDomain(baseURL)

	var links []Link
	doc.Find("a[href], area[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}
		resolved := resolve(href, base)
		links = append(links, Link{
			URL:      resolved,
			Title:    label(sel, resolved),
			Category: categorize(resolved, baseDomain),
		})
	})

	if opts.IncludeImages {
		doc.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
			src := strings.TrimSpace(sel.AttrOr("src", ""))
			if src == "" {
				return
			}
			resolved := resolve(src, base)
			links = append(links, Link{
				URL:      resolved,
				Title:    strings.TrimSpace(sel.AttrOr("alt", resolved)),
				Category: CategoryImage,
			})
		})
	}

	if opts.RemoveDuplicates {
		links = dedupe(links)
	}

	return buildResult(links), nil
}

// resolve makes href absolute against base. Fragment-only, mailto:, and
// tel: references keep their original form.
func resolve(href string, base *url.URL) string {
	lower := strings.ToLower(href)
	if strings.HasPrefix(href, "#") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// label picks the display title for a link: title attribute, then
// aria-label, then a contained image's alt text, then visible text, then
// the URL itself.
func label(sel *goquery.Selection, resolved string) string {
	if title := strings.TrimSpace(sel.AttrOr("title", "")); title != "" {
		return title
	}
	if aria := strings.TrimSpace(sel.AttrOr("aria-label", "")); aria != "" {
		return aria
	}
	if alt := strings.TrimSpace(sel.Find("img").AttrOr("alt", "")); alt != "" {
		return alt
	}
	if text := strings.TrimSpace(sel.Text()); text != "" {
		return strings.Join(strings.Fields(text), " ")
	}
	return resolved
}

func categorize(link, baseDomain string) Category {
	lower := strings.ToLower(link)
	switch {
	case strings.HasPrefix(link, "#"):
		return CategoryAnchor
	case strings.HasPrefix(lower, "mailto:"):
		return CategoryEmail
	case strings.HasPrefix(lower, "tel:"):
		return CategoryPhone
	}

	if _, ok := fileExtensions[extension(link)]; ok {
		return CategoryFile
	}

	host := weburl.ExtractDomain(link)
	if host == "" {
		return CategoryAnchor
	}
	if host == baseDomain {
		return CategoryInternal
	}
	return CategoryExternal
}

// extension returns the lower-cased path extension of a URL, ignoring
// query strings.
func extension(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return strings.ToLower(path.Ext(u.Path))
}

// dedupe keeps one entry per URL, preferring the longest title.
func dedupe(links []Link) []Link {
	best := make(map[string]int, len(links))
	var out []Link
	for _, l := range links {
		idx, seen := best[l.URL]
		if !seen {
			best[l.URL] = len(out)
			out = append(out, l)
			continue
		}
		if len(l.Title) > len(out[idx].Title) {
			out[idx] = l
		}
	}
	return out
}

func buildResult(links []Link) *Result {
	categories := make(map[Category][]Link)
	byCategory := make(map[Category]int)
	byExtension := make(map[string]int)
	hosts := make(map[string]struct{})

	for _, l := range links {
		categories[l.Category] = append(categories[l.Category], l)
		byCategory[l.Category]++
		if ext := extension(l.URL); ext != "" {
			byExtension[ext]++
		}
		if host := weburl.ExtractDomain(l.URL); host != "" {
			hosts[host] = struct{}{}
		}
	}

	return &Result{
		Links:      links,
		Categories: categories,
		Stats: Stats{
			Total:         len(links),
			ByCategory:    byCategory,
			DistinctHosts: len(hosts),
			ByExtension:   byExtension,
		},
	}
}
