package fetch

import (
	"strings"

	"golang.org/x/net/html"
)

// contentSelectors is the priority order for locating a page's content root.
// The first match wins; body is the last resort.
var contentSelectors = []string{
	"main",
	"article",
	"[role=main]",
	"#content",
	".content",
	".main-content",
	".post-content",
	".article-content",
	"body",
}

type pageMetadata struct {
	title       string
	description string
	canonical   string
	language    string
}

// extractMetadata pulls document metadata out of rendered HTML.
func extractMetadata(rawHTML string) pageMetadata {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return pageMetadata{}
	}

	var meta pageMetadata
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "html":
				if meta.language == "" {
					meta.language = attrValue(n, "lang")
				}
			case "title":
				if meta.title == "" && n.FirstChild != nil {
					meta.title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				if strings.EqualFold(attrValue(n, "name"), "description") && meta.description == "" {
					meta.description = strings.TrimSpace(attrValue(n, "content"))
				}
			case "link":
				if strings.EqualFold(attrValue(n, "rel"), "canonical") && meta.canonical == "" {
					meta.canonical = strings.TrimSpace(attrValue(n, "href"))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return meta
}

// findContentRoot returns the outer HTML of the first element matching the
// content selector priority list, falling back to the whole document.
func findContentRoot(rawHTML string) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return rawHTML
	}

	for _, selector := range contentSelectors {
		if node := findElement(doc, selector); node != nil {
			return renderNode(node)
		}
	}
	return rawHTML
}

// findElement finds the first element matching a simple selector.
func findElement(n *html.Node, selector string) *html.Node {
	var result *html.Node
	var find func(*html.Node)
	find = func(node *html.Node) {
		if result != nil {
			return
		}
		if node.Type == html.ElementNode && matchesSelector(node, selector) {
			result = node
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(n)
	return result
}

// matchesSelector checks if a node matches a simple selector: a tag name,
// an [attr=value] attribute selector, a .class, or an #id.
func matchesSelector(n *html.Node, selector string) bool {
	switch {
	case strings.HasPrefix(selector, "[") && strings.HasSuffix(selector, "]"):
		attr := strings.TrimSuffix(strings.TrimPrefix(selector, "["), "]")
		parts := strings.SplitN(attr, "=", 2)
		if len(parts) != 2 {
			return false
		}
		return attrValue(n, parts[0]) == strings.Trim(parts[1], `"`)
	case strings.HasPrefix(selector, "."):
		want := strings.TrimPrefix(selector, ".")
		for _, class := range strings.Fields(attrValue(n, "class")) {
			if class == want {
				return true
			}
		}
		return false
	case strings.HasPrefix(selector, "#"):
		return attrValue(n, "id") == strings.TrimPrefix(selector, "#")
	default:
		return n.Data == selector
	}
}

// renderNode renders a node and its children back to an HTML string.
func renderNode(n *html.Node) string {
	var sb strings.Builder
	_ = html.Render(&sb, n)
	return sb.String()
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
