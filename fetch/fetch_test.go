package fetch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/chromedp/cdproto/page"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Category
	}{
		{
			name:     "concurrency limit",
			err:      ErrConcurrencyLimit,
			expected: CategoryRateLimit,
		},
		{
			name:     "wrapped concurrency limit",
			err:      errors.New("acquire page: " + ErrConcurrencyLimit.Error()),
			expected: CategoryUnknown, // not wrapped with %w, text does not match
		},
		{
			name:     "http error",
			err:      &HTTPError{Status: 404},
			expected: CategoryHTTP,
		},
		{
			name:     "deadline",
			err:      context.DeadlineExceeded,
			expected: CategoryTimeout,
		},
		{
			name:     "timeout text",
			err:      errors.New("net/http: request timed out"),
			expected: CategoryTimeout,
		},
		{
			name:     "dns",
			err:      errors.New("dial tcp: lookup nope.invalid: no such host"),
			expected: CategoryDNS,
		},
		{
			name:     "chrome dns",
			err:      errors.New("page load error net::ERR_NAME_NOT_RESOLVED"),
			expected: CategoryDNS,
		},
		{
			name:     "refused",
			err:      errors.New("dial tcp 93.184.216.34:443: connection refused"),
			expected: CategoryConnectionRefused,
		},
		{
			name:     "tls",
			err:      errors.New("x509: certificate signed by unknown authority"),
			expected: CategorySSL,
		},
		{
			name:     "chrome cert",
			err:      errors.New("page load error net::ERR_CERT_AUTHORITY_INVALID"),
			expected: CategorySSL,
		},
		{
			name:     "unknown",
			err:      errors.New("something odd"),
			expected: CategoryUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Categorize(tt.err); got != tt.expected {
				t.Errorf("Categorize(%v) = %q, want %q", tt.err, got, tt.expected)
			}
		})
	}
}

func TestExtractMetadata(t *testing.T) {
	rawHTML := `<!DOCTYPE html>
<html lang="en">
<head>
<title>Example Domain</title>
<meta name="description" content="An example page.">
<link rel="canonical" href="https://example.com/">
</head>
<body><p>Hello</p></body>
</html>`

	meta := extractMetadata(rawHTML)
	if meta.title != "Example Domain" {
		t.Errorf("title = %q, want %q", meta.title, "Example Domain")
	}
	if meta.description != "An example page." {
		t.Errorf("description = %q, want %q", meta.description, "An example page.")
	}
	if meta.canonical != "https://example.com/" {
		t.Errorf("canonical = %q, want %q", meta.canonical, "https://example.com/")
	}
	if meta.language != "en" {
		t.Errorf("language = %q, want %q", meta.language, "en")
	}
}

func TestExtractMetadataMissingFields(t *testing.T) {
	meta := extractMetadata("<html><body>bare</body></html>")
	if meta.title != "" || meta.description != "" || meta.canonical != "" {
		t.Errorf("expected empty metadata, got %+v", meta)
	}
}

func TestFindContentRoot(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		contains string
		excludes string
	}{
		{
			name:     "main preferred over body",
			html:     `<html><body><nav>menu</nav><main><p>article text</p></main></body></html>`,
			contains: "article text",
			excludes: "menu",
		},
		{
			name:     "article when no main",
			html:     `<html><body><article><h1>Story</h1></article><footer>foot</footer></body></html>`,
			contains: "Story",
			excludes: "foot",
		},
		{
			name:     "role=main attribute",
			html:     `<html><body><div role="main"><p>roled</p></div><aside>side</aside></body></html>`,
			contains: "roled",
			excludes: "side",
		},
		{
			name:     "content class",
			html:     `<html><body><div class="wrap content"><p>classed</p></div></body></html>`,
			contains: "classed",
		},
		{
			name:     "body fallback",
			html:     `<html><body><div><p>plain</p></div></body></html>`,
			contains: "plain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := findContentRoot(tt.html)
			if !strings.Contains(got, tt.contains) {
				t.Errorf("content root missing %q: %s", tt.contains, got)
			}
			if tt.excludes != "" && strings.Contains(got, tt.excludes) {
				t.Errorf("content root should not contain %q: %s", tt.excludes, got)
			}
		})
	}
}

func TestLifecycleMonitorWaitPolicies(t *testing.T) {
	m := newLifecycleMonitor()

	select {
	case <-m.ready(WaitDOMContentLoaded):
		t.Fatal("domcontentloaded ready before any event")
	default:
	}

	m.listen(&page.EventDomContentEventFired{})

	select {
	case <-m.ready(WaitDOMContentLoaded):
	default:
		t.Fatal("domcontentloaded not ready after the DOMContentLoaded event")
	}
	select {
	case <-m.ready(WaitLoad):
		t.Fatal("load policy satisfied by DOMContentLoaded alone")
	default:
	}

	m.listen(&page.EventLoadEventFired{})
	m.listen(&page.EventLoadEventFired{}) // duplicates are tolerated

	select {
	case <-m.ready(WaitLoad):
	default:
		t.Fatal("load not ready after the load event")
	}
	select {
	case <-m.ready(WaitNetworkIdle):
	default:
		t.Fatal("networkidle gates on the load event first")
	}
}

func TestAcquireTabFailsFastWhenClosed(t *testing.T) {
	b, err := NewBrowser(Config{MaxConcurrentPages: 1}, nil)
	if err != nil {
		t.Fatalf("NewBrowser() error = %v", err)
	}
	b.Close()

	_, _, err = b.acquireTab(context.Background())
	if !errors.Is(err, ErrBrowserClosed) {
		t.Errorf("acquireTab after Close = %v, want ErrBrowserClosed", err)
	}
}

func TestFetchRejectsInvalidURLBeforeNetwork(t *testing.T) {
	b, err := NewBrowser(DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewBrowser() error = %v", err)
	}
	defer b.Close()

	for _, bad := range []string{"ftp://x.com", "http://localhost", "http://192.168.1.5"} {
		if _, err := b.Fetch(context.Background(), bad, DefaultOptions()); err == nil {
			t.Errorf("Fetch(%q) expected validation error", bad)
		}
	}
}
