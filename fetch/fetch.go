package fetch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/security"
	"github.com/chromedp/chromedp"

	"github.com/c360studio/webmill/weburl"
)

// WaitUntil names the navigation readiness policy.
type WaitUntil string

// Supported wait policies.
const (
	WaitLoad             WaitUntil = "load"
	WaitDOMContentLoaded WaitUntil = "domcontentloaded"
	WaitNetworkIdle      WaitUntil = "networkidle"
)

// networkIdleQuiet is how long the network must stay quiet to count as idle.
const networkIdleQuiet = 500 * time.Millisecond

// networkIdleMax bounds the opportunistic idle wait. Static pages never go
// idle by CDP accounting, so hitting this bound is tolerated silently.
const networkIdleMax = 3 * time.Second

// Options controls a single fetch.
type Options struct {
	// Timeout bounds the whole navigation. Zero uses the browser default.
	Timeout time.Duration

	// WaitUntil selects the lifecycle readiness policy.
	WaitUntil WaitUntil

	// WaitForSelector, when set, waits for the selector to become visible
	// instead of a lifecycle event.
	WaitForSelector string

	// IgnoreTLSErrors permits navigation despite certificate errors.
	IgnoreTLSErrors bool
}

// DefaultOptions returns per-fetch defaults.
func DefaultOptions() Options {
	return Options{WaitUntil: WaitDOMContentLoaded}
}

// Result is the outcome of a successful navigation. It is immutable and
// owned by the caller.
type Result struct {
	URL          string
	FinalURL     string
	HTML         string
	ContentHTML  string
	Title        string
	Description  string
	CanonicalURL string
	Language     string
	HTTPStatus   int
	ResponseTime time.Duration
}

// netMonitor tracks CDP network events for one tab: the main-document status
// and the set of in-flight requests used by the idle wait.
type netMonitor struct {
	mu        sync.Mutex
	inflight  map[network.RequestID]struct{}
	lastEvent time.Time
	status    int
	statusSet bool
}

func newNetMonitor() *netMonitor {
	return &netMonitor{
		inflight:  make(map[network.RequestID]struct{}),
		lastEvent: time.Now(),
	}
}

func (m *netMonitor) listen(ev any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastEvent = time.Now()

	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		m.inflight[e.RequestID] = struct{}{}
	case *network.EventLoadingFinished:
		delete(m.inflight, e.RequestID)
	case *network.EventLoadingFailed:
		delete(m.inflight, e.RequestID)
	case *network.EventResponseReceived:
		delete(m.inflight, e.RequestID)
		if e.Type == network.ResourceTypeDocument && !m.statusSet {
			m.status = int(e.Response.Status)
			m.statusSet = true
		}
	}
}

func (m *netMonitor) idle(quiet time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inflight) == 0 && time.Since(m.lastEvent) >= quiet
}

func (m *netMonitor) documentStatus() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.statusSet
}

// lifecycleMonitor records the page lifecycle events the wait policies key
// off: DOMContentLoaded and the load event.
type lifecycleMonitor struct {
	domReady chan struct{}
	loaded   chan struct{}
	domOnce  sync.Once
	loadOnce sync.Once
}

func newLifecycleMonitor() *lifecycleMonitor {
	return &lifecycleMonitor{
		domReady: make(chan struct{}),
		loaded:   make(chan struct{}),
	}
}

func (m *lifecycleMonitor) listen(ev any) {
	switch ev.(type) {
	case *page.EventDomContentEventFired:
		m.domOnce.Do(func() { close(m.domReady) })
	case *page.EventLoadEventFired:
		m.loadOnce.Do(func() { close(m.loaded) })
	}
}

// ready returns the channel that closes when the given policy is satisfied.
// The load event implies DOMContentLoaded, never the reverse.
func (m *lifecycleMonitor) ready(policy WaitUntil) <-chan struct{} {
	if policy == WaitDOMContentLoaded {
		return m.domReady
	}
	return m.loaded
}

// Fetch navigates to url in a fresh tab and returns the rendered page.
//
// The URL is validated before any network activity and the final URL is
// re-validated after navigation. On a non-2xx main-document response Fetch
// returns *HTTPError. Tab teardown is guaranteed on every path.
func (b *Browser) Fetch(ctx context.Context, url string, opts Options) (*Result, error) {
	if err := weburl.Validate(url); err != nil {
		return nil, err
	}
	if err := resolveCheck(ctx, url); err != nil {
		return nil, err
	}

	tabCtx, release, err := b.acquireTab(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = b.cfg.NavigationTimeout
	}
	runCtx, cancel := context.WithTimeout(tabCtx, timeout)
	defer cancel()

	monitor := newNetMonitor()
	lifecycle := newLifecycleMonitor()
	chromedp.ListenTarget(runCtx, func(ev any) {
		monitor.listen(ev)
		lifecycle.listen(ev)
	})

	start := time.Now()

	actions := []chromedp.Action{network.Enable()}
	if opts.IgnoreTLSErrors {
		actions = append(actions, security.SetIgnoreCertificateErrors(true))
	}
	actions = append(actions, navigate(url))
	actions = append(actions, waitAction(opts, lifecycle))

	if err := chromedp.Run(runCtx, actions...); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}

	// Opportunistic idle wait: harmless on static pages, settles late XHR on
	// dynamic ones. A timeout here is not an error.
	if opts.WaitUntil == WaitNetworkIdle {
		b.waitIdle(runCtx, monitor)
	}

	var finalURL, rawHTML string
	if err := chromedp.Run(runCtx,
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &rawHTML, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("extract page %s: %w", url, err)
	}

	elapsed := time.Since(start)

	// Redirects can retarget into private space.
	if err := weburl.Validate(finalURL); err != nil {
		return nil, fmt.Errorf("redirect target blocked: %w", err)
	}

	status, ok := monitor.documentStatus()
	if !ok {
		status = 200
	}
	if status < 200 || status >= 300 {
		return nil, &HTTPError{Status: status}
	}

	meta := extractMetadata(rawHTML)
	contentHTML := findContentRoot(rawHTML)

	b.logger.Debug("page fetched",
		"url", url,
		"final_url", finalURL,
		"status", status,
		"bytes", len(rawHTML),
		"elapsed", elapsed)

	return &Result{
		URL:          url,
		FinalURL:     finalURL,
		HTML:         rawHTML,
		ContentHTML:  contentHTML,
		Title:        meta.title,
		Description:  meta.description,
		CanonicalURL: meta.canonical,
		Language:     meta.language,
		HTTPStatus:   status,
		ResponseTime: elapsed,
	}, nil
}

// navigate issues the navigation without the implicit load-event wait, so
// the configured wait policy alone decides readiness.
func navigate(url string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, errText, _, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errText != "" {
			return fmt.Errorf("page load error %s", errText)
		}
		return nil
	})
}

// waitAction builds the readiness action for the configured wait policy.
// Selector waits take precedence over lifecycle events; domcontentloaded
// returns before subresources finish, load and networkidle wait for the
// load event.
func waitAction(opts Options, lifecycle *lifecycleMonitor) chromedp.Action {
	if sel := strings.TrimSpace(opts.WaitForSelector); sel != "" {
		return chromedp.WaitVisible(sel, chromedp.ByQuery)
	}
	ready := lifecycle.ready(opts.WaitUntil)
	return chromedp.Tasks{
		chromedp.ActionFunc(func(ctx context.Context) error {
			select {
			case <-ready:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
}

// waitIdle polls the network monitor until the page is quiet or the bound is
// hit. Timing out is expected on pages that keep sockets open.
func (b *Browser) waitIdle(ctx context.Context, monitor *netMonitor) {
	deadline := time.Now().Add(networkIdleMax)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if monitor.idle(networkIdleQuiet) || time.Now().After(deadline) {
				return
			}
		}
	}
}
