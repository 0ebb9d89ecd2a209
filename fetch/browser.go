// Package fetch drives a headless browser to retrieve rendered pages.
//
// A single Browser owns a Chrome process shared by all fetches. Each Fetch
// opens an isolated tab, navigates under a caller-supplied wait policy, and
// tears the tab down in all paths. The number of simultaneously open tabs is
// bounded by a counting semaphore; when the cap is reached Fetch fails fast
// with ErrConcurrencyLimit instead of queuing.
//
// SSRF defense is applied twice per fetch: the requested URL is validated
// before navigation (including a DNS resolution check against private
// ranges), and the final URL is re-validated afterwards because redirects can
// retarget into private address space.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/sync/semaphore"

	"github.com/c360studio/webmill/weburl"
)

// Config holds browser-level settings shared by all fetches.
type Config struct {
	// MaxConcurrentPages caps simultaneously open tabs.
	MaxConcurrentPages int64

	// UserAgent is sent on every navigation.
	UserAgent string

	// ViewportWidth and ViewportHeight fix the emulated viewport.
	ViewportWidth  int
	ViewportHeight int

	// Headless disables the visible browser window. On by default.
	Headless bool

	// NavigationTimeout bounds a fetch when Options.Timeout is zero.
	NavigationTimeout time.Duration
}

// DefaultConfig returns browser defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentPages: 5,
		UserAgent:          "webmill/1.0 (+https://github.com/c360studio/webmill)",
		ViewportWidth:      1280,
		ViewportHeight:     800,
		Headless:           true,
		NavigationTimeout:  30 * time.Second,
	}
}

// Browser is a shared headless-browser instance with a bounded tab pool.
type Browser struct {
	cfg    Config
	logger *slog.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc

	sem *semaphore.Weighted

	mu     sync.Mutex
	active map[int64]context.CancelFunc
	nextID int64
	closed bool
}

// NewBrowser starts a shared browser allocator.
func NewBrowser(cfg Config, logger *slog.Logger) (*Browser, error) {
	if cfg.MaxConcurrentPages <= 0 {
		cfg.MaxConcurrentPages = DefaultConfig().MaxConcurrentPages
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig().UserAgent
	}
	if cfg.ViewportWidth <= 0 || cfg.ViewportHeight <= 0 {
		cfg.ViewportWidth = DefaultConfig().ViewportWidth
		cfg.ViewportHeight = DefaultConfig().ViewportHeight
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = DefaultConfig().NavigationTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-first-run", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Browser{
		cfg:         cfg,
		logger:      logger,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		sem:         semaphore.NewWeighted(cfg.MaxConcurrentPages),
		active:      make(map[int64]context.CancelFunc),
	}, nil
}

// acquireTab reserves a semaphore slot and creates an isolated tab context.
// The returned release func closes the tab, removes it from the active set,
// and frees the slot; it is safe to call exactly once.
func (b *Browser) acquireTab(parent context.Context) (context.Context, func(), error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, nil, ErrBrowserClosed
	}
	b.mu.Unlock()

	if !b.sem.TryAcquire(1) {
		return nil, nil, fmt.Errorf("%w (max %d)", ErrConcurrencyLimit, b.cfg.MaxConcurrentPages)
	}

	tabCtx, tabCancel := chromedp.NewContext(b.allocCtx)

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.active[id] = tabCancel
	b.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			tabCancel()
			b.mu.Lock()
			delete(b.active, id)
			b.mu.Unlock()
			b.sem.Release(1)
		})
	}

	// Propagate caller cancellation to the tab.
	go func() {
		select {
		case <-parent.Done():
			tabCancel()
		case <-tabCtx.Done():
		}
	}()

	return tabCtx, release, nil
}

// ActivePages reports the number of currently open tabs.
func (b *Browser) ActivePages() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.active)
}

// Close shuts down the browser. In-flight fetches fail with transport errors
// that batch processing records as ordinary per-URL failures.
func (b *Browser) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	cancels := make([]context.CancelFunc, 0, len(b.active))
	for _, cancel := range b.active {
		cancels = append(cancels, cancel)
	}
	b.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	b.allocCancel()

	b.logger.Info("browser closed")
}

// resolveCheck resolves the URL host and rejects it when any resolved address
// is private. This blocks DNS rebinding of public hostnames onto internal
// addresses before the browser ever dials.
func resolveCheck(ctx context.Context, rawURL string) error {
	host := weburl.ExtractDomain(rawURL)
	if host == "" {
		return weburl.NewValidationError(weburl.ReasonInvalidFormat, "URL has no host")
	}

	// Literal IPs were already checked by weburl.Validate.
	if ip := net.ParseIP(host); ip != nil {
		return nil
	}

	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return fmt.Errorf("DNS lookup failed: %w", err)
	}
	for _, addr := range ips {
		if weburl.IsPrivateIP(addr.IP) {
			return weburl.NewValidationError(weburl.ReasonInternalNetwork,
				fmt.Sprintf("host %s resolves to private address %s", host, addr.IP))
		}
	}
	return nil
}
