package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/c360studio/webmill/weburl"
)

// KeyOptions is the whitelisted subset of fetch options that participates in
// cache key derivation. Fields outside this set never cause a cache miss.
type KeyOptions struct {
	WaitUntil       string
	Timeout         time.Duration
	WaitForSelector string
	IgnoreTLSErrors bool
}

// Key derives a deterministic cache key from a URL and the whitelisted
// options. The URL is normalized first so equivalent URLs (query parameter
// order, host case, fragments) share an entry.
func Key(rawURL string, opts KeyOptions) string {
	normalized := weburl.Normalize(rawURL)
	material := fmt.Sprintf("%s|%s|%d|%s|%t",
		normalized, opts.WaitUntil, opts.Timeout.Milliseconds(), opts.WaitForSelector, opts.IgnoreTLSErrors)
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])
}
