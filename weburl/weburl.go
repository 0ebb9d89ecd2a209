// Package weburl provides URL validation and normalization for the pipeline.
// It implements SSRF prevention including private IP detection and blocks
// cloud metadata hosts.
package weburl

import (
	"net"
	"net/url"
	"sort"
	"strings"
)

// MaxURLLength is the maximum accepted URL length in characters.
const MaxURLLength = 2048

// Pre-compiled CIDR networks for private/reserved IP ranges.
// These are parsed once at package initialization for efficiency.
var (
	cgnat    *net.IPNet // 100.64.0.0/10 - Carrier-grade NAT
	v6unique *net.IPNet // fc00::/7 - IPv6 unique local
	v6link   *net.IPNet // fe80::/10 - IPv6 link-local
)

// metadataHosts are well-known cloud metadata endpoints that must never be
// reachable through the fetcher.
var metadataHosts = map[string]bool{
	"169.254.169.254":          true,
	"metadata.google.internal": true,
	"metadata":                 true,
}

func init() {
	var err error

	_, cgnat, err = net.ParseCIDR("100.64.0.0/10")
	if err != nil {
		panic("invalid CGNAT CIDR: " + err.Error())
	}

	_, v6unique, err = net.ParseCIDR("fc00::/7")
	if err != nil {
		panic("invalid IPv6 unique local CIDR: " + err.Error())
	}

	_, v6link, err = net.ParseCIDR("fe80::/10")
	if err != nil {
		panic("invalid IPv6 link-local CIDR: " + err.Error())
	}
}

// Validate validates a URL for security (SSRF prevention).
// It accepts only http/https, enforces the length limit, and blocks
// localhost, private IPs, metadata hosts, and local domains.
//
// Callers must re-apply Validate to the final URL after redirects, since a
// redirect chain can retarget into private address space.
func Validate(rawURL string) error {
	if len(rawURL) > MaxURLLength {
		return NewValidationError(ReasonTooLong, "URL exceeds maximum length of 2048 characters")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return NewValidationError(ReasonInvalidFormat, "invalid URL: "+err.Error())
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return NewValidationError(ReasonDisallowedProtocol, "only http and https URLs are allowed")
	}

	host := parsed.Hostname()
	if host == "" {
		return NewValidationError(ReasonInvalidFormat, "URL has no host")
	}

	lowHost := strings.ToLower(host)

	// Block localhost variants
	if lowHost == "localhost" || lowHost == "127.0.0.1" || lowHost == "::1" {
		return NewValidationError(ReasonInternalNetwork, "localhost URLs are not allowed")
	}

	// Block cloud metadata hosts
	if metadataHosts[lowHost] {
		return NewValidationError(ReasonInternalNetwork, "metadata host URLs are not allowed")
	}

	// Block local domains
	if strings.HasSuffix(lowHost, ".local") || strings.HasSuffix(lowHost, ".internal") {
		return NewValidationError(ReasonInternalNetwork, "local domain URLs are not allowed")
	}

	// Try to parse as IP and check for private ranges
	if ip := net.ParseIP(strings.Trim(host, "[]")); ip != nil {
		if IsPrivateIP(ip) {
			return NewValidationError(ReasonInternalNetwork, "private IP addresses are not allowed")
		}
	}

	return nil
}

// IsPrivateIP checks if an IP is in private/reserved ranges.
// It handles IPv4, IPv6, and IPv6-mapped IPv4 addresses.
func IsPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}

	// Check for IPv6-mapped IPv4 addresses (::ffff:x.x.x.x)
	if v4 := ip.To4(); v4 != nil {
		ip = v4
		// Re-check after conversion
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() {
			return true
		}
	}

	if cgnat.Contains(ip) || v6unique.Contains(ip) || v6link.Contains(ip) {
		return true
	}

	return false
}

// Normalize returns the canonical form of a URL used for cache keying:
// lowercased scheme and host, fragment stripped, query parameters sorted
// alphabetically. Equivalent URLs that differ only in parameter order or
// case of the host normalize to the same string.
func Normalize(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""

	if parsed.RawQuery != "" {
		values := parsed.Query()
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var sb strings.Builder
		for _, k := range keys {
			vs := values[k]
			sort.Strings(vs)
			for _, v := range vs {
				if sb.Len() > 0 {
					sb.WriteByte('&')
				}
				sb.WriteString(url.QueryEscape(k))
				sb.WriteByte('=')
				sb.WriteString(url.QueryEscape(v))
			}
		}
		parsed.RawQuery = sb.String()
	}

	return parsed.String()
}

// ExtractDomain extracts the domain name from a URL.
// Returns an empty string if the URL is invalid.
func ExtractDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}
