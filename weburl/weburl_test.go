package weburl

import (
	"errors"
	"net"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantErr    bool
		wantReason Reason
	}{
		{
			name:    "valid https URL",
			url:     "https://go.dev/doc/effective_go",
			wantErr: false,
		},
		{
			name:    "valid http URL",
			url:     "http://example.com/page",
			wantErr: false,
		},
		{
			name:       "ftp rejected",
			url:        "ftp://x.com/file",
			wantErr:    true,
			wantReason: ReasonDisallowedProtocol,
		},
		{
			name:       "javascript rejected",
			url:        "javascript:alert(1)",
			wantErr:    true,
			wantReason: ReasonDisallowedProtocol,
		},
		{
			name:       "localhost rejected",
			url:        "http://localhost:8080",
			wantErr:    true,
			wantReason: ReasonInternalNetwork,
		},
		{
			name:       "127.0.0.1 rejected",
			url:        "https://127.0.0.1/path",
			wantErr:    true,
			wantReason: ReasonInternalNetwork,
		},
		{
			name:       "metadata endpoint rejected",
			url:        "http://169.254.169.254/latest/meta-data/",
			wantErr:    true,
			wantReason: ReasonInternalNetwork,
		},
		{
			name:       ".local domain rejected",
			url:        "https://myserver.local/api",
			wantErr:    true,
			wantReason: ReasonInternalNetwork,
		},
		{
			name:       ".internal domain rejected",
			url:        "https://app.internal/api",
			wantErr:    true,
			wantReason: ReasonInternalNetwork,
		},
		{
			name:       "private IP 192.168.x.x rejected",
			url:        "http://192.168.1.5/path",
			wantErr:    true,
			wantReason: ReasonInternalNetwork,
		},
		{
			name:       "private IP 10.x.x.x rejected",
			url:        "https://10.0.0.1/path",
			wantErr:    true,
			wantReason: ReasonInternalNetwork,
		},
		{
			name:       "private IP 172.16.x.x rejected",
			url:        "https://172.16.0.1/path",
			wantErr:    true,
			wantReason: ReasonInternalNetwork,
		},
		{
			name:       "overlong URL rejected",
			url:        "https://example.com/" + strings.Repeat("a", MaxURLLength),
			wantErr:    true,
			wantReason: ReasonTooLong,
		},
		{
			name:       "no host rejected",
			url:        "https://",
			wantErr:    true,
			wantReason: ReasonInvalidFormat,
		},
		{
			name:       "not a URL",
			url:        "not-a-url",
			wantErr:    true,
			wantReason: ReasonDisallowedProtocol,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if tt.wantErr {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("Validate(%q) returned %T, want *ValidationError", tt.url, err)
				}
				if verr.Reason != tt.wantReason {
					t.Errorf("Validate(%q) reason = %q, want %q", tt.url, verr.Reason, tt.wantReason)
				}
			}
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip       string
		expected bool
	}{
		// IPv4 private ranges
		{"192.168.1.1", true},
		{"10.0.0.1", true},
		{"172.16.0.1", true},
		{"172.31.255.255", true},
		{"127.0.0.1", true},
		{"169.254.1.1", true}, // IPv4 link-local

		// IPv4 public
		{"8.8.8.8", false},
		{"1.1.1.1", false},

		// CGNAT
		{"100.64.0.1", true},
		{"100.127.255.255", true},

		// IPv6
		{"::1", true},                // IPv6 loopback
		{"::ffff:192.168.1.1", true}, // IPv6-mapped private IPv4
		{"::ffff:127.0.0.1", true},   // IPv6-mapped loopback
		{"::ffff:8.8.8.8", false},    // IPv6-mapped public IPv4
		{"fe80::1", true},            // IPv6 link-local
		{"fc00::1", true},            // IPv6 unique local
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			ip := net.ParseIP(tt.ip)
			if ip == nil {
				t.Fatalf("failed to parse IP: %s", tt.ip)
			}
			got := IsPrivateIP(ip)
			if got != tt.expected {
				t.Errorf("IsPrivateIP(%q) = %v, want %v", tt.ip, got, tt.expected)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "fragment stripped",
			input:    "https://example.com/page#section",
			expected: "https://example.com/page",
		},
		{
			name:     "host lowercased",
			input:    "https://Example.COM/Page",
			expected: "https://example.com/Page",
		},
		{
			name:     "query params sorted",
			input:    "https://example.com/?b=2&a=1",
			expected: "https://example.com/?a=1&b=2",
		},
		{
			name:     "no query untouched",
			input:    "https://example.com/docs",
			expected: "https://example.com/docs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			if got != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeQueryOrderEquivalence(t *testing.T) {
	a := Normalize("https://example.com/search?q=go&page=2&sort=asc")
	b := Normalize("https://example.com/search?sort=asc&q=go&page=2")
	if a != b {
		t.Errorf("equivalent URLs normalize differently: %q vs %q", a, b)
	}
}

func TestExtractDomain(t *testing.T) {
	if got := ExtractDomain("https://docs.example.com/page"); got != "docs.example.com" {
		t.Errorf("ExtractDomain() = %q, want %q", got, "docs.example.com")
	}
	if got := ExtractDomain("::bad::"); got != "" {
		t.Errorf("ExtractDomain() = %q, want empty", got)
	}
}
