package webpipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "WEBMILL", cfg.StreamName)
	assert.Equal(t, "web-pipeline", cfg.ConsumerName)
	assert.Equal(t, "web.document.converted", cfg.PublishSubject)
	assert.Equal(t, 60*time.Second, cfg.GetConvertTimeout())
	require.NotNil(t, cfg.Ports)
	assert.Len(t, cfg.Ports.Inputs, 1)
	assert.Len(t, cfg.Ports.Outputs, 1)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing stream", func(c *Config) { c.StreamName = "" }, true},
		{"missing consumer", func(c *Config) { c.ConsumerName = "" }, true},
		{"missing subject", func(c *Config) { c.PublishSubject = "" }, true},
		{"bad timeout", func(c *Config) { c.ConvertTimeout = "soon" }, true},
		{"bad wait policy", func(c *Config) { c.WaitUntil = "whenever" }, true},
		{"networkidle ok", func(c *Config) { c.WaitUntil = "networkidle" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConvertTimeoutFallback(t *testing.T) {
	cfg := Config{ConvertTimeout: "not a duration"}
	assert.Equal(t, 60*time.Second, cfg.GetConvertTimeout())

	cfg.ConvertTimeout = "90s"
	assert.Equal(t, 90*time.Second, cfg.GetConvertTimeout())
}

func TestConvertRequestValidate(t *testing.T) {
	assert.Error(t, (&ConvertRequest{}).Validate())
	assert.NoError(t, (&ConvertRequest{URL: "https://example.com"}).Validate())
}

func TestDocumentPayloadValidate(t *testing.T) {
	p := &DocumentPayload{}
	assert.Error(t, p.Validate())

	p.URL = "https://example.com"
	assert.Error(t, p.Validate(), "content hash is required")

	p.ContentHash = "abc"
	assert.NoError(t, p.Validate())
	assert.Equal(t, "web", p.Schema().Domain)
	assert.Equal(t, "document", p.Schema().Category)
}
