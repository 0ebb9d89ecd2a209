package webpipeline

import (
	"fmt"
	"time"

	"github.com/c360studio/semstreams/component"
)

// Config holds configuration for the web-pipeline processor component.
type Config struct {
	Ports *component.PortConfig `json:"ports" schema:"type:ports,description:Port configuration,category:basic"`

	// StreamName is the JetStream stream carrying conversion requests.
	StreamName string `json:"stream_name" schema:"type:string,description:JetStream stream name,category:basic,default:WEBMILL"`

	// ConsumerName is the durable consumer name.
	ConsumerName string `json:"consumer_name" schema:"type:string,description:Durable consumer name,category:basic,default:web-pipeline"`

	// PublishSubject is where converted documents are published.
	PublishSubject string `json:"publish_subject" schema:"type:string,description:Subject for converted documents,category:basic,default:web.document.converted"`

	// ConvertTimeout bounds a single conversion end to end.
	ConvertTimeout string `json:"convert_timeout" schema:"type:string,description:Per-request conversion timeout,category:advanced,default:60s"`

	// WaitUntil is the default navigation wait policy for consumed requests.
	WaitUntil string `json:"wait_until" schema:"type:string,description:Navigation wait policy,category:advanced,default:load"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.StreamName == "" {
		return fmt.Errorf("stream_name is required")
	}
	if c.ConsumerName == "" {
		return fmt.Errorf("consumer_name is required")
	}
	if c.PublishSubject == "" {
		return fmt.Errorf("publish_subject is required")
	}
	if c.ConvertTimeout != "" {
		if _, err := time.ParseDuration(c.ConvertTimeout); err != nil {
			return fmt.Errorf("invalid convert_timeout format: %w", err)
		}
	}
	switch c.WaitUntil {
	case "", "load", "domcontentloaded", "networkidle":
	default:
		return fmt.Errorf("wait_until must be load, domcontentloaded, or networkidle")
	}
	return nil
}

// parseDurationOrDefault parses a duration string and returns the default if empty or invalid.
func parseDurationOrDefault(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// GetConvertTimeout returns the conversion timeout as a duration.
func (c *Config) GetConvertTimeout() time.Duration {
	return parseDurationOrDefault(c.ConvertTimeout, 60*time.Second)
}

// DefaultConfig returns default configuration for the web-pipeline processor.
func DefaultConfig() Config {
	inputDefs := []component.PortDefinition{
		{
			Name:        "convert.in",
			Type:        "jetstream",
			Subject:     "web.convert.request.>",
			StreamName:  "WEBMILL",
			Required:    true,
			Description: "Web conversion requests",
		},
	}

	outputDefs := []component.PortDefinition{
		{
			Name:        "document.out",
			Type:        "jetstream",
			Subject:     "web.document.converted",
			StreamName:  "WEBMILL",
			Required:    true,
			Description: "Converted document payloads",
		},
	}

	return Config{
		Ports: &component.PortConfig{
			Inputs:  inputDefs,
			Outputs: outputDefs,
		},
		StreamName:     "WEBMILL",
		ConsumerName:   "web-pipeline",
		PublishSubject: "web.document.converted",
		ConvertTimeout: "60s",
		WaitUntil:      "load",
	}
}
