package webpipeline

import (
	"fmt"

	"github.com/c360studio/semstreams/component"
)

// RegistryInterface defines the minimal interface needed for registration.
type RegistryInterface interface {
	RegisterWithConfig(component.RegistrationConfig) error
}

// Register registers the web-pipeline processor component with the given registry.
func Register(registry RegistryInterface) error {
	if registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "web-pipeline",
		Factory:     NewComponent,
		Schema:      webPipelineSchema,
		Type:        "processor",
		Protocol:    "nats",
		Domain:      "web",
		Description: "Web page to Markdown conversion pipeline",
		Version:     "0.1.0",
	})
}
