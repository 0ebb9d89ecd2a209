package webpipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/webmill/fetch"
	"github.com/c360studio/webmill/pipeline"
)

// webPipelineSchema defines the configuration schema.
var webPipelineSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Converter runs one URL through the conversion pipeline. Satisfied by
// *pipeline.Pipeline.
type Converter interface {
	ConvertURL(ctx context.Context, rawURL string, opts pipeline.Options) (*pipeline.ConvertResult, error)
}

// Component implements the web-pipeline processor.
type Component struct {
	name       string
	config     Config
	natsClient *natsclient.Client
	logger     *slog.Logger
	platform   component.PlatformMeta
	converter  Converter

	// Lifecycle management
	running   bool
	startTime time.Time
	mu        sync.RWMutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	// Metrics
	converted      atomic.Int64
	failed         atomic.Int64
	lastActivityMu sync.RWMutex
	lastActivity   time.Time
}

// NewComponent creates a new web-pipeline processor component. The pipeline
// itself is attached later via SetConverter because it needs a running
// browser, which the registry does not manage.
func NewComponent(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	var config Config
	if err := json.Unmarshal(rawConfig, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Use default config if ports not set
	if config.Ports == nil {
		config = DefaultConfig()
		// Re-unmarshal to get user-provided values
		if err := json.Unmarshal(rawConfig, &config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Component{
		name:       "web-pipeline",
		config:     config,
		natsClient: deps.NATSClient,
		logger:     deps.GetLogger(),
		platform:   deps.Platform,
	}

	return c, nil
}

// SetConverter injects the conversion pipeline. Must be called before Start.
func (c *Component) SetConverter(conv Converter) {
	c.mu.Lock()
	c.converter = conv
	c.mu.Unlock()
}

// Initialize prepares the component.
func (c *Component) Initialize() error {
	return nil
}

// Start begins consuming conversion requests.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("component already running")
	}
	if c.natsClient == nil {
		c.mu.Unlock()
		return fmt.Errorf("NATS client required")
	}
	if c.converter == nil {
		c.mu.Unlock()
		return fmt.Errorf("converter required, call SetConverter first")
	}
	c.running = true
	c.startTime = time.Now()
	c.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consumeMessages(runCtx)
	}()

	c.logger.Info("Web pipeline started",
		"stream", c.config.StreamName,
		"consumer", c.config.ConsumerName)

	return nil
}

// consumeMessages processes incoming conversion requests.
func (c *Component) consumeMessages(ctx context.Context) {
	js, err := c.natsClient.JetStream()
	if err != nil {
		c.logger.Error("Failed to get JetStream context", "error", err)
		return
	}

	consumer, err := js.Consumer(ctx, c.config.StreamName, c.config.ConsumerName)
	if err != nil {
		c.logger.Error("Failed to get consumer", "error", err, "stream", c.config.StreamName, "consumer", c.config.ConsumerName)
		return
	}

	c.logger.Info("Consumer connected", "stream", c.config.StreamName, "consumer", c.config.ConsumerName)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := consumer.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue // Timeout, try again
		}

		for msg := range msgs.Messages() {
			select {
			case <-ctx.Done():
				_ = msg.Nak()
				for remaining := range msgs.Messages() {
					_ = remaining.Nak()
				}
				return
			default:
				c.handleMessage(ctx, msg)
			}
		}
	}
}

// handleMessage converts a single requested URL and publishes the document.
func (c *Component) handleMessage(ctx context.Context, msg jetstream.Msg) {
	c.updateLastActivity()

	var req ConvertRequest
	if err := json.Unmarshal(msg.Data(), &req); err != nil {
		c.logger.Warn("Failed to parse conversion request", "error", err)
		c.failed.Add(1)
		// A malformed request will never parse; drop it.
		_ = msg.Ack()
		return
	}
	if err := req.Validate(); err != nil {
		c.logger.Warn("Invalid conversion request", "error", err)
		c.failed.Add(1)
		_ = msg.Ack()
		return
	}

	c.logger.Info("Processing conversion request", "url", req.URL)

	convertCtx, cancel := context.WithTimeout(ctx, c.config.GetConvertTimeout())
	defer cancel()

	result, err := c.converter.ConvertURL(convertCtx, req.URL, c.requestOptions(req))
	if err != nil {
		c.logger.Error("Conversion failed", "url", req.URL, "error", err)
		c.failed.Add(1)
		if retryableFailure(result) {
			_ = msg.Nak()
		} else {
			_ = msg.Ack()
		}
		return
	}

	doc := result.Document
	payload := &DocumentPayload{
		RequestID:    result.RequestID,
		URL:          req.URL,
		FinalURL:     doc.FinalURL,
		Title:        doc.Title,
		Description:  doc.Description,
		Language:     doc.Language,
		Markdown:     doc.Markdown,
		ContentHash:  doc.ContentHash,
		HTTPStatus:   doc.HTTPStatus,
		FromCache:    result.FromCache,
		ProcessingMs: result.ProcessingTime.Milliseconds(),
		ConvertedAt:  time.Now().UTC(),
	}

	if err := c.publishDocument(ctx, payload); err != nil {
		c.logger.Error("Failed to publish document", "url", req.URL, "error", err)
		c.failed.Add(1)
		_ = msg.Nak()
		return
	}

	c.converted.Add(1)
	_ = msg.Ack()

	c.logger.Info("Document published",
		"url", req.URL,
		"title", doc.Title,
		"from_cache", result.FromCache,
		"markdown_bytes", len(doc.Markdown))
}

// retryableFailure reports whether the failed result is worth redelivery.
// Deterministic failures (validation, extraction, conversion) never are.
func retryableFailure(result *pipeline.ConvertResult) bool {
	if result == nil || result.Err == nil {
		return true
	}
	switch result.Err.Category {
	case pipeline.CategoryValidation, pipeline.CategoryExtraction, pipeline.CategoryConversion:
		return false
	}
	return true
}

func (c *Component) requestOptions(req ConvertRequest) pipeline.Options {
	waitUntil := req.WaitUntil
	if waitUntil == "" {
		waitUntil = c.config.WaitUntil
	}
	return pipeline.Options{
		Fetch: fetch.Options{
			WaitUntil:       fetch.WaitUntil(waitUntil),
			WaitForSelector: req.WaitForSelector,
		},
		BypassCache: req.BypassCache,
	}
}

// publishDocument wraps a DocumentPayload and publishes it.
func (c *Component) publishDocument(ctx context.Context, payload *DocumentPayload) error {
	msg := message.NewBaseMessage(DocumentType, payload, "webmill")
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal document message: %w", err)
	}
	return c.natsClient.PublishToStream(ctx, c.config.PublishSubject, data)
}

// updateLastActivity safely updates the last activity timestamp.
func (c *Component) updateLastActivity() {
	c.lastActivityMu.Lock()
	c.lastActivity = time.Now()
	c.lastActivityMu.Unlock()
}

// getLastActivity safely retrieves the last activity timestamp.
func (c *Component) getLastActivity() time.Time {
	c.lastActivityMu.RLock()
	defer c.lastActivityMu.RUnlock()
	return c.lastActivity
}

// Stop gracefully stops the component within the given timeout.
func (c *Component) Stop(timeout time.Duration) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		// Graceful shutdown completed
	case <-time.After(timeout):
		err = fmt.Errorf("stop timed out after %v", timeout)
	}

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	c.logger.Info("Web pipeline stopped",
		"converted", c.converted.Load(),
		"failed", c.failed.Load())

	return err
}

// Discoverable interface implementation

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        "web-pipeline",
		Type:        "processor",
		Description: "Web page to Markdown conversion pipeline",
		Version:     "0.1.0",
	}
}

// InputPorts returns configured input port definitions.
func (c *Component) InputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}

	ports := make([]component.Port, len(c.config.Ports.Inputs))
	for i, portDef := range c.config.Ports.Inputs {
		ports[i] = buildPort(portDef, component.DirectionInput)
	}
	return ports
}

// OutputPorts returns configured output port definitions.
func (c *Component) OutputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}

	ports := make([]component.Port, len(c.config.Ports.Outputs))
	for i, portDef := range c.config.Ports.Outputs {
		ports[i] = buildPort(portDef, component.DirectionOutput)
	}
	return ports
}

// buildPort creates a component.Port from a PortDefinition.
func buildPort(portDef component.PortDefinition, direction component.Direction) component.Port {
	port := component.Port{
		Name:        portDef.Name,
		Direction:   direction,
		Required:    portDef.Required,
		Description: portDef.Description,
	}
	if portDef.Type == "jetstream" {
		port.Config = component.JetStreamPort{
			StreamName: portDef.StreamName,
			Subjects:   []string{portDef.Subject},
		}
	} else {
		port.Config = component.NATSPort{
			Subject: portDef.Subject,
		}
	}
	return port
}

// ConfigSchema returns the configuration schema.
func (c *Component) ConfigSchema() component.ConfigSchema {
	return webPipelineSchema
}

// Health returns the current health status.
func (c *Component) Health() component.HealthStatus {
	c.mu.RLock()
	running := c.running
	startTime := c.startTime
	c.mu.RUnlock()

	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: int(c.failed.Load()),
		Uptime:     time.Since(startTime),
		Status:     c.getStatusString(running),
	}
}

// getStatusString returns a status string based on running state.
func (c *Component) getStatusString(running bool) string {
	if running {
		return "running"
	}
	return "stopped"
}

// DataFlow returns current data flow metrics.
func (c *Component) DataFlow() component.FlowMetrics {
	return component.FlowMetrics{
		MessagesPerSecond: 0,
		BytesPerSecond:    0,
		ErrorRate:         0,
		LastActivity:      c.getLastActivity(),
	}
}
