// Package webpipeline provides a NATS consumer component that runs the web
// conversion pipeline as a stream processor.
//
// # Overview
//
// The web-pipeline component consumes conversion requests from JetStream,
// runs each URL through validation, headless-browser fetching, content
// extraction, and Markdown conversion, and publishes the resulting document
// payloads for downstream consumers.
//
// # Architecture
//
// The package consists of:
//
//   - Component: NATS consumer lifecycle management
//   - Converter: the injected pipeline that does the actual work
//   - DocumentPayload: the published result message
//
// # Configuration
//
// Key configuration options:
//
//   - StreamName / ConsumerName: the JetStream source (default WEBMILL /
//     web-pipeline)
//   - ConvertTimeout: per-request processing bound (default 60s)
//   - PublishSubject: where converted documents go (default
//     web.document.converted)
//
// # Usage
//
// The component is registered via the factory and started by the semstreams
// component registry:
//
//	import webpipeline "github.com/c360studio/webmill/processor/web-pipeline"
//
//	func main() {
//	    webpipeline.Register(registry)
//	    // Component started automatically when configured
//	}
package webpipeline
