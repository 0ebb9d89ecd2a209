package webpipeline

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
)

func init() {
	err := component.RegisterPayload(&component.PayloadRegistration{
		Domain:      "web",
		Category:    "document",
		Version:     "v1",
		Description: "Converted web document payload",
		Factory:     func() any { return &DocumentPayload{} },
	})
	if err != nil {
		panic("failed to register DocumentPayload: " + err.Error())
	}
}

// DocumentType is the message type for converted document payloads.
var DocumentType = message.Type{Domain: "web", Category: "document", Version: "v1"}

// ConvertRequest is the consumed conversion request.
type ConvertRequest struct {
	URL             string `json:"url"`
	UserID          string `json:"user_id,omitempty"`
	WaitUntil       string `json:"wait_until,omitempty"`
	WaitForSelector string `json:"wait_for_selector,omitempty"`
	BypassCache     bool   `json:"bypass_cache,omitempty"`
}

// Validate checks the request for required fields.
func (r *ConvertRequest) Validate() error {
	if r.URL == "" {
		return errors.New("url is required")
	}
	return nil
}

// DocumentPayload implements message.Payload for converted documents.
type DocumentPayload struct {
	RequestID    string    `json:"request_id"`
	URL          string    `json:"url"`
	FinalURL     string    `json:"final_url"`
	Title        string    `json:"title,omitempty"`
	Description  string    `json:"description,omitempty"`
	Language     string    `json:"language,omitempty"`
	Markdown     string    `json:"markdown"`
	ContentHash  string    `json:"content_hash"`
	HTTPStatus   int       `json:"http_status"`
	FromCache    bool      `json:"from_cache"`
	ProcessingMs int64     `json:"processing_ms"`
	ConvertedAt  time.Time `json:"converted_at"`
}

// Schema returns the message type for Payload interface.
func (p *DocumentPayload) Schema() message.Type { return DocumentType }

// Validate validates the payload for Payload interface.
func (p *DocumentPayload) Validate() error {
	if p.URL == "" {
		return errors.New("url is required")
	}
	if p.ContentHash == "" {
		return errors.New("content hash is required")
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p *DocumentPayload) MarshalJSON() ([]byte, error) {
	type Alias DocumentPayload
	return json.Marshal((*Alias)(p))
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *DocumentPayload) UnmarshalJSON(data []byte) error {
	type Alias DocumentPayload
	return json.Unmarshal(data, (*Alias)(p))
}
