// Package events receives domain events from collaborating services.
package events

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/gema-reminders/internal/dto"
	"github.com/noah-isme/gema-reminders/internal/service"
)

//go:embed schema/domain_event.schema.json
var domainEventSchema []byte

const schemaURL = "domain_event.schema.json"

// Decoder validates raw envelopes against the domain event schema before decoding them.
type Decoder struct {
	schema *jsonschema.Schema
}

// NewDecoder compiles the embedded schema.
func NewDecoder() (*Decoder, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource(schemaURL, bytes.NewReader(domainEventSchema)); err != nil {
		return nil, fmt.Errorf("load domain event schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile domain event schema: %w", err)
	}
	return &Decoder{schema: schema}, nil
}

// Decode parses data into a DomainEvent. fallbackType fills the type when the
// envelope omits it, which lets NATS producers encode it in the subject.
func (d *Decoder) Decode(data []byte, fallbackType string) (dto.DomainEvent, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return dto.DomainEvent{}, fmt.Errorf("%w: malformed json: %v", service.ErrInvalidEvent, err)
	}
	if raw == nil {
		return dto.DomainEvent{}, fmt.Errorf("%w: empty envelope", service.ErrInvalidEvent)
	}
	if _, ok := raw["type"]; !ok && fallbackType != "" {
		raw["type"] = fallbackType
	}

	if err := d.schema.Validate(raw); err != nil {
		return dto.DomainEvent{}, fmt.Errorf("%w: %v", service.ErrInvalidEvent, err)
	}

	normalized, err := json.Marshal(raw)
	if err != nil {
		return dto.DomainEvent{}, fmt.Errorf("%w: %v", service.ErrInvalidEvent, err)
	}

	var event dto.DomainEvent
	if err := json.Unmarshal(normalized, &event); err != nil {
		return dto.DomainEvent{}, fmt.Errorf("%w: %v", service.ErrInvalidEvent, err)
	}
	return event, nil
}
