package event

import (
	"encoding/json"
	"time"
)

// Envelope is the uniform wrapper carried on every bus message. It is
// immutable once published. There is no schema version field: consumers must
// tolerate payload supersets, so payloads are decoded leniently and unknown
// fields are ignored.
type Envelope struct {
	Type          string          `json:"type"`
	Payload       json.RawMessage `json:"payload"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"sourceService"`
}

// New wraps a payload into an envelope stamped with the current time.
func New(eventType, sourceService string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Type:          eventType,
		Payload:       data,
		Timestamp:     time.Now().UTC(),
		SourceService: sourceService,
	}, nil
}

// DecodePayload unmarshals the payload into v.
func (e Envelope) DecodePayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}
