package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// Severity of an inbound alert.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityWarning, SeverityInfo:
		return true
	}
	return false
}

// InboundMessage is the only payload shape accepted from the feed.
type InboundMessage struct {
	ID        string         `json:"id"`
	Severity  Severity       `json:"severity"`
	Title     string         `json:"title"`
	Summary   string         `json:"summary"`
	Timestamp string         `json:"timestamp"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Time parses Timestamp as RFC 3339. The feed only guarantees a string, so
// callers that sort or age alerts must handle the error.
func (m InboundMessage) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, m.Timestamp)
}

// wireMessage distinguishes absent and null fields from empty strings.
type wireMessage struct {
	ID        *string        `json:"id"`
	Severity  *string        `json:"severity"`
	Title     *string        `json:"title"`
	Summary   *string        `json:"summary"`
	Timestamp *string        `json:"timestamp"`
	Meta      map[string]any `json:"meta"`
}

// DecodeInbound parses and validates one inbound frame. Every failure
// wraps ErrMalformedMessage.
func DecodeInbound(data []byte) (InboundMessage, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return InboundMessage{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	required := []struct {
		name  string
		value *string
	}{
		{"id", w.ID},
		{"severity", w.Severity},
		{"title", w.Title},
		{"summary", w.Summary},
		{"timestamp", w.Timestamp},
	}
	for _, f := range required {
		if f.value == nil {
			return InboundMessage{}, fmt.Errorf("%w: %w %q", ErrMalformedMessage, ErrMissingField, f.name)
		}
	}

	sev := Severity(*w.Severity)
	if !sev.Valid() {
		return InboundMessage{}, fmt.Errorf("%w: %w %q", ErrMalformedMessage, ErrInvalidSeverity, *w.Severity)
	}

	return InboundMessage{
		ID:        *w.ID,
		Severity:  sev,
		Title:     *w.Title,
		Summary:   *w.Summary,
		Timestamp: *w.Timestamp,
		Meta:      w.Meta,
	}, nil
}
