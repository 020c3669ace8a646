package fingerprint

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// ResolutionEvent is one telemetry record describing a resolver lookup.
type ResolutionEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	Window     uint16    `json:"window,omitempty"`
	Options    string    `json:"options,omitempty"`
	TTL        uint8     `json:"ttl,omitempty"`
	MatchType  string    `json:"match_type"` // "exact", "approximate", "ttl", "no_match"
	Candidates int       `json:"candidates"`
	Top        string    `json:"top,omitempty"`
}

// TelemetryWriter writes resolution events to a JSONL file in a thread-safe manner.
type TelemetryWriter struct {
	filePath string
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	enabled  bool
}

// NewTelemetryWriter creates a new telemetry writer that appends to the specified file.
// If filePath is empty, the writer is disabled.
func NewTelemetryWriter(filePath string) (*TelemetryWriter, error) {
	if filePath == "" {
		return &TelemetryWriter{enabled: false}, nil
	}

	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry file: %w", err)
	}

	return &TelemetryWriter{
		filePath: filePath,
		file:     file,
		encoder:  json.NewEncoder(file),
		enabled:  true,
	}, nil
}

// Write appends ev, stamping it when the timestamp is unset.
func (w *TelemetryWriter) Write(ev ResolutionEvent) error {
	if !w.enabled {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return fmt.Errorf("telemetry writer closed")
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if err := w.encoder.Encode(ev); err != nil {
		return fmt.Errorf("failed to write telemetry event: %w", err)
	}
	return nil
}

// Close closes the telemetry file.
func (w *TelemetryWriter) Close() error {
	if !w.enabled || w.file == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close telemetry file: %w", err)
	}

	w.file = nil
	return nil
}

// IsEnabled returns true if telemetry is enabled.
func (w *TelemetryWriter) IsEnabled() bool {
	return w.enabled
}
