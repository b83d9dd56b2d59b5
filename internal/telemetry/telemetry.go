// Package telemetry provides a JSONL audit stream of item inventory activity.
// Every addition, removal, mutation, cache invalidation, inventory sync, and
// settings reload is recorded as one JSON object per line.
package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Event kinds identify the type of telemetry event.
const (
	KindItemAdded        = "item_added"
	KindItemRemoved      = "item_removed"
	KindItemChanged      = "item_changed"
	KindCacheInvalidated = "cache_invalidated"
	KindInventorySynced  = "inventory_synced"
	KindSettingsReloaded = "settings_reloaded"
)

// Event is a single telemetry record: a timestamp, a kind tag, the item it
// concerns (if any), and arbitrary structured data.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Kind      string    `json:"kind"`
	Family    string    `json:"family,omitempty"`
	Item      string    `json:"item,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// Emitter writes telemetry events as JSONL. It is safe for concurrent use by
// multiple goroutines. A nil *Emitter is a valid no-op emitter.
type Emitter struct {
	w   io.Writer
	enc *json.Encoder
	mu  sync.Mutex
}

// NewEmitter creates an Emitter appending to the file at path, creating it
// if needed.
func NewEmitter(path string) (*Emitter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	return NewEmitterWriter(f), nil
}

// NewEmitterWriter creates an Emitter over w. Close closes w if it is an
// io.Closer.
func NewEmitterWriter(w io.Writer) *Emitter {
	return &Emitter{w: w, enc: json.NewEncoder(w)}
}

// Emit writes a single event. Calling Emit on a nil Emitter is a no-op.
func (e *Emitter) Emit(evt Event) error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enc.Encode(evt); err != nil {
		return fmt.Errorf("telemetry: encode event: %w", err)
	}
	return nil
}

// Close closes the underlying writer. Calling Close on a nil Emitter is a
// no-op.
func (e *Emitter) Close() error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.w.(io.Closer)
	if !ok {
		return nil
	}
	if err := c.Close(); err != nil {
		return fmt.Errorf("telemetry: close: %w", err)
	}
	return nil
}
