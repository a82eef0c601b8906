// Package analytics pushes tag-manager style events to a data layer.
package analytics

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Payload is the event body as a tag manager would see it, minus the event name.
type Payload map[string]interface{}

// Sink receives fire-and-forget events. Callers log errors and move on.
type Sink interface {
	Emit(ctx context.Context, event string, payload Payload) error
}

type Entry struct {
	Event   string
	Payload Payload
	At      time.Time
}

// MarshalJSON flattens the entry the way a dataLayer push looks: {"event": ..., ...payload}.
func (e Entry) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		flat[k] = v
	}
	flat["event"] = e.Event
	return json.Marshal(flat)
}

// DataLayer is the in-process event array.
type DataLayer struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

func NewDataLayer() *DataLayer {
	return &DataLayer{now: time.Now}
}

func (d *DataLayer) Emit(ctx context.Context, event string, payload Payload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, Entry{Event: event, Payload: payload, At: d.now()})
	return nil
}

func (d *DataLayer) Entries() []Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Entry(nil), d.entries...)
}

// Drain returns everything pushed so far and empties the layer.
func (d *DataLayer) Drain() []Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.entries
	d.entries = nil
	if out == nil {
		out = []Entry{}
	}
	return out
}

// Events lists the event names in push order.
func (d *DataLayer) Events() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(d.entries))
	for _, e := range d.entries {
		names = append(names, e.Event)
	}
	return names
}

// Last returns the most recent entry named event.
func (d *DataLayer) Last(event string) (Entry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.entries) - 1; i >= 0; i-- {
		if d.entries[i].Event == event {
			return d.entries[i], true
		}
	}
	return Entry{}, false
}

// Tee fans an event out to every sink and reports the first failure.
type Tee []Sink

func (t Tee) Emit(ctx context.Context, event string, payload Payload) error {
	var first error
	for _, s := range t {
		if err := s.Emit(ctx, event, payload); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Discard drops every event.
type Discard struct{}

func (Discard) Emit(context.Context, string, Payload) error { return nil }
