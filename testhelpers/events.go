package testhelpers

import (
	"context"
	"sync"
	"time"

	"github.com/standardbeagle/assetindex/internal/asset"
	"github.com/standardbeagle/assetindex/internal/fileops"
)

// Event names emitted by RecordingSink.
const (
	EventBeforeInserted = "before-inserted"
	EventAfterInserted  = "after-inserted"
	EventUpdated        = "updated"
	EventBeforeRemoved  = "before-removed"
	EventAfterRemoved   = "after-removed"
	EventScanCompleted  = "scan-completed"
	EventFilesDeleted   = "files-deleted"
)

// EventBus provides a simple event notification system for tests.
// Components can emit events when state changes occur, allowing tests
// to synchronize without arbitrary sleeps.
type EventBus struct {
	mu        sync.Mutex
	listeners map[string][]chan struct{}
}

// NewEventBus creates a new event bus for test synchronization.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners: make(map[string][]chan struct{}),
	}
}

// Subscribe registers a listener for a specific event type.
// Returns a channel that will be closed when the event fires.
func (eb *EventBus) Subscribe(eventType string) <-chan struct{} {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan struct{})
	eb.listeners[eventType] = append(eb.listeners[eventType], ch)
	return ch
}

// Emit fires an event, notifying all subscribers.
func (eb *EventBus) Emit(eventType string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for _, ch := range eb.listeners[eventType] {
		close(ch)
	}
	delete(eb.listeners, eventType)
}

// WaitFor waits on a channel obtained from Subscribe.
// Returns true if the event occurred, false on timeout.
func WaitFor(ctx context.Context, ch <-chan struct{}, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-ch:
		return true
	case <-ctx.Done():
		return false
	}
}

// Notification is one call received by RecordingSink.
type Notification struct {
	Event   string
	Paths   []string
	Deleted fileops.Result
}

// RecordingSink implements the registry's change sink by logging every call
// and emitting it on Bus. Safe for use from a different goroutine than the
// one reading Calls.
type RecordingSink struct {
	Bus *EventBus

	// OnBeforeRemoved, when set, is called for each record of a
	// BeforeRemoved batch while the records are still registered.
	OnBeforeRemoved func(*asset.Record)

	mu    sync.Mutex
	calls []Notification
}

// NewRecordingSink creates a sink with its own event bus.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{Bus: NewEventBus()}
}

func (s *RecordingSink) record(event string, batch []*asset.Record) {
	paths := make([]string, len(batch))
	for i, r := range batch {
		paths[i] = r.PrimaryPath()
	}
	s.mu.Lock()
	s.calls = append(s.calls, Notification{Event: event, Paths: paths})
	s.mu.Unlock()
	s.Bus.Emit(event)
}

func (s *RecordingSink) BeforeInserted(batch []*asset.Record) {
	s.record(EventBeforeInserted, batch)
}

func (s *RecordingSink) AfterInserted(batch []*asset.Record) {
	s.record(EventAfterInserted, batch)
}

func (s *RecordingSink) Updated(batch []*asset.Record) { s.record(EventUpdated, batch) }

func (s *RecordingSink) BeforeRemoved(batch []*asset.Record) {
	if s.OnBeforeRemoved != nil {
		for _, r := range batch {
			s.OnBeforeRemoved(r)
		}
	}
	s.record(EventBeforeRemoved, batch)
}

func (s *RecordingSink) AfterRemoved(batch []*asset.Record) {
	s.record(EventAfterRemoved, batch)
}

func (s *RecordingSink) ScanCompleted() { s.record(EventScanCompleted, nil) }

func (s *RecordingSink) FilesDeleted(res fileops.Result) {
	s.mu.Lock()
	s.calls = append(s.calls, Notification{Event: EventFilesDeleted, Deleted: res})
	s.mu.Unlock()
	s.Bus.Emit(EventFilesDeleted)
}

// Calls returns a copy of every notification so far.
func (s *RecordingSink) Calls() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.calls...)
}

// Events returns the event names in call order.
func (s *RecordingSink) Events() []string {
	calls := s.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Event
	}
	return out
}

// Count returns how many times event was received.
func (s *RecordingSink) Count(event string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Event == event {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls.
func (s *RecordingSink) Reset() {
	s.mu.Lock()
	s.calls = nil
	s.mu.Unlock()
}
