// Package operation tracks the single in-flight scrape operation.
//
// Exactly one operation is tracked at a time. Every asynchronous request
// captures the Key it was started with and presents it on completion; the
// Store applies a completion only when that key is still the current one and
// the operation is still running, so a slow superseded response is silently
// discarded.
//
//	idle ─start→ running ─succeed|fail|cancel→ succeeded|failed|cancelled ─start→ running …
package operation

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/scrapedesk/models"
)

// cancelMarker is the field a backend sets on a 2xx payload when it honoured
// a cancel request after already computing a result.
const cancelMarker = "operation_status"

// Store holds the lifecycle of the current scrape operation.
// It is safe for concurrent use.
type Store struct {
	mu  sync.RWMutex
	op  models.Operation
	now func() time.Time

	subs    map[int]chan models.Operation
	nextSub int
}

// NewStore creates an idle Store.
func NewStore() *Store {
	return &Store{
		op:   models.Operation{Status: models.StatusIdle},
		now:  time.Now,
		subs: make(map[int]chan models.Operation),
	}
}

// Start unconditionally replaces the tracked operation with a running one.
// Any previous key becomes stale.
func (s *Store) Start(scrapeType models.ScrapeType, key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.op.Status == models.StatusRunning {
		slog.Debug("operation superseded",
			"previous_key", s.op.Key,
			"previous_type", s.op.ScrapeType,
			"key", key,
		)
	}

	started := s.now()
	s.op = models.Operation{
		ScrapeType: scrapeType,
		Status:     models.StatusRunning,
		Key:        string(key),
		StartedAt:  &started,
	}
	observe("start", true)
	s.publishLocked()
}

// Succeed records a successful completion. A payload carrying
// "operation_status": "cancelled" is treated as Cancel instead.
// It returns whether the transition was applied.
func (s *Store) Succeed(key Key, payload json.RawMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.acceptsLocked("succeed", key) {
		return false
	}
	if cancelledByBackend(payload) {
		s.cancelLocked()
		observe("succeed_as_cancel", true)
		return true
	}

	s.op.Status = models.StatusSucceeded
	s.op.Result = bytes.Clone(payload)
	s.op.ErrorMessage = nil
	s.finishLocked()
	observe("succeed", true)
	return true
}

// Fail records a failed completion with a human-readable message and clears
// any previous result. It returns whether the transition was applied.
func (s *Store) Fail(key Key, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.acceptsLocked("fail", key) {
		return false
	}

	s.op.Status = models.StatusFailed
	s.op.ErrorMessage = &message
	s.op.Result = nil
	s.finishLocked()
	observe("fail", true)
	return true
}

// Cancel marks the running operation as cancelled. Calling it again is a
// no-op because the operation is no longer running. The external task id is
// kept. It returns whether the transition was applied.
func (s *Store) Cancel(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.acceptsLocked("cancel", key) {
		return false
	}
	s.cancelLocked()
	observe("cancel", true)
	return true
}

// AttachExternalID records the backend task id used for targeted
// cancellation. It only requires the key to match.
func (s *Store) AttachExternalID(key Key, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.op.Key == "" || string(key) != s.op.Key {
		observe("attach", false)
		return false
	}
	s.op.ExternalTaskID = &id
	observe("attach", true)
	s.publishLocked()
	return true
}

// Snapshot returns a copy of the tracked operation.
func (s *Store) Snapshot() models.Operation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.op
}

// IsLoading reports whether an operation is running.
func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.op.Status == models.StatusRunning
}

// Subscribe returns a channel receiving a snapshot after every applied
// transition, and a function that ends the subscription. A subscriber that
// falls behind only misses intermediate snapshots, never the latest one.
func (s *Store) Subscribe(buffer int) (<-chan models.Operation, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan models.Operation, buffer)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// acceptsLocked applies the guard shared by every completion: the key must
// be the current one and the operation must still be running.
func (s *Store) acceptsLocked(transition string, key Key) bool {
	if s.op.Key == "" || string(key) != s.op.Key {
		slog.Debug("stale completion ignored",
			"transition", transition,
			"key", key,
			"current_key", s.op.Key,
		)
		observe(transition, false)
		return false
	}
	if s.op.Status != models.StatusRunning {
		slog.Debug("completion on finished operation ignored",
			"transition", transition,
			"key", key,
			"status", s.op.Status,
		)
		observe(transition, false)
		return false
	}
	return true
}

func (s *Store) cancelLocked() {
	notice := models.CancelledNotice
	s.op.Status = models.StatusCancelled
	s.op.ErrorMessage = &notice
	s.finishLocked()
}

func (s *Store) finishLocked() {
	finished := s.now()
	s.op.FinishedAt = &finished
	s.publishLocked()
}

func (s *Store) publishLocked() {
	snap := s.op
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// Drop the oldest pending snapshot so the latest one lands.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// cancelledByBackend reports whether payload is an object whose
// operation_status field equals "cancelled".
func cancelledByBackend(payload json.RawMessage) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(payload, &probe); err != nil {
		return false
	}
	raw, ok := probe[cancelMarker]
	if !ok {
		return false
	}
	var status string
	if err := json.Unmarshal(raw, &status); err != nil {
		return false
	}
	return status == string(models.StatusCancelled)
}
