// Package progress holds the authoritative in-flight view of downloads.
//
// The store is the single owner of the ProgressRecord collection; the push
// channel client is the only producer of upserts. Records are keyed by the
// worker-assigned request id and mutated in place, never replaced, so that
// duplicate or out-of-order events collapse into one consistent row.
package progress

import (
	"sync"

	"github.com/zeticontents/zetisync/internal/domain"
)

// ChangeKind discriminates store notifications.
type ChangeKind int

const (
	ChangeUpsert ChangeKind = iota
	ChangeClear
)

// Change is delivered synchronously to subscribers after every mutation.
// Record carries the post-mutation state and is only valid for ChangeUpsert.
type Change struct {
	Kind   ChangeKind
	Record domain.ProgressRecord
}

// Listener observes store changes. Listeners run synchronously under the
// store's event sequence and must not call back into the store.
type Listener func(Change)

// Store is the process-local observable container for in-flight downloads.
type Store struct {
	mu        sync.Mutex
	records   map[string]*domain.ProgressRecord
	order     []string          // request ids in insertion order
	seq       map[string]uint64 // last-update sequence per request id
	nextSeq   uint64
	listeners []Listener
}

func NewStore() *Store {
	return &Store{
		records: make(map[string]*domain.ProgressRecord),
		seq:     make(map[string]uint64),
	}
}

// Subscribe registers a listener for subsequent changes.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Upsert applies one progress event. A previously unseen request id creates
// a record; a known one has its mutable fields replaced in place. Applying
// the same event twice leaves the state identical to one application.
// Percent regressions are applied as-is: the worker is authoritative and
// the channel gives no cross-reconnect ordering guarantee.
func (s *Store) Upsert(ev domain.ProgressEvent) {
	s.mu.Lock()

	rec, ok := s.records[ev.JobID]
	if !ok {
		rec = &domain.ProgressRecord{RequestID: ev.JobID}
		s.records[ev.JobID] = rec
		s.order = append(s.order, ev.JobID)
	}
	rec.Status = ev.Status
	rec.Percent = ev.Percent
	rec.ContentName = ev.ContentName
	rec.ClientID = ev.ClientID
	rec.ContentID = ev.ContentID
	rec.DeliveryURL = ev.DownloadURL

	s.nextSeq++
	s.seq[ev.JobID] = s.nextSeq

	snapshot := *rec
	listeners := s.listeners
	s.mu.Unlock()

	for _, l := range listeners {
		l(Change{Kind: ChangeUpsert, Record: snapshot})
	}
}

// ClearAll empties the collection. Used at session boundaries so a fresh
// dashboard never shows progress rows from a previous session.
func (s *Store) ClearAll() {
	s.mu.Lock()
	s.records = make(map[string]*domain.ProgressRecord)
	s.order = nil
	s.seq = make(map[string]uint64)
	listeners := s.listeners
	s.mu.Unlock()

	for _, l := range listeners {
		l(Change{Kind: ChangeClear})
	}
}

// Get returns a copy of the record for requestID.
func (s *Store) Get(requestID string) (domain.ProgressRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[requestID]
	if !ok {
		return domain.ProgressRecord{}, false
	}
	return *rec, true
}

// List returns copies of all records in insertion order. This is the
// canonical per-requestId view.
func (s *Store) List() []domain.ProgressRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.ProgressRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.records[id])
	}
	return out
}

// Display returns the read-side view for rendering: records sharing a
// (clientId, contentName) pair are collapsed to the most recently updated
// one, so a re-attempted download shows a single row. Canonical storage is
// untouched; this is a projection only.
func (s *Store) Display() []domain.ProgressRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	type key struct{ clientID, content string }
	latest := make(map[key]string)
	for _, id := range s.order {
		rec := s.records[id]
		k := key{rec.ClientID, rec.ContentName}
		if cur, ok := latest[k]; !ok || s.seq[id] > s.seq[cur] {
			latest[k] = id
		}
	}

	out := make([]domain.ProgressRecord, 0, len(latest))
	for _, id := range s.order {
		rec := s.records[id]
		if latest[key{rec.ClientID, rec.ContentName}] == id {
			out = append(out, *rec)
		}
	}
	return out
}

// Len reports the number of canonical records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
