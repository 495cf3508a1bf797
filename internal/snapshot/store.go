package snapshot

import (
	"sync"
	"sync/atomic"
	"time"
)

// Update describes a newly published snapshot to subscribers.
type Update struct {
	ETag      string
	Version   string
	FetchedAt time.Time
	FlagCount int
}

// Store holds the current snapshot and hands out consistent references to
// concurrent readers. Publishing swaps an atomic pointer: readers are never
// blocked, and a reader that loaded the old snapshot keeps evaluating
// against it until it drops the reference.
type Store struct {
	current  atomic.Pointer[Snapshot]
	lastGood atomic.Pointer[Snapshot]

	mu   sync.Mutex
	subs map[chan Update]struct{}
}

// NewStore creates an empty store. Current returns nil until the first
// publish; callers treat that as "client not ready".
func NewStore() *Store {
	return &Store{subs: make(map[chan Update]struct{})}
}

// Current returns the currently published snapshot, or nil before the
// first publish. Never blocks.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// LastKnownGood returns the most recent successfully fetched snapshot, or
// nil if no fetch has succeeded yet. A bundled fallback snapshot is
// published as current but never becomes last-known-good.
func (s *Store) LastKnownGood() *Snapshot {
	return s.lastGood.Load()
}

// Ready reports whether any snapshot has been published.
func (s *Store) Ready() bool {
	return s.current.Load() != nil
}

// Publish atomically replaces the current snapshot and notifies
// subscribers. In-flight readers holding the old snapshot are unaffected;
// the old value becomes eligible for collection once they finish.
func (s *Store) Publish(snap *Snapshot) {
	if snap == nil {
		return
	}
	s.current.Store(snap)
	s.notify(snap)
}

// PublishFetched publishes a snapshot that came from a successful remote
// fetch and records it as last-known-good.
func (s *Store) PublishFetched(snap *Snapshot) {
	if snap == nil {
		return
	}
	s.lastGood.Store(snap)
	s.Publish(snap)
}

// Subscribe registers a listener notified on each publish. The returned
// function unregisters it. Notification is best-effort: a subscriber that
// is not draining its channel misses updates instead of blocking the
// publisher.
func (s *Store) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	unsub := func() {
		s.mu.Lock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, unsub
}

func (s *Store) notify(snap *Snapshot) {
	update := Update{
		ETag:      snap.ETag(),
		Version:   snap.Version(),
		FetchedAt: snap.FetchedAt(),
		FlagCount: snap.FlagCount(),
	}
	s.mu.Lock()
	for ch := range s.subs {
		select {
		case ch <- update:
		default: // slow subscriber, skip instead of blocking
		}
	}
	s.mu.Unlock()
}
