// Package snapshot holds the immutable, versioned view of all flag data
// that evaluations read from, and the store that atomically swaps it.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"github.com/TimurManjosov/flagship-go-sdk/internal/rules"
)

// ErrNotFound is returned when a namespace or flag key is absent from the
// snapshot.
var ErrNotFound = errors.New("not found")

// Snapshot is an immutable aggregate of all namespaces' flags and segments
// at a point in time. Lookups go through an index built once at
// construction; there are no mutation methods.
type Snapshot struct {
	etag      string
	version   string
	fetchedAt time.Time

	doc        *rules.Document
	namespaces map[string]*namespaceIndex
	flagCount  int
}

type namespaceIndex struct {
	flags    map[string]*rules.Flag
	segments map[string]*rules.Segment
	ordered  []string // flag keys, sorted
}

// Parse decodes a snapshot document payload.
func Parse(data []byte) (*rules.Document, error) {
	var doc rules.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("malformed snapshot document: %w", err)
	}
	return &doc, nil
}

// New validates a document and freezes it into a Snapshot. Rules are
// sorted by rank here so evaluation iterates them in order without
// re-sorting. When etag is empty a content hash is derived, matching the
// weak-ETag format the flag service uses.
func New(doc *rules.Document, etag string, fetchedAt time.Time) (*Snapshot, error) {
	if doc == nil {
		return nil, errors.New("nil snapshot document")
	}

	snap := &Snapshot{
		doc:        doc,
		etag:       etag,
		version:    doc.Version,
		fetchedAt:  fetchedAt.UTC(),
		namespaces: make(map[string]*namespaceIndex, len(doc.Namespaces)),
	}

	for i := range doc.Namespaces {
		ns := &doc.Namespaces[i]
		if err := rules.ValidateNamespace(*ns); err != nil {
			return nil, err
		}
		if _, dup := snap.namespaces[ns.Key]; dup {
			return nil, fmt.Errorf("duplicate namespace %q in document", ns.Key)
		}

		idx := &namespaceIndex{
			flags:    make(map[string]*rules.Flag, len(ns.Flags)),
			segments: make(map[string]*rules.Segment, len(ns.Segments)),
			ordered:  make([]string, 0, len(ns.Flags)),
		}
		for j := range ns.Segments {
			seg := &ns.Segments[j]
			idx.segments[seg.Key] = seg
		}
		for j := range ns.Flags {
			flag := &ns.Flags[j]
			sort.SliceStable(flag.Rules, func(a, b int) bool {
				return flag.Rules[a].Rank < flag.Rules[b].Rank
			})
			idx.flags[flag.Key] = flag
			idx.ordered = append(idx.ordered, flag.Key)
		}
		sort.Strings(idx.ordered)

		snap.namespaces[ns.Key] = idx
		snap.flagCount += len(ns.Flags)
	}

	if snap.etag == "" {
		blob, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("hash snapshot document: %w", err)
		}
		sum := sha256.Sum256(blob)
		snap.etag = `W/"` + hex.EncodeToString(sum[:]) + `"`
	}
	return snap, nil
}

// Document returns the underlying document, for re-serving the snapshot
// downstream. Callers must treat it as read-only.
func (s *Snapshot) Document() *rules.Document { return s.doc }

// ETag identifies this snapshot's content version.
func (s *Snapshot) ETag() string { return s.etag }

// Version is the document version reported by the flag service.
func (s *Snapshot) Version() string { return s.version }

// FetchedAt is when this snapshot was retrieved or loaded.
func (s *Snapshot) FetchedAt() time.Time { return s.fetchedAt }

// FlagCount is the total number of flags across all namespaces.
func (s *Snapshot) FlagCount() int { return s.flagCount }

// Flag looks up a flag by namespace and key in O(1).
func (s *Snapshot) Flag(namespace, key string) (*rules.Flag, error) {
	idx, ok := s.namespaces[namespace]
	if !ok {
		return nil, fmt.Errorf("namespace %q: %w", namespace, ErrNotFound)
	}
	flag, ok := idx.flags[key]
	if !ok {
		return nil, fmt.Errorf("flag %q/%q: %w", namespace, key, ErrNotFound)
	}
	return flag, nil
}

// Segment looks up a segment within a namespace.
func (s *Snapshot) Segment(namespace, key string) (*rules.Segment, bool) {
	idx, ok := s.namespaces[namespace]
	if !ok {
		return nil, false
	}
	seg, ok := idx.segments[key]
	return seg, ok
}

// Flags returns the namespace's flags sorted by key. The returned slice is
// fresh but the flag pointers alias the snapshot's frozen data.
func (s *Snapshot) Flags(namespace string) ([]*rules.Flag, error) {
	idx, ok := s.namespaces[namespace]
	if !ok {
		return nil, fmt.Errorf("namespace %q: %w", namespace, ErrNotFound)
	}
	out := make([]*rules.Flag, 0, len(idx.ordered))
	for _, key := range idx.ordered {
		out = append(out, idx.flags[key])
	}
	return out, nil
}

// Namespaces returns the sorted namespace keys in the snapshot.
func (s *Snapshot) Namespaces() []string {
	out := make([]string, 0, len(s.namespaces))
	for key := range s.namespaces {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
