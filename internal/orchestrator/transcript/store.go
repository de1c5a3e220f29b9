// Package transcript accumulates the finalized segments of a live session.
package transcript

import (
	"strings"
	"sync"
	"time"
)

// Entry is one finalized recognition segment.
type Entry struct {
	Timestamp   time.Time
	Original    string
	Translation string
	// Translated is false when translation of this segment failed.
	Translated bool
	Confidence float32
}

// Store is an append-only, concurrency-safe transcript. Original and translated
// text are accumulated as segment + " ", so each finalized segment appears
// exactly once and in recognition order.
type Store struct {
	mu          sync.RWMutex
	entries     []Entry
	original    strings.Builder
	translation strings.Builder
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Add appends a finalized segment.
func (s *Store) Add(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, e)
	s.original.WriteString(e.Original)
	s.original.WriteByte(' ')
	if e.Translated {
		s.translation.WriteString(e.Translation)
		s.translation.WriteByte(' ')
	}
}

// Original returns the accumulated source-language text.
func (s *Store) Original() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.original.String()
}

// Translation returns the accumulated translated text.
func (s *Store) Translation() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.translation.String()
}

// Len returns the number of segments.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
