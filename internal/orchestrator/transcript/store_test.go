package transcript

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestStoreAdd(t *testing.T) {
	s := NewStore()
	s.Add(Entry{Original: "Hello", Translation: "Hola", Translated: true, Confidence: 0.9})
	s.Add(Entry{Original: "world", Translation: "mundo", Translated: true})

	if got := s.Original(); got != "Hello world " {
		t.Errorf("Original() = %q, want %q", got, "Hello world ")
	}
	if got := s.Translation(); got != "Hola mundo " {
		t.Errorf("Translation() = %q, want %q", got, "Hola mundo ")
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}

func TestStoreFailedTranslationSkipped(t *testing.T) {
	s := NewStore()
	s.Add(Entry{Original: "one", Translation: "uno", Translated: true})
	s.Add(Entry{Original: "two"})
	s.Add(Entry{Original: "three", Translation: "tres", Translated: true})

	if got := s.Original(); got != "one two three " {
		t.Errorf("Original() = %q", got)
	}
	if got := s.Translation(); got != "uno tres " {
		t.Errorf("Translation() = %q", got)
	}
}

func TestStoreAppendOnly(t *testing.T) {
	s := NewStore()
	var prev string
	for i := 0; i < 20; i++ {
		s.Add(Entry{Original: fmt.Sprintf("seg%d", i)})
		cur := s.Original()
		if !strings.HasPrefix(cur, prev) {
			t.Fatalf("text was rewritten: %q is not a prefix of %q", prev, cur)
		}
		prev = cur
	}
	if s.Len() != 20 {
		t.Errorf("Len() = %d, want 20", s.Len())
	}
}

func TestStoreConcurrentAdd(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Add(Entry{Original: "x", Translation: "y", Translated: true})
		}()
	}
	wg.Wait()
	if got := strings.Count(s.Original(), "x "); got != 50 {
		t.Errorf("segments = %d, want 50", got)
	}
}
