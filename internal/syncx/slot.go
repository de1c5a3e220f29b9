package syncx

import "sync/atomic"

// Slot holds at most one owned handle. Filling and clearing are compare-and-swap
// operations so concurrent callers can never both own the slot.
type Slot[T any] struct {
	p atomic.Pointer[T]
}

// TryFill stores v if the slot is empty and reports whether it did.
func (s *Slot[T]) TryFill(v *T) bool {
	return s.p.CompareAndSwap(nil, v)
}

// Load returns the current handle or nil.
func (s *Slot[T]) Load() *T {
	return s.p.Load()
}

// ClearIf empties the slot only if it still holds v. Clearing an empty slot or
// one that already holds another handle is a no-op.
func (s *Slot[T]) ClearIf(v *T) bool {
	return s.p.CompareAndSwap(v, nil)
}

