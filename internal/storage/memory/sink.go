package memory

import (
	"context"
	"sync"

	"evmswaps/internal/model"
)

// Sink keeps written swaps in memory. FailNext makes the next Write fail.
type Sink struct {
	mu       sync.Mutex
	rows     []model.CanonicalSwap
	writes   int
	cleanups []uint64
	FailNext error
}

func NewSink() *Sink {
	return &Sink{}
}

func (s *Sink) Write(_ context.Context, rows []model.CanonicalSwap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailNext != nil {
		err := s.FailNext
		s.FailNext = nil
		return err
	}
	s.writes++
	s.rows = append(s.rows, rows...)
	return nil
}

func (s *Sink) CleanupAfter(_ context.Context, cutoff uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanups = append(s.cleanups, cutoff)
	kept := s.rows[:0]
	for _, row := range s.rows {
		if row.Block.Number <= cutoff {
			kept = append(kept, row)
		}
	}
	s.rows = kept
	return nil
}

func (s *Sink) Close() error {
	return nil
}

// Rows returns a copy of the stored swaps.
func (s *Sink) Rows() []model.CanonicalSwap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.CanonicalSwap(nil), s.rows...)
}

// Cleanups returns the cutoffs passed to CleanupAfter.
func (s *Sink) Cleanups() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint64(nil), s.cleanups...)
}

// Writes returns the number of successful Write calls.
func (s *Sink) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
