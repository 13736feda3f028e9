package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
)

// CodeSequencer hands out order code suffixes from an atomic counter.
// It seeds itself from the latest stored order so restarts keep counting upward.
type CodeSequencer struct {
	repo   domain.Repository
	mu     sync.Mutex
	seeded atomic.Bool
	last   atomic.Int64
}

func NewCodeSequencer(repo domain.Repository) *CodeSequencer {
	return &CodeSequencer{repo: repo}
}

func (s *CodeSequencer) Next(ctx context.Context) (int64, error) {
	if !s.seeded.Load() {
		if err := s.seedFromLatest(ctx); err != nil {
			return 0, err
		}
	}
	return s.last.Add(1), nil
}

func (s *CodeSequencer) seedFromLatest(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seeded.Load() {
		return nil
	}
	if s.repo != nil {
		latest, err := s.repo.Latest(ctx)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return err
		default:
			if seq, perr := domain.ParseCodeSequence(latest.Code); perr == nil {
				s.last.Store(seq)
			}
		}
	}
	s.seeded.Store(true)
	return nil
}
