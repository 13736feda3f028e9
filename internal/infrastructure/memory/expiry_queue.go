package memory

import (
	"context"
	"sort"
	"sync"
	"time"
)

// ExpiryQueue keeps due times in process. Jobs are lost on restart; the store sweep picks them up again.
type ExpiryQueue struct {
	mu   sync.Mutex
	jobs map[string]time.Time
}

func NewExpiryQueue() *ExpiryQueue {
	return &ExpiryQueue{jobs: make(map[string]time.Time)}
}

func (q *ExpiryQueue) Schedule(ctx context.Context, orderID string, dueAt time.Time) error {
	_ = ctx
	q.mu.Lock()
	q.jobs[orderID] = dueAt
	q.mu.Unlock()
	return nil
}

// ClaimDue removes and returns up to limit jobs whose due time is not after now, earliest first.
func (q *ExpiryQueue) ClaimDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	_ = ctx
	q.mu.Lock()
	defer q.mu.Unlock()

	type job struct {
		id  string
		due time.Time
	}
	due := make([]job, 0)
	for id, at := range q.jobs {
		if !at.After(now) {
			due = append(due, job{id: id, due: at})
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].due.Before(due[j].due) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	out := make([]string, 0, len(due))
	for _, j := range due {
		delete(q.jobs, j.id)
		out = append(out, j.id)
	}
	return out, nil
}

func (q *ExpiryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
