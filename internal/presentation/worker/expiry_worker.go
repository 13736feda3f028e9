package workerpresentation

import (
	"context"
	"sync"
	"time"

	apporder "github.com/Zhima-Mochi/minishop-fulfillment/internal/application/order"
	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"
)

type Expirer interface {
	Execute(ctx context.Context, cmd apporder.ExpireOrderInput) (*apporder.ExpireOrderResult, error)
}

// PendingFinder lists unpaid orders whose window has passed.
type PendingFinder interface {
	FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domain.Order, error)
}

type ExpiryConfig struct {
	Interval  time.Duration
	BatchSize int
	Clock     func() time.Time
}

// ExpiryWorker cancels unpaid orders once their 30 minute window closes.
// Each tick drains due jobs from the queue, then sweeps the store so jobs lost by the queue still run.
type ExpiryWorker struct {
	queue  apporder.ExpiryQueue
	finder PendingFinder
	expire Expirer
	cfg    ExpiryConfig
	log    observability.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewExpiryWorker(queue apporder.ExpiryQueue, finder PendingFinder, expire Expirer, cfg ExpiryConfig, tel observability.Observability) *ExpiryWorker {
	if tel == nil {
		tel = observability.Nop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &ExpiryWorker{
		queue:  queue,
		finder: finder,
		expire: expire,
		cfg:    cfg,
		log:    tel.Logger().With(observability.F("component", "expiry_worker")),
		done:   make(chan struct{}),
	}
}

// Start launches the loop. It is a no-op once the worker has been started or stopped.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.stopped {
		return
	}
	w.started = true
	ctx, w.cancel = context.WithCancel(ctx)
	go w.loop(ctx)
	w.log.Info("expiry_worker_started", observability.F("interval", w.cfg.Interval.String()))
}

// Stop ends the loop and waits for the in-flight tick.
func (w *ExpiryWorker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	started, cancel := w.started, w.cancel
	w.mu.Unlock()
	if !started {
		return
	}
	cancel()
	<-w.done
	w.log.Info("expiry_worker_stopped")
}

func (w *ExpiryWorker) loop(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		w.Tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick runs one drain and sweep pass and reports how many orders were canceled.
func (w *ExpiryWorker) Tick(ctx context.Context) int {
	now := w.cfg.Clock()
	canceled := 0
	seen := make(map[string]struct{})

	if w.queue != nil {
		ids, err := w.queue.ClaimDue(ctx, now, w.cfg.BatchSize)
		if err != nil {
			w.log.Warn("expiry_claim_failed", observability.F("error", err.Error()))
		}
		for _, id := range ids {
			seen[id] = struct{}{}
			if w.run(ctx, id, "queue") {
				canceled++
			}
		}
	}

	if w.finder != nil && ctx.Err() == nil {
		overdue, err := w.finder.FindExpiredPending(ctx, now, w.cfg.BatchSize)
		if err != nil {
			w.log.Warn("expiry_sweep_failed", observability.F("error", err.Error()))
		}
		for _, o := range overdue {
			if _, dup := seen[o.ID]; dup {
				continue
			}
			if w.run(ctx, o.ID, "sweep") {
				canceled++
			}
		}
	}

	if canceled > 0 {
		w.log.Info("expiry_tick_done", observability.F("canceled", canceled))
	}
	return canceled
}

func (w *ExpiryWorker) run(ctx context.Context, orderID, source string) bool {
	if ctx.Err() != nil {
		return false
	}
	jobCtx := WithJobContext(ctx, w.log, map[string]string{
		"job":      "order_expiry",
		"source":   source,
		"order_id": orderID,
	})
	res, err := w.expire.Execute(jobCtx, apporder.ExpireOrderInput{OrderID: orderID})
	if err != nil {
		w.log.Warn("order_expiry_failed",
			observability.F("order_id", orderID),
			observability.F("source", source),
			observability.F("error", err.Error()),
		)
		return false
	}
	return res != nil && res.Expired
}
