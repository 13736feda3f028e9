package outbox

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability/logctx"
)

const (
	componentOutbox = "outbox"
	queueSize       = 1024
	fanoutCap       = 8
	handlerTimeout  = 30 * time.Second
)

// ErrClosed is returned by Publish once the bus has been stopped.
var ErrClosed = errors.New("outbox: bus stopped")

// Bus fans order and inventory events out to in-process subscribers such as the Kafka relay.
// Delivery is at-most-once; the order store remains the source of truth.
type Bus struct {
	mu          sync.RWMutex
	subs        map[string][]domoutbox.Handler
	queue       chan domoutbox.Event
	closed      bool
	startOnce   sync.Once
	stopOnce    sync.Once
	cancel      context.CancelFunc
	done        chan struct{}
	concurrency int
	log         observability.Logger
	dispatched  observability.Counter // events_dispatched_total{event,outcome}
}

func NewBus(tel observability.Observability) *Bus {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Bus{
		subs:        make(map[string][]domoutbox.Handler),
		queue:       make(chan domoutbox.Event, queueSize),
		done:        make(chan struct{}),
		concurrency: fanoutCap,
		log:         tel.Logger().With(observability.F("component", componentOutbox)),
		dispatched:  tel.Metrics().Counter(observability.MEventsDispatched),
	}
}

func (b *Bus) Subscribe(eventName string, h domoutbox.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventName] = append(b.subs[eventName], h)
}

func (b *Bus) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
		b.cancel = cancel
		go b.dispatchLoop(bg)
		logctx.FromOr(ctx, b.log).Info("event_bus_started")
	})
}

// Stop drains queued events and waits for the dispatcher to exit, or for ctx to end.
func (b *Bus) Stop(ctx context.Context) {
	b.stopOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		close(b.queue)
		b.mu.Unlock()

		started := b.cancel != nil
		if started {
			select {
			case <-b.done:
			case <-ctx.Done():
				b.cancel()
				<-b.done
			}
			b.cancel()
		}
		logctx.FromOr(ctx, b.log).Info("event_bus_stopped")
	})
}

func (b *Bus) Publish(ctx context.Context, e domoutbox.Event) error {
	if e == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	logger := logctx.FromOr(ctx, b.log).With(observability.F("event", e.EventName()))
	select {
	case b.queue <- e:
		logger.Debug("event_enqueued")
		return nil
	case <-ctx.Done():
		logger.Warn("event_enqueue_aborted", observability.F("error", ctx.Err()))
		return ctx.Err()
	}
}

func (b *Bus) dispatchLoop(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-b.queue:
			if !ok {
				return
			}
			b.fanout(ctx, e)
		}
	}
}

func (b *Bus) fanout(ctx context.Context, e domoutbox.Event) {
	name := e.EventName()

	b.mu.RLock()
	handlers := append([]domoutbox.Handler(nil), b.subs[name]...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.dispatched.Add(1, observability.L("event", name), observability.L("outcome", "dropped"))
		b.log.Debug("event_dropped_no_subscriber", observability.F("event", name))
		return
	}

	handlerLogger := b.log.With(observability.F("event", name))
	sem := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup

	for _, h := range handlers {
		h := h
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			outcome := "success"
			defer func() {
				if r := recover(); r != nil {
					outcome = "panic"
					handlerLogger.Error("event_handler_panic",
						observability.F("panic", r),
						observability.F("stack", string(debug.Stack())),
					)
				}
				b.dispatched.Add(1, observability.L("event", name), observability.L("outcome", outcome))
				<-sem
				wg.Done()
			}()

			hctx, cancel := context.WithTimeout(ctx, handlerTimeout)
			defer cancel()
			hctx = logctx.With(hctx, handlerLogger)
			if err := h(hctx, e); err != nil {
				outcome = "error"
				handlerLogger.Warn("event_handler_error", observability.F("error", err))
			}
		}()
	}

	wg.Wait()
	handlerLogger.Debug("event_fanned_out", observability.F("handlers", len(handlers)))
}
