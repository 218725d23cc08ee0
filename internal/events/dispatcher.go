package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("events",
	fx.Provide(NewDispatcher),
	fx.Provide(func(d *Dispatcher) Publisher { return d }),
	fx.Invoke(func(lc fx.Lifecycle, d *Dispatcher) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				d.Drain(5 * time.Second)
				return nil
			},
		})
	}),
)

// Publisher is the notification surface exposed to emitting services.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Handler consumes notifications for a single topic.
type Handler interface {
	Topic() string
	Handle(ctx context.Context, payload []byte) error
}

// Dispatcher fans notifications out to subscribed handlers. Delivery is
// asynchronous relative to the publishing request: handlers run on their own
// goroutine with a fresh context, so a handler fault can never roll back the
// transaction that emitted the event. Registration happens once during fx
// startup; Subscribe is not safe to call after Publish traffic begins.
type Dispatcher struct {
	log *zap.Logger

	mu       sync.RWMutex
	handlers map[string][]Handler
	wg       sync.WaitGroup
}

func NewDispatcher(log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		log:      log.Named("events"),
		handlers: make(map[string][]Handler),
	}
}

func (d *Dispatcher) Subscribe(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[h.Topic()] = append(d.handlers[h.Topic()], h)
}

func (d *Dispatcher) Publish(ctx context.Context, topic string, payload []byte) error {
	d.mu.RLock()
	subscribers := d.handlers[topic]
	d.mu.RUnlock()

	for _, h := range subscribers {
		handler := h
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			// Detach from the publisher's context; the emitter does not wait.
			if err := handler.Handle(context.Background(), payload); err != nil {
				d.log.Error("event handler failed",
					zap.String("topic", topic),
					zap.Error(err),
				)
			}
		}()
	}

	return nil
}

// Drain waits for in-flight handlers, bounded by the given timeout.
func (d *Dispatcher) Drain(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}
