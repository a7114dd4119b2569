// internal/events/bus.go
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrBusClosed = errors.New("event bus is shutting down")
	ErrBusFull   = errors.New("event channel full")
)

// Publisher is the write side of the bus.
type Publisher interface {
	Publish(event Event) error
}

// Bus is an in-memory event bus. Publish never blocks the caller; handlers run detached
// and their failures are only logged.
type Bus struct {
	mu             sync.RWMutex
	handlers       map[EventType]map[string]Handler
	logger         *zap.Logger
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	eventChan      chan Event
	handlerTimeout time.Duration
}

// NewBus creates a new event bus. handlerTimeout bounds every handler invocation.
func NewBus(logger *zap.Logger, bufferSize int, handlerTimeout time.Duration) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if handlerTimeout <= 0 {
		handlerTimeout = 15 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	bus := &Bus{
		handlers:       make(map[EventType]map[string]Handler),
		logger:         logger.Named("event_bus"),
		ctx:            ctx,
		cancel:         cancel,
		eventChan:      make(chan Event, bufferSize),
		handlerTimeout: handlerTimeout,
	}

	bus.wg.Add(1)
	go bus.processEvents()

	return bus
}

// Subscribe registers a handler for a specific event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[string]Handler)
	}
	b.handlers[eventType][id] = handler

	b.logger.Debug("Handler subscribed",
		zap.String("event_type", string(eventType)),
		zap.String("subscription_id", id))

	return &subscription{id: id, eventBus: b, typ: eventType}
}

// SubscribeFunc is a convenience method for subscribing with a function.
func (b *Bus) SubscribeFunc(eventType EventType, fn func(context.Context, Event) error) Subscription {
	return b.Subscribe(eventType, HandlerFunc(fn))
}

// Publish queues an event for asynchronous delivery. A full queue drops the event.
func (b *Bus) Publish(event Event) error {
	select {
	case <-b.ctx.Done():
		return ErrBusClosed
	default:
	}

	select {
	case b.eventChan <- event:
		return nil
	default:
		b.logger.Warn("Event channel full, dropping event",
			zap.String("event_type", string(event.Type())))
		return ErrBusFull
	}
}

// dispatch runs every handler of the event type, each bounded by handlerTimeout.
func (b *Bus) dispatch(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := make(map[string]Handler, len(b.handlers[event.Type()]))
	for id, h := range b.handlers[event.Type()] {
		handlers[id] = h
	}
	b.mu.RUnlock()

	var errs []error
	for id, handler := range handlers {
		hctx, cancel := context.WithTimeout(ctx, b.handlerTimeout)
		err := handler.Handle(hctx, event)
		cancel()
		if err != nil {
			b.logger.Warn("Handler error",
				zap.String("event_type", string(event.Type())),
				zap.String("handler_id", id),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("handler %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (b *Bus) processEvents() {
	defer b.wg.Done()

	for {
		select {
		case <-b.ctx.Done():
			// Drain what was queued before shutdown.
			for {
				select {
				case event := <-b.eventChan:
					_ = b.dispatch(context.Background(), event)
				default:
					return
				}
			}
		case event := <-b.eventChan:
			b.wg.Add(1)
			go func(e Event) {
				defer b.wg.Done()
				// Handlers outlive bus shutdown by at most handlerTimeout.
				_ = b.dispatch(context.WithoutCancel(b.ctx), e)
			}(event)
		}
	}
}

func (b *Bus) unsubscribe(id string, eventType EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if handlers, ok := b.handlers[eventType]; ok {
		delete(handlers, id)
		if len(handlers) == 0 {
			delete(b.handlers, eventType)
		}
	}
}

// Close stops accepting events and waits for queued deliveries.
func (b *Bus) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), b.handlerTimeout+time.Second)
	defer cancel()
	return b.Shutdown(ctx)
}

// Shutdown gracefully shuts down the event bus.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.logger.Info("Shutting down event bus")
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("Event bus shutdown complete")
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus shutdown timeout")
		return ctx.Err()
	}
}

// Pending returns the number of queued, undelivered events.
func (b *Bus) Pending() int {
	return len(b.eventChan)
}
