package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

// ===============================
// EVENT INTERFACE
// ===============================

// Event represents a domain event
type Event interface {
	GetEventID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetUserID() string
	GetMetadata() map[string]interface{}
}

// BaseEvent provides common event functionality
type BaseEvent struct {
	EventID   string                 `json:"event_id"`
	EventType string                 `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	UserID    string                 `json:"user_id,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewBaseEvent stamps a new event of eventType
func NewBaseEvent(eventType, userID string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.Must(uuid.NewV4()).String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		UserID:    userID,
	}
}

// GetEventID returns the event ID
func (e *BaseEvent) GetEventID() string {
	return e.EventID
}

// GetEventType returns the event type
func (e *BaseEvent) GetEventType() string {
	return e.EventType
}

// GetTimestamp returns the event timestamp
func (e *BaseEvent) GetTimestamp() time.Time {
	return e.Timestamp
}

// GetUserID returns the user ID associated with the event
func (e *BaseEvent) GetUserID() string {
	return e.UserID
}

// GetMetadata returns the event metadata
func (e *BaseEvent) GetMetadata() map[string]interface{} {
	return e.Metadata
}

// ===============================
// EVENT BUS INTERFACE
// ===============================

// EventBus defines the event publishing and subscription interface
type EventBus interface {
	// Publishing
	Publish(ctx context.Context, event Event) error
	PublishAsync(ctx context.Context, event Event) error

	// Subscription
	Subscribe(eventType string, handler EventHandler) error
	SubscribePattern(pattern string, handler EventHandler) error
	Unsubscribe(eventType string, handler EventHandler) error

	// Management
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Health() error
	Stats() *EventBusStats
}

// EventHandler represents an event handler function
type EventHandler interface {
	Handle(ctx context.Context, event Event) error
	GetHandlerID() string
}

// EventHandlerFunc is a function type that implements EventHandler
type EventHandlerFunc struct {
	ID   string
	Func func(ctx context.Context, event Event) error
}

// Handle implements EventHandler
func (f EventHandlerFunc) Handle(ctx context.Context, event Event) error {
	return f.Func(ctx, event)
}

// GetHandlerID implements EventHandler
func (f EventHandlerFunc) GetHandlerID() string {
	return f.ID
}

// EventBusStats represents event bus statistics
type EventBusStats struct {
	EventsPublished int64         `json:"events_published"`
	EventsProcessed int64         `json:"events_processed"`
	EventsFailed    int64         `json:"events_failed"`
	HandlersCount   int           `json:"handlers_count"`
	QueueDepth      int           `json:"queue_depth"`
	Uptime          time.Duration `json:"uptime"`
}

// ErrQueueFull is returned by PublishAsync when the buffer is exhausted
var ErrQueueFull = errors.New("event queue is full")

// ===============================
// IN-MEMORY EVENT BUS
// ===============================

// inMemoryEventBus implements EventBus using in-memory channels
type inMemoryEventBus struct {
	mu              sync.RWMutex
	handlers        map[string][]EventHandler
	patternHandlers map[string][]EventHandler
	eventQueue      chan eventMessage
	logger          *zap.Logger
	config          *EventBusConfig
	startTime       time.Time
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	started         atomic.Bool

	published atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
}

// eventMessage wraps an event with context
type eventMessage struct {
	ctx   context.Context
	event Event
}

// EventBusConfig holds configuration for the event bus
type EventBusConfig struct {
	BufferSize     int           `json:"buffer_size" yaml:"buffer_size"`
	WorkerCount    int           `json:"worker_count" yaml:"worker_count"`
	HandlerTimeout time.Duration `json:"handler_timeout" yaml:"handler_timeout"`
}

// DefaultEventBusConfig returns default configuration
func DefaultEventBusConfig() *EventBusConfig {
	return &EventBusConfig{
		BufferSize:     256,
		WorkerCount:    2,
		HandlerTimeout: 30 * time.Second,
	}
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(config *EventBusConfig, logger *zap.Logger) EventBus {
	if config == nil {
		config = DefaultEventBusConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &inMemoryEventBus{
		handlers:        make(map[string][]EventHandler),
		patternHandlers: make(map[string][]EventHandler),
		eventQueue:      make(chan eventMessage, config.BufferSize),
		logger:          logger,
		config:          config,
		startTime:       time.Now(),
		ctx:             ctx,
		cancel:          cancel,
	}
}

// Publish runs every handler before returning
func (b *inMemoryEventBus) Publish(ctx context.Context, event Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	b.logger.Debug("Publishing event",
		zap.String("event_id", event.GetEventID()),
		zap.String("event_type", event.GetEventType()),
	)

	b.published.Add(1)
	if err := b.processEvent(ctx, event); err != nil {
		b.logger.Error("Failed to process event",
			zap.String("event_id", event.GetEventID()),
			zap.String("event_type", event.GetEventType()),
			zap.Error(err),
		)
		b.failed.Add(1)
		return err
	}
	b.processed.Add(1)
	return nil
}

// PublishAsync queues the event for the workers. Handlers run detached
// from ctx cancellation so a finished request does not abort them.
func (b *inMemoryEventBus) PublishAsync(ctx context.Context, event Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if !b.started.Load() {
		return b.Publish(context.WithoutCancel(ctx), event)
	}

	select {
	case b.eventQueue <- eventMessage{ctx: context.WithoutCancel(ctx), event: event}:
		b.published.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Subscribe subscribes to events of a specific type
func (b *inMemoryEventBus) Subscribe(eventType string, handler EventHandler) error {
	if eventType == "" {
		return fmt.Errorf("event type cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	b.logger.Info("Handler subscribed",
		zap.String("event_type", eventType),
		zap.String("handler_id", handler.GetHandlerID()),
	)
	return nil
}

// SubscribePattern subscribes to events matching a pattern such as "task.*"
func (b *inMemoryEventBus) SubscribePattern(pattern string, handler EventHandler) error {
	if pattern == "" {
		return fmt.Errorf("pattern cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.patternHandlers[pattern] = append(b.patternHandlers[pattern], handler)

	b.logger.Info("Pattern handler subscribed",
		zap.String("pattern", pattern),
		zap.String("handler_id", handler.GetHandlerID()),
	)
	return nil
}

// Unsubscribe removes a handler registered for an event type or, when no
// such handler exists, for a pattern spelled the same way
func (b *inMemoryEventBus) Unsubscribe(eventType string, handler EventHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, registry := range []map[string][]EventHandler{b.handlers, b.patternHandlers} {
		handlers := registry[eventType]
		for i, h := range handlers {
			if h.GetHandlerID() != handler.GetHandlerID() {
				continue
			}
			registry[eventType] = append(handlers[:i:i], handlers[i+1:]...)
			if len(registry[eventType]) == 0 {
				delete(registry, eventType)
			}
			b.logger.Info("Handler unsubscribed",
				zap.String("event_type", eventType),
				zap.String("handler_id", handler.GetHandlerID()),
			)
			return nil
		}
	}
	return fmt.Errorf("handler not found")
}

// Start starts the event bus workers
func (b *inMemoryEventBus) Start(ctx context.Context) error {
	if !b.started.CompareAndSwap(false, true) {
		return nil
	}
	b.logger.Info("Starting event bus", zap.Int("worker_count", b.config.WorkerCount))

	for i := 0; i < b.config.WorkerCount; i++ {
		b.wg.Add(1)
		go b.worker(i)
	}
	return nil
}

// Stop drains nothing: queued events are dropped once workers exit
func (b *inMemoryEventBus) Stop(ctx context.Context) error {
	b.logger.Info("Stopping event bus", zap.Int("queued", len(b.eventQueue)))
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("Event bus stopped successfully")
	case <-ctx.Done():
		b.logger.Warn("Event bus stop timeout")
		return ctx.Err()
	}
	return nil
}

// Health checks the health of the event bus
func (b *inMemoryEventBus) Health() error {
	select {
	case <-b.ctx.Done():
		return fmt.Errorf("event bus is stopped")
	default:
	}

	if depth := len(b.eventQueue); depth > cap(b.eventQueue)*80/100 {
		return fmt.Errorf("event queue is %d%% full", depth*100/cap(b.eventQueue))
	}
	return nil
}

// Stats returns event bus statistics
func (b *inMemoryEventBus) Stats() *EventBusStats {
	b.mu.RLock()
	count := 0
	for _, hs := range b.handlers {
		count += len(hs)
	}
	for _, hs := range b.patternHandlers {
		count += len(hs)
	}
	b.mu.RUnlock()

	return &EventBusStats{
		EventsPublished: b.published.Load(),
		EventsProcessed: b.processed.Load(),
		EventsFailed:    b.failed.Load(),
		HandlersCount:   count,
		QueueDepth:      len(b.eventQueue),
		Uptime:          time.Since(b.startTime),
	}
}

// worker processes events from the queue
func (b *inMemoryEventBus) worker(workerID int) {
	defer b.wg.Done()

	for {
		select {
		case msg := <-b.eventQueue:
			if err := b.processEvent(msg.ctx, msg.event); err != nil {
				b.logger.Error("Failed to process event",
					zap.Int("worker_id", workerID),
					zap.String("event_id", msg.event.GetEventID()),
					zap.String("event_type", msg.event.GetEventType()),
					zap.Error(err),
				)
				b.failed.Add(1)
			} else {
				b.processed.Add(1)
			}
		case <-b.ctx.Done():
			return
		}
	}
}

// processEvent runs every handler registered for the event
func (b *inMemoryEventBus) processEvent(ctx context.Context, event Event) error {
	eventType := event.GetEventType()

	b.mu.RLock()
	var allHandlers []EventHandler
	allHandlers = append(allHandlers, b.handlers[eventType]...)
	for pattern, handlers := range b.patternHandlers {
		if matchesPattern(eventType, pattern) {
			allHandlers = append(allHandlers, handlers...)
		}
	}
	b.mu.RUnlock()

	var errs []error
	for _, handler := range allHandlers {
		if err := b.executeHandler(ctx, handler, event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", handler.GetHandlerID(), err))
		}
	}
	return errors.Join(errs...)
}

// executeHandler executes a single handler with timeout and recovery
func (b *inMemoryEventBus) executeHandler(ctx context.Context, handler EventHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Handler panicked",
				zap.String("handler_id", handler.GetHandlerID()),
				zap.String("event_type", event.GetEventType()),
				zap.Any("panic", r),
			)
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	handlerCtx, cancel := context.WithTimeout(ctx, b.config.HandlerTimeout)
	defer cancel()

	return handler.Handle(handlerCtx, event)
}

// matchesPattern supports "*" and trailing-wildcard prefixes
func matchesPattern(eventType, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(eventType, strings.TrimSuffix(pattern, "*"))
	}
	return eventType == pattern
}
