package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	mu   sync.Mutex
	seen []string
}

func (r *recorder) handler(id string) EventHandler {
	return EventHandlerFunc{ID: id, Func: func(_ context.Context, e Event) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.seen = append(r.seen, id+":"+e.GetEventType())
		return nil
	}}
}

func (r *recorder) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		eventType string
		pattern   string
		want      bool
	}{
		{EventWorkflowPartial, "*", true},
		{EventWorkflowPartial, PatternWorkflow, true},
		{EventApplicationApproved, PatternWorkflow, false},
		{EventApplicationApproved, "application.*", true},
		{EventTaskCreated, EventTaskCreated, true},
		{EventTaskCreated, EventTaskDeleted, false},
	}
	for _, tt := range tests {
		t.Run(tt.eventType+" "+tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, matchesPattern(tt.eventType, tt.pattern))
		})
	}
}

func TestEventBus_PatternAndTypeHandlers(t *testing.T) {
	bus := NewInMemoryEventBus(nil, zap.NewNop())
	ctx := context.Background()
	rec := &recorder{}

	require.NoError(t, bus.Subscribe(EventApplicationApproved, rec.handler("approved")))
	require.NoError(t, bus.SubscribePattern(PatternWorkflow, rec.handler("repair")))

	require.NoError(t, bus.Publish(ctx, NewApplicationEvent(EventApplicationApproved, "c1", "a1", "t1", "s1")))
	require.NoError(t, bus.Publish(ctx, NewWorkflowPartialFailureEvent("approve", "resolve chat room", "t1", "c1", "s1", errors.New("unavailable"))))

	assert.Equal(t, []string{"approved:" + EventApplicationApproved, "repair:" + EventWorkflowPartial}, rec.events())
	assert.Equal(t, 2, bus.Stats().HandlersCount)
}

func TestEventBus_UnsubscribePattern(t *testing.T) {
	bus := NewInMemoryEventBus(nil, zap.NewNop())
	ctx := context.Background()
	rec := &recorder{}
	repair := rec.handler("repair")

	require.NoError(t, bus.SubscribePattern(PatternWorkflow, repair))
	require.NoError(t, bus.Unsubscribe(PatternWorkflow, repair))
	assert.Error(t, bus.Unsubscribe(PatternWorkflow, repair), "already removed")

	require.NoError(t, bus.Publish(ctx, NewWorkflowPartialFailureEvent("apply", "notify company", "t1", "c1", "s1", nil)))
	assert.Empty(t, rec.events())
	assert.Equal(t, 0, bus.Stats().HandlersCount)
}

func TestEventBus_PublishAsyncRunsOnWorkers(t *testing.T) {
	bus := NewInMemoryEventBus(&EventBusConfig{BufferSize: 4, WorkerCount: 1, HandlerTimeout: time.Second}, zap.NewNop())
	ctx := context.Background()
	done := make(chan Event, 1)

	require.NoError(t, bus.SubscribePattern("task.*", EventHandlerFunc{ID: "tasks", Func: func(_ context.Context, e Event) error {
		done <- e
		return nil
	}}))
	require.NoError(t, bus.Start(ctx))
	defer bus.Stop(ctx)

	require.NoError(t, bus.PublishAsync(ctx, NewTaskEvent(EventTaskCreated, "t1", "c1", "", "published")))
	select {
	case e := <-done:
		assert.Equal(t, "t1", e.(*TaskEvent).TaskID)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestEventBus_HandlerPanicIsContained(t *testing.T) {
	bus := NewInMemoryEventBus(nil, zap.NewNop())
	require.NoError(t, bus.Subscribe(EventTaskDeleted, EventHandlerFunc{ID: "boom", Func: func(context.Context, Event) error {
		panic("boom")
	}}))

	err := bus.Publish(context.Background(), NewTaskEvent(EventTaskDeleted, "t1", "c1", "published", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, int64(1), bus.Stats().EventsFailed)
}
