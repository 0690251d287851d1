package store

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// QueryFunc runs a query against a backend.
type QueryFunc func(ctx context.Context, q Query) ([]*Document, error)

// Hub re-runs subscribed queries when their collection changes and pushes
// the new snapshot to the subscriber. Backends call Notify after writes
// (memory) or when a change notification arrives (postgres).
type Hub struct {
	mu      sync.Mutex
	watches map[*watch]struct{}
	run     QueryFunc
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type watch struct {
	query   Query
	stream  *Stream[*Snapshot]
	trigger chan struct{}
}

// NewHub returns a hub that evaluates queries with run.
func NewHub(run QueryFunc, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		watches: make(map[*watch]struct{}),
		run:     run,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Subscribe registers q and starts delivering snapshots.
func (h *Hub) Subscribe(ctx context.Context, q Query) (*Stream[*Snapshot], error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if h.ctx.Err() != nil {
		return nil, ErrClosed
	}

	w := &watch{
		query:   q,
		trigger: make(chan struct{}, 1),
	}
	w.trigger <- struct{}{}

	watchCtx, cancel := context.WithCancel(h.ctx)
	w.stream = NewStream[*Snapshot](func() {
		cancel()
		h.mu.Lock()
		delete(h.watches, w)
		h.mu.Unlock()
	})

	h.mu.Lock()
	h.watches[w] = struct{}{}
	h.mu.Unlock()

	h.wg.Add(1)
	go h.loop(watchCtx, ctx, w)

	return w.stream, nil
}

func (h *Hub) loop(watchCtx, callerCtx context.Context, w *watch) {
	defer h.wg.Done()
	defer w.stream.Unsubscribe()

	var (
		last     [sha256.Size]byte
		sentOnce bool
	)
	for {
		select {
		case <-watchCtx.Done():
			return
		case <-callerCtx.Done():
			return
		case <-w.trigger:
		}

		docs, err := h.run(watchCtx, w.query)
		if err != nil {
			if watchCtx.Err() != nil || callerCtx.Err() != nil {
				return
			}
			// the next change notification retries
			h.logger.Warn("Subscription query failed",
				zap.String("query", w.query.String()),
				zap.Bool("transient", errors.Is(err, ErrUnavailable)),
				zap.Error(err),
			)
			continue
		}

		digest, ok := digestOf(docs)
		if ok && sentOnce && digest == last {
			continue
		}
		last, sentOnce = digest, ok
		w.stream.Send(&Snapshot{Documents: docs, ReadTime: time.Now().UTC()})
	}
}

// Notify schedules a refresh of every subscription on collection.
func (h *Hub) Notify(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for w := range h.watches {
		if w.query.Collection == collection {
			w.poke()
		}
	}
}

// NotifyAll schedules a refresh of every subscription.
func (h *Hub) NotifyAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for w := range h.watches {
		w.poke()
	}
}

// Active returns the number of live subscriptions.
func (h *Hub) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watches)
}

// Close stops every subscription and waits for their goroutines.
func (h *Hub) Close() {
	h.cancel()
	h.wg.Wait()
}

func (w *watch) poke() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// digestOf hashes the ordered ids and contents of docs. Timestamps are left
// out so that writer clocks never decide whether a snapshot is new. ok is
// false when the contents cannot be encoded; the snapshot is then always sent.
func digestOf(docs []*Document) (digest [sha256.Size]byte, ok bool) {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, d := range docs {
		if err := enc.Encode(d.ID); err != nil {
			return digest, false
		}
		if err := enc.Encode(d.Data); err != nil {
			return digest, false
		}
	}
	copy(digest[:], h.Sum(nil))
	return digest, true
}
