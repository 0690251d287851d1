// Package memory is an in-process document store. It backs tests and
// single-instance development servers.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bridgeus/internal/store"

	"go.uber.org/zap"
)

// Store keeps every collection in memory.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]*store.Document
	hub         *store.Hub
	logger      *zap.Logger
	clock       func() time.Time
	lastTime    time.Time
	closed      bool
}

type docKey struct {
	collection string
	id         string
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the commit clock.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// New returns an empty store.
func New(logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		collections: make(map[string]map[string]*store.Document),
		logger:      logger,
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = store.NewHub(s.Query, logger)
	return s
}

var _ store.Store = (*Store)(nil)

// now returns a strictly increasing commit time. Must hold s.mu.
func (s *Store) now() time.Time {
	t := s.clock().UTC()
	if !t.After(s.lastTime) {
		t = s.lastTime.Add(time.Nanosecond)
	}
	s.lastTime = t
	return t
}

func (s *Store) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	return doc.Clone(), nil
}

func (s *Store) Query(ctx context.Context, q store.Query) ([]*store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, store.ErrClosed
	}
	docs := make([]*store.Document, 0, len(s.collections[q.Collection]))
	for _, d := range s.collections[q.Collection] {
		docs = append(docs, d.Clone())
	}
	s.mu.RUnlock()

	return q.Apply(docs), nil
}

func (s *Store) Count(ctx context.Context, q store.Query) (int, error) {
	q.Limit = 0
	q.OrderBy = ""
	docs, err := s.Query(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (s *Store) Add(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	id := store.NewID()
	if err := s.Set(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, data map[string]interface{}) error {
	return s.commit(ctx, []store.WriteOp{{Kind: store.OpSet, Collection: collection, ID: id, Data: data}})
}

func (s *Store) Update(ctx context.Context, collection, id string, updates map[string]interface{}) error {
	return s.commit(ctx, []store.WriteOp{{Kind: store.OpUpdate, Collection: collection, ID: id, Data: updates}})
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	return s.commit(ctx, []store.WriteOp{{Kind: store.OpDelete, Collection: collection, ID: id}})
}

func (s *Store) Batch() *store.WriteBatch {
	return store.NewWriteBatch(s.commit)
}

func (s *Store) Subscribe(ctx context.Context, q store.Query) (*store.Stream[*store.Snapshot], error) {
	return s.hub.Subscribe(ctx, q)
}

// commit validates every op against a staged copy before touching live
// state, so a failing op leaves the store unchanged.
func (s *Store) commit(ctx context.Context, ops []store.WriteOp) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return store.ErrClosed
	}

	now := s.now()
	staged := make(map[docKey]*store.Document)
	deleted := make(map[docKey]bool)
	touched := make(map[string]struct{})

	current := func(k docKey) *store.Document {
		if deleted[k] {
			return nil
		}
		if d, ok := staged[k]; ok {
			return d
		}
		return s.collections[k.collection][k.id]
	}

	for _, op := range ops {
		if op.Collection == "" || op.ID == "" {
			s.mu.Unlock()
			return fmt.Errorf("%w: empty collection or id", store.ErrInvalidArgument)
		}
		k := docKey{collection: op.Collection, id: op.ID}
		existing := current(k)

		switch op.Kind {
		case store.OpSet, store.OpCreate:
			if op.Kind == store.OpCreate && existing != nil {
				s.mu.Unlock()
				return fmt.Errorf("%s/%s: %w", op.Collection, op.ID, store.ErrAlreadyExists)
			}
			body, err := store.PrepareSet(op.Data, now)
			if err != nil {
				s.mu.Unlock()
				return err
			}
			doc := &store.Document{Collection: op.Collection, ID: op.ID, Data: body, CreateTime: now, UpdateTime: now}
			if existing != nil {
				doc.CreateTime = existing.CreateTime
			}
			staged[k] = doc
			delete(deleted, k)
		case store.OpUpdate:
			if existing == nil {
				s.mu.Unlock()
				return fmt.Errorf("%s/%s: %w", op.Collection, op.ID, store.ErrNotFound)
			}
			body, err := store.ApplyUpdate(existing.Data, op.Data, now)
			if err != nil {
				s.mu.Unlock()
				return err
			}
			staged[k] = &store.Document{Collection: op.Collection, ID: op.ID, Data: body, CreateTime: existing.CreateTime, UpdateTime: now}
		case store.OpDelete:
			delete(staged, k)
			deleted[k] = true
		default:
			s.mu.Unlock()
			return fmt.Errorf("%w: unknown write kind %d", store.ErrInvalidArgument, op.Kind)
		}
		touched[op.Collection] = struct{}{}
	}

	for k, d := range staged {
		coll, ok := s.collections[k.collection]
		if !ok {
			coll = make(map[string]*store.Document)
			s.collections[k.collection] = coll
		}
		coll[k.id] = d
	}
	for k := range deleted {
		delete(s.collections[k.collection], k.id)
	}
	s.mu.Unlock()

	for collection := range touched {
		s.hub.Notify(collection)
	}
	return nil
}

// Close stops every subscription.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.hub.Close()
	s.logger.Debug("Memory store closed")
	return nil
}
