// Package postgres stores documents as JSONB rows and turns LISTEN/NOTIFY
// change events into subscription refreshes.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"bridgeus/internal/database"
	"bridgeus/internal/store"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// ChangeChannel is the NOTIFY channel written by the documents trigger.
const ChangeChannel = "document_changes"

// Store implements store.Store on the documents table.
type Store struct {
	db       *database.Manager
	hub      *store.Hub
	listener *pq.Listener
	logger   *zap.Logger
	clock    func() time.Time

	mu       sync.Mutex
	lastTime time.Time
	closed   bool
	done     chan struct{}
	wg       sync.WaitGroup
}

type changeEvent struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Op         string `json:"op"`
}

// New returns a store on db and starts listening for change notifications.
func New(ctx context.Context, db *database.Manager, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		db:     db,
		logger: logger,
		clock:  time.Now,
		done:   make(chan struct{}),
	}
	s.hub = store.NewHub(s.Query, logger)

	s.listener = pq.NewListener(db.URL(), 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
			logger.Warn("Change listener connection problem", zap.Error(err))
		case pq.ListenerEventReconnected:
			logger.Info("Change listener reconnected")
		}
	})
	if err := s.listener.Listen(ChangeChannel); err != nil {
		s.listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", ChangeChannel, classify(err))
	}

	s.wg.Add(1)
	go s.dispatch()

	logger.Info("Postgres document store ready", zap.String("channel", ChangeChannel))
	return s, nil
}

var _ store.Store = (*Store)(nil)

// dispatch forwards notifications to the hub. A nil notification means the
// listener reconnected and events may have been missed.
func (s *Store) dispatch() {
	defer s.wg.Done()
	ticker := time.NewTicker(90 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case n, ok := <-s.listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				s.hub.NotifyAll()
				continue
			}
			var ev changeEvent
			if err := json.Unmarshal([]byte(n.Extra), &ev); err != nil || ev.Collection == "" {
				s.logger.Warn("Malformed change notification", zap.String("payload", n.Extra), zap.Error(err))
				s.hub.NotifyAll()
				continue
			}
			s.hub.Notify(ev.Collection)
		case <-ticker.C:
			go func() {
				if err := s.listener.Ping(); err != nil {
					s.logger.Debug("Change listener ping failed", zap.Error(err))
				}
			}()
		}
	}
}

func (s *Store) now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	// postgres keeps microseconds
	t := s.clock().UTC().Truncate(time.Microsecond)
	if !t.After(s.lastTime) {
		t = s.lastTime.Add(time.Microsecond)
	}
	s.lastTime = t
	return t
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Store) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	if s.isClosed() {
		return nil, store.ErrClosed
	}
	row := s.db.QueryRowContext(ctx, selectOneSQL, collection, id)
	doc, err := scanDocument(row.Scan, collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, classify(err))
	}
	return doc, nil
}

func (s *Store) Query(ctx context.Context, q store.Query) ([]*store.Document, error) {
	if s.isClosed() {
		return nil, store.ErrClosed
	}
	query, args, err := buildSelect(q, false)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Collection, classify(err))
	}
	defer rows.Close()

	var docs []*store.Document
	for rows.Next() {
		var id string
		doc, err := scanDocument(func(dest ...interface{}) error {
			return rows.Scan(append([]interface{}{&id}, dest...)...)
		}, q.Collection, "")
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", q.Collection, classify(err))
		}
		doc.ID = id
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", q.Collection, classify(err))
	}
	return docs, nil
}

func (s *Store) Count(ctx context.Context, q store.Query) (int, error) {
	if s.isClosed() {
		return 0, store.ErrClosed
	}
	query, args, err := buildSelect(q, true)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", q.Collection, classify(err))
	}
	return n, nil
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
	if s.isClosed() {
		return nil, store.ErrClosed
	}
	return s.hub.Subscribe(ctx, q)
}

// commit applies ops in one transaction. Updates lock the row, merge in Go
// and write the whole body back.
func (s *Store) commit(ctx context.Context, ops []store.WriteOp) error {
	if s.isClosed() {
		return store.ErrClosed
	}
	now := s.now()

	err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, op := range ops {
			if op.Collection == "" || op.ID == "" {
				return fmt.Errorf("%w: empty collection or id", store.ErrInvalidArgument)
			}
			switch op.Kind {
			case store.OpSet:
				body, err := store.PrepareSet(op.Data, now)
				if err != nil {
					return err
				}
				if err := writeBody(ctx, tx, upsertSQL, op, body, now); err != nil {
					return err
				}
			case store.OpCreate:
				body, err := store.PrepareSet(op.Data, now)
				if err != nil {
					return err
				}
				if err := writeBody(ctx, tx, insertSQL, op, body, now); err != nil {
					return err
				}
			case store.OpUpdate:
				var raw []byte
				err := tx.QueryRowContext(ctx, lockSQL, op.Collection, op.ID).Scan(&raw)
				if errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("%s/%s: %w", op.Collection, op.ID, store.ErrNotFound)
				}
				if err != nil {
					return err
				}
				current := map[string]interface{}{}
				if err := json.Unmarshal(raw, &current); err != nil {
					return fmt.Errorf("corrupt document %s/%s: %w", op.Collection, op.ID, err)
				}
				body, err := store.ApplyUpdate(current, op.Data, now)
				if err != nil {
					return err
				}
				if err := writeBody(ctx, tx, updateSQL, op, body, now); err != nil {
					return err
				}
			case store.OpDelete:
				if _, err := tx.ExecContext(ctx, deleteSQL, op.Collection, op.ID); err != nil {
					return err
				}
			default:
				return fmt.Errorf("%w: unknown write kind %d", store.ErrInvalidArgument, op.Kind)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidArgument) {
			return err
		}
		if err = classify(err); errors.Is(err, store.ErrAlreadyExists) {
			return err
		}
		return fmt.Errorf("failed to commit %d writes: %w", len(ops), err)
	}
	return nil
}

func writeBody(ctx context.Context, tx *sql.Tx, stmt string, op store.WriteOp, body map[string]interface{}, now time.Time) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidArgument, err)
	}
	_, err = tx.ExecContext(ctx, stmt, op.Collection, op.ID, string(raw), now)
	return err
}

func scanDocument(scan func(dest ...interface{}) error, collection, id string) (*store.Document, error) {
	var (
		raw       []byte
		createdAt time.Time
		updatedAt time.Time
	)
	if err := scan(&raw, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	data := map[string]interface{}{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("corrupt document %s/%s: %w", collection, id, err)
	}
	return &store.Document{
		Collection: collection,
		ID:         id,
		Data:       data,
		CreateTime: createdAt.UTC(),
		UpdateTime: updatedAt.UTC(),
	}, nil
}

// classify marks connection-level failures as store.ErrUnavailable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	var pqErr *pq.Error
	switch {
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone), errors.As(err, &netErr):
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	case errors.As(err, &pqErr) && pqErr.Code == "23505":
		return fmt.Errorf("%w: %s", store.ErrAlreadyExists, pqErr.Constraint)
	case errors.As(err, &pqErr):
		// 08: connection exception, 57P: operator intervention
		if class := string(pqErr.Code.Class()); class == "08" || class == "57" {
			return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}
	}
	return err
}

// Close stops the listener and every subscription. The database manager is
// owned by the caller.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	err := s.listener.Close()
	s.wg.Wait()
	s.hub.Close()
	s.logger.Info("Postgres document store closed")
	return err
}
