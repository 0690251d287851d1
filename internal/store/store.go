// Package store defines the document store used for all marketplace state.
//
// A store holds named collections of JSON-like documents. Documents are read
// one at a time or through queries with equality and array-contains filters,
// a single ordering field and a limit. Every query can also be subscribed to:
// the subscription delivers a fresh snapshot whenever a write touches the
// queried collection.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid"
)

// ===============================
// ERRORS
// ===============================

var (
	// ErrNotFound is returned when a referenced document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrUnavailable wraps transient backend failures (connection loss, timeouts).
	ErrUnavailable = errors.New("document store unavailable")
	// ErrInvalidArgument is returned for malformed paths, queries or values.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("document store closed")
	// ErrAlreadyExists is returned by a create of an existing document and
	// by writes that break a unique index.
	ErrAlreadyExists = errors.New("document already exists")
)

// ===============================
// DOCUMENTS
// ===============================

// Document is one stored record.
type Document struct {
	Collection string
	ID         string
	Data       map[string]interface{}
	CreateTime time.Time
	UpdateTime time.Time
}

// Path returns "collection/id".
func (d *Document) Path() string {
	return d.Collection + "/" + d.ID
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	return &Document{
		Collection: d.Collection,
		ID:         d.ID,
		Data:       cloneMap(d.Data),
		CreateTime: d.CreateTime,
		UpdateTime: d.UpdateTime,
	}
}

// Snapshot is the complete ordered result of a query at one point in time.
type Snapshot struct {
	Documents []*Document
	ReadTime  time.Time
}

// Size returns the number of documents in the snapshot.
func (s *Snapshot) Size() int {
	if s == nil {
		return 0
	}
	return len(s.Documents)
}

// ===============================
// STORE INTERFACE
// ===============================

// Store is the document store surface consumed by the repositories.
type Store interface {
	// Get returns the document or ErrNotFound.
	Get(ctx context.Context, collection, id string) (*Document, error)
	// Query returns the documents matching q in q's order.
	Query(ctx context.Context, q Query) ([]*Document, error)
	// Count returns the number of documents matching q's filters.
	Count(ctx context.Context, q Query) (int, error)

	// Add creates a document with a generated id.
	Add(ctx context.Context, collection string, data map[string]interface{}) (string, error)
	// Set creates or fully overwrites a document.
	Set(ctx context.Context, collection, id string, data map[string]interface{}) error
	// Update merges fields into an existing document. Keys may be dotted
	// paths into nested maps. Returns ErrNotFound when the document is absent.
	Update(ctx context.Context, collection, id string, updates map[string]interface{}) error
	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error

	// Batch starts a write batch that commits atomically.
	Batch() *WriteBatch

	// Subscribe delivers a snapshot of q now and after every change to
	// q's collection until the stream is unsubscribed or ctx is done.
	Subscribe(ctx context.Context, q Query) (*Stream[*Snapshot], error)

	Close() error
}

// NewID returns a new random document id.
func NewID() string {
	return uuid.Must(uuid.NewV4()).String()
}
