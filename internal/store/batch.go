package store

import (
	"context"
	"fmt"
)

// OpKind identifies a batched write.
type OpKind int

const (
	OpSet OpKind = iota
	OpUpdate
	OpDelete
	OpCreate
)

// WriteOp is one write of a batch.
type WriteOp struct {
	Kind       OpKind
	Collection string
	ID         string
	Data       map[string]interface{}
}

// CommitFunc applies a batch atomically.
type CommitFunc func(ctx context.Context, ops []WriteOp) error

// WriteBatch accumulates writes and commits them together. A batch can be
// committed once.
type WriteBatch struct {
	ops       []WriteOp
	commit    CommitFunc
	committed bool
}

// NewWriteBatch is used by backends to hand out batches.
func NewWriteBatch(commit CommitFunc) *WriteBatch {
	return &WriteBatch{commit: commit}
}

// Set queues a full overwrite.
func (b *WriteBatch) Set(collection, id string, data map[string]interface{}) *WriteBatch {
	b.ops = append(b.ops, WriteOp{Kind: OpSet, Collection: collection, ID: id, Data: data})
	return b
}

// Create queues a write that fails the whole batch with ErrAlreadyExists
// when the document exists.
func (b *WriteBatch) Create(collection, id string, data map[string]interface{}) *WriteBatch {
	b.ops = append(b.ops, WriteOp{Kind: OpCreate, Collection: collection, ID: id, Data: data})
	return b
}

// Update queues a merge into an existing document.
func (b *WriteBatch) Update(collection, id string, updates map[string]interface{}) *WriteBatch {
	b.ops = append(b.ops, WriteOp{Kind: OpUpdate, Collection: collection, ID: id, Data: updates})
	return b
}

// Delete queues a delete.
func (b *WriteBatch) Delete(collection, id string) *WriteBatch {
	b.ops = append(b.ops, WriteOp{Kind: OpDelete, Collection: collection, ID: id})
	return b
}

// Len returns the number of queued writes.
func (b *WriteBatch) Len() int {
	return len(b.ops)
}

// Commit applies every queued write or none of them.
func (b *WriteBatch) Commit(ctx context.Context) error {
	if b.committed {
		return fmt.Errorf("%w: batch already committed", ErrInvalidArgument)
	}
	b.committed = true
	if len(b.ops) == 0 {
		return nil
	}
	for _, op := range b.ops {
		if op.Collection == "" || op.ID == "" {
			return fmt.Errorf("%w: batch write without collection or id", ErrInvalidArgument)
		}
	}
	return b.commit(ctx, b.ops)
}
