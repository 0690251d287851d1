package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"bridgeus/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(zap.NewNop())
	t.Cleanup(func() { s.Close() })
	return s
}

func receive(t *testing.T, stream *store.Stream[*store.Snapshot]) *store.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-stream.C():
		require.True(t, ok, "stream closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestStore_SetGetUpdateDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "tasks", "t1", map[string]interface{}{
		"title":      "SNS運用サポート",
		"categories": []string{"マーケティング"},
		"count":      1,
	}))

	doc, err := s.Get(ctx, "tasks", "t1")
	require.NoError(t, err)
	assert.Equal(t, "SNS運用サポート", doc.Data["title"])
	assert.Equal(t, []interface{}{"マーケティング"}, doc.Data["categories"])
	assert.Equal(t, float64(1), doc.Data["count"])

	require.NoError(t, s.Update(ctx, "tasks", "t1", map[string]interface{}{
		"count":         store.Increment(2),
		"meta.editedAt": store.ServerTimestamp(),
	}))
	doc, err = s.Get(ctx, "tasks", "t1")
	require.NoError(t, err)
	assert.Equal(t, float64(3), doc.Data["count"])
	meta, ok := doc.Data["meta"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, store.FormatTime(doc.UpdateTime), meta["editedAt"])
	assert.True(t, doc.UpdateTime.After(doc.CreateTime))

	require.NoError(t, s.Delete(ctx, "tasks", "t1"))
	_, err = s.Get(ctx, "tasks", "t1")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	// deleting again is not an error
	assert.NoError(t, s.Delete(ctx, "tasks", "t1"))
}

func TestStore_UpdateMissingDocument(t *testing.T) {
	s := newTestStore(t)
	err := s.Update(context.Background(), "tasks", "nope", map[string]interface{}{"a": 1})
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestStore_ReturnedDocumentsAreCopies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "users", "u1", map[string]interface{}{"skills": []string{"Go"}}))

	doc, err := s.Get(ctx, "users", "u1")
	require.NoError(t, err)
	doc.Data["skills"].([]interface{})[0] = "changed"

	again, err := s.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"Go"}, again.Data["skills"])
}

func TestStore_QueryFiltersAndOrdering(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c", "d"} {
		data := map[string]interface{}{
			"status":     "published",
			"categories": []string{"デザイン"},
			"createdAt":  base.Add(time.Duration(i) * time.Hour),
		}
		if id == "c" {
			data["status"] = "closed"
		}
		if id == "d" {
			delete(data, "createdAt")
		}
		require.NoError(t, s.Set(ctx, "tasks", id, data))
	}

	q := store.NewQuery("tasks").
		Where("status", store.OpEqual, "published").
		Where("categories", store.OpArrayContains, "デザイン").
		Order("createdAt", store.Desc)

	docs, err := s.Query(ctx, q)
	require.NoError(t, err)
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	assert.Equal(t, []string{"b", "a", "d"}, ids, "missing order field sorts last")

	docs, err = s.Query(ctx, q.WithLimit(1))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "b", docs[0].ID)

	n, err := s.Count(ctx, q.WithLimit(1))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestStore_BatchIsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "chatRooms", "r1", map[string]interface{}{"lastMessage": ""}))

	err := s.Batch().
		Set("messages", "m1", map[string]interface{}{"text": "hi"}).
		Update("chatRooms", "missing", map[string]interface{}{"lastMessage": "hi"}).
		Commit(ctx)
	require.True(t, errors.Is(err, store.ErrNotFound))

	_, err = s.Get(ctx, "messages", "m1")
	assert.True(t, errors.Is(err, store.ErrNotFound), "failed batch must not apply earlier writes")

	batch := s.Batch().
		Set("messages", "m1", map[string]interface{}{"text": "hi"}).
		Update("chatRooms", "r1", map[string]interface{}{"lastMessage": "hi"})
	require.NoError(t, batch.Commit(ctx))
	assert.Error(t, batch.Commit(ctx), "batches commit once")

	room, err := s.Get(ctx, "chatRooms", "r1")
	require.NoError(t, err)
	assert.Equal(t, "hi", room.Data["lastMessage"])
}

func TestStore_BatchCreateFailsOnExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Batch().Create("accountEmails", "k1", map[string]interface{}{"accountId": "a1"}).Commit(ctx))

	err := s.Batch().
		Set("accounts", "a2", map[string]interface{}{"email": "taro@example.com"}).
		Create("accountEmails", "k1", map[string]interface{}{"accountId": "a2"}).
		Commit(ctx)
	require.True(t, errors.Is(err, store.ErrAlreadyExists))

	_, err = s.Get(ctx, "accounts", "a2")
	assert.True(t, errors.Is(err, store.ErrNotFound), "the batch is rolled back")

	claim, err := s.Get(ctx, "accountEmails", "k1")
	require.NoError(t, err)
	assert.Equal(t, "a1", claim.Data["accountId"])
}

func TestStore_SetRejectsDottedKeys(t *testing.T) {
	s := newTestStore(t)
	err := s.Set(context.Background(), "tasks", "t1", map[string]interface{}{"a.b": 1})
	assert.True(t, errors.Is(err, store.ErrInvalidArgument))
}

func TestStore_CommitTimesIncrease(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(zap.NewNop(), WithClock(func() time.Time { return fixed }))
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "c", "1", map[string]interface{}{}))
	require.NoError(t, s.Set(ctx, "c", "2", map[string]interface{}{}))

	first, _ := s.Get(ctx, "c", "1")
	second, _ := s.Get(ctx, "c", "2")
	assert.True(t, second.UpdateTime.After(first.UpdateTime))
}

func TestStore_SubscribeDeliversSnapshots(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	q := store.NewQuery("notifications").Where("userId", store.OpEqual, "u1")
	stream, err := s.Subscribe(ctx, q)
	require.NoError(t, err)
	defer stream.Unsubscribe()

	assert.Equal(t, 0, receive(t, stream).Size())

	require.NoError(t, s.Set(ctx, "notifications", "n1", map[string]interface{}{"userId": "u1"}))
	assert.Equal(t, 1, receive(t, stream).Size())

	// writes to other users leave the result unchanged and deliver nothing
	require.NoError(t, s.Set(ctx, "notifications", "n2", map[string]interface{}{"userId": "u2"}))
	require.NoError(t, s.Set(ctx, "notifications", "n3", map[string]interface{}{"userId": "u1"}))
	snap := receive(t, stream)
	assert.Equal(t, 2, snap.Size())
}

func TestStore_UnsubscribeStopsDelivery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stream, err := s.Subscribe(ctx, store.NewQuery("tasks"))
	require.NoError(t, err)
	receive(t, stream)

	stream.Unsubscribe()
	stream.Unsubscribe()

	require.Eventually(t, func() bool { return s.hub.Active() == 0 }, time.Second, 10*time.Millisecond)
	require.NoError(t, s.Set(ctx, "tasks", "t1", map[string]interface{}{}))

	_, ok := <-stream.C()
	assert.False(t, ok)
}

func TestStore_CloseEndsSubscriptions(t *testing.T) {
	s := New(zap.NewNop())
	stream, err := s.Subscribe(context.Background(), store.NewQuery("tasks"))
	require.NoError(t, err)

	require.NoError(t, s.Close())
	select {
	case <-stream.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription still open after Close")
	}

	_, err = s.Get(context.Background(), "tasks", "t1")
	assert.True(t, errors.Is(err, store.ErrClosed))
}
