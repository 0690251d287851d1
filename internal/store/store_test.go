package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func doc(id string, data map[string]interface{}) *Document {
	return &Document{Collection: "tasks", ID: id, Data: normalizeValue(data).(map[string]interface{})}
}

func ids(docs []*Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestQuery_Validate(t *testing.T) {
	assert.NoError(t, NewQuery("tasks").Where("status", OpEqual, "published").Validate())
	assert.True(t, errors.Is(NewQuery("").Validate(), ErrInvalidArgument))
	assert.True(t, errors.Is(NewQuery("tasks").Where("", OpEqual, 1).Validate(), ErrInvalidArgument))
	assert.True(t, errors.Is(NewQuery("tasks").Where("a", Operator(">"), 1).Validate(), ErrInvalidArgument))
	assert.True(t, errors.Is(NewQuery("tasks").WithLimit(-1).Validate(), ErrInvalidArgument))
}

func TestQuery_BuildersDoNotShareFilters(t *testing.T) {
	base := NewQuery("tasks").Where("status", OpEqual, "published")
	a := base.Where("companyId", OpEqual, "c1")
	b := base.Where("companyId", OpEqual, "c2")

	assert.Len(t, base.Filters, 1)
	assert.Equal(t, "c1", a.Filters[1].Value)
	assert.Equal(t, "c2", b.Filters[1].Value)
}

func TestQuery_Matches(t *testing.T) {
	d := doc("t1", map[string]interface{}{
		"status":     "published",
		"categories": []string{"IT", "デザイン"},
		"reward":     5000,
		"owner":      map[string]interface{}{"id": "c1"},
	})

	tests := []struct {
		name  string
		query Query
		want  bool
	}{
		{"equal string", NewQuery("tasks").Where("status", OpEqual, "published"), true},
		{"equal int against stored number", NewQuery("tasks").Where("reward", OpEqual, 5000), true},
		{"nested path", NewQuery("tasks").Where("owner.id", OpEqual, "c1"), true},
		{"array contains", NewQuery("tasks").Where("categories", OpArrayContains, "IT"), true},
		{"array missing element", NewQuery("tasks").Where("categories", OpArrayContains, "その他"), false},
		{"array contains on scalar", NewQuery("tasks").Where("status", OpArrayContains, "published"), false},
		{"missing field", NewQuery("tasks").Where("deadline", OpEqual, "2025-01-01"), false},
		{"other collection", NewQuery("users").Where("status", OpEqual, "published"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.query.Matches(d))
		})
	}
}

func TestQuery_ApplyOrdering(t *testing.T) {
	docs := []*Document{
		doc("d", map[string]interface{}{}),
		doc("c", map[string]interface{}{"rank": 2}),
		doc("b", map[string]interface{}{"rank": "x"}),
		doc("a", map[string]interface{}{"rank": 2}),
		doc("e", map[string]interface{}{"rank": nil}),
	}

	asc := NewQuery("tasks").Order("rank", Asc).Apply(docs)
	assert.Equal(t, []string{"b", "a", "c", "d", "e"}, ids(asc))

	desc := NewQuery("tasks").Order("rank", Desc).Apply(docs)
	assert.Equal(t, []string{"a", "c", "b", "d", "e"}, ids(desc))

	limited := NewQuery("tasks").WithLimit(2).Apply(docs)
	assert.Equal(t, []string{"a", "b"}, ids(limited))
}

func TestApplyUpdate(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	current := map[string]interface{}{
		"count": float64(1),
		"label": "x",
		"room":  map[string]interface{}{"u1": float64(2)},
	}

	out, err := ApplyUpdate(current, map[string]interface{}{
		"count":     Increment(1),
		"label":     Increment(5),
		"room.u1":   Increment(-2),
		"room.u2":   Increment(1),
		"updatedAt": ServerTimestamp(),
		"deadline":  now,
	}, now)
	require.NoError(t, err)

	assert.Equal(t, float64(2), out["count"])
	assert.Equal(t, float64(5), out["label"], "increment replaces non-numbers")
	assert.Equal(t, map[string]interface{}{"u1": float64(0), "u2": float64(1)}, out["room"])
	assert.Equal(t, "2025-03-01T12:00:00.000000000Z", out["updatedAt"])
	assert.Equal(t, out["updatedAt"], out["deadline"])

	assert.Equal(t, float64(1), current["count"], "input is not mutated")
	assert.Equal(t, float64(2), current["room"].(map[string]interface{})["u1"])

	_, err = ApplyUpdate(current, map[string]interface{}{"a..b": 1}, now)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestTimeLayoutSortsChronologically(t *testing.T) {
	early := FormatTime(time.Date(2025, 1, 1, 9, 0, 0, 5, time.UTC))
	late := FormatTime(time.Date(2025, 1, 1, 9, 0, 0, 50, time.UTC))
	assert.Less(t, early, late)

	parsed, err := ParseTime(late)
	require.NoError(t, err)
	assert.Equal(t, 50, parsed.Nanosecond())

	legacy, err := ParseTime("2025-01-01T09:00:00+09:00")
	require.NoError(t, err)
	assert.Equal(t, 0, legacy.Hour())
}

func TestStream_KeepsLatestValue(t *testing.T) {
	closed := 0
	s := NewStream[int](func() { closed++ })

	assert.True(t, s.Send(1))
	assert.True(t, s.Send(2))
	assert.Equal(t, 2, <-s.C())

	s.Unsubscribe()
	s.Unsubscribe()
	assert.Equal(t, 1, closed)
	assert.False(t, s.Send(3))

	_, ok := <-s.C()
	assert.False(t, ok)
}

func TestMap_TransformsAndPropagatesUnsubscribe(t *testing.T) {
	srcClosed := make(chan struct{})
	src := NewStream[int](func() { close(srcClosed) })

	dst := Map(context.Background(), src, zap.NewNop(), func(_ context.Context, v int) (string, error) {
		if v < 0 {
			return "", errors.New("negative")
		}
		return string(rune('a' + v)), nil
	})

	src.Send(-1)
	src.Send(1)
	select {
	case v := <-dst.C():
		assert.Equal(t, "b", v)
	case <-time.After(time.Second):
		t.Fatal("no mapped value")
	}

	dst.Unsubscribe()
	select {
	case <-srcClosed:
	case <-time.After(time.Second):
		t.Fatal("source not unsubscribed")
	}
}

func TestHub_SkipsUnchangedResults(t *testing.T) {
	runs := make(chan struct{}, 10)
	updated := time.Now()
	hub := NewHub(func(context.Context, Query) ([]*Document, error) {
		runs <- struct{}{}
		return []*Document{{Collection: "tasks", ID: "t1", UpdateTime: updated}}, nil
	}, zap.NewNop())
	defer hub.Close()

	stream, err := hub.Subscribe(context.Background(), NewQuery("tasks"))
	require.NoError(t, err)

	<-stream.C()
	<-runs

	hub.Notify("users")
	hub.Notify("tasks")
	<-runs

	select {
	case <-stream.C():
		t.Fatal("unchanged snapshot delivered")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 1, hub.Active())

	stream.Unsubscribe()
	assert.Eventually(t, func() bool { return hub.Active() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_ComparesContentNotTimestamps(t *testing.T) {
	stamp := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	results := make(chan []*Document, 1)
	hub := NewHub(func(ctx context.Context, _ Query) ([]*Document, error) {
		select {
		case docs := <-results:
			return docs, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}, zap.NewNop())
	defer hub.Close()

	version := func(status string, updated time.Time) []*Document {
		return []*Document{{Collection: "tasks", ID: "t1", UpdateTime: updated,
			Data: map[string]interface{}{"status": status}}}
	}
	next := func(docs []*Document) {
		results <- docs
		hub.Notify("tasks")
	}

	results <- version("draft", stamp)
	stream, err := hub.Subscribe(context.Background(), NewQuery("tasks"))
	require.NoError(t, err)
	first := <-stream.C()
	assert.Equal(t, "draft", first.Documents[0].Data["status"])

	// same timestamp, new content
	next(version("published", stamp))
	snap := <-stream.C()
	assert.Equal(t, "published", snap.Documents[0].Data["status"])

	// a writer with a clock behind the last one
	next(version("closed", stamp.Add(-time.Hour)))
	snap = <-stream.C()
	assert.Equal(t, "closed", snap.Documents[0].Data["status"])

	// rewritten with identical content
	next(version("closed", stamp.Add(time.Hour)))
	select {
	case <-stream.C():
		t.Fatal("unchanged content delivered")
	case <-time.After(50 * time.Millisecond):
	}
}
