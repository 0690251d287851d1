package postgres

import (
	"encoding/json"
	"fmt"
	"strings"

	"bridgeus/internal/store"

	"github.com/lib/pq"
)

const (
	selectOneSQL = `SELECT data, created_at, updated_at FROM documents WHERE collection = $1 AND id = $2`

	lockSQL = `SELECT data FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`

	upsertSQL = `
		INSERT INTO documents (collection, id, data, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, $4, $4)
		ON CONFLICT (collection, id)
		DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`

	insertSQL = `
		INSERT INTO documents (collection, id, data, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, $4, $4)`

	updateSQL = `UPDATE documents SET data = $3::jsonb, updated_at = $4 WHERE collection = $1 AND id = $2`

	deleteSQL = `DELETE FROM documents WHERE collection = $1 AND id = $2`
)

// buildSelect renders q as SQL. JSON null ordering values are treated as
// missing and sort last in both directions, like the memory backend.
func buildSelect(q store.Query, count bool) (string, []interface{}, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}

	args := []interface{}{q.Collection}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var b strings.Builder
	if count {
		b.WriteString("SELECT COUNT(*) FROM documents WHERE collection = $1")
	} else {
		b.WriteString("SELECT id, data, created_at, updated_at FROM documents WHERE collection = $1")
	}

	for _, f := range q.Filters {
		path := pq.Array(strings.Split(f.Field, "."))
		switch f.Op {
		case store.OpEqual:
			value, err := jsonArg(f.Value)
			if err != nil {
				return "", nil, err
			}
			fmt.Fprintf(&b, " AND data #> %s::text[] = %s::jsonb", arg(path), arg(value))
		case store.OpArrayContains:
			value, err := jsonArg([]interface{}{f.Value})
			if err != nil {
				return "", nil, err
			}
			p := arg(path)
			fmt.Fprintf(&b, " AND jsonb_typeof(data #> %s::text[]) = 'array' AND data #> %s::text[] @> %s::jsonb", p, p, arg(value))
		}
	}

	if count {
		return b.String(), args, nil
	}

	if q.OrderBy != "" {
		dir := "ASC"
		if q.Direction == store.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY NULLIF(data #> %s::text[], 'null'::jsonb) %s NULLS LAST, id ASC",
			arg(pq.Array(strings.Split(q.OrderBy, "."))), dir)
	} else {
		b.WriteString(" ORDER BY id ASC")
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	return b.String(), args, nil
}

// jsonArg encodes a filter value the way documents store it.
func jsonArg(v interface{}) (string, error) {
	raw, err := json.Marshal(store.Normalize(v))
	if err != nil {
		return "", fmt.Errorf("%w: %v", store.ErrInvalidArgument, err)
	}
	return string(raw), nil
}
