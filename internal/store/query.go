package store

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Operator is a filter comparison.
type Operator string

const (
	OpEqual         Operator = "=="
	OpArrayContains Operator = "array-contains"
)

// Direction is the sort direction of a query.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// Filter restricts a query to documents whose field satisfies Op against Value.
type Filter struct {
	Field string
	Op    Operator
	Value interface{}
}

// Query selects documents from one collection.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Direction  Direction
	Limit      int
}

// NewQuery returns a query over every document of collection.
func NewQuery(collection string) Query {
	return Query{Collection: collection}
}

// Where returns a copy of q with an additional filter.
func (q Query) Where(field string, op Operator, value interface{}) Query {
	filters := make([]Filter, len(q.Filters), len(q.Filters)+1)
	copy(filters, q.Filters)
	q.Filters = append(filters, Filter{Field: field, Op: op, Value: value})
	return q
}

// Order returns a copy of q ordered by field.
func (q Query) Order(field string, dir Direction) Query {
	q.OrderBy = field
	q.Direction = dir
	return q
}

// WithLimit returns a copy of q limited to n documents. Zero means no limit.
func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// Validate checks the query shape.
func (q Query) Validate() error {
	if q.Collection == "" || strings.HasPrefix(q.Collection, "/") || strings.HasSuffix(q.Collection, "/") {
		return fmt.Errorf("%w: collection %q", ErrInvalidArgument, q.Collection)
	}
	for _, f := range q.Filters {
		if f.Field == "" {
			return fmt.Errorf("%w: empty filter field", ErrInvalidArgument)
		}
		switch f.Op {
		case OpEqual, OpArrayContains:
		default:
			return fmt.Errorf("%w: unsupported operator %q", ErrInvalidArgument, f.Op)
		}
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidArgument)
	}
	return nil
}

// String renders the query for logs.
func (q Query) String() string {
	var b strings.Builder
	b.WriteString(q.Collection)
	for _, f := range q.Filters {
		fmt.Fprintf(&b, " where %s %s %v", f.Field, f.Op, f.Value)
	}
	if q.OrderBy != "" {
		dir := "asc"
		if q.Direction == Desc {
			dir = "desc"
		}
		fmt.Fprintf(&b, " order by %s %s", q.OrderBy, dir)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " limit %d", q.Limit)
	}
	return b.String()
}

// ===============================
// IN-PROCESS EVALUATION
// ===============================

// Matches reports whether doc satisfies every filter of q.
func (q Query) Matches(doc *Document) bool {
	if doc == nil || doc.Collection != q.Collection {
		return false
	}
	for _, f := range q.Filters {
		v, ok := lookupPath(doc.Data, f.Field)
		if !ok {
			return false
		}
		want := normalizeValue(f.Value)
		switch f.Op {
		case OpEqual:
			if !reflect.DeepEqual(v, want) {
				return false
			}
		case OpArrayContains:
			arr, isArr := v.([]interface{})
			if !isArr {
				return false
			}
			found := false
			for _, el := range arr {
				if reflect.DeepEqual(el, want) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Apply filters, orders and limits docs in place of a backend query engine.
func (q Query) Apply(docs []*Document) []*Document {
	out := make([]*Document, 0, len(docs))
	for _, d := range docs {
		if q.Matches(d) {
			out = append(out, d)
		}
	}
	q.sort(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// sort orders by OrderBy (documents missing the field last in either
// direction) and then by id so results are deterministic.
func (q Query) sort(docs []*Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if q.OrderBy != "" {
			vi, okI := lookupPath(docs[i].Data, q.OrderBy)
			vj, okJ := lookupPath(docs[j].Data, q.OrderBy)
			okI = okI && vi != nil
			okJ = okJ && vj != nil
			switch {
			case okI && !okJ:
				return true
			case !okI && okJ:
				return false
			case okI && okJ:
				c := compareValues(vi, vj)
				if c != 0 {
					if q.Direction == Desc {
						return c > 0
					}
					return c < 0
				}
			}
		}
		return docs[i].ID < docs[j].ID
	})
}

// typeRank follows the jsonb ordering used by the postgres backend:
// string < number < boolean < array < object.
func typeRank(v interface{}) int {
	switch v.(type) {
	case string:
		return 1
	case float64:
		return 2
	case bool:
		return 3
	case []interface{}:
		return 4
	case map[string]interface{}:
		return 5
	default:
		return 0
	}
}

func compareValues(a, b interface{}) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case string:
		return strings.Compare(av, b.(string))
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		}
		return 1
	case []interface{}:
		bv := b.([]interface{})
		for i := 0; i < len(av) && i < len(bv); i++ {
			if c := compareValues(av[i], bv[i]); c != 0 {
				return c
			}
		}
		return len(av) - len(bv)
	}
	return 0
}
