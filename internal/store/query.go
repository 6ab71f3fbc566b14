package store

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Filter is an equality predicate on one field.
type Filter struct {
	Field string
	Value any
}

// OrderBy sorts results by one field. An empty Field keeps the store order.
type OrderBy struct {
	Field string
	Desc  bool
}

// Query is the shape of a read: collection, equality filters, ordering and
// an optional limit (0 means no limit).
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    OrderBy
	Limit      int
}

// Where returns a copy of q with an added equality filter.
func (q Query) Where(field string, value any) Query {
	q.Filters = append(slices.Clone(q.Filters), Filter{Field: field, Value: value})
	return q
}

// Key is a canonical string for the query shape. Two queries with the same
// key return the same result set; filter order does not matter.
func (q Query) Key() string {
	parts := make([]string, 0, len(q.Filters))
	for _, f := range q.Filters {
		parts = append(parts, fmt.Sprintf("%s=%v", f.Field, f.Value))
	}
	slices.Sort(parts)

	var b strings.Builder
	b.WriteString(q.Collection)
	b.WriteString("?")
	b.WriteString(strings.Join(parts, "&"))
	if q.OrderBy.Field != "" {
		dir := "asc"
		if q.OrderBy.Desc {
			dir = "desc"
		}
		fmt.Fprintf(&b, "#%s:%s", q.OrderBy.Field, dir)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, "#limit:%d", q.Limit)
	}
	return b.String()
}

// Matches reports whether the document satisfies every filter.
func (q Query) Matches(doc Document) bool {
	for _, f := range q.Filters {
		v, ok := doc.Fields[f.Field]
		if !ok || compareValues(v, f.Value) != 0 {
			return false
		}
	}
	return true
}

// Apply filters, orders and limits docs in place and returns the result.
//
// Documents missing the order-by field are excluded, the same way hosted
// document databases drop them from ordered queries. Ties keep their input
// order, then break on ID so the result is deterministic.
func (q Query) Apply(docs []Document) []Document {
	out := docs[:0]
	for _, d := range docs {
		if !q.Matches(d) {
			continue
		}
		if q.OrderBy.Field != "" && !d.Fields.Has(q.OrderBy.Field) {
			continue
		}
		out = append(out, d)
	}

	if q.OrderBy.Field != "" {
		field := q.OrderBy.Field
		slices.SortStableFunc(out, func(a, b Document) int {
			c := compareValues(a.Fields[field], b.Fields[field])
			if c == 0 {
				c = cmp.Compare(a.ID, b.ID)
			}
			if q.OrderBy.Desc {
				return -c
			}
			return c
		})
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// compareValues orders two field values. Values of different kinds order
// by kind rank: nil < bool < number < string < time < other.
func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch av := a.(type) {
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		}
		return 1
	case string:
		return strings.Compare(av, b.(string))
	case time.Time:
		return av.Compare(b.(time.Time))
	}
	if ra == rankNumber {
		return cmp.Compare(toFloat(a), toFloat(b))
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

const (
	rankNil = iota
	rankBool
	rankNumber
	rankString
	rankTime
	rankOther
)

func rank(v any) int {
	switch v.(type) {
	case nil:
		return rankNil
	case bool:
		return rankBool
	case int, int32, int64, float32, float64, uint, uint32, uint64:
		return rankNumber
	case string:
		return rankString
	case time.Time:
		return rankTime
	}
	return rankOther
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	}
	return 0
}
