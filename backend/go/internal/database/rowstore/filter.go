package rowstore

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"AgentOffice/backend/go/internal/models"
)

// Row is one record as exchanged with a backend.
type Row = map[string]any

// Op is a comparison operator of a filter condition.
type Op string

const (
	OpEq    Op = "eq"
	OpNeq   Op = "neq"
	OpGt    Op = "gt"
	OpGte   Op = "gte"
	OpLt    Op = "lt"
	OpLte   Op = "lte"
	OpLike  Op = "like"
	OpILike Op = "ilike"
	OpIn    Op = "in"
	OpIs    Op = "is"
)

var knownOps = map[Op]bool{
	OpEq: true, OpNeq: true, OpGt: true, OpGte: true, OpLt: true,
	OpLte: true, OpLike: true, OpILike: true, OpIn: true, OpIs: true,
}

// ErrBadFilter is wrapped by ParseFilter failures.
var ErrBadFilter = errors.New("bad filter")

// Condition restricts one column. Like patterns use * or % as wildcard, In
// takes a slice and Is takes nil, true or false.
type Condition struct {
	Column string
	Op     Op
	Value  any
}

// OrderBy sorts by one column.
type OrderBy struct {
	Column string
	Desc   bool
}

// Filter selects rows. All conditions must hold.
type Filter struct {
	Conditions []Condition
	Order      []OrderBy
	Limit      int
	Columns    []string
}

// Where starts a filter with one equality condition.
func Where(column string, value any) Filter {
	return Filter{}.Eq(column, value)
}

func (f Filter) with(column string, op Op, value any) Filter {
	f.Conditions = append(append([]Condition(nil), f.Conditions...), Condition{Column: column, Op: op, Value: value})
	return f
}

func (f Filter) Eq(column string, value any) Filter    { return f.with(column, OpEq, value) }
func (f Filter) Neq(column string, value any) Filter   { return f.with(column, OpNeq, value) }
func (f Filter) Gt(column string, value any) Filter    { return f.with(column, OpGt, value) }
func (f Filter) Gte(column string, value any) Filter   { return f.with(column, OpGte, value) }
func (f Filter) Lt(column string, value any) Filter    { return f.with(column, OpLt, value) }
func (f Filter) Lte(column string, value any) Filter   { return f.with(column, OpLte, value) }
func (f Filter) Like(column, pattern string) Filter    { return f.with(column, OpLike, pattern) }
func (f Filter) ILike(column, pattern string) Filter   { return f.with(column, OpILike, pattern) }
func (f Filter) In(column string, values ...any) Filter { return f.with(column, OpIn, values) }
func (f Filter) IsNull(column string) Filter           { return f.with(column, OpIs, nil) }

// OrderAsc appends an ascending sort key.
func (f Filter) OrderAsc(column string) Filter {
	f.Order = append(append([]OrderBy(nil), f.Order...), OrderBy{Column: column})
	return f
}

// OrderDesc appends a descending sort key.
func (f Filter) OrderDesc(column string) Filter {
	f.Order = append(append([]OrderBy(nil), f.Order...), OrderBy{Column: column, Desc: true})
	return f
}

// WithLimit caps the number of returned rows; 0 means no limit.
func (f Filter) WithLimit(n int) Filter {
	f.Limit = n
	return f
}

// Select restricts the returned columns.
func (f Filter) Select(columns ...string) Filter {
	f.Columns = columns
	return f
}

// Empty reports whether the filter has no conditions.
func (f Filter) Empty() bool {
	return len(f.Conditions) == 0
}

// ParseFilter reads the operator-prefix notation used on the wire
// ("eq.5", "lt.2024-01-01", "like.*abc*", "in.(a,b)", "is.null"). A value
// without a known prefix means equality. The reserved keys order
// ("created_at.desc,id"), limit and select are honoured.
func ParseFilter(params map[string]string) (Filter, error) {
	var f Filter
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		raw := params[key]
		switch key {
		case "order":
			for _, part := range strings.Split(raw, ",") {
				part = strings.TrimSpace(part)
				if part == "" {
					continue
				}
				col, dir, _ := strings.Cut(part, ".")
				switch dir {
				case "", "asc":
					f = f.OrderAsc(col)
				case "desc":
					f = f.OrderDesc(col)
				default:
					return Filter{}, fmt.Errorf("%w: order direction %q", ErrBadFilter, dir)
				}
			}
		case "limit":
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return Filter{}, fmt.Errorf("%w: limit %q", ErrBadFilter, raw)
			}
			f.Limit = n
		case "select":
			for _, c := range strings.Split(raw, ",") {
				if c = strings.TrimSpace(c); c != "" {
					f.Columns = append(f.Columns, c)
				}
			}
		default:
			cond, err := parseCondition(key, raw)
			if err != nil {
				return Filter{}, err
			}
			f.Conditions = append(f.Conditions, cond)
		}
	}
	return f, nil
}

func parseCondition(column, raw string) (Condition, error) {
	prefix, rest, found := strings.Cut(raw, ".")
	op := Op(prefix)
	if !found || !knownOps[op] {
		return Condition{Column: column, Op: OpEq, Value: raw}, nil
	}
	switch op {
	case OpIn:
		if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
			return Condition{}, fmt.Errorf("%w: in list for %s must be parenthesised", ErrBadFilter, column)
		}
		var values []any
		for _, v := range strings.Split(rest[1:len(rest)-1], ",") {
			v = strings.Trim(strings.TrimSpace(v), `'"`)
			if v != "" {
				values = append(values, v)
			}
		}
		return Condition{Column: column, Op: OpIn, Value: values}, nil
	case OpIs:
		switch strings.ToLower(rest) {
		case "null":
			return Condition{Column: column, Op: OpIs, Value: nil}, nil
		case "true":
			return Condition{Column: column, Op: OpIs, Value: true}, nil
		case "false":
			return Condition{Column: column, Op: OpIs, Value: false}, nil
		}
		return Condition{}, fmt.Errorf("%w: is.%s", ErrBadFilter, rest)
	}
	return Condition{Column: column, Op: op, Value: rest}, nil
}

// Query renders the filter as PostgREST query parameters.
func (f Filter) Query() url.Values {
	q := url.Values{}
	for _, c := range f.Conditions {
		q.Add(c.Column, string(c.Op)+"."+formatOperand(c))
	}
	if len(f.Order) > 0 {
		parts := make([]string, len(f.Order))
		for i, o := range f.Order {
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			parts[i] = o.Column + "." + dir
		}
		q.Set("order", strings.Join(parts, ","))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if len(f.Columns) > 0 {
		q.Set("select", strings.Join(f.Columns, ","))
	}
	return q
}

func formatOperand(c Condition) string {
	switch c.Op {
	case OpIn:
		items := toSlice(c.Value)
		parts := make([]string, len(items))
		for i, v := range items {
			s := formatScalar(v)
			if strings.ContainsAny(s, ",()") {
				s = `"` + s + `"`
			}
			parts[i] = s
		}
		return "(" + strings.Join(parts, ",") + ")"
	case OpIs:
		if c.Value == nil {
			return "null"
		}
		return formatScalar(c.Value)
	case OpLike, OpILike:
		return strings.ReplaceAll(formatScalar(c.Value), "%", "*")
	}
	return formatScalar(c.Value)
}

func formatScalar(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case time.Time:
		return models.FormatTime(t)
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}

func toSlice(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []int64:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out
	case nil:
		return nil
	}
	return []any{v}
}
