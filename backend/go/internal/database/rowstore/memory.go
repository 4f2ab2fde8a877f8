package rowstore

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// MemoryBackend keeps tables in process memory. Every table gets an
// auto-incrementing int64 "id" column.
type MemoryBackend struct {
	mu     sync.RWMutex
	tables map[string][]Row
	nextID map[string]int64
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		tables: make(map[string][]Row),
		nextID: make(map[string]int64),
	}
}

func (m *MemoryBackend) Insert(ctx context.Context, table string, row Row) error {
	_, err := m.InsertReturning(ctx, table, row)
	return err
}

func (m *MemoryBackend) InsertReturning(_ context.Context, table string, row Row) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyRow(m.insertLocked(table, row)), nil
}

func (m *MemoryBackend) insertLocked(table string, row Row) Row {
	stored := copyRow(row)
	id, ok := toFloat(stored["id"])
	if !ok {
		m.nextID[table]++
		stored["id"] = m.nextID[table]
	} else if int64(id) > m.nextID[table] {
		m.nextID[table] = int64(id)
	}
	m.tables[table] = append(m.tables[table], stored)
	return stored
}

func (m *MemoryBackend) Select(_ context.Context, table string, f Filter) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []Row
	for _, r := range m.tables[table] {
		if matches(r, f.Conditions) {
			matched = append(matched, r)
		}
	}
	sortRows(matched, f.Order)
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	out := make([]Row, len(matched))
	for i, r := range matched {
		out[i] = project(r, f.Columns)
	}
	return out, nil
}

func (m *MemoryBackend) Update(_ context.Context, table string, f Filter, fields Row) (int, error) {
	if f.Empty() {
		return 0, ErrUnfilteredWrite
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.tables[table] {
		if !matches(r, f.Conditions) {
			continue
		}
		for k, v := range fields {
			r[k] = v
		}
		n++
	}
	return n, nil
}

func (m *MemoryBackend) Upsert(_ context.Context, table string, row Row, conflict []string) (Row, error) {
	if len(conflict) == 0 {
		return nil, fmt.Errorf("upsert into %s: no conflict columns", table)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	conds := make([]Condition, 0, len(conflict))
	for _, c := range conflict {
		conds = append(conds, Condition{Column: c, Op: OpEq, Value: row[c]})
	}
	for _, r := range m.tables[table] {
		if matches(r, conds) {
			for k, v := range row {
				if k != "id" {
					r[k] = v
				}
			}
			return copyRow(r), nil
		}
	}
	return copyRow(m.insertLocked(table, row)), nil
}

func (m *MemoryBackend) Delete(_ context.Context, table string, f Filter) (int, error) {
	if f.Empty() {
		return 0, ErrUnfilteredWrite
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.tables[table][:0]
	n := 0
	for _, r := range m.tables[table] {
		if matches(r, f.Conditions) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.tables[table] = kept
	return n, nil
}

func (m *MemoryBackend) Ping(context.Context) error { return nil }

func matches(r Row, conds []Condition) bool {
	for _, c := range conds {
		if !matchCondition(r[c.Column], c) {
			return false
		}
	}
	return true
}

func matchCondition(v any, c Condition) bool {
	switch c.Op {
	case OpIs:
		if c.Value == nil {
			return v == nil
		}
		b, ok := v.(bool)
		want, _ := c.Value.(bool)
		return ok && b == want
	case OpIn:
		for _, want := range toSlice(c.Value) {
			if v != nil && compare(v, want) == 0 {
				return true
			}
		}
		return false
	case OpLike, OpILike:
		s, ok := v.(string)
		if !ok {
			return false
		}
		return likePattern(formatScalar(c.Value), c.Op == OpILike).MatchString(s)
	}
	if v == nil {
		return c.Op == OpNeq && c.Value != nil
	}
	cmp := compare(v, c.Value)
	switch c.Op {
	case OpEq:
		return cmp == 0
	case OpNeq:
		return cmp != 0
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	}
	return false
}

// compare orders two values numerically when both are numbers (or numeric
// strings) and as strings otherwise.
func compare(a, b any) int {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(formatScalar(a), formatScalar(b))
}

func toFloat(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

var likeCache sync.Map

// likePattern compiles a like pattern where * and % match any run.
func likePattern(pattern string, fold bool) *regexp.Regexp {
	key := pattern
	if fold {
		key = "i:" + pattern
	}
	if re, ok := likeCache.Load(key); ok {
		return re.(*regexp.Regexp)
	}
	var b strings.Builder
	if fold {
		b.WriteString("(?is)")
	} else {
		b.WriteString("(?s)")
	}
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*', '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re := regexp.MustCompile(b.String())
	likeCache.Store(key, re)
	return re
}

func sortRows(rows []Row, order []OrderBy) {
	if len(order) == 0 {
		return
	}
	// ties fall back to id in the direction of the first key
	tieDesc := order[0].Desc
	sort.SliceStable(rows, func(i, j int) bool {
		for _, o := range order {
			c := compareNullable(rows[i][o.Column], rows[j][o.Column])
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		c := compareNullable(rows[i]["id"], rows[j]["id"])
		if tieDesc {
			return c > 0
		}
		return c < 0
	})
}

// compareNullable sorts nil after every value.
func compareNullable(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return compare(a, b)
}
