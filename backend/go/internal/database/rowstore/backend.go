package rowstore

import (
	"context"
	"errors"
)

// ErrUnfilteredWrite is returned when an update or delete has no condition.
var ErrUnfilteredWrite = errors.New("update and delete require at least one condition")

// Backend is a row store. Implementations return errors; the Gateway turns
// them into empty results.
type Backend interface {
	Insert(ctx context.Context, table string, row Row) error
	InsertReturning(ctx context.Context, table string, row Row) (Row, error)
	Select(ctx context.Context, table string, f Filter) ([]Row, error)
	// Update sets fields on every matching row and returns how many matched.
	Update(ctx context.Context, table string, f Filter, fields Row) (int, error)
	// Upsert merges row into the record matching it on conflict columns,
	// inserting when none exists.
	Upsert(ctx context.Context, table string, row Row, conflict []string) (Row, error)
	Delete(ctx context.Context, table string, f Filter) (int, error)
	Ping(ctx context.Context) error
}

func copyRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func project(r Row, columns []string) Row {
	if len(columns) == 0 || (len(columns) == 1 && columns[0] == "*") {
		return copyRow(r)
	}
	out := make(Row, len(columns))
	for _, c := range columns {
		if v, ok := r[c]; ok {
			out[c] = v
		}
	}
	return out
}
