package rowstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter(map[string]string{
		"agent":      "coder",
		"created_at": "lt.2024-06-01T00:00:00.000000Z",
		"status":     "in.(pending,in_progress)",
		"reflection": "is.null",
		"order":      "created_at.desc,id",
		"limit":      "20",
		"select":     "id,agent",
	})
	require.NoError(t, err)

	assert.Equal(t, []Condition{
		{Column: "agent", Op: OpEq, Value: "coder"},
		{Column: "created_at", Op: OpLt, Value: "2024-06-01T00:00:00.000000Z"},
		{Column: "reflection", Op: OpIs, Value: nil},
		{Column: "status", Op: OpIn, Value: []any{"pending", "in_progress"}},
	}, f.Conditions)
	assert.Equal(t, []OrderBy{{Column: "created_at", Desc: true}, {Column: "id"}}, f.Order)
	assert.Equal(t, 20, f.Limit)
	assert.Equal(t, []string{"id", "agent"}, f.Columns)
}

func TestParseFilterRejectsGarbage(t *testing.T) {
	for _, params := range []map[string]string{
		{"limit": "many"},
		{"order": "id.sideways"},
		{"status": "in.pending"},
		{"flag": "is.maybe"},
	} {
		_, err := ParseFilter(params)
		assert.ErrorIs(t, err, ErrBadFilter, "%v", params)
	}
}

func TestFilterQuery(t *testing.T) {
	q := Where("agent", "qa").
		Gt("importance", 5).
		Like("content", "%deploy%").
		In("status", "pending", "done").
		IsNull("lesson").
		OrderDesc("created_at").
		WithLimit(10).
		Query()

	assert.Equal(t, "eq.qa", q.Get("agent"))
	assert.Equal(t, "gt.5", q.Get("importance"))
	assert.Equal(t, "like.*deploy*", q.Get("content"))
	assert.Equal(t, "in.(pending,done)", q.Get("status"))
	assert.Equal(t, "is.null", q.Get("lesson"))
	assert.Equal(t, "created_at.desc", q.Get("order"))
	assert.Equal(t, "10", q.Get("limit"))
}

func TestFilterBuilderDoesNotAlias(t *testing.T) {
	base := Where("agent", "qa")
	a := base.Eq("status", "done")
	b := base.Eq("status", "error")
	assert.Len(t, base.Conditions, 1)
	assert.Equal(t, "done", a.Conditions[1].Value)
	assert.Equal(t, "error", b.Conditions[1].Value)
}
