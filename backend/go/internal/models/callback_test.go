package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeCallback(t *testing.T, body string) (CallbackPayload, error) {
	t.Helper()
	var p CallbackPayload
	err := json.Unmarshal([]byte(body), &p)
	return p, err
}

func TestCallbackPayloadRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"array", `[{"agent":"coder"}]`},
		{"string", `"coder"`},
		{"missing agent", `{"status":"working"}`},
		{"blank agent", `{"agent":"  "}`},
		{"agent not a string", `{"agent":42}`},
		{"unknown status", `{"agent":"coder","status":"sleeping"}`},
		{"status not a string", `{"agent":"coder","status":3}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeCallback(t, tt.body)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
}

func TestCallbackPayloadProgressCoercion(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *int
	}{
		{"integer", `50`, intPtr(50)},
		{"integral float", `42.0`, intPtr(42)},
		{"fraction", `42.5`, nil},
		{"numeric string", `"75"`, intPtr(75)},
		{"clamped high", `150`, intPtr(100)},
		{"clamped low", `-5`, intPtr(0)},
		{"word", `"half"`, nil},
		{"object", `{"v":1}`, nil},
		{"null", `null`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := decodeCallback(t, `{"agent":"coder","progress":`+tt.raw+`}`)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Progress)
		})
	}
}

func TestCallbackPayloadOptionalFields(t *testing.T) {
	p, err := decodeCallback(t, `{
		"agent": "manager",
		"status": "idle",
		"task": "Write an article",
		"message": "  Done  ",
		"title": "Article",
		"user_actions": "[\"Provide the API key\", {\"text\": \"Enter domain\", \"input_required\": true}]",
		"lessons_learned": "Check sources",
		"xp_reward": "abc",
		"taskId": "17"
	}`)
	require.NoError(t, err)

	assert.Equal(t, "manager", p.Agent)
	assert.True(t, p.IsManager())
	assert.Equal(t, AgentIdle, p.Status)
	require.NotNil(t, p.Task)
	assert.Equal(t, "Write an article", *p.Task)
	assert.Equal(t, "Done", p.Message)
	assert.Len(t, p.UserActions, 2)
	assert.Equal(t, []string{"Check sources"}, p.LessonsLearned)
	assert.Equal(t, DefaultQuestXP, p.XPReward)
	require.NotNil(t, p.TaskID)
	assert.Equal(t, int64(17), *p.TaskID)
}

func TestCallbackPayloadLoosePieces(t *testing.T) {
	p, err := decodeCallback(t, `{
		"agent": "coder",
		"task": 12,
		"message": ["x"],
		"user_actions": "not json",
		"lessons_learned": ["a", 3, " ", "b"],
		"quest_data": "oops",
		"xp_reward": 25
	}`)
	require.NoError(t, err)

	assert.Nil(t, p.Task)
	assert.Empty(t, p.Message)
	assert.Nil(t, p.UserActions)
	assert.Equal(t, []string{"a", "b"}, p.LessonsLearned)
	assert.Nil(t, p.QuestData)
	assert.Equal(t, 25, p.XPReward)
	assert.Nil(t, p.TaskID)
	assert.Equal(t, AgentStatus(""), p.Status)
}

func intPtr(n int) *int { return &n }
