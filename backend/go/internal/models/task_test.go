package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduledStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to ScheduledStatus
		ok       bool
	}{
		{ScheduledPending, ScheduledInProgress, true},
		{ScheduledPending, ScheduledCancelled, true},
		{ScheduledPending, ScheduledDone, false},
		{ScheduledInProgress, ScheduledDone, true},
		{ScheduledInProgress, ScheduledPending, true},
		{ScheduledDone, ScheduledInProgress, true},
		{ScheduledDone, ScheduledPending, false},
		{ScheduledCancelled, ScheduledPending, false},
		{ScheduledCancelled, ScheduledCancelled, false},
		{ScheduledDone, ScheduledDone, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to))
		})
	}
}

func TestEnumsValid(t *testing.T) {
	assert.True(t, HorizonWeek.Valid())
	assert.False(t, Horizon("year").Valid())
	assert.True(t, PriorityLater.Valid())
	assert.False(t, Priority("asap").Valid())
	assert.True(t, QuestTopUp.Valid())
	assert.False(t, QuestType("bribe").Valid())
	assert.True(t, AgentQuest.Valid())
	assert.True(t, AgentFailed.Valid())
	assert.False(t, AgentStatus("sleeping").Valid())
}

func TestNewQuestLinkFromData(t *testing.T) {
	n := NewQuest{Data: map[string]any{"task_id": float64(7), "action": ActionUserAction}}
	n.LinkFromData()
	require.NotNil(t, n.TaskID)
	assert.Equal(t, int64(7), *n.TaskID)
	assert.Equal(t, ActionUserAction, n.Action)

	explicit := int64(3)
	n = NewQuest{TaskID: &explicit, Action: ActionReview, Data: map[string]any{"task_id": "9", "action": "x"}}
	n.LinkFromData()
	assert.Equal(t, int64(3), *n.TaskID)
	assert.Equal(t, ActionReview, n.Action)
}

func TestEventFlattensData(t *testing.T) {
	b, err := json.Marshal(TasksUpdateEvent())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"tasks_update"}`, string(b))

	b, err = json.Marshal(AgentUpdateEvent(ManagerKey, AgentThinking, "go"))
	require.NoError(t, err)
	var back Event
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, EventAgentUpdate, back.Type)
	assert.Equal(t, "manager", back.Data["agent"])
	assert.Equal(t, "thinking", back.Data["status"])
}
