package models

import "encoding/json"

// EventType discriminates dashboard events.
type EventType string

const (
	EventInit          EventType = "init"
	EventAgents        EventType = "agents"
	EventAgentUpdate   EventType = "agent_update"
	EventChat          EventType = "chat"
	EventTasksUpdate   EventType = "tasks_update"
	EventIdeasUpdate   EventType = "ideas_update"
	EventQuestCreated  EventType = "quest_created"
	EventTaskCompleted EventType = "task_completed"
)

// Event is a JSON object with a "type" discriminator. The remaining fields are
// flattened next to it on the wire.
type Event struct {
	Type EventType
	Data map[string]any
}

// MarshalJSON flattens Data and Type into one object.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Data)+1)
	for k, v := range e.Data {
		out[k] = v
	}
	out["type"] = e.Type
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON; used by clients and tests.
func (e *Event) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	t, _ := raw["type"].(string)
	delete(raw, "type")
	e.Type = EventType(t)
	e.Data = raw
	return nil
}

// InitEvent is pushed to a client right after it connects.
func InitEvent(agents []AgentState, history []ChatMessage) Event {
	if history == nil {
		history = []ChatMessage{}
	}
	return Event{Type: EventInit, Data: map[string]any{"agents": agents, "history": history}}
}

// AgentsEvent carries the full agent snapshot.
func AgentsEvent(agents []AgentState) Event {
	return Event{Type: EventAgents, Data: map[string]any{"agents": agents}}
}

// AgentUpdateEvent announces a single agent change without a full snapshot.
func AgentUpdateEvent(agent string, status AgentStatus, message string) Event {
	return Event{Type: EventAgentUpdate, Data: map[string]any{
		"agent":   agent,
		"status":  status,
		"message": message,
	}}
}

// ChatEvent carries one chat message.
func ChatEvent(msg ChatMessage) Event {
	return Event{Type: EventChat, Data: map[string]any{"message": msg}}
}

// TasksUpdateEvent tells clients to refetch task lists.
func TasksUpdateEvent() Event {
	return Event{Type: EventTasksUpdate, Data: map[string]any{}}
}

// IdeasUpdateEvent carries the current idea board.
func IdeasUpdateEvent(ideas []Idea) Event {
	if ideas == nil {
		ideas = []Idea{}
	}
	return Event{Type: EventIdeasUpdate, Data: map[string]any{"ideas": ideas}}
}

// QuestCreatedEvent announces a new quest.
func QuestCreatedEvent(q Quest) Event {
	return Event{Type: EventQuestCreated, Data: map[string]any{"quest": q}}
}

// TaskCompletedEvent announces that a scheduled task received its result.
func TaskCompletedEvent(task ScheduledTask, resultPreview string) Event {
	agent := task.AssignedAgent
	if agent == "" {
		agent = ManagerKey
	}
	return Event{Type: EventTaskCompleted, Data: map[string]any{
		"task_id":        task.ID,
		"title":          task.Title,
		"result_preview": resultPreview,
		"assigned_agent": agent,
	}}
}
