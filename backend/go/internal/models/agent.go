package models

import "time"

// AgentStatus is the coarse activity state shown on the dashboard.
type AgentStatus string

const (
	AgentIdle     AgentStatus = "idle"
	AgentThinking AgentStatus = "thinking"
	AgentWorking  AgentStatus = "working"
	AgentDone     AgentStatus = "done"
	AgentFailed   AgentStatus = "error"
	// AgentQuest is a sentinel: the agent asks the user for something and a
	// quest is created from the callback.
	AgentQuest AgentStatus = "quest"
)

// ManagerKey is the catalogue key of the orchestrating agent. Its idle and
// thinking transitions delimit a task cycle.
const ManagerKey = "manager"

// IdleTaskText is shown when an agent has nothing to do.
const IdleTaskText = "Idle"

// Valid reports whether s is one of the known statuses.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentIdle, AgentThinking, AgentWorking, AgentDone, AgentFailed, AgentQuest:
		return true
	}
	return false
}

// AgentDef is the static part of an agent: identity and visual attributes.
type AgentDef struct {
	Key   string `json:"key" yaml:"key"`
	ID    int    `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Role  string `json:"role" yaml:"role"`
	Emoji string `json:"emoji" yaml:"emoji"`
	Color string `json:"color" yaml:"color"`
}

// AgentState is one catalogued agent together with its mutable fields.
type AgentState struct {
	AgentDef
	Status           AgentStatus `json:"status"`
	Task             string      `json:"task"`
	Progress         int         `json:"progress"`
	LastStatusChange time.Time   `json:"last_status_change"`
}

// DefaultAgents is the catalogue used when the configuration does not provide one.
func DefaultAgents() []AgentDef {
	return []AgentDef{
		{Key: "manager", ID: 0, Name: "Manager", Role: "Orchestrator", Emoji: "🎯", Color: "#a78bfa"},
		{Key: "researcher", ID: 1, Name: "Researcher", Role: "Web Researcher", Emoji: "🔍", Color: "#38bdf8"},
		{Key: "writer", ID: 2, Name: "Writer", Role: "Content Writer", Emoji: "✍️", Color: "#4ade80"},
		{Key: "coder", ID: 3, Name: "Coder", Role: "Code Engineer", Emoji: "💻", Color: "#facc15"},
		{Key: "qa", ID: 4, Name: "QA", Role: "Quality Engineer", Emoji: "🧪", Color: "#f472b6"},
		{Key: "deployer", ID: 5, Name: "Deployer", Role: "Release Engineer", Emoji: "🚀", Color: "#fb923c"},
		{Key: "analyst", ID: 6, Name: "Analyst", Role: "Data Analyst", Emoji: "📊", Color: "#fb7185"},
	}
}

// AgentStats aggregates the auxiliary records of one agent.
type AgentStats struct {
	Agent         string  `json:"agent"`
	Status        string  `json:"status"`
	Memories      int     `json:"memories"`
	Errors        int     `json:"errors"`
	Feedbacks     int     `json:"feedbacks"`
	AverageRating float64 `json:"average_rating"`
	DiaryEntries  int     `json:"diary_entries"`
}
