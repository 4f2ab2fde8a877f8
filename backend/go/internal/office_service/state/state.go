package state

import (
	"AgentOffice/backend/go/internal/models"
	"sync"
	"time"
)

// BroadcastFunc receives every event produced by the store.
type BroadcastFunc func(models.Event)

// Options tunes the store; zero values take the defaults.
type Options struct {
	HistoryLimit    int
	SnapshotHistory int
	TaskTextLimit   int
	Now             func() time.Time
}

// Delta is a partial agent update. Empty Status and nil pointers keep the
// current value.
type Delta struct {
	Status   models.AgentStatus
	Task     *string
	Progress *int
	Message  string
}

// Applied is the outcome of a recognised delta.
type Applied struct {
	Agent         models.AgentState
	StatusChanged bool
	Chat          *models.ChatMessage
}

// Store holds the agent catalogue and the in-memory chat history.
type Store struct {
	mu      sync.Mutex
	emitMu  sync.Mutex
	order   []string
	agents  map[string]*models.AgentState
	history []models.ChatMessage
	opts    Options
}

func New(defs []models.AgentDef, opts Options) *Store {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 200
	}
	if opts.SnapshotHistory <= 0 {
		opts.SnapshotHistory = 80
	}
	if opts.TaskTextLimit <= 0 {
		opts.TaskTextLimit = 120
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Store{agents: make(map[string]*models.AgentState, len(defs)), opts: opts}
	now := opts.Now()
	for _, d := range defs {
		if _, dup := s.agents[d.Key]; dup {
			continue
		}
		s.order = append(s.order, d.Key)
		s.agents[d.Key] = &models.AgentState{
			AgentDef:         d,
			Status:           models.AgentIdle,
			Task:             models.IdleTaskText,
			LastStatusChange: now,
		}
	}
	return s
}

// Known reports whether key is in the catalogue.
func (s *Store) Known(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.agents[key]
	return ok
}

// Agent returns a copy of one agent.
func (s *Store) Agent(key string) (models.AgentState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[key]
	if !ok {
		return models.AgentState{}, false
	}
	return *a, true
}

// Snapshot returns all agents in catalogue order.
func (s *Store) Snapshot() []models.AgentState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() []models.AgentState {
	out := make([]models.AgentState, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, *s.agents[k])
	}
	return out
}

// Apply updates one agent and emits the agents snapshot followed by the chat
// message, if any. Unknown keys change nothing and emit nothing.
func (s *Store) Apply(key string, d Delta, broadcast BroadcastFunc) (Applied, bool) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	a, ok := s.agents[key]
	if !ok {
		s.mu.Unlock()
		return Applied{}, false
	}
	now := s.opts.Now()
	var res Applied
	if d.Status != "" && d.Status != a.Status {
		a.Status = d.Status
		a.LastStatusChange = now
		res.StatusChanged = true
	}
	if d.Task != nil {
		a.Task = models.Truncate(*d.Task, s.opts.TaskTextLimit)
	}
	if d.Progress != nil {
		a.Progress = *d.Progress
	}
	if d.Message != "" {
		msg := models.NewAgentMessage(a.AgentDef, d.Message, now)
		s.appendLocked(msg)
		res.Chat = &msg
	}
	res.Agent = *a
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if broadcast != nil {
		broadcast(models.AgentsEvent(snapshot))
		if res.Chat != nil {
			broadcast(models.ChatEvent(*res.Chat))
		}
	}
	return res, true
}

// AddUserMessage appends a message typed by the user.
func (s *Store) AddUserMessage(content string) models.ChatMessage {
	msg := models.NewUserMessage(content, s.opts.Now())
	s.AppendHistory(msg)
	return msg
}

// AddSystemMessage appends a message raised by the backend.
func (s *Store) AddSystemMessage(content string) models.ChatMessage {
	msg := models.NewSystemMessage(content, s.opts.Now())
	s.AppendHistory(msg)
	return msg
}

// AddAgentMessage appends a message on behalf of a catalogued agent.
func (s *Store) AddAgentMessage(key, content string) (models.ChatMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[key]
	if !ok {
		return models.ChatMessage{}, false
	}
	msg := models.NewAgentMessage(a.AgentDef, content, s.opts.Now())
	s.appendLocked(msg)
	return msg, true
}

// AppendHistory adds msg, evicting the oldest entries past the cap.
func (s *Store) AppendHistory(msg models.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(msg)
}

func (s *Store) appendLocked(msg models.ChatMessage) {
	s.history = append(s.history, msg)
	if over := len(s.history) - s.opts.HistoryLimit; over > 0 {
		s.history = append(s.history[:0:0], s.history[over:]...)
	}
}

// History returns the last n messages, oldest first; n <= 0 returns all.
func (s *Store) History(n int) []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := 0
	if n > 0 && len(s.history) > n {
		start = len(s.history) - n
	}
	return append([]models.ChatMessage(nil), s.history[start:]...)
}

// LoadHistory seeds the history, e.g. from persisted messages at startup.
func (s *Store) LoadHistory(msgs []models.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	for _, m := range msgs {
		s.appendLocked(m)
	}
}

// InitEvent is the snapshot a new real-time client receives first.
func (s *Store) InitEvent() models.Event {
	agents := s.Snapshot()
	return models.InitEvent(agents, s.History(s.opts.SnapshotHistory))
}

// Reset puts every agent back to idle.
func (s *Store) Reset() []models.AgentState {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.opts.Now()
	for _, a := range s.agents {
		if a.Status != models.AgentIdle {
			a.LastStatusChange = now
		}
		a.Status = models.AgentIdle
		a.Task = models.IdleTaskText
		a.Progress = 0
	}
	return s.snapshotLocked()
}

// ActiveCount counts agents that are not idle.
func (s *Store) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.agents {
		if a.Status != models.AgentIdle {
			n++
		}
	}
	return n
}

// Stuck lists agents working or thinking since before now-after.
func (s *Store) Stuck(after time.Duration) []models.AgentState {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.opts.Now().Add(-after)
	var out []models.AgentState
	for _, k := range s.order {
		a := s.agents[k]
		if (a.Status == models.AgentWorking || a.Status == models.AgentThinking) && a.LastStatusChange.Before(cutoff) {
			out = append(out, *a)
		}
	}
	return out
}
