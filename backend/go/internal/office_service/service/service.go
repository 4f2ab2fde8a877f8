package service

import (
	"AgentOffice/backend/go/internal/config"
	"AgentOffice/backend/go/internal/llm"
	"AgentOffice/backend/go/internal/metrics"
	"AgentOffice/backend/go/internal/models"
	"AgentOffice/backend/go/internal/office_service/notifier"
	"AgentOffice/backend/go/internal/office_service/state"
	"AgentOffice/backend/go/internal/office_service/store"
	"AgentOffice/backend/go/pkg/logger"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrStoreWrite        = errors.New("store write failed")
	// ErrWorkflowUnavailable is returned when a task cannot be dispatched
	// because no workflow engine is configured.
	ErrWorkflowUnavailable = errors.New("workflow engine not configured")
)

// MaxTaskContent bounds a task submitted by the user.
const MaxTaskContent = 5000

// Dispatcher hands tasks to the workflow engine.
type Dispatcher interface {
	Configured() bool
	Dispatch(ctx context.Context, task string, taskID int64) error
}

// Deps are the collaborators of the service. Notifier, Dispatcher, LLM,
// Metrics and ClientCount may be nil.
type Deps struct {
	State       *state.Store
	Store       *store.Store
	Broadcast   state.BroadcastFunc
	Notifier    *notifier.Notifier
	Dispatcher  Dispatcher
	LLM         llm.LLM
	Metrics     *metrics.Metrics
	Log         *logger.Logger
	ClientCount func() int
}

// OfficeService is the lifecycle engine of the dashboard. It owns the cycle
// tracker and every background job it starts.
type OfficeService struct {
	state      *state.Store
	store      *store.Store
	broadcastF state.BroadcastFunc
	notifier   *notifier.Notifier
	dispatcher Dispatcher
	llm        llm.LLM
	metrics    *metrics.Metrics
	log        *logger.Logger
	clients    func() int

	cfg     config.LifecycleConfig
	version string
	now     func() time.Time
	started time.Time

	cycles *cycles

	phase2Mu sync.Mutex
	phase2   map[int64]bool

	pending sync.WaitGroup
}

// NewOfficeService wires the service. cfg is expected to carry defaults.
func NewOfficeService(deps Deps, cfg config.LifecycleConfig, version string) *OfficeService {
	log := deps.Log
	if log == nil {
		log = logger.Discard()
	}
	broadcast := deps.Broadcast
	if broadcast == nil {
		broadcast = func(models.Event) {}
	}
	clients := deps.ClientCount
	if clients == nil {
		clients = func() int { return 0 }
	}
	if cfg.MaxActionQuests <= 0 {
		cfg.MaxActionQuests = 3
	}
	if len(cfg.ActionKeywords) == 0 {
		cfg.ActionKeywords = config.DefaultActionKeywords
	}
	if len(cfg.ClarificationKeywords) == 0 {
		cfg.ClarificationKeywords = config.DefaultClarificationKeywords
	}
	s := &OfficeService{
		state:      deps.State,
		store:      deps.Store,
		broadcastF: broadcast,
		notifier:   deps.Notifier,
		dispatcher: deps.Dispatcher,
		llm:        deps.LLM,
		metrics:    deps.Metrics,
		log:        log.Named("office_service"),
		clients:    clients,
		cfg:        cfg,
		version:    version,
		now:        time.Now,
		cycles:     newCycles(),
		phase2:     make(map[int64]bool),
	}
	s.started = s.now()
	return s
}

// WithClock replaces the time source; used by tests.
func (s *OfficeService) WithClock(now func() time.Time) *OfficeService {
	s.now = now
	s.started = now()
	return s
}

// State exposes the agent state store to the transport layer.
func (s *OfficeService) State() *state.Store {
	return s.state
}

// Wait blocks until every background job started so far has finished.
func (s *OfficeService) Wait() {
	s.pending.Wait()
	s.store.Gateway().Wait()
	s.notifier.Wait()
}

// spawn runs fn in the background, detached from the caller's cancellation.
// A panic in fn is logged and contained.
func (s *OfficeService) spawn(ctx context.Context, job string, fn func(context.Context)) {
	ctx = context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.WithField("job", job).WithField("panic", fmt.Sprint(r)).Error("background job panicked")
			}
		}()
		fn(ctx)
	}()
}

func (s *OfficeService) broadcast(e models.Event) {
	s.broadcastF(e)
}

// systemChat appends a backend message to the chat, broadcasts and persists it.
func (s *OfficeService) systemChat(ctx context.Context, content string) {
	msg := s.state.AddSystemMessage(content)
	s.broadcast(models.ChatEvent(msg))
	s.store.SaveChatMessage(ctx, msg)
}

// agentChat is systemChat on behalf of a catalogued agent.
func (s *OfficeService) agentChat(ctx context.Context, agent, content string) {
	msg, ok := s.state.AddAgentMessage(agent, content)
	if !ok {
		s.systemChat(ctx, content)
		return
	}
	s.broadcast(models.ChatEvent(msg))
	s.store.SaveChatMessage(ctx, msg)
}

func (s *OfficeService) requireStore() error {
	if !s.store.Available() {
		return ErrStoreUnavailable
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
