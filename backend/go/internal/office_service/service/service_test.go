package service

import (
	"AgentOffice/backend/go/internal/config"
	"AgentOffice/backend/go/internal/database/rowstore"
	"AgentOffice/backend/go/internal/llm"
	"AgentOffice/backend/go/internal/models"
	"AgentOffice/backend/go/internal/office_service/state"
	"AgentOffice/backend/go/internal/office_service/store"
	"AgentOffice/backend/go/pkg/logger"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	events  []models.Event
	onEvent func(models.Event)
}

func (r *recorder) broadcast(e models.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	hook := r.onEvent
	r.mu.Unlock()
	if hook != nil {
		hook(e)
	}
}

func (r *recorder) ofType(t models.EventType) []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type dispatchCall struct {
	task   string
	taskID int64
}

type fakeDispatcher struct {
	mu       sync.Mutex
	disabled bool
	err      error
	calls    []dispatchCall
}

func (d *fakeDispatcher) Configured() bool { return !d.disabled }

func (d *fakeDispatcher) Dispatch(_ context.Context, task string, taskID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dispatchCall{task: task, taskID: taskID})
	return d.err
}

func (d *fakeDispatcher) made() []dispatchCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dispatchCall(nil), d.calls...)
}

type fakeLLM struct {
	reply string
	err   error
}

func (f fakeLLM) Complete(context.Context, llm.CompletionRequest) (string, error) {
	return f.reply, f.err
}

func (fakeLLM) Name() string { return "fake" }

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type fixture struct {
	svc        *OfficeService
	store      *store.Store
	state      *state.Store
	events     *recorder
	dispatcher *fakeDispatcher
}

func newFixture(t *testing.T, opts ...func(*Deps)) *fixture {
	t.Helper()
	return newFixtureWithBackend(t, rowstore.NewMemoryBackend(), opts...)
}

func newFixtureWithBackend(t *testing.T, backend rowstore.Backend, opts ...func(*Deps)) *fixture {
	t.Helper()
	gw := rowstore.NewGateway(backend, time.Second, logger.Discard(), nil)
	f := &fixture{
		store:      store.New(gw),
		state:      state.New(models.DefaultAgents(), state.Options{}),
		events:     &recorder{},
		dispatcher: &fakeDispatcher{},
	}
	deps := Deps{
		State:      f.state,
		Store:      f.store,
		Broadcast:  f.events.broadcast,
		Dispatcher: f.dispatcher,
		Log:        logger.Discard(),
	}
	for _, o := range opts {
		o(&deps)
	}
	f.svc = NewOfficeService(deps, config.LifecycleConfig{}, "test")
	t.Cleanup(f.svc.Wait)
	return f
}

func (f *fixture) callback(t *testing.T, body string) bool {
	t.Helper()
	var p models.CallbackPayload
	require.NoError(t, json.Unmarshal([]byte(body), &p))
	return f.svc.HandleCallback(context.Background(), p)
}

func questsWithAction(qs []models.Quest, action string) []models.Quest {
	var out []models.Quest
	for _, q := range qs {
		if q.Action == action {
			out = append(out, q)
		}
	}
	return out
}

func TestScheduledTaskFullCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.CreateScheduledTask(ctx, "Write an article about Go", "", "")
	require.NoError(t, err)
	assert.Equal(t, models.HorizonNow, task.Horizon)
	assert.Equal(t, models.PriorityNormal, task.Priority)

	pipelineID, err := f.svc.RunScheduledTask(ctx, task.ID)
	require.NoError(t, err)
	f.svc.Wait()

	calls := f.dispatcher.made()
	require.Len(t, calls, 1)
	assert.Equal(t, pipelineID, calls[0].taskID)
	assert.Equal(t, "Write an article about Go", calls[0].task)

	running, ok := f.store.GetScheduled(ctx, task.ID)
	require.True(t, ok)
	assert.Equal(t, models.ScheduledInProgress, running.Status)
	require.NotNil(t, running.LinkedTaskID)
	assert.Equal(t, pipelineID, *running.LinkedTaskID)

	assert.True(t, f.callback(t, `{"agent":"manager","status":"thinking","message":"Plan: research then write","taskId":`+itoa(pipelineID)+`}`))
	assert.True(t, f.callback(t, `{"agent":"researcher","status":"working","task":"Collecting sources","progress":"40"}`))
	assert.True(t, f.callback(t, `{"agent":"researcher","status":"done","message":"notes collected"}`))
	assert.True(t, f.callback(t, `{"agent":"writer","status":"done","message":"draft ready"}`))
	assert.True(t, f.callback(t, `{"agent":"manager","status":"idle","message":"Article finished","user_actions":["Provide the publication date","Read the draft"]}`))
	f.svc.Wait()

	done, ok := f.store.GetScheduled(ctx, task.ID)
	require.True(t, ok)
	assert.Equal(t, models.ScheduledDone, done.Status)
	assert.Equal(t, models.ReviewPending, done.ReviewStatus)
	result, ok := models.ParseResult(done.Result)
	require.True(t, ok)
	assert.Equal(t, "Write an article about Go", result.Title)
	assert.Equal(t, "Article finished", result.Summary)
	require.Len(t, result.Steps, 2)

	pipeline, err := f.svc.PipelineTask(ctx, pipelineID)
	require.NoError(t, err)
	assert.Equal(t, models.PipelineDone, pipeline.Status)

	quests := f.store.ListQuests(ctx, models.QuestPending, 50)
	review := questsWithAction(quests, models.ActionReview)
	require.Len(t, review, 1)
	assert.Equal(t, "Проверь: Write an article about Go", review[0].Title)
	assert.Equal(t, models.QuestApprove, review[0].QuestType)
	assert.Equal(t, 15, review[0].XPReward)
	require.NotNil(t, review[0].TaskID)
	assert.Equal(t, task.ID, *review[0].TaskID)

	actions := questsWithAction(quests, models.ActionUserAction)
	require.Len(t, actions, 1)
	assert.Equal(t, "Provide the publication date", actions[0].Title)
	assert.Equal(t, true, actions[0].Data["input_required"])

	assert.Len(t, f.events.ofType(models.EventTaskCompleted), 1)
	assert.Len(t, f.events.ofType(models.EventQuestCreated), 2)

	researcher, _ := f.state.Agent("researcher")
	assert.Equal(t, models.AgentDone, researcher.Status)
	assert.Zero(t, f.svc.cycles.size())
}

func TestResultLinkedBeforeQuestAnnounced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.CreateScheduledTask(ctx, "Deploy landing page", models.HorizonWeek, models.PriorityUrgent)
	require.NoError(t, err)
	pipelineID, err := f.svc.RunScheduledTask(ctx, task.ID)
	require.NoError(t, err)
	f.svc.Wait()

	var (
		mu     sync.Mutex
		seen   []models.ScheduledTask
		review models.ReviewStatus
	)
	f.events.onEvent = func(e models.Event) {
		if e.Type != models.EventQuestCreated {
			return
		}
		st, _ := f.store.GetScheduled(ctx, task.ID)
		mu.Lock()
		seen = append(seen, st)
		review = st.ReviewStatus
		mu.Unlock()
	}

	f.callback(t, `{"agent":"coder","status":"done","message":"page built","taskId":`+itoa(pipelineID)+`}`)
	f.callback(t, `{"agent":"manager","status":"idle","message":"Live","taskId":`+itoa(pipelineID)+`}`)
	f.svc.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.Equal(t, models.ReviewPending, review)
	for _, st := range seen {
		assert.Equal(t, models.ScheduledDone, st.Status)
		assert.NotEmpty(t, st.Result)
	}
}

func TestSubmittedTaskWithoutScheduledTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SubmitTask(ctx, "  Summarise the news  "))
	f.svc.Wait()

	history := f.state.History(10)
	require.NotEmpty(t, history)
	assert.Equal(t, models.RoleUser, history[0].Role)
	assert.Equal(t, "Summarise the news", history[0].Content)

	tasks := f.svc.ListPipelineTasks(ctx, 10)
	require.Len(t, tasks, 1)
	assert.Equal(t, models.PipelineProcessing, tasks[0].Status)

	f.callback(t, `{"agent":"manager","status":"idle"}`)
	f.svc.Wait()

	tasks = f.svc.ListPipelineTasks(ctx, 10)
	assert.Equal(t, models.PipelineDone, tasks[0].Status)

	review := questsWithAction(f.store.ListQuests(ctx, "", 50), models.ActionReview)
	require.Len(t, review, 1)
	assert.Nil(t, review[0].TaskID)
	assert.Equal(t, "Проверь: Summarise the news", review[0].Title)
	assert.Empty(t, f.events.ofType(models.EventTaskCompleted))
}

func TestSubmitTaskValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.SubmitTask(ctx, "   "), ErrInvalidInput)
	assert.ErrorIs(t, f.svc.SubmitTask(ctx, strings.Repeat("я", MaxTaskContent+1)), ErrInvalidInput)
	assert.Zero(t, f.events.count())
}

func TestDuplicateWorkerResultsCollapse(t *testing.T) {
	f := newFixture(t)
	f.svc.cycles.begin(7)

	f.callback(t, `{"agent":"writer","status":"done","message":"draft ready","taskId":7}`)
	f.callback(t, `{"agent":"writer","status":"done","message":"draft ready","taskId":7}`)
	f.callback(t, `{"agent":"qa","status":"done","message":"draft ready","taskId":7}`)
	f.callback(t, `{"agent":"writer","status":"done","taskId":7}`)

	results := f.svc.cycles.results(7)
	require.Len(t, results, 2)
	assert.Equal(t, "writer", results[0].Agent)
	assert.Equal(t, "qa", results[1].Agent)
}

func TestManagerThinkingResetsResults(t *testing.T) {
	f := newFixture(t)
	f.svc.cycles.begin(3)

	f.callback(t, `{"agent":"writer","status":"done","message":"first attempt"}`)
	require.Len(t, f.svc.cycles.results(3), 1)

	f.callback(t, `{"agent":"manager","status":"thinking","message":"Retrying"}`)
	assert.Empty(t, f.svc.cycles.results(3))

	f.callback(t, `{"agent":"writer","status":"done","message":"second attempt"}`)
	results := f.svc.cycles.results(3)
	require.Len(t, results, 1)
	assert.Equal(t, "second attempt", results[0].Result)
}

func TestFractionalProgressKeepsPrevious(t *testing.T) {
	f := newFixture(t)

	assert.True(t, f.callback(t, `{"agent":"writer","status":"working","task":"Drafting","progress":40}`))
	assert.True(t, f.callback(t, `{"agent":"writer","status":"working","progress":42.5}`))
	f.svc.Wait()

	writer, _ := f.state.Agent("writer")
	assert.Equal(t, 40, writer.Progress)
	assert.Equal(t, "Drafting", writer.Task)
}

func TestUnknownAgentIsIgnored(t *testing.T) {
	f := newFixture(t)
	before := f.state.Snapshot()

	assert.False(t, f.callback(t, `{"agent":"intruder","status":"working","message":"hello"}`))
	f.svc.Wait()

	assert.Equal(t, before, f.state.Snapshot())
	assert.Zero(t, f.events.count())
	assert.Empty(t, f.store.ListDiary(context.Background(), "", 10))
}

func TestCallbackSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.callback(t, `{"agent":"qa","status":"error","message":"tests failed","error_type":"test_failure","error_detail":"3 of 10 failed","lessons_learned":["run tests before review"],"taskId":5}`)
	f.callback(t, `{"agent":"analyst","status":"quest","task":"Share the sales CSV","message":"Need data","quest_type":"upload","xp_reward":"25"}`)
	f.svc.Wait()

	diary := f.store.ListDiary(ctx, "qa", 10)
	require.Len(t, diary, 1)
	assert.Equal(t, "tests failed", diary[0].Content)

	lessons := f.store.ListMemory(ctx, "qa", models.MemoryLesson, 10)
	require.Len(t, lessons, 1)
	assert.Equal(t, "run tests before review", lessons[0].Content)
	assert.Equal(t, 6, lessons[0].Importance)
	require.NotNil(t, lessons[0].SourceTaskID)
	assert.Equal(t, int64(5), *lessons[0].SourceTaskID)

	errs := f.store.ListErrors(ctx, "qa", 10)
	require.Len(t, errs, 1)
	assert.Equal(t, "test_failure", errs[0].ErrorType)
	assert.Empty(t, errs[0].Reflection)

	quests := f.store.ListQuests(ctx, "", 10)
	require.Len(t, quests, 1)
	assert.Equal(t, "Share the sales CSV", quests[0].Title)
	assert.Equal(t, models.QuestInfo, quests[0].QuestType)
	assert.Equal(t, 25, quests[0].XPReward)
	assert.Equal(t, "analyst", quests[0].Agent)

	chat := f.events.ofType(models.EventChat)
	assert.Len(t, chat, 2)
}

func TestAutomaticReflection(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.LLM = fakeLLM{reply: "REFLECTION: the deploy key expired\nLESSON: check key expiry first"}
	})
	ctx := context.Background()

	f.callback(t, `{"agent":"deployer","status":"error","error_type":"auth","error_detail":"401 from registry"}`)
	f.svc.Wait()

	errs := f.store.ListErrors(ctx, "deployer", 10)
	require.Len(t, errs, 1)
	assert.Equal(t, "the deploy key expired", errs[0].Reflection)
	assert.Equal(t, "check key expiry first", errs[0].Lesson)

	lessons := f.store.ListMemory(ctx, "deployer", models.MemoryLesson, 10)
	require.Len(t, lessons, 1)
	assert.Equal(t, 7, lessons[0].Importance)
	assert.Equal(t, []string{"error_reflection", "auth"}, lessons[0].Tags)

	again, err := f.svc.ReflectError(ctx, errs[0].ID)
	require.NoError(t, err)
	assert.True(t, again.AlreadyReflected)
}

func TestReflectErrorWithoutLLM(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	saved, err := f.svc.SaveError(ctx, models.AgentError{Agent: "coder", ErrorType: "build", ErrorDetail: "missing import"})
	require.NoError(t, err)
	_, err = f.svc.ReflectError(ctx, saved.ID)
	assert.ErrorIs(t, err, llm.ErrNotConfigured)
	_, err = f.svc.ReflectError(ctx, saved.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParseReflection(t *testing.T) {
	r := parseReflection("Intro\nreflection: timeout talking to API\nLesson: add retries")
	assert.Equal(t, "timeout talking to API", r.Reflection)
	assert.Equal(t, "add retries", r.Lesson)

	r = parseReflection("  just prose  ")
	assert.Equal(t, "just prose", r.Reflection)
	assert.Equal(t, noLessonText, r.Lesson)
}

func TestStaleTaskSweep(t *testing.T) {
	clock := &manualClock{t: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
	f := newFixture(t)
	f.store.WithClock(clock.now)
	ctx := context.Background()

	old, ok := f.store.CreatePipelineTask(ctx, "old task")
	require.True(t, ok)
	f.svc.cycles.begin(old.ID)
	clock.set(clock.now().Add(6 * time.Minute))
	fresh, ok := f.store.CreatePipelineTask(ctx, "fresh task")
	require.True(t, ok)

	marked := f.svc.SweepStaleTasks(ctx, clock.now().Add(5*time.Minute))
	assert.Equal(t, 1, marked)

	got, _ := f.store.GetPipelineTask(ctx, old.ID)
	assert.Equal(t, models.PipelineError, got.Status)
	assert.Contains(t, got.Summary, "Timeout")
	got, _ = f.store.GetPipelineTask(ctx, fresh.ID)
	assert.Equal(t, models.PipelineProcessing, got.Status)
	assert.Empty(t, f.svc.cycles.results(old.ID))
	assert.Len(t, f.events.ofType(models.EventTasksUpdate), 1)

	assert.Zero(t, f.svc.SweepStaleTasks(ctx, clock.now().Add(5*time.Minute)))
}

func TestTimedOutTaskStaysTerminal(t *testing.T) {
	clock := &manualClock{t: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
	f := newFixture(t)
	f.store.WithClock(clock.now)
	ctx := context.Background()

	task, ok := f.store.CreatePipelineTask(ctx, "slow task")
	require.True(t, ok)
	f.svc.cycles.begin(task.ID)
	require.Equal(t, 1, f.svc.SweepStaleTasks(ctx, clock.now().Add(11*time.Minute)))

	f.callback(t, `{"agent":"manager","status":"idle","message":"Finished late","taskId":`+itoa(task.ID)+`}`)
	f.svc.Wait()

	got, ok := f.store.GetPipelineTask(ctx, task.ID)
	require.True(t, ok)
	assert.Equal(t, models.PipelineError, got.Status)
	assert.Contains(t, got.Summary, "Timeout")
}

func TestPhase2ForwardedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.CreateScheduledTask(ctx, "Launch shop", "", "")
	require.NoError(t, err)
	q1, err := f.svc.CreateQuest(ctx, models.NewQuest{
		Title: "Provide API key", TaskID: &task.ID, Action: models.ActionUserAction,
		Data: map[string]any{"input_label": "API key"},
	})
	require.NoError(t, err)
	q2, err := f.svc.CreateQuest(ctx, models.NewQuest{
		Title: "Enter domain", TaskID: &task.ID, Action: models.ActionUserAction,
	})
	require.NoError(t, err)
	assert.Equal(t, models.QuestInfo, q2.QuestType)
	assert.Equal(t, models.DefaultQuestXP, q2.XPReward)

	require.NoError(t, f.svc.CompleteQuest(ctx, q1.ID, "sk-123"))
	f.svc.Wait()
	assert.Empty(t, f.dispatcher.made())

	require.NoError(t, f.svc.CompleteQuest(ctx, q2.ID, ""))
	f.svc.Wait()

	calls := f.dispatcher.made()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].task, "Оригинальная задача: Launch shop")
	assert.Contains(t, calls[0].task, "- API key: sk-123")
	assert.Contains(t, calls[0].task, "- Enter domain: подтверждено")

	got, _ := f.store.GetScheduled(ctx, task.ID)
	assert.Equal(t, models.ScheduledInProgress, got.Status)
	require.NotNil(t, got.LinkedTaskID)
	assert.Equal(t, calls[0].taskID, *got.LinkedTaskID)

	f.svc.checkPhase2(ctx, task.ID)
	f.svc.Wait()
	assert.Len(t, f.dispatcher.made(), 1)

	assert.ErrorIs(t, f.svc.CompleteQuest(ctx, q1.ID, "again"), ErrInvalidTransition)
	assert.ErrorIs(t, f.svc.CompleteQuest(ctx, 999, "x"), ErrNotFound)
}

func TestPhase2RetriedOnceWorkflowConfigured(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.disabled = true
	ctx := context.Background()

	task, err := f.svc.CreateScheduledTask(ctx, "Launch shop", "", "")
	require.NoError(t, err)
	q, err := f.svc.CreateQuest(ctx, models.NewQuest{
		Title: "Enter domain", TaskID: &task.ID, Action: models.ActionUserAction,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.CompleteQuest(ctx, q.ID, "shop.example"))
	f.svc.Wait()
	assert.Empty(t, f.dispatcher.made())

	f.dispatcher.disabled = false
	f.svc.checkPhase2(ctx, task.ID)
	f.svc.Wait()

	calls := f.dispatcher.made()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].task, "- Enter domain: shop.example")
	got, _ := f.store.GetScheduled(ctx, task.ID)
	require.NotNil(t, got.LinkedTaskID)
	assert.Equal(t, calls[0].taskID, *got.LinkedTaskID)
}

func TestQuestionSpawnsClarification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.CreateScheduledTask(ctx, "Configure payments", "", "")
	require.NoError(t, err)
	q, err := f.svc.CreateQuest(ctx, models.NewQuest{
		Title: "Provide Stripe key", TaskID: &task.ID, Action: models.ActionUserAction,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.CompleteQuest(ctx, q.ID, "Что такое Stripe key?"))
	f.svc.Wait()

	assert.Empty(t, f.dispatcher.made())
	pending := f.store.ListQuests(ctx, models.QuestPending, 10)
	require.Len(t, pending, 1)
	assert.Equal(t, "Уточнение: Provide Stripe key", pending[0].Title)
	assert.Equal(t, 5, pending[0].XPReward)
	assert.Equal(t, true, pending[0].Data["is_clarification"])
	require.NotNil(t, pending[0].TaskID)
	assert.Equal(t, task.ID, *pending[0].TaskID)

	original, _ := f.store.GetQuest(ctx, q.ID)
	assert.Equal(t, models.QuestCompleted, original.Status)
}

func TestDispatchFailure(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.err = errors.New("connection refused")
	ctx := context.Background()

	require.NoError(t, f.svc.SubmitTask(ctx, "Build a bot"))
	f.svc.Wait()

	tasks := f.svc.ListPipelineTasks(ctx, 10)
	require.Len(t, tasks, 1)
	assert.Equal(t, models.PipelineError, tasks[0].Status)
	assert.Contains(t, tasks[0].Summary, "workflow engine error: connection refused")
	assert.Zero(t, f.svc.cycles.size())

	history := f.state.History(10)
	last := history[len(history)-1]
	assert.Equal(t, models.RoleSystem, last.Role)
	assert.Contains(t, last.Content, "Ошибка отправки задачи в workflow")
}

func TestWorkflowNotConfigured(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.disabled = true
	ctx := context.Background()

	require.NoError(t, f.svc.SubmitTask(ctx, "Build a bot"))
	f.svc.Wait()

	assert.Empty(t, f.svc.ListPipelineTasks(ctx, 10))
	history := f.state.History(10)
	assert.Equal(t, workflowMissingText, history[len(history)-1].Content)

	task, err := f.svc.CreateScheduledTask(ctx, "Later", "", "")
	require.NoError(t, err)
	_, err = f.svc.RunScheduledTask(ctx, task.ID)
	assert.ErrorIs(t, err, ErrWorkflowUnavailable)
}

func TestDegradedModeKeepsLiveState(t *testing.T) {
	f := newFixtureWithBackend(t, nil)
	ctx := context.Background()

	assert.True(t, f.callback(t, `{"agent":"writer","status":"working","task":"Drafting","progress":150}`))
	writer, _ := f.state.Agent("writer")
	assert.Equal(t, models.AgentWorking, writer.Status)
	assert.Equal(t, 100, writer.Progress)

	require.NoError(t, f.svc.SubmitTask(ctx, "Do it anyway"))
	f.callback(t, `{"agent":"manager","status":"idle","message":"ok"}`)
	f.svc.Wait()
	assert.Len(t, f.dispatcher.made(), 1)
	assert.Zero(t, f.dispatcher.made()[0].taskID)

	_, err := f.svc.CreateScheduledTask(ctx, "t", "", "")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	_, err = f.svc.CreateQuest(ctx, models.NewQuest{Title: "q"})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	tasks, err := f.svc.ListScheduledTasks(ctx, "", "", 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	report := f.svc.Health(ctx)
	assert.False(t, report.StoreConnected)
	assert.True(t, report.WorkflowConfigured)
}

func TestScheduledStatusChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.CreateScheduledTask(ctx, "Plan week", models.HorizonWeek, models.PriorityLater)
	require.NoError(t, err)
	_, err = f.svc.CreateScheduledTask(ctx, "x", "decade", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.ErrorIs(t, f.svc.UpdateScheduledStatus(ctx, task.ID, models.ScheduledDone), ErrInvalidTransition)
	require.NoError(t, f.svc.UpdateScheduledStatus(ctx, task.ID, models.ScheduledCancelled))
	assert.ErrorIs(t, f.svc.UpdateScheduledStatus(ctx, task.ID, models.ScheduledPending), ErrInvalidTransition)
	assert.ErrorIs(t, f.svc.UpdateScheduledStatus(ctx, task.ID, "paused"), ErrInvalidInput)
	assert.ErrorIs(t, f.svc.UpdateScheduledStatus(ctx, 404, models.ScheduledPending), ErrNotFound)

	_, err = f.svc.RunScheduledTask(ctx, task.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, f.svc.RetryScheduledTask(ctx, task.ID), ErrInvalidTransition)
}

func TestFeedbackAndReopen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.CreateScheduledTask(ctx, "Write release notes", "", "")
	require.NoError(t, err)
	_, err = f.svc.RunScheduledTask(ctx, task.ID)
	require.NoError(t, err)
	f.callback(t, `{"agent":"manager","status":"idle","message":"notes written"}`)
	f.svc.Wait()

	assert.ErrorIs(t, f.svc.SubmitFeedback(ctx, task.ID, Feedback{}), ErrInvalidInput)
	require.NoError(t, f.svc.SubmitFeedback(ctx, task.ID, Feedback{Rating: 5, Comment: " great "}))
	got, _ := f.store.GetScheduled(ctx, task.ID)
	assert.Equal(t, models.ReviewApproved, got.ReviewStatus)

	require.NoError(t, f.svc.ReopenTask(ctx, task.ID, "add the changelog link"))
	got, _ = f.store.GetScheduled(ctx, task.ID)
	assert.Equal(t, models.ScheduledInProgress, got.Status)
	assert.Equal(t, models.ReviewNeedsRework, got.ReviewStatus)

	msgs, err := f.svc.DirectMessages(ctx, models.ManagerKey, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Content, "add the changelog link")

	detail, err := f.svc.TaskDetail(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, detail.Feedback, 1)
	assert.Equal(t, "great", detail.Feedback[0].Comment)
	assert.Len(t, detail.AgentLogs, 1)
}

func TestRetryRelinksTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.CreateScheduledTask(ctx, "Fix login", "", "")
	require.NoError(t, err)
	first, err := f.svc.RunScheduledTask(ctx, task.ID)
	require.NoError(t, err)
	f.callback(t, `{"agent":"manager","status":"idle","message":"done"}`)
	f.svc.Wait()

	require.NoError(t, f.svc.RetryScheduledTask(ctx, task.ID))
	f.svc.Wait()

	got, _ := f.store.GetScheduled(ctx, task.ID)
	assert.Equal(t, models.ScheduledInProgress, got.Status)
	assert.Empty(t, got.Result)
	require.NotNil(t, got.LinkedTaskID)
	assert.NotEqual(t, first, *got.LinkedTaskID)
	assert.Len(t, f.dispatcher.made(), 2)
}

func TestIdeaLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	idea, err := f.svc.CreateIdea(ctx, "Write an article about Go")
	require.NoError(t, err)
	f.svc.Wait()

	got, ok := f.store.GetIdea(ctx, idea.ID)
	require.True(t, ok)
	assert.Equal(t, models.IdeaPlanned, got.Status)
	assert.Equal(t, ideaPlanMissing, got.Plan)

	task, err := f.svc.CreateScheduledTask(ctx, "Write an article about Go channels", "", "")
	require.NoError(t, err)
	_, err = f.svc.RunScheduledTask(ctx, task.ID)
	require.NoError(t, err)
	f.callback(t, `{"agent":"manager","status":"idle","message":"published"}`)
	f.svc.Wait()

	got, _ = f.store.GetIdea(ctx, idea.ID)
	assert.Equal(t, models.IdeaDone, got.Status)
	assert.NotEmpty(t, got.Result)
	assert.NotEmpty(t, f.events.ofType(models.EventIdeasUpdate))
}

func TestIdeaPlannedByLLM(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.LLM = fakeLLM{reply: "1. research\n2. write"} })
	ctx := context.Background()

	idea, err := f.svc.CreateIdea(ctx, "Newsletter")
	require.NoError(t, err)
	f.svc.Wait()
	got, _ := f.store.GetIdea(ctx, idea.ID)
	assert.Equal(t, "1. research\n2. write", got.Plan)

	started, err := f.svc.StartIdea(ctx, idea.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IdeaActive, started.Status)
	f.svc.Wait()
	require.Len(t, f.dispatcher.made(), 1)
	assert.Equal(t, "Newsletter", f.dispatcher.made()[0].task)
}

func TestResetAgents(t *testing.T) {
	f := newFixture(t)
	f.callback(t, `{"agent":"coder","status":"working","task":"Refactor"}`)

	f.svc.ResetAgents()
	coder, _ := f.state.Agent("coder")
	assert.Equal(t, models.AgentIdle, coder.Status)
	inits := f.events.ofType(models.EventInit)
	assert.Len(t, inits, 1)
}

func TestCycleTracker(t *testing.T) {
	c := newCycles()
	assert.Zero(t, c.resolve(nil))

	c.begin(4)
	assert.Equal(t, int64(4), c.resolve(nil))
	explicit := int64(9)
	assert.Equal(t, int64(9), c.resolve(&explicit))

	assert.True(t, c.add(4, models.WorkerResult{Agent: "qa", Result: "ok"}))
	assert.False(t, c.add(4, models.WorkerResult{Agent: "qa", Result: "ok"}))
	assert.True(t, c.add(9, models.WorkerResult{Agent: "qa", Result: "ok"}))
	assert.Equal(t, 2, c.size())

	taken := c.take(4)
	assert.Len(t, taken, 1)
	assert.Empty(t, c.take(4))
	assert.Equal(t, 1, c.size())

	c.forget(9)
	assert.Zero(t, c.size())
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
