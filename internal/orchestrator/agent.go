// Package orchestrator runs one conversational turn through an explicit state
// machine: classify the utterance, plan, execute the steps, synthesize the
// answer.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/inbox-agent/internal/core"
	"github.com/mikey/inbox-agent/internal/utils"
)

const (
	// DefaultConcurrency bounds in-flight scan items
	DefaultConcurrency = 4
	// DefaultHistoryTurns is how many past turns the classifier sees
	DefaultHistoryTurns = 5
)

// Classifier maps an utterance to an intent and slots
type Classifier interface {
	Classify(ctx context.Context, utterance string, history []core.Turn) (*core.Classification, error)
}

// Planner turns an intent into steps
type Planner interface {
	Plan(intent core.Intent, slots core.Slots) (*core.Plan, error)
}

// RelevanceFilter gates raw items before extraction
type RelevanceFilter interface {
	Evaluate(ctx context.Context, item *core.RawItem, target core.RelevanceTarget) core.RelevanceDecision
}

// Extractor turns an accepted item into a record
type Extractor interface {
	Extract(ctx context.Context, item *core.RawItem, target core.Category) (*core.Record, error)
}

// Deps are the collaborators of an Agent. Searcher, Reminders and Notifier
// may be nil.
type Deps struct {
	Classifier  Classifier
	Planner     Planner
	Fetcher     core.SourceFetcher
	Relevance   RelevanceFilter
	Extractor   Extractor
	Store       core.RecordStore
	Synthesizer core.Synthesizer
	Searcher    core.WebSearcher
	Reminders   core.ReminderSink
	Notifier    core.Notifier
}

// Options configures an Agent
type Options struct {
	Concurrency  int
	HistoryTurns int
	// TopK caps query results regardless of max_results; zero means no cap.
	TopK  int
	Retry utils.RetryOptions
	// NotifyOnScan sends a one-line summary on NotifyChannel after each scan.
	NotifyOnScan  bool
	NotifyChannel string
	Now           func() time.Time
}

// TurnResult is everything produced by one turn
type TurnResult struct {
	ID             string
	Utterance      string
	Classification *core.Classification
	Plan           *core.Plan
	Transitions    []Transition
	State          State
	Outcome        *core.TurnOutcome
	Answer         string
}

// Agent is the conversational orchestrator
type Agent struct {
	deps   Deps
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	history []core.Turn
}

// New creates an agent
func New(deps Deps, opts Options, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = DefaultHistoryTurns
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Agent{deps: deps, opts: opts, logger: logger}
}

// HandleTurn runs utterance through the state machine. It always returns a
// result with an answer; failures are reported in the outcome.
func (a *Agent) HandleTurn(ctx context.Context, utterance string) *TurnResult {
	res := a.newResult(utterance)
	m := newMachine(StateClassify, a.opts.Now)
	logger := a.logger.With(zap.String("turn_id", res.ID))

	cls, err := a.deps.Classifier.Classify(ctx, utterance, a.History())
	if err != nil {
		a.fail(res, m, logger, err)
		return a.finish(res, m, logger)
	}
	res.Classification = cls
	a.advance(m, StatePlan, logger)

	return a.run(ctx, res, m, logger)
}

// Execute runs an already classified request, starting at PLAN. The CLI scan
// command uses it to bypass classification.
func (a *Agent) Execute(ctx context.Context, cls *core.Classification) *TurnResult {
	res := a.newResult(cls.Utterance)
	res.Classification = cls
	m := newMachine(StatePlan, a.opts.Now)
	return a.run(ctx, res, m, a.logger.With(zap.String("turn_id", res.ID)))
}

func (a *Agent) run(ctx context.Context, res *TurnResult, m *machine, logger *zap.Logger) *TurnResult {
	cls := res.Classification
	logger = logger.With(zap.String("intent", string(cls.Intent)))

	plan, err := a.deps.Planner.Plan(cls.Intent, cls.Slots)
	if err != nil {
		a.fail(res, m, logger, err)
		return a.finish(res, m, logger)
	}
	res.Plan = plan
	a.advance(m, StateExecuteSteps, logger)

	res.Outcome = a.execute(ctx, plan, logger)
	a.advance(m, StateSynthesize, logger)

	answer, err := a.deps.Synthesizer.Synthesize(ctx, res.Utterance, res.Outcome)
	if err != nil {
		// the template synthesizer never fails, so this only guards a misconfigured one
		logger.Error("Failed to synthesize answer", zap.Error(err))
		answer = fmt.Sprintf("I gathered results but could not phrase an answer: %v", err)
	}
	res.Answer = answer
	a.advance(m, StateDone, logger)
	return a.finish(res, m, logger)
}

func (a *Agent) newResult(utterance string) *TurnResult {
	return &TurnResult{ID: uuid.NewString(), Utterance: utterance}
}

func (a *Agent) advance(m *machine, next State, logger *zap.Logger) {
	from := m.state
	if err := m.to(next, ""); err != nil {
		// programming error: the transition table and run disagree
		logger.Error("Illegal state transition", zap.Error(err))
		return
	}
	logger.Debug("State transition",
		zap.String("from", string(from)),
		zap.String("state", string(next)))
}

func (a *Agent) fail(res *TurnResult, m *machine, logger *zap.Logger, err error) {
	reason := err.Error()
	if ferr := m.to(StateFailed, reason); ferr != nil {
		logger.Error("Illegal state transition", zap.Error(ferr))
	}
	logger.Warn("Turn failed",
		zap.String("state", string(m.transitions[len(m.transitions)-1].From)),
		zap.Error(err))

	intent := core.Intent("")
	if res.Classification != nil {
		intent = res.Classification.Intent
	}
	res.Outcome = &core.TurnOutcome{Intent: intent, Status: core.StatusFailed, FailureMessage: reason}
	res.Answer = fmt.Sprintf("Sorry, I could not complete that request: %s.", reason)
}

func (a *Agent) finish(res *TurnResult, m *machine, logger *zap.Logger) *TurnResult {
	if !m.terminal() {
		logger.Error("Turn finished in a non-terminal state", zap.String("state", string(m.state)))
	}
	res.State = m.state
	res.Transitions = append([]Transition(nil), m.transitions...)
	a.remember(res.Utterance, res.Answer)
	return res
}

// History returns a copy of the recent conversation
func (a *Agent) History() []core.Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]core.Turn(nil), a.history...)
}

func (a *Agent) remember(utterance, answer string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append(a.history,
		core.Turn{Role: core.RoleUser, Text: utterance},
		core.Turn{Role: core.RoleAssistant, Text: answer})
	if limit := 2 * a.opts.HistoryTurns; len(a.history) > limit {
		a.history = append([]core.Turn(nil), a.history[len(a.history)-limit:]...)
	}
}
