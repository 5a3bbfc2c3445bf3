package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mikey/inbox-agent/internal/adapters/embedding"
	"github.com/mikey/inbox-agent/internal/core"
	"github.com/mikey/inbox-agent/internal/extraction"
	"github.com/mikey/inbox-agent/internal/intent"
	"github.com/mikey/inbox-agent/internal/planner"
	"github.com/mikey/inbox-agent/internal/relevance"
	"github.com/mikey/inbox-agent/internal/store"
	"github.com/mikey/inbox-agent/internal/synth"
	"github.com/mikey/inbox-agent/internal/utils"
)

var fixedNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

var fastRetry = utils.RetryOptions{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

type sliceFetcher struct {
	items []*core.RawItem
	err   error
	// onFetch runs before the fetch returns
	onFetch func()

	mu    sync.Mutex
	calls int
	hint  core.Category
	dr    core.DateRange
	limit int
}

func (f *sliceFetcher) Fetch(_ context.Context, hint core.Category, dr core.DateRange, limit int) ([]*core.RawItem, error) {
	f.mu.Lock()
	f.calls++
	f.hint, f.dr, f.limit = hint, dr, limit
	f.mu.Unlock()
	if f.onFetch != nil {
		f.onFetch()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

// failingOn wraps an extractor and fails one item id
type failingOn struct {
	Extractor
	id string
}

func (f failingOn) Extract(ctx context.Context, item *core.RawItem, target core.Category) (*core.Record, error) {
	if item.ID == f.id {
		return nil, fmt.Errorf("%w: unreadable body", core.ErrExtraction)
	}
	return f.Extractor.Extract(ctx, item, target)
}

type recordingNotifier struct {
	mu       sync.Mutex
	channels []string
	messages []string
}

func (n *recordingNotifier) Send(_ context.Context, channel, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.channels = append(n.channels, channel)
	n.messages = append(n.messages, message)
	return nil
}

type recordingReminders struct {
	reminders []core.Reminder
}

func (r *recordingReminders) Schedule(_ context.Context, reminder core.Reminder) error {
	r.reminders = append(r.reminders, reminder)
	return nil
}

type stubSearcher struct {
	query string
}

func (s *stubSearcher) Search(_ context.Context, query string) ([]core.SearchResult, error) {
	s.query = query
	return []core.SearchResult{{Title: "Cheap Water Co", URL: "https://water.example"}}, nil
}

type harness struct {
	agent   *Agent
	fetcher *sliceFetcher
	store   *store.Store
}

func newHarness(t *testing.T, fetcher *sliceFetcher, configure func(*Deps, *Options)) *harness {
	t.Helper()
	st := store.New(embedding.NewHashEmbedder(64), nil, nil)
	deps := Deps{
		Classifier:  intent.NewClassifier(intent.NewRuleStrategy(), intent.Options{Now: clock}, nil),
		Planner:     planner.New(),
		Fetcher:     fetcher,
		Relevance:   relevance.NewFilter(relevance.NewRuleStrategy(), fastRetry, nil),
		Extractor:   extraction.NewPipeline(nil, extraction.NewRuleStrategy(), nil, extraction.Options{Retry: fastRetry}, nil),
		Store:       st,
		Synthesizer: synth.NewTemplateSynthesizer(0),
	}
	opts := Options{Concurrency: 3, Retry: fastRetry, Now: clock}
	if configure != nil {
		configure(&deps, &opts)
	}
	return &harness{agent: New(deps, opts, nil), fetcher: fetcher, store: st}
}

func universityItems(n int) []*core.RawItem {
	items := make([]*core.RawItem, n)
	for i := range items {
		items[i] = &core.RawItem{
			ID:      fmt.Sprintf("u%d", i+1),
			Sender:  "Admissions <admissions@uni.example>",
			Subject: fmt.Sprintf("University admission update %d", i+1),
			Date:    time.Date(2026, 10, i+1, 9, 0, 0, 0, time.UTC),
			Body:    "Your application portal has a new message from the admissions office.",
		}
	}
	return items
}

func billItems(n int) []*core.RawItem {
	items := make([]*core.RawItem, n)
	for i := range items {
		items[i] = &core.RawItem{
			ID:      fmt.Sprintf("b%d", i+1),
			Sender:  fmt.Sprintf("Utility %d <billing@utility%d.example>", i+1, i+1),
			Subject: "Your monthly bill",
			Date:    time.Date(2026, 10, i+1, 9, 0, 0, 0, time.UTC),
			Body:    fmt.Sprintf("The amount due is $%d.00. Payment due by Nov %d.", 10*(i+1), i+1),
		}
	}
	return items
}

func states(res *TurnResult) []State {
	out := []State{}
	for _, tr := range res.Transitions {
		out = append(out, tr.To)
	}
	return out
}

func TestAgent_ScanThenQueryUniversities(t *testing.T) {
	h := newHarness(t, &sliceFetcher{items: universityItems(5)}, nil)
	ctx := context.Background()

	res := h.agent.HandleTurn(ctx, "Scan my inbox for university emails")
	require.Equal(t, StateDone, res.State)
	assert.Equal(t, core.IntentScanEmails, res.Classification.Intent)
	assert.Equal(t, []State{StatePlan, StateExecuteSteps, StateSynthesize, StateDone}, states(res))

	scan := res.Outcome.Scan
	require.NotNil(t, scan)
	assert.Equal(t, 5, scan.Fetched)
	assert.Equal(t, 0, scan.FilteredOut)
	assert.Equal(t, 5, scan.Indexed)
	assert.Equal(t, 0, scan.Failed)
	assert.Equal(t, core.StatusOK, res.Outcome.Status)
	assert.Equal(t, 5, h.store.Count())
	assert.Equal(t, core.CategoryUniversities, h.fetcher.hint)
	assert.Equal(t, core.LastDays(fixedNow, intent.DefaultDays), h.fetcher.dr)

	res = h.agent.HandleTurn(ctx, "Show me my university emails")
	require.Equal(t, StateDone, res.State)
	assert.Equal(t, core.IntentQueryHistory, res.Classification.Intent)
	assert.Len(t, res.Outcome.Hits, 5)
	assert.Contains(t, res.Answer, "I found 5 emails in Universities:")
}

func TestAgent_RescanUpdatesInsteadOfIndexing(t *testing.T) {
	h := newHarness(t, &sliceFetcher{items: universityItems(5)}, nil)
	ctx := context.Background()

	first := h.agent.HandleTurn(ctx, "Scan my inbox for university emails")
	second := h.agent.HandleTurn(ctx, "Scan my inbox for university emails")

	assert.Equal(t, 5, first.Outcome.Scan.Indexed)
	assert.Equal(t, 0, second.Outcome.Scan.Indexed)
	assert.Equal(t, 5, second.Outcome.Scan.Updated)
	assert.Equal(t, 5, h.store.Count())
}

func TestAgent_ItemFailureDoesNotStopScan(t *testing.T) {
	h := newHarness(t, &sliceFetcher{items: billItems(5)}, func(d *Deps, _ *Options) {
		d.Extractor = failingOn{Extractor: d.Extractor, id: "b3"}
	})

	res := h.agent.HandleTurn(context.Background(), "Scan my inbox for bills")
	require.Equal(t, StateDone, res.State)

	scan := res.Outcome.Scan
	assert.Equal(t, 5, scan.Fetched)
	assert.Equal(t, 4, scan.Indexed)
	assert.Equal(t, 1, scan.Failed)
	require.Len(t, scan.Failures, 1)
	assert.Equal(t, "b3", scan.Failures[0].ItemID)
	assert.Equal(t, core.KindExtraction, scan.Failures[0].Kind)
	assert.Equal(t, 4, h.store.Count())
	assert.Equal(t, core.StatusPartial, res.Outcome.Status)
	assert.Contains(t, res.Answer, "b3 failed (extraction)")
}

func TestAgent_IrrelevantItemsAreFilteredOut(t *testing.T) {
	items := append(universityItems(2), &core.RawItem{
		ID: "x1", Sender: "friend@example.com", Subject: "Lunch?", Date: fixedNow, Body: "Are you free on Friday?",
	})
	h := newHarness(t, &sliceFetcher{items: items}, nil)

	res := h.agent.HandleTurn(context.Background(), "Scan my inbox for university emails")
	scan := res.Outcome.Scan
	assert.Equal(t, 3, scan.Fetched)
	assert.Equal(t, 1, scan.FilteredOut)
	assert.Equal(t, 2, scan.Indexed)
	require.Len(t, scan.Rejections, 1)
	assert.Equal(t, "x1", scan.Rejections[0].ItemID)
	assert.Equal(t, core.StatusOK, res.Outcome.Status)
}

func TestAgent_CancelledScanCountsRemainingItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newHarness(t, &sliceFetcher{items: billItems(5), onFetch: cancel}, nil)

	res := h.agent.HandleTurn(ctx, "Scan my inbox for bills")
	require.Equal(t, StateDone, res.State)

	scan := res.Outcome.Scan
	assert.Equal(t, 5, scan.Fetched)
	assert.Equal(t, 5, scan.Cancelled)
	assert.Equal(t, 0, scan.Indexed)
	assert.Equal(t, 0, h.store.Count())
	assert.Equal(t, core.StatusFailed, res.Outcome.Status)
	assert.Equal(t, core.KindCancelled, res.Outcome.Annotations[0].Kind)
}

func TestAgent_AuthFailureIsNotRetried(t *testing.T) {
	fetcher := &sliceFetcher{err: fmt.Errorf("%w: token expired", core.ErrAuth)}
	h := newHarness(t, fetcher, nil)

	res := h.agent.HandleTurn(context.Background(), "Scan my inbox for bills")
	require.Equal(t, StateDone, res.State)
	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, core.StatusFailed, res.Outcome.Status)
	require.NotEmpty(t, res.Outcome.Annotations)
	assert.Equal(t, core.StepFetch, res.Outcome.Annotations[0].Step)
	assert.Equal(t, core.KindAuth, res.Outcome.Annotations[0].Kind)
	assert.Contains(t, res.Answer, "token expired")
}

func TestAgent_EmptyQueryIsNotFailure(t *testing.T) {
	h := newHarness(t, &sliceFetcher{}, nil)

	res := h.agent.HandleTurn(context.Background(), "Show me my university emails")
	require.Equal(t, StateDone, res.State)
	assert.Equal(t, core.StatusEmpty, res.Outcome.Status)
	assert.Contains(t, res.Answer, "no matching emails in Universities")
}

func TestAgent_EmptyUtteranceFails(t *testing.T) {
	h := newHarness(t, &sliceFetcher{}, nil)

	res := h.agent.HandleTurn(context.Background(), "   ")
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, []State{StateFailed}, states(res))
	assert.Equal(t, StateClassify, res.Transitions[0].From)
	assert.Equal(t, core.StatusFailed, res.Outcome.Status)
	assert.Contains(t, res.Outcome.FailureMessage, "utterance")
	assert.Contains(t, res.Answer, "Sorry, I could not complete that request")
}

func TestAgent_InvalidSlotsFailAtPlan(t *testing.T) {
	h := newHarness(t, &sliceFetcher{}, nil)

	res := h.agent.Execute(context.Background(), &core.Classification{
		Intent:    core.IntentScanEmails,
		Utterance: "scan",
		Slots: core.Slots{
			Category:   core.CategoryBills,
			DateRange:  core.DateRange{Start: fixedNow, End: fixedNow.AddDate(0, 0, -3)},
			MaxResults: 10,
		},
	})
	assert.Equal(t, StateFailed, res.State)
	require.Len(t, res.Transitions, 1)
	assert.Equal(t, StatePlan, res.Transitions[0].From)
	assert.Contains(t, res.Transitions[0].Reason, "date_range")
	assert.Contains(t, res.Answer, "date_range")
	assert.Equal(t, 0, h.fetcher.calls)
}

func TestAgent_ExecuteSkipsClassification(t *testing.T) {
	h := newHarness(t, &sliceFetcher{items: billItems(2)}, nil)

	res := h.agent.Execute(context.Background(), &core.Classification{
		Intent: core.IntentScanEmails,
		Slots: core.Slots{
			Category:   core.CategoryBills,
			DateRange:  core.LastDays(fixedNow, 7),
			MaxResults: 20,
		},
	})
	require.Equal(t, StateDone, res.State)
	assert.Equal(t, StatePlan, res.Transitions[0].From)
	assert.Equal(t, 20, h.fetcher.limit)
	assert.Equal(t, 2, res.Outcome.Scan.Indexed)
}

func TestAgent_AnalyzeSpending(t *testing.T) {
	h := newHarness(t, &sliceFetcher{items: billItems(3)}, nil)
	ctx := context.Background()
	h.agent.HandleTurn(ctx, "Scan my inbox for bills")

	res := h.agent.HandleTurn(ctx, "How much did I spend on bills")
	require.Equal(t, core.IntentAnalyzeSpending, res.Classification.Intent)
	require.NotNil(t, res.Outcome.Spending)
	assert.InDelta(t, 60.0, res.Outcome.Spending.Total, 1e-9)
	assert.Equal(t, 3, res.Outcome.Spending.Count)
	assert.Equal(t, "USD", res.Outcome.Spending.Currency)
	assert.Contains(t, res.Answer, "60.00 USD")
}

func TestAgent_SetReminder(t *testing.T) {
	reminders := &recordingReminders{}
	h := newHarness(t, &sliceFetcher{items: billItems(2)}, func(d *Deps, _ *Options) {
		d.Reminders = reminders
	})
	ctx := context.Background()
	h.agent.HandleTurn(ctx, "Scan my inbox for bills")

	res := h.agent.HandleTurn(ctx, "Remind me about my bills")
	require.Equal(t, core.IntentSetReminder, res.Classification.Intent)
	assert.Len(t, reminders.reminders, 2)
	assert.Len(t, res.Outcome.Reminders, 2)
	assert.Equal(t, core.StatusOK, res.Outcome.Status)
	assert.Contains(t, res.Answer, "I scheduled 2 reminders")
}

func TestAgent_FindAlternatives(t *testing.T) {
	t.Run("without a searcher", func(t *testing.T) {
		h := newHarness(t, &sliceFetcher{items: billItems(1)}, nil)
		ctx := context.Background()
		h.agent.HandleTurn(ctx, "Scan my inbox for bills")

		res := h.agent.HandleTurn(ctx, "Find cheaper alternatives to my bills")
		require.Equal(t, core.IntentFindAlternatives, res.Classification.Intent)
		assert.Equal(t, core.StatusPartial, res.Outcome.Status)
		require.Len(t, res.Outcome.Annotations, 1)
		assert.Contains(t, res.Outcome.Annotations[0].Message, "not configured")
	})

	t.Run("with a searcher", func(t *testing.T) {
		searcher := &stubSearcher{}
		h := newHarness(t, &sliceFetcher{items: billItems(1)}, func(d *Deps, _ *Options) {
			d.Searcher = searcher
		})
		ctx := context.Background()
		h.agent.HandleTurn(ctx, "Scan my inbox for bills")

		res := h.agent.HandleTurn(ctx, "Find cheaper alternatives to my bills")
		assert.Equal(t, "cheaper alternatives to Utility 1", searcher.query)
		assert.Equal(t, core.StatusOK, res.Outcome.Status)
		assert.Contains(t, res.Answer, "Cheap Water Co")
	})
}

func TestAgent_NotifiesAfterScan(t *testing.T) {
	notifier := &recordingNotifier{}
	h := newHarness(t, &sliceFetcher{items: billItems(2)}, func(d *Deps, o *Options) {
		d.Notifier = notifier
		o.NotifyOnScan = true
		o.NotifyChannel = "ops@example.com"
	})

	h.agent.HandleTurn(context.Background(), "Scan my inbox for bills")
	require.Len(t, notifier.messages, 1)
	assert.Equal(t, "ops@example.com", notifier.channels[0])
	assert.Contains(t, notifier.messages[0], "2 indexed")
}

func TestAgent_HistoryIsCapped(t *testing.T) {
	h := newHarness(t, &sliceFetcher{}, func(_ *Deps, o *Options) {
		o.HistoryTurns = 2
	})
	ctx := context.Background()
	for _, u := range []string{"hello", "Show me my bills", "thanks"} {
		h.agent.HandleTurn(ctx, u)
	}

	history := h.agent.History()
	require.Len(t, history, 4)
	assert.Equal(t, core.Turn{Role: core.RoleUser, Text: "Show me my bills"}, history[0])
	assert.Equal(t, core.RoleAssistant, history[3].Role)
}

func TestAgent_TurnIDsAreUnique(t *testing.T) {
	h := newHarness(t, &sliceFetcher{}, nil)
	a := h.agent.HandleTurn(context.Background(), "hello")
	b := h.agent.HandleTurn(context.Background(), "hello")
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestMachine_RejectsIllegalTransitions(t *testing.T) {
	m := newMachine(StateClassify, clock)
	assert.Error(t, m.to(StateSynthesize, ""))
	require.NoError(t, m.to(StatePlan, ""))
	require.NoError(t, m.to(StateExecuteSteps, ""))
	assert.Error(t, m.to(StateFailed, "late"))
	require.NoError(t, m.to(StateSynthesize, ""))
	require.NoError(t, m.to(StateDone, ""))
	assert.True(t, m.terminal())
	assert.Error(t, m.to(StatePlan, ""))
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		name string
		o    core.TurnOutcome
		want core.OutcomeStatus
	}{
		{"nothing", core.TurnOutcome{Intent: core.IntentQueryHistory}, core.StatusEmpty},
		{"hits", core.TurnOutcome{Hits: []core.Hit{{Record: &core.Record{ID: "a"}}}}, core.StatusOK},
		{"error only", core.TurnOutcome{Annotations: []core.StepAnnotation{{Step: core.StepQuery}}}, core.StatusFailed},
		{"chat", core.TurnOutcome{Intent: core.IntentChatFallback}, core.StatusOK},
		{"scan with failures", core.TurnOutcome{Scan: &core.ScanOutcome{Indexed: 1, Failed: 1}}, core.StatusPartial},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, statusOf(&tc.o))
		})
	}
}

// failingStore rejects every write for one id and counts the attempts
type failingStore struct {
	core.RecordStore
	id string

	mu       sync.Mutex
	attempts int
}

func (s *failingStore) Upsert(ctx context.Context, record *core.Record) (bool, error) {
	if record.ID == s.id {
		s.mu.Lock()
		s.attempts++
		s.mu.Unlock()
		return false, fmt.Errorf("%w: %s: disk full", core.ErrStore, record.ID)
	}
	return s.RecordStore.Upsert(ctx, record)
}

func TestAgent_StoreFailureIsRetriedPerItem(t *testing.T) {
	var failing *failingStore
	h := newHarness(t, &sliceFetcher{items: billItems(4)}, func(d *Deps, _ *Options) {
		failing = &failingStore{RecordStore: d.Store, id: "b2"}
		d.Store = failing
	})

	res := h.agent.HandleTurn(context.Background(), "Scan my inbox for bills")
	require.Equal(t, StateDone, res.State)

	scan := res.Outcome.Scan
	assert.Equal(t, fastRetry.MaxAttempts, failing.attempts)
	assert.Equal(t, 3, scan.Indexed)
	assert.Equal(t, 1, scan.Failed)
	require.Len(t, scan.Failures, 1)
	assert.Equal(t, "b2", scan.Failures[0].ItemID)
	assert.Equal(t, core.KindStore, scan.Failures[0].Kind)
	assert.Equal(t, 3, h.store.Count())
	assert.Equal(t, core.StatusPartial, res.Outcome.Status)
}

func TestAgent_RateLimitedFetchExhaustsRetries(t *testing.T) {
	fetcher := &sliceFetcher{err: fmt.Errorf("%w: slow down", core.ErrRateLimit)}
	h := newHarness(t, fetcher, nil)

	res := h.agent.HandleTurn(context.Background(), "Scan my inbox for bills")
	require.Equal(t, StateDone, res.State)
	assert.Equal(t, fastRetry.MaxAttempts, fetcher.calls)
	assert.Equal(t, core.StatusFailed, res.Outcome.Status)
	require.NotEmpty(t, res.Outcome.Annotations)
	assert.Equal(t, core.StepFetch, res.Outcome.Annotations[0].Step)
	assert.Equal(t, core.KindRateLimit, res.Outcome.Annotations[0].Kind)
	assert.Equal(t, 0, h.store.Count())
}

func TestAgent_FinishLogsNonTerminalState(t *testing.T) {
	obs, logs := observer.New(zap.ErrorLevel)
	a := New(Deps{}, Options{Now: clock}, zap.New(obs))

	res := a.finish(&TurnResult{}, newMachine(StatePlan, clock), a.logger)
	assert.Equal(t, StatePlan, res.State)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "PLAN", logs.All()[0].ContextMap()["state"])

	m := newMachine(StateSynthesize, clock)
	require.NoError(t, m.to(StateDone, ""))
	a.finish(&TurnResult{}, m, a.logger)
	assert.Equal(t, 1, logs.Len())
}

func TestAggregate_CreditReducesTotal(t *testing.T) {
	amount := func(v float64) *float64 { return &v }
	hits := []core.Hit{
		{Record: &core.Record{ID: "b1", Fields: &core.StructuredFields{Vendor: "Shop", Amount: amount(40), Currency: "USD"}}},
		{Record: &core.Record{ID: "b2", Fields: &core.StructuredFields{Vendor: "Shop", Amount: amount(-12.5), Currency: "USD"}}},
		{Record: &core.Record{ID: "b3"}},
	}
	sum := aggregate(hits)
	assert.InDelta(t, 27.5, sum.Total, 1e-9)
	assert.InDelta(t, 27.5, sum.ByVendor["Shop"], 1e-9)
	assert.Equal(t, 2, sum.Count)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, "USD", sum.Currency)
}
