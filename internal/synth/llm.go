package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/inbox-agent/internal/core"
)

const synthSystemPrompt = "You are a helpful email assistant. Summarize emails clearly with sender, subject and date. " +
	"Answer only from the context. When status is \"empty\" say that no matching results were found. " +
	"When status is \"failed\" say that the request could not be completed and why."

const synthPromptFormat = `Context:
%s

Question: %s

Response:`

type hitContext struct {
	ID       string                 `json:"id"`
	Category core.Category          `json:"category"`
	Sender   string                 `json:"sender"`
	Subject  string                 `json:"subject"`
	Date     string                 `json:"date"`
	Summary  string                 `json:"summary"`
	Fields   *core.StructuredFields `json:"fields,omitempty"`
	Score    float64                `json:"score"`
}

type turnContext struct {
	Intent     core.Intent           `json:"intent"`
	Category   core.Category         `json:"category,omitempty"`
	Status     core.OutcomeStatus    `json:"status"`
	Scan       *core.ScanOutcome     `json:"scan,omitempty"`
	Results    []hitContext          `json:"results,omitempty"`
	Spending   *core.SpendingSummary `json:"spending,omitempty"`
	WebResults []core.SearchResult   `json:"web_results,omitempty"`
	Reminders  []core.Reminder       `json:"reminders,omitempty"`
	Errors     []core.StepAnnotation `json:"errors,omitempty"`
	Failure    string                `json:"failure,omitempty"`
}

// LLMSynthesizer phrases answers with a language model and falls back to
// the template when the model fails
type LLMSynthesizer struct {
	llm       core.LLMClient
	fallback  *TemplateSynthesizer
	maxListed int
	logger    *zap.Logger
}

// NewLLMSynthesizer creates a model-backed synthesizer
func NewLLMSynthesizer(llm core.LLMClient, fallback *TemplateSynthesizer, logger *zap.Logger) *LLMSynthesizer {
	if fallback == nil {
		fallback = NewTemplateSynthesizer(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMSynthesizer{llm: llm, fallback: fallback, maxListed: fallback.maxListed, logger: logger}
}

// Synthesize asks the model for an answer grounded in the outcome
func (s *LLMSynthesizer) Synthesize(ctx context.Context, utterance string, o *core.TurnOutcome) (string, error) {
	if o == nil || o.Status == core.StatusFailed {
		return s.fallback.Synthesize(ctx, utterance, o)
	}

	payload, err := json.MarshalIndent(s.contextOf(o), "", "  ")
	if err != nil {
		s.logger.Warn("Failed to encode synthesis context, using template", zap.Error(err))
		return s.fallback.Synthesize(ctx, utterance, o)
	}

	answer, err := s.llm.Complete(ctx, synthSystemPrompt, fmt.Sprintf(synthPromptFormat, payload, utterance))
	if err == nil && strings.TrimSpace(answer) == "" {
		err = fmt.Errorf("empty response from %s", s.llm.Name())
	}
	if err != nil {
		s.logger.Warn("Model synthesis failed, using template",
			zap.String("model", s.llm.Name()),
			zap.Error(err))
		return s.fallback.Synthesize(ctx, utterance, o)
	}
	return strings.TrimSpace(answer), nil
}

func (s *LLMSynthesizer) contextOf(o *core.TurnOutcome) turnContext {
	c := turnContext{
		Intent:     o.Intent,
		Category:   o.Category,
		Status:     o.Status,
		Scan:       o.Scan,
		Spending:   o.Spending,
		WebResults: o.WebResults,
		Reminders:  o.Reminders,
		Errors:     o.Annotations,
		Failure:    o.FailureMessage,
	}
	for i, h := range o.Hits {
		if i == s.maxListed {
			break
		}
		r := h.Record
		c.Results = append(c.Results, hitContext{
			ID:       r.ID,
			Category: r.Category,
			Sender:   r.Sender,
			Subject:  r.Subject,
			Date:     r.Date.Format("2006-01-02"),
			Summary:  r.Summary,
			Fields:   r.Fields,
			Score:    h.Score,
		})
	}
	return c
}
