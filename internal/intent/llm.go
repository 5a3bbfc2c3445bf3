package intent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/inbox-agent/internal/core"
	"github.com/mikey/inbox-agent/internal/utils"
)

const intentSystemPrompt = "You are an intent classifier for an email assistant. Respond only with JSON."

const intentPromptFormat = `Classify the user's request into exactly one intent.

Intents:
- scan_emails: fetch NEW emails from the mailbox ("scan", "check", "get", "fetch", "search my inbox")
- query_history: search emails that were ALREADY scanned ("what", "show", "tell me", "do I have", "did you find")
- analyze_spending: totals or trends over bill and banking amounts
- find_alternatives: look for cheaper providers or better deals for an existing bill
- set_reminder: create a reminder for an upcoming due date
- chat_fallback: anything else

Categories: %s

Today is %s.

Recent conversation:
%s

Request: %s

Respond with a JSON object containing:
- intent: one of the intent names above
- confidence: number between 0 and 1
- category: one of the categories, or empty
- start_date: YYYY-MM-DD or empty
- end_date: YYYY-MM-DD or empty
- keywords: list of search keywords such as names of companies, people or places

Respond only with the JSON object and nothing else.`

type intentResponse struct {
	Intent     string   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Category   string   `json:"category"`
	StartDate  string   `json:"start_date"`
	EndDate    string   `json:"end_date"`
	Keywords   []string `json:"keywords"`
}

// LLMStrategy asks a language model for the intent
type LLMStrategy struct {
	llm    core.LLMClient
	now    func() time.Time
	logger *zap.Logger
}

// NewLLMStrategy creates a model-backed strategy
func NewLLMStrategy(llm core.LLMClient, now func() time.Time, logger *zap.Logger) *LLMStrategy {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMStrategy{llm: llm, now: now, logger: logger}
}

// Decide sends the classification prompt and parses the JSON answer
func (s *LLMStrategy) Decide(ctx context.Context, utterance string, history []core.Turn) (*core.IntentDecision, error) {
	categories := make([]string, len(core.Categories))
	for i, c := range core.Categories {
		categories[i] = string(c)
	}

	prompt := fmt.Sprintf(intentPromptFormat,
		strings.Join(categories, ", "),
		s.now().UTC().Format("2006-01-02"),
		formatHistory(history),
		utterance)

	text, err := s.llm.Complete(ctx, intentSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to classify intent with %s: %w", s.llm.Name(), err)
	}

	var resp intentResponse
	if err := utils.DecodeJSONResponse(text, &resp); err != nil {
		return nil, err
	}

	in, ok := core.ParseIntent(strings.ToLower(strings.TrimSpace(resp.Intent)))
	if !ok {
		return nil, fmt.Errorf("model returned unknown intent %q", resp.Intent)
	}
	s.logger.Debug("Model classified intent",
		zap.String("intent", string(in)),
		zap.String("model", s.llm.Name()))

	return &core.IntentDecision{
		Intent:     in,
		Confidence: resp.Confidence,
		Category:   resp.Category,
		StartDate:  resp.StartDate,
		EndDate:    resp.EndDate,
		Keywords:   resp.Keywords,
	}, nil
}

func formatHistory(history []core.Turn) string {
	if len(history) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, t := range history {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}
