package relevance

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/inbox-agent/internal/core"
	"github.com/mikey/inbox-agent/internal/utils"
)

// bodyLimit is how much of the body the model sees
const bodyLimit = 1000

const relevanceSystemPrompt = "Evaluate if an email is relevant to a query. Respond only with JSON."

const relevancePromptFormat = `Decide whether the following email is relevant to the query.

Query: %s

Email:
From: %s
Subject: %s
Body:
%s

Respond with a JSON object containing:
- is_relevant: boolean
- relevance_score: number between 0 and 1
- reasoning: string (one short sentence)

Respond only with the JSON object and nothing else.`

type relevanceResponse struct {
	IsRelevant     bool    `json:"is_relevant"`
	RelevanceScore float64 `json:"relevance_score"`
	Reasoning      string  `json:"reasoning"`
}

// LLMStrategy asks a language model whether an item is relevant
type LLMStrategy struct {
	llm           core.LLMClient
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

// NewLLMStrategy creates a model-backed relevance strategy
func NewLLMStrategy(llm core.LLMClient, textProcessor *utils.TextProcessor, logger *zap.Logger) *LLMStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	if textProcessor == nil {
		textProcessor = utils.NewTextProcessor(logger)
	}
	return &LLMStrategy{llm: llm, textProcessor: textProcessor, logger: logger}
}

// Evaluate sends the relevance prompt and parses the JSON answer
func (s *LLMStrategy) Evaluate(ctx context.Context, item *core.RawItem, target core.RelevanceTarget) (*core.RelevanceDecision, error) {
	prompt := fmt.Sprintf(relevancePromptFormat,
		describeTarget(target),
		item.Sender,
		item.Subject,
		s.textProcessor.TruncateText(item.Body, bodyLimit, ""))

	text, err := s.llm.Complete(ctx, relevanceSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate relevance with %s: %w", s.llm.Name(), err)
	}

	var resp relevanceResponse
	if err := utils.DecodeJSONResponse(text, &resp); err != nil {
		return nil, err
	}
	return &core.RelevanceDecision{
		Accept:    resp.IsRelevant,
		Score:     resp.RelevanceScore,
		Rationale: resp.Reasoning,
	}, nil
}

func describeTarget(target core.RelevanceTarget) string {
	var parts []string
	if q := strings.TrimSpace(target.Query); q != "" {
		parts = append(parts, q)
	}
	if target.Category != "" && target.Category != core.CategoryGeneral {
		parts = append(parts, fmt.Sprintf("category: %s", target.Category))
	}
	if len(target.Keywords) > 0 {
		parts = append(parts, fmt.Sprintf("keywords: %s", strings.Join(target.Keywords, ", ")))
	}
	if len(parts) == 0 {
		return "any email"
	}
	return strings.Join(parts, "; ")
}
