package relevance

import (
	"context"
	"fmt"
	"strings"

	"github.com/mikey/inbox-agent/internal/core"
)

// RuleStrategy accepts items whose text hits the category lexicon or any keyword
type RuleStrategy struct{}

// NewRuleStrategy creates a rule-based strategy
func NewRuleStrategy() *RuleStrategy {
	return &RuleStrategy{}
}

// Evaluate scores an item by lexicon and keyword hits
func (RuleStrategy) Evaluate(_ context.Context, item *core.RawItem, target core.RelevanceTarget) (*core.RelevanceDecision, error) {
	text := item.Sender + "\n" + item.Subject + "\n" + item.Body
	lower := strings.ToLower(text)

	for _, k := range target.Keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" && strings.Contains(lower, k) {
			return &core.RelevanceDecision{Accept: true, Score: 1, Rationale: fmt.Sprintf("mentions %q", k)}, nil
		}
	}

	if target.Category == core.CategoryGeneral || target.Category == "" {
		return &core.RelevanceDecision{Accept: false, Rationale: "no keyword matched"}, nil
	}

	hits := core.CategoryScore(target.Category, text)
	if hits == 0 {
		return &core.RelevanceDecision{Accept: false, Rationale: fmt.Sprintf("no %s terms found", target.Category)}, nil
	}
	score := float64(hits) / 3
	if score > 1 {
		score = 1
	}
	return &core.RelevanceDecision{
		Accept:    true,
		Score:     score,
		Rationale: fmt.Sprintf("%d %s terms found", hits, target.Category),
	}, nil
}
