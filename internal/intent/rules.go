package intent

import (
	"context"
	"regexp"

	"github.com/mikey/inbox-agent/internal/core"
)

var ruleTable = []struct {
	pattern    *regexp.Regexp
	intent     core.Intent
	confidence float64
}{
	{regexp.MustCompile(`\b(cheaper|alternatives?|better (deal|plan|price)|switch providers?|save money on)\b`), core.IntentFindAlternatives, 0.8},
	{regexp.MustCompile(`\b(remind|reminder|reminders|don't let me forget|notify me)\b`), core.IntentSetReminder, 0.8},
	{regexp.MustCompile(`\b(spend|spent|spending|expenses?|how much|total cost|budget)\b`), core.IntentAnalyzeSpending, 0.8},
	{regexp.MustCompile(`\b(tell me|did you find|got any|have you seen)\b`), core.IntentQueryHistory, 0.6},
	{regexp.MustCompile(`\b(find|search|look for|get)\b.*\b(inbox|emails?|mail|messages?)\b`), core.IntentScanEmails, 0.6},
}

// RuleStrategy is the deterministic intent strategy used in tests and
// offline mode
type RuleStrategy struct{}

// NewRuleStrategy creates a rule-based strategy
func NewRuleStrategy() *RuleStrategy {
	return &RuleStrategy{}
}

// Decide matches the utterance against a fixed rule table
func (RuleStrategy) Decide(_ context.Context, utterance string, _ []core.Turn) (*core.IntentDecision, error) {
	normalized := normalize(utterance)
	for _, rule := range ruleTable {
		if rule.pattern.MatchString(normalized) {
			return &core.IntentDecision{Intent: rule.intent, Confidence: rule.confidence}, nil
		}
	}
	return &core.IntentDecision{Intent: core.IntentChatFallback, Confidence: 0.5}, nil
}
