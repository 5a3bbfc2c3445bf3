// Package intent maps a user utterance to an intent and its slots.
// Overrides and cue heuristics are answered locally; everything else is
// handed to a pluggable strategy.
package intent

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/inbox-agent/internal/core"
	"github.com/mikey/inbox-agent/internal/utils"
)

const (
	// DefaultDays is the look-back window when no date phrase is given
	DefaultDays = 30
	// DefaultMaxResults bounds scans and queries without an explicit limit
	DefaultMaxResults = 50

	heuristicConfidence = 0.9
	tieBreakConfidence  = 0.7
)

// Options configures a Classifier
type Options struct {
	// Overrides maps exact normalized phrases to an intent
	Overrides   map[string]core.Intent
	DefaultDays int
	MaxResults  int
	Now         func() time.Time
}

// Classifier is the intent classifier
type Classifier struct {
	strategy  core.IntentStrategy
	overrides map[string]core.Intent
	days      int
	max       int
	now       func() time.Time
	logger    *zap.Logger
}

// NewClassifier creates a classifier that falls through to strategy
func NewClassifier(strategy core.IntentStrategy, opts Options, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Classifier{
		strategy:  strategy,
		overrides: make(map[string]core.Intent, len(opts.Overrides)),
		days:      opts.DefaultDays,
		max:       opts.MaxResults,
		now:       opts.Now,
		logger:    logger,
	}
	for phrase, in := range opts.Overrides {
		c.overrides[overrideKey(phrase)] = in
	}
	if c.days <= 0 {
		c.days = DefaultDays
	}
	if c.max <= 0 {
		c.max = DefaultMaxResults
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Classify returns the intent and slots of utterance. The only error is a
// ValidationError for an empty utterance; strategy failures fall back to
// chat_fallback.
func (c *Classifier) Classify(ctx context.Context, utterance string, history []core.Turn) (*core.Classification, error) {
	if strings.TrimSpace(utterance) == "" {
		return nil, &core.ValidationError{Field: "utterance", Reason: "must not be empty"}
	}

	normalized := normalize(utterance)
	slots, explicitDates := c.localSlots(utterance, normalized)
	result := &core.Classification{Utterance: utterance}

	if in, ok := c.overrides[overrideKey(utterance)]; ok {
		result.Intent, result.Confidence, result.Source = in, 1, core.SourceOverride
	} else if in, conf, ok := heuristic(normalized); ok {
		result.Intent, result.Confidence, result.Source = in, conf, core.SourceHeuristic
	} else {
		c.decide(ctx, utterance, history, &slots, explicitDates, result)
	}

	c.applyDefaults(&slots)
	result.Slots = slots

	c.logger.Debug("Classified utterance",
		zap.String("intent", string(result.Intent)),
		zap.String("source", string(result.Source)),
		zap.String("category", string(slots.Category)),
		zap.Float64("confidence", result.Confidence))
	return result, nil
}

// heuristic applies the scan and query cue rules. When both kinds of cue are
// present, scan wins only with an explicit temporal fetch verb.
func heuristic(normalized string) (core.Intent, float64, bool) {
	m := matchCues(normalized)
	switch {
	case m.scan && m.query:
		if m.temporal {
			return core.IntentScanEmails, tieBreakConfidence, true
		}
		return core.IntentQueryHistory, tieBreakConfidence, true
	case m.scan:
		return core.IntentScanEmails, heuristicConfidence, true
	case m.query:
		return core.IntentQueryHistory, heuristicConfidence, true
	}
	return "", 0, false
}

func (c *Classifier) decide(ctx context.Context, utterance string, history []core.Turn, slots *core.Slots, explicitDates bool, result *core.Classification) {
	fallback := func(err error) {
		c.logger.Warn("Intent strategy failed, falling back to chat",
			zap.Error(err))
		result.Intent, result.Confidence, result.Source = core.IntentChatFallback, 0, core.SourceFallback
	}

	if c.strategy == nil {
		result.Intent, result.Confidence, result.Source = core.IntentChatFallback, 0, core.SourceFallback
		return
	}
	decision, err := c.strategy.Decide(ctx, utterance, history)
	if err != nil {
		fallback(err)
		return
	}
	if _, ok := core.ParseIntent(string(decision.Intent)); !ok {
		fallback(&core.ValidationError{Field: "intent", Reason: "unknown intent " + string(decision.Intent)})
		return
	}

	result.Intent, result.Confidence, result.Source = decision.Intent, decision.Confidence, core.SourceModel

	// model slots only fill what the utterance left unset
	if slots.Category == "" {
		if cat, ok := core.ParseCategory(decision.Category); ok {
			slots.Category = cat
		}
	}
	if !explicitDates {
		start, okStart := utils.ParseDate(decision.StartDate)
		end, okEnd := utils.ParseDate(decision.EndDate)
		if okStart || okEnd {
			if !okEnd {
				end = core.UTCDate(c.now())
			}
			if !okStart {
				start = end.AddDate(0, 0, -c.days)
			}
			slots.DateRange = core.DateRange{Start: start, End: end}
		}
	}
	if len(slots.Keywords) == 0 {
		for _, k := range decision.Keywords {
			if k = strings.TrimSpace(k); k != "" {
				slots.Keywords = append(slots.Keywords, k)
			}
		}
	}
}

func (c *Classifier) localSlots(utterance, normalized string) (core.Slots, bool) {
	var slots core.Slots
	if cat, ok := core.DetectCategory(normalized); ok {
		slots.Category = cat
	}
	dr, explicit := dateRangeOf(normalized, c.now())
	if explicit {
		slots.DateRange = dr
	}
	if n, ok := maxResultsOf(normalized); ok {
		slots.MaxResults = n
	}
	slots.Keywords = keywordsOf(utterance)
	slots.Query = strings.TrimSpace(utterance)
	return slots, explicit
}

func (c *Classifier) applyDefaults(slots *core.Slots) {
	if slots.Category == "" {
		slots.Category = core.CategoryGeneral
	}
	if slots.DateRange.IsZero() {
		slots.DateRange = core.LastDays(c.now(), c.days)
	}
	if slots.MaxResults == 0 {
		slots.MaxResults = c.max
	}
}
