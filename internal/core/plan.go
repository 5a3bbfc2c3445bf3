package core

import "time"

// Intent is the purpose of a user utterance
type Intent string

const (
	IntentScanEmails       Intent = "scan_emails"
	IntentQueryHistory     Intent = "query_history"
	IntentAnalyzeSpending  Intent = "analyze_spending"
	IntentFindAlternatives Intent = "find_alternatives"
	IntentSetReminder      Intent = "set_reminder"
	IntentChatFallback     Intent = "chat_fallback"
)

// Intents lists every intent the planner understands
var Intents = []Intent{
	IntentScanEmails,
	IntentQueryHistory,
	IntentAnalyzeSpending,
	IntentFindAlternatives,
	IntentSetReminder,
	IntentChatFallback,
}

// ParseIntent returns the intent named by s
func ParseIntent(s string) (Intent, bool) {
	for _, i := range Intents {
		if string(i) == s {
			return i, true
		}
	}
	return "", false
}

// Slots are the structured parameters extracted from an utterance
type Slots struct {
	Category   Category
	DateRange  DateRange
	MaxResults int
	Keywords   []string
	// Query is the free text used for semantic search.
	Query string
}

// ClassificationSource records which rule produced an intent
type ClassificationSource string

const (
	SourceOverride  ClassificationSource = "override"
	SourceHeuristic ClassificationSource = "heuristic"
	SourceModel     ClassificationSource = "model"
	SourceFallback  ClassificationSource = "fallback"
)

// Classification is the result of intent classification
type Classification struct {
	Intent     Intent
	Slots      Slots
	Confidence float64
	Source     ClassificationSource
	Utterance  string
}

// StepKind names an executable plan step
type StepKind string

const (
	StepFetch     StepKind = "fetch"
	StepFilter    StepKind = "filter"
	StepExtract   StepKind = "extract"
	StepIndex     StepKind = "index"
	StepQuery     StepKind = "query"
	StepAggregate StepKind = "aggregate"
	StepWebSearch StepKind = "web_search"
	StepReminder  StepKind = "reminder"
)

// StepParams are the bound parameters of a step
type StepParams struct {
	Category   Category
	Categories []Category
	DateRange  DateRange
	MaxResults int
	Keywords   []string
	QueryText  string
	Field      string
}

// Step is one tool invocation in a plan
type Step struct {
	Kind   StepKind
	Params StepParams
}

// Plan is the validated, ordered list of steps for a single turn
type Plan struct {
	Intent Intent
	Slots  Slots
	Steps  []Step
}

// Kinds returns the step kinds in order
func (p *Plan) Kinds() []StepKind {
	kinds := make([]StepKind, len(p.Steps))
	for i, s := range p.Steps {
		kinds[i] = s.Kind
	}
	return kinds
}

// RecordFilter restricts a record store query
type RecordFilter struct {
	Categories []Category
	DateRange  *DateRange
	Keywords   []string
}

// Hit is a record returned by a similarity query
type Hit struct {
	Record *Record
	Score  float64
}

// SearchResult is one ranked web search result
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// Reminder is a scheduled follow-up handed to the reminder sink
type Reminder struct {
	RecordID string
	Message  string
	DueDate  *time.Time
}
