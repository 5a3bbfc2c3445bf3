package core

// ItemFailure records a per-item error in a scan
type ItemFailure struct {
	ItemID  string
	Kind    ErrorKind
	Message string
}

// Rejection records an item the relevance filter turned away
type Rejection struct {
	ItemID    string
	Subject   string
	Rationale string
	Score     float64
}

// StepAnnotation marks a step that exhausted its retry budget or failed outright
type StepAnnotation struct {
	Step    StepKind
	Kind    ErrorKind
	Message string
}

// ScanOutcome aggregates the result of one scan step
type ScanOutcome struct {
	Fetched     int
	FilteredOut int
	Extracted   int
	// Indexed counts ids that did not exist in the store before this scan.
	Indexed    int
	Updated    int
	Failed     int
	Cancelled  int
	Failures   []ItemFailure
	Rejections []Rejection
}

// SpendingSummary aggregates structured amounts
type SpendingSummary struct {
	Total    float64
	Count    int
	Skipped  int
	ByVendor map[string]float64
	Currency string
}

// OutcomeStatus separates empty results from failures
type OutcomeStatus string

const (
	StatusOK      OutcomeStatus = "ok"
	StatusEmpty   OutcomeStatus = "empty"
	StatusPartial OutcomeStatus = "partial"
	StatusFailed  OutcomeStatus = "failed"
)

// TurnOutcome is everything the executor gathered for the synthesizer
type TurnOutcome struct {
	Intent      Intent
	Category    Category
	Status      OutcomeStatus
	Scan        *ScanOutcome
	Hits        []Hit
	Spending    *SpendingSummary
	WebResults  []SearchResult
	Reminders   []Reminder
	Annotations []StepAnnotation
	// FailureMessage is set when the turn could not be completed.
	FailureMessage string
}

// Annotate appends a step annotation
func (o *TurnOutcome) Annotate(step StepKind, err error) {
	o.Annotations = append(o.Annotations, StepAnnotation{Step: step, Kind: KindOf(err), Message: err.Error()})
}
