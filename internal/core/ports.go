package core

import (
	"context"
)

// LLMClient defines the interface for interacting with LLM services
type LLMClient interface {
	// Complete sends a system and user prompt and returns the raw model text
	Complete(ctx context.Context, system, prompt string) (string, error)

	// Name returns the model identifier used for logging
	Name() string
}

// Embedder turns text into a fixed-length vector
type Embedder interface {
	// Embed must be deterministic for identical text
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SourceFetcher retrieves raw emails from the mail provider
type SourceFetcher interface {
	// Fetch returns an empty slice for zero results and ErrAuth or ErrRateLimit on systemic failure
	Fetch(ctx context.Context, categoryHint Category, dateRange DateRange, maxResults int) ([]*RawItem, error)
}

// AttachmentExtractor pulls text out of a stored attachment
type AttachmentExtractor interface {
	// ExtractText returns nil when the content cannot be extracted
	ExtractText(ctx context.Context, ref string) (*string, error)
}

// Notifier delivers outbound messages
type Notifier interface {
	Send(ctx context.Context, channel, message string) error
}

// WebSearcher finds web pages for deal finding
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// ReminderSink schedules reminders
type ReminderSink interface {
	Schedule(ctx context.Context, reminder Reminder) error
}

// IntentDecision is the raw answer of an intent strategy
type IntentDecision struct {
	Intent     Intent
	Confidence float64
	Category   string
	StartDate  string
	EndDate    string
	Keywords   []string
}

// IntentStrategy classifies utterances the heuristics cannot
type IntentStrategy interface {
	Decide(ctx context.Context, utterance string, history []Turn) (*IntentDecision, error)
}

// RelevanceTarget is what a scan is looking for
type RelevanceTarget struct {
	Category Category
	Keywords []string
	Query    string
}

// RelevanceDecision is the accept/reject answer of the relevance filter
type RelevanceDecision struct {
	Accept    bool
	Score     float64
	Rationale string
}

// RelevanceStrategy decides whether a raw item matches the target
type RelevanceStrategy interface {
	Evaluate(ctx context.Context, item *RawItem, target RelevanceTarget) (*RelevanceDecision, error)
}

// FieldDraft is the unvalidated output of a field extractor
type FieldDraft struct {
	Summary    string
	Category   string
	Vendor     string
	Amount     string
	Currency   string
	DueDate    string
	Confidence float64
}

// FieldExtractor derives a summary and raw structured fields from email text
type FieldExtractor interface {
	Draft(ctx context.Context, item *RawItem, text string, target Category) (*FieldDraft, error)
}

// RecordStore is the semantic index of records
type RecordStore interface {
	Upsert(ctx context.Context, record *Record) (bool, error)
	Query(ctx context.Context, text string, filter RecordFilter, topK int) ([]Hit, error)
	Get(ctx context.Context, id string) (*Record, error)
	Count() int
}

// Synthesizer turns a turn outcome into the answer text
type Synthesizer interface {
	Synthesize(ctx context.Context, utterance string, outcome *TurnOutcome) (string, error)
}
