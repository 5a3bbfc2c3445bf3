package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/inbox-agent/internal/core"
	"github.com/mikey/inbox-agent/internal/utils"
)

const extractionSystemPrompt = "You extract structured data from emails. Respond only with JSON."

// categoryHints tells the model what the fixed schema means per category
var categoryHints = map[core.Category]string{
	core.CategoryBills:     "This is a bill or invoice: vendor is the company billing, amount is the total due, due_date is the payment due date.",
	core.CategoryBanking:   "This is a banking email: vendor is the bank, amount is the transaction or statement balance, due_date is any payment due date.",
	core.CategoryInsurance: "This is an insurance email: vendor is the insurer, amount is the premium, due_date is the renewal or payment date.",
	core.CategoryTax:       "This is a tax email: vendor is the tax authority or preparer, amount is the tax owed or refunded, due_date is the filing deadline.",
	core.CategoryPromotions: "This is a promotion: vendor is the company offering it, amount is the discounted price if any, " +
		"due_date is the expiration date of the offer.",
	core.CategoryOrders:   "This is an order confirmation: vendor is the store, amount is the order total, due_date is the expected delivery date.",
	core.CategoryShipping: "This is a shipping update: vendor is the store or carrier, amount is empty unless a charge is due, due_date is the expected delivery date.",
	core.CategoryUniversities: "This is a university email: vendor is the institution, amount is any fee due, " +
		"due_date is the application or decision deadline.",
	core.CategoryTravel: "This is a travel email: vendor is the airline, hotel or agency, amount is the booking total, due_date is the travel date.",
}

const generalHint = "Summarize the email; fill vendor, amount and due_date only if they are clearly stated."

const extractionPromptFormat = `Extract data from the following email.
%s

Email:
From: %s
Subject: %s
Text:
%s

Respond with a JSON object containing:
- summary: string (one or two sentences)
- category: one of %s
- vendor: string or empty
- amount: number or string as written, or empty
- currency: ISO 4217 code or empty
- due_date: YYYY-MM-DD or empty
- confidence: number between 0 and 1

Respond only with the JSON object and nothing else.`

// looseString accepts a JSON string, number or null
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = looseString(str)
		return nil
	}
	var num float64
	if err := json.Unmarshal(b, &num); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(b))
	}
	*s = looseString(strconv.FormatFloat(num, 'f', -1, 64))
	return nil
}

type extractionResponse struct {
	Summary    string      `json:"summary"`
	Category   string      `json:"category"`
	Vendor     looseString `json:"vendor"`
	Amount     looseString `json:"amount"`
	Currency   looseString `json:"currency"`
	DueDate    looseString `json:"due_date"`
	Confidence float64     `json:"confidence"`
}

// LLMStrategy drafts fields with a language model
type LLMStrategy struct {
	llm    core.LLMClient
	logger *zap.Logger
}

// NewLLMStrategy creates a model-backed field extractor
func NewLLMStrategy(llm core.LLMClient, logger *zap.Logger) *LLMStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMStrategy{llm: llm, logger: logger}
}

// Draft sends the extraction prompt for the target category
func (s *LLMStrategy) Draft(ctx context.Context, item *core.RawItem, text string, target core.Category) (*core.FieldDraft, error) {
	hint, ok := categoryHints[target]
	if !ok {
		hint = generalHint
	}
	categories := make([]string, len(core.Categories))
	for i, c := range core.Categories {
		categories[i] = string(c)
	}

	prompt := fmt.Sprintf(extractionPromptFormat, hint, item.Sender, item.Subject, text, strings.Join(categories, ", "))
	reply, err := s.llm.Complete(ctx, extractionSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to extract fields with %s: %w", s.llm.Name(), err)
	}

	var resp extractionResponse
	if err := utils.DecodeJSONResponse(reply, &resp); err != nil {
		return nil, err
	}
	return &core.FieldDraft{
		Summary:    resp.Summary,
		Category:   resp.Category,
		Vendor:     string(resp.Vendor),
		Amount:     string(resp.Amount),
		Currency:   string(resp.Currency),
		DueDate:    string(resp.DueDate),
		Confidence: resp.Confidence,
	}, nil
}
