// Package extraction turns an accepted raw email into a record.
package extraction

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/inbox-agent/internal/core"
	"github.com/mikey/inbox-agent/internal/utils"
)

const (
	// DefaultBodyPreviewSize bounds Record.BodyPreview in bytes
	DefaultBodyPreviewSize = 500
	// DefaultMaxTextSize bounds the text handed to a field extractor
	DefaultMaxTextSize = 8000

	maxVendorLength = 120
)

var currencyISO = regexp.MustCompile(`^[A-Z]{3}$`)

// Options configures a Pipeline
type Options struct {
	BodyPreviewSize int
	MaxTextSize     int
	Retry           utils.RetryOptions
}

// Pipeline gathers attachment text, drafts fields and validates them
type Pipeline struct {
	attachments   core.AttachmentExtractor
	extractor     core.FieldExtractor
	textProcessor *utils.TextProcessor
	opts          Options
	logger        *zap.Logger
}

// NewPipeline creates an extraction pipeline. attachments may be nil.
func NewPipeline(
	attachments core.AttachmentExtractor,
	extractor core.FieldExtractor,
	textProcessor *utils.TextProcessor,
	opts Options,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if textProcessor == nil {
		textProcessor = utils.NewTextProcessor(logger)
	}
	if opts.BodyPreviewSize <= 0 {
		opts.BodyPreviewSize = DefaultBodyPreviewSize
	}
	if opts.MaxTextSize <= 0 {
		opts.MaxTextSize = DefaultMaxTextSize
	}
	return &Pipeline{
		attachments:   attachments,
		extractor:     extractor,
		textProcessor: textProcessor,
		opts:          opts,
		logger:        logger,
	}
}

// Extract builds the record for item. Errors wrap core.ErrExtraction and mean
// the item is skipped. A record whose fields fail validation is still
// returned with Fields set to nil.
func (p *Pipeline) Extract(ctx context.Context, item *core.RawItem, target core.Category) (*core.Record, error) {
	if item == nil || item.ID == "" {
		return nil, fmt.Errorf("%w: item has no id", core.ErrExtraction)
	}

	attachmentText := p.attachmentText(ctx, item)
	body := p.textProcessor.SanitizeUTF8(item.Body)
	subject := strings.TrimSpace(p.textProcessor.SanitizeUTF8(item.Subject))
	if subject == "" && strings.TrimSpace(body) == "" && attachmentText == "" {
		return nil, fmt.Errorf("%w: item %s has no subject, body or attachment text", core.ErrExtraction, item.ID)
	}

	text := body
	if attachmentText != "" {
		text = strings.TrimSpace(body + "\n\n" + attachmentText)
	}
	text = p.textProcessor.ProcessText(text, p.opts.MaxTextSize)

	var draft *core.FieldDraft
	err := utils.WithRetry(ctx, p.logger, p.opts.Retry, func(ctx context.Context) error {
		d, err := p.extractor.Draft(ctx, item, text, target)
		if err != nil {
			return err
		}
		draft = d
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: item %s: %v", core.ErrExtraction, item.ID, err)
	}

	record := &core.Record{
		ID:             item.ID,
		Category:       confirmCategory(target, draft.Category, subject+"\n"+body),
		Sender:         item.Sender,
		Subject:        subject,
		Date:           core.UTCDate(item.Date),
		BodyPreview:    p.textProcessor.Preview(body, p.opts.BodyPreviewSize),
		Summary:        p.summaryOf(draft.Summary, subject, body),
		HasAttachments: len(item.AttachmentRefs) > 0,
		Fields:         ValidateFields(draft),
	}

	p.logger.Debug("Extracted record",
		zap.String("item_id", item.ID),
		zap.String("category", string(record.Category)),
		zap.Bool("has_fields", record.Fields != nil))
	return record, nil
}

func (p *Pipeline) attachmentText(ctx context.Context, item *core.RawItem) string {
	if p.attachments == nil || len(item.AttachmentRefs) == 0 {
		return ""
	}
	var parts []string
	for _, ref := range item.AttachmentRefs {
		text, err := p.attachments.ExtractText(ctx, ref)
		if err != nil {
			p.logger.Warn("Failed to extract attachment text",
				zap.String("item_id", item.ID),
				zap.String("attachment", ref),
				zap.Error(err))
			continue
		}
		if text == nil || strings.TrimSpace(*text) == "" {
			continue
		}
		parts = append(parts, p.textProcessor.SanitizeUTF8(*text))
	}
	return strings.Join(parts, "\n\n")
}

// confirmCategory keeps a specific scan target, otherwise trusts a valid
// draft category, otherwise falls back to the lexicon
func confirmCategory(target core.Category, drafted, text string) core.Category {
	if target != "" && target != core.CategoryGeneral && target.Valid() {
		return target
	}
	if c, ok := core.ParseCategory(drafted); ok {
		return c
	}
	if c, ok := core.DetectCategory(text); ok {
		return c
	}
	return core.CategoryGeneral
}

func (p *Pipeline) summaryOf(drafted, subject, body string) string {
	if s := strings.TrimSpace(drafted); s != "" {
		return p.textProcessor.Preview(s, p.opts.BodyPreviewSize)
	}
	if subject != "" {
		return subject
	}
	return p.textProcessor.Preview(body, 160)
}

// ValidateFields checks a draft against the field schema. Invalid fields are
// dropped; nil is returned when nothing valid remains.
func ValidateFields(draft *core.FieldDraft) *core.StructuredFields {
	if draft == nil {
		return nil
	}
	fields := &core.StructuredFields{}

	if v := strings.TrimSpace(draft.Vendor); v != "" && len(v) <= maxVendorLength {
		fields.Vendor = v
	}
	if amount, currency, ok := utils.ParseAmount(draft.Amount); ok {
		fields.Amount = &amount
		fields.Currency = currency
	}
	if c := strings.ToUpper(strings.TrimSpace(draft.Currency)); currencyISO.MatchString(c) {
		fields.Currency = c
	}
	if due, ok := utils.ParseDate(draft.DueDate); ok {
		fields.DueDate = &due
	}

	if fields.Empty() {
		return nil
	}
	if fields.Amount == nil {
		fields.Currency = ""
	}
	fields.Confidence = clamp(draft.Confidence)
	return fields
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
