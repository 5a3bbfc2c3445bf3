package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/mikey/inbox-agent/internal/adapters/mailbox"
	"github.com/mikey/inbox-agent/internal/core"
)

// pageSize is the largest page the messages.list endpoint returns
const pageSize = 100

// API is the subset of the Gmail API the fetcher calls
type API interface {
	// List returns message ids matching query and the next page token
	List(ctx context.Context, query, pageToken string, limit int64) ([]string, string, error)
	// GetRaw returns the base64url encoded RFC 2822 message and its internal date in ms
	GetRaw(ctx context.Context, id string) (string, int64, error)
}

// serviceAPI adapts a Gmail service to API
type serviceAPI struct {
	svc  *gmailapi.Service
	user string
}

// NewServiceAPI wraps svc for the given user, "me" when empty
func NewServiceAPI(svc *gmailapi.Service, user string) API {
	if user == "" {
		user = "me"
	}
	return &serviceAPI{svc: svc, user: user}
}

// Connector opens an authorized Gmail service
type Connector func(ctx context.Context) (*gmailapi.Service, error)

// lazyAPI connects on first use so auth problems surface from Fetch
type lazyAPI struct {
	connect Connector
	user    string

	mu  sync.Mutex
	api API
}

// NewLazyServiceAPI defers connect until the first call. A failed connect is
// retried on the next call.
func NewLazyServiceAPI(connect Connector, user string) API {
	return &lazyAPI{connect: connect, user: user}
}

func (a *lazyAPI) resolve(ctx context.Context) (API, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.api != nil {
		return a.api, nil
	}
	svc, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}
	a.api = NewServiceAPI(svc, a.user)
	return a.api, nil
}

func (a *lazyAPI) List(ctx context.Context, query, pageToken string, limit int64) ([]string, string, error) {
	api, err := a.resolve(ctx)
	if err != nil {
		return nil, "", err
	}
	return api.List(ctx, query, pageToken, limit)
}

func (a *lazyAPI) GetRaw(ctx context.Context, id string) (string, int64, error) {
	api, err := a.resolve(ctx)
	if err != nil {
		return "", 0, err
	}
	return api.GetRaw(ctx, id)
}

func (a *serviceAPI) List(ctx context.Context, query, pageToken string, limit int64) ([]string, string, error) {
	call := a.svc.Users.Messages.List(a.user).Q(query).MaxResults(limit).Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, "", err
	}
	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, resp.NextPageToken, nil
}

func (a *serviceAPI) GetRaw(ctx context.Context, id string) (string, int64, error) {
	msg, err := a.svc.Users.Messages.Get(a.user, id).Format("raw").Context(ctx).Do()
	if err != nil {
		return "", 0, err
	}
	return msg.Raw, msg.InternalDate, nil
}

// Options tune the fetcher
type Options struct {
	RequireAttachments bool
	RateLimit          float64
	Burst              int
}

// Fetcher lists and downloads messages matching a category and date window
type Fetcher struct {
	api         API
	attachments *mailbox.AttachmentStore
	opts        Options
	limiter     *rateLimiter
	logger      *zap.Logger
}

// NewFetcher creates a Gmail source. attachments may be nil.
func NewFetcher(api API, attachments *mailbox.AttachmentStore, opts Options, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		api:         api,
		attachments: attachments,
		opts:        opts,
		limiter:     newRateLimiter(opts.RateLimit, opts.Burst),
		logger:      logger,
	}
}

// Fetch returns up to maxResults messages. Authentication and rate limit
// failures abort the fetch; a message that cannot be downloaded or parsed
// is skipped.
func (f *Fetcher) Fetch(ctx context.Context, categoryHint core.Category, dateRange core.DateRange, maxResults int) ([]*core.RawItem, error) {
	query := BuildQuery(categoryHint, dateRange, f.opts.RequireAttachments)
	ids, err := f.list(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}

	items := make([]*core.RawItem, 0, len(ids))
	for _, id := range ids {
		item, err := f.get(ctx, id)
		if err != nil {
			if errors.Is(err, core.ErrAuth) || errors.Is(err, core.ErrRateLimit) || ctx.Err() != nil {
				return nil, err
			}
			f.logger.Warn("Skipping gmail message", zap.String("message_id", id), zap.Error(err))
			continue
		}
		items = append(items, item)
	}

	f.logger.Info("Fetched gmail messages",
		zap.String("query", query),
		zap.Int("listed", len(ids)),
		zap.Int("fetched", len(items)))
	return items, nil
}

func (f *Fetcher) list(ctx context.Context, query string, maxResults int) ([]string, error) {
	var ids []string
	token := ""
	for {
		limit := int64(pageSize)
		if maxResults > 0 {
			limit = int64(min(pageSize, maxResults-len(ids)))
		}
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, next, err := f.api.List(ctx, query, token, limit)
		if err != nil {
			return nil, f.fail("list", err)
		}
		ids = append(ids, page...)
		if maxResults > 0 && len(ids) >= maxResults {
			return ids[:maxResults], nil
		}
		if next == "" || len(page) == 0 {
			return ids, nil
		}
		token = next
	}
}

func (f *Fetcher) get(ctx context.Context, id string) (*core.RawItem, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	raw, internalDate, err := f.api.GetRaw(ctx, id)
	if err != nil {
		return nil, f.fail("get", err)
	}
	data, err := decodeRaw(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	msg, err := mailbox.ParseMessage(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if msg.Date.IsZero() && internalDate > 0 {
		msg.Date = time.UnixMilli(internalDate).UTC()
	}

	item := &core.RawItem{
		ID:      id,
		Sender:  msg.Sender,
		Subject: msg.Subject,
		Date:    msg.Date,
		Body:    msg.Body,
	}
	if f.attachments != nil && len(msg.Attachments) > 0 {
		refs, err := f.attachments.Save(id, msg.Date, msg.Sender, msg.Subject, msg.Attachments)
		if err != nil {
			f.logger.Warn("Failed to save attachments", zap.String("item_id", id), zap.Error(err))
		}
		item.AttachmentRefs = refs
	}
	return item, nil
}

func (f *Fetcher) fail(op string, err error) error {
	mapped := mapError(err)
	if errors.Is(mapped, core.ErrRateLimit) {
		f.limiter.Backoff(retryAfter(err))
	}
	return fmt.Errorf("failed to %s gmail messages: %w", op, mapped)
}

func decodeRaw(raw string) ([]byte, error) {
	data, err := base64.URLEncoding.DecodeString(raw)
	if err == nil {
		return data, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
}

// BuildQuery renders the Gmail search for a category and date window; the
// before: operator is exclusive so the window end is pushed one day out
func BuildQuery(categoryHint core.Category, dateRange core.DateRange, requireAttachments bool) string {
	var parts []string
	if !dateRange.IsZero() {
		parts = append(parts,
			"after:"+dateRange.Start.UTC().Format("2006/01/02"),
			"before:"+core.UTCDate(dateRange.End).AddDate(0, 0, 1).Format("2006/01/02"))
	}
	if terms := core.CategoryTerms[categoryHint]; len(terms) > 0 {
		quoted := make([]string, 0, len(terms))
		for _, t := range terms {
			if strings.Contains(t, " ") {
				t = `"` + t + `"`
			}
			quoted = append(quoted, t)
		}
		parts = append(parts, "{"+strings.Join(quoted, " ")+"}")
	}
	if requireAttachments {
		parts = append(parts, "has:attachment")
	}
	return strings.Join(parts, " ")
}
