package factory

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/mikey/inbox-agent/internal/adapters/gmail"
	"github.com/mikey/inbox-agent/internal/adapters/mailbox"
	"github.com/mikey/inbox-agent/internal/config"
	"github.com/mikey/inbox-agent/internal/core"
)

// SourceFactory creates the mail source and the attachment extractor
type SourceFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewSourceFactory creates a new source factory
func NewSourceFactory(cfg *config.Config, logger *zap.Logger) *SourceFactory {
	return &SourceFactory{
		cfg:    cfg,
		logger: logger,
	}
}

func (f *SourceFactory) attachmentStore() *mailbox.AttachmentStore {
	if dir := f.cfg.GetSource().RawDir; dir != "" {
		return mailbox.NewAttachmentStore(dir)
	}
	return nil
}

// CreateFetcher creates the fetcher for source.type
func (f *SourceFactory) CreateFetcher() (core.SourceFetcher, error) {
	sourceCfg := f.cfg.GetSource()

	switch sourceCfg.Type {
	case "gmail":
		gmailCfg := f.cfg.GetGmail()
		// the token source outlives the turn that first connects
		connect := func(ctx context.Context) (*gmailapi.Service, error) {
			return gmail.NewService(context.WithoutCancel(ctx), gmailCfg.CredentialsFile, gmailCfg.TokenFile, f.logger)
		}
		return gmail.NewFetcher(gmail.NewLazyServiceAPI(connect, gmailCfg.User), f.attachmentStore(), gmail.Options{
			RequireAttachments: sourceCfg.RequireAttachments,
			RateLimit:          sourceCfg.RateLimit,
			Burst:              sourceCfg.Burst,
		}, f.logger), nil
	case "maildir":
		return mailbox.NewDirFetcher(sourceCfg.Maildir, f.attachmentStore(), f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported source type: %s", sourceCfg.Type)
	}
}

// CreateAttachmentExtractor creates the extractor for saved attachments
func (f *SourceFactory) CreateAttachmentExtractor() core.AttachmentExtractor {
	return mailbox.NewFileTextExtractor(0)
}
