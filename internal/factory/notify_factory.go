package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/inbox-agent/internal/adapters/notify"
	"github.com/mikey/inbox-agent/internal/adapters/websearch"
	"github.com/mikey/inbox-agent/internal/config"
	"github.com/mikey/inbox-agent/internal/core"
)

// NotifyFactory creates the notifier, the reminder sink and the web searcher
type NotifyFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewNotifyFactory creates a new notify factory
func NewNotifyFactory(cfg *config.Config, logger *zap.Logger) *NotifyFactory {
	return &NotifyFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateNotifier creates the notifier for notify.type
func (f *NotifyFactory) CreateNotifier() (core.Notifier, error) {
	switch notifyType := f.cfg.GetNotify().Type; notifyType {
	case "log":
		return notify.NewLogNotifier(f.logger), nil
	case "smtp":
		smtpCfg := f.cfg.GetSMTP()
		return notify.NewSMTPNotifier(notify.SMTPOptions{
			Address:  smtpCfg.Address,
			Port:     smtpCfg.Port,
			Username: smtpCfg.Username,
			Password: smtpCfg.Password,
			From:     smtpCfg.From,

			StartTLS:      smtpCfg.StartTLS,
			TLSSkipVerify: smtpCfg.TLSSkipVerify,
		}, f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported notifier type: %s", notifyType)
	}
}

// CreateReminders creates a reminder sink delivering through notifier
func (f *NotifyFactory) CreateReminders(notifier core.Notifier) core.ReminderSink {
	return notify.NewReminders(notifier, f.cfg.GetNotify().Channel)
}

// CreateSearcher creates the web searcher, nil when websearch.type is none
func (f *NotifyFactory) CreateSearcher() (core.WebSearcher, error) {
	searchCfg := f.cfg.GetWebSearch()
	switch searchCfg.Type {
	case "none", "":
		return nil, nil
	case "searxng":
		return websearch.NewSearXNG(searchCfg.URL, searchCfg.MaxResults, searchCfg.Timeout, f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported web search type: %s", searchCfg.Type)
	}
}
