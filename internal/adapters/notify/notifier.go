// Package notify delivers agent notifications and reminders.
package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/inbox-agent/internal/core"
)

// LogNotifier writes notifications to the log
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that only logs
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, channel, message string) error {
	n.logger.Info("Notification", zap.String("channel", channel), zap.String("message", message))
	return nil
}

// Reminders schedules reminders by sending them through a notifier
type Reminders struct {
	notifier core.Notifier
	channel  string
}

// NewReminders creates a reminder sink writing to channel
func NewReminders(notifier core.Notifier, channel string) *Reminders {
	return &Reminders{notifier: notifier, channel: channel}
}

func (r *Reminders) Schedule(ctx context.Context, reminder core.Reminder) error {
	if err := r.notifier.Send(ctx, r.channel, ReminderText(reminder)); err != nil {
		return fmt.Errorf("failed to schedule reminder for %s: %w", reminder.RecordID, err)
	}
	return nil
}

// ReminderText renders a reminder as a single line, building one from the
// record id and due date when the reminder carries no message
func ReminderText(reminder core.Reminder) string {
	if msg := strings.TrimSpace(reminder.Message); msg != "" {
		return msg
	}
	text := "Reminder for " + reminder.RecordID
	if reminder.DueDate != nil {
		text += ", due " + reminder.DueDate.Format("2006-01-02")
	}
	return text
}
