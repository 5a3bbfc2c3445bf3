package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/inbox-agent/internal/core"
)

// SMTPOptions configure the mail relay
type SMTPOptions struct {
	Address  string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
	// StartTLS requires the server to upgrade the session before AUTH
	StartTLS      bool
	TLSSkipVerify bool
}

// SMTPNotifier mails each notification to the channel address
type SMTPNotifier struct {
	opts   SMTPOptions
	logger *zap.Logger
}

// NewSMTPNotifier creates a notifier that relays through an SMTP server
func NewSMTPNotifier(opts SMTPOptions, logger *zap.Logger) *SMTPNotifier {
	if opts.Port == 0 {
		opts.Port = 25
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPNotifier{opts: opts, logger: logger}
}

// Send mails message to the address in channel
func (n *SMTPNotifier) Send(ctx context.Context, channel, message string) error {
	to := strings.TrimPrefix(strings.TrimSpace(channel), "mailto:")
	if to == "" {
		return &core.ValidationError{Field: "channel", Reason: "recipient address is required"}
	}

	body, err := n.compose(to, message)
	if err != nil {
		return err
	}
	if err := n.deliver(ctx, to, body); err != nil {
		return err
	}
	n.logger.Debug("Sent notification", zap.String("to", to))
	return nil
}

func (n *SMTPNotifier) compose(to, message string) ([]byte, error) {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Address: n.opts.From}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(subjectOf(message))
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	if _, err := w.Write([]byte(message + "\r\n")); err != nil {
		return nil, fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to write message: %w", err)
	}
	return buf.Bytes(), nil
}

func (n *SMTPNotifier) deliver(ctx context.Context, to string, data []byte) error {
	addr := net.JoinHostPort(n.opts.Address, fmt.Sprint(n.opts.Port))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	dialer := net.Dialer{Timeout: n.opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server %s: %w", addr, err)
	}
	deadline := time.Now().Add(n.opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c, err := n.newClient(conn)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}
	if n.opts.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", n.opts.Username, n.opts.Password)); err != nil {
			return fmt.Errorf("%w: SMTP authentication failed: %v", core.ErrAuth, err)
		}
	}
	if err := c.Mail(n.opts.From, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if err := c.Rcpt(to, nil); err != nil {
		return fmt.Errorf("RCPT TO failed: %w", err)
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// already accepted
		n.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

// newClient wraps conn, upgrading it first when StartTLS is set. The
// client announces itself again after the upgrade, so Hello still applies.
func (n *SMTPNotifier) newClient(conn net.Conn) (*smtp.Client, error) {
	if !n.opts.StartTLS {
		return smtp.NewClient(conn), nil
	}
	c, err := smtp.NewClientStartTLS(conn, &tls.Config{
		ServerName:         n.opts.Address,
		InsecureSkipVerify: n.opts.TLSSkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("STARTTLS failed: %w", err)
	}
	return c, nil
}

// subjectOf uses the first line of the message, shortened
func subjectOf(message string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(message), "\n")
	line = strings.TrimSpace(line)
	if r := []rune(line); len(r) > 78 {
		line = string(r[:75]) + "..."
	}
	if line == "" {
		line = "Inbox agent notification"
	}
	return line
}
