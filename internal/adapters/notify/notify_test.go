package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mikey/inbox-agent/internal/core"
)

type delivery struct {
	from string
	to   []string
	data string
	tls  bool
}

type recordingBackend struct {
	mu         sync.Mutex
	deliveries []delivery
}

func (b *recordingBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	_, secure := c.TLSConnectionState()
	return &recordingSession{backend: b, tls: secure}, nil
}

type recordingSession struct {
	backend *recordingBackend
	tls     bool
	current delivery
}

func (s *recordingSession) Reset()        { s.current = delivery{} }
func (s *recordingSession) Logout() error { return nil }

func (s *recordingSession) Mail(from string, _ *smtp.MailOptions) error {
	s.current.from = from
	return nil
}

func (s *recordingSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.current.to = append(s.current.to, to)
	return nil
}

func (s *recordingSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.current.data = string(data)
	s.current.tls = s.tls
	s.backend.mu.Lock()
	s.backend.deliveries = append(s.backend.deliveries, s.current)
	s.backend.mu.Unlock()
	return nil
}

func startServer(t *testing.T) (*recordingBackend, string, int) {
	return startServerTLS(t, nil)
}

// startServerTLS advertises STARTTLS when tlsConfig is set
func startServerTLS(t *testing.T, tlsConfig *tls.Config) (*recordingBackend, string, int) {
	t.Helper()
	backend := &recordingBackend{}
	server := smtp.NewServer(backend)
	server.TLSConfig = tlsConfig
	server.Domain = "localhost"
	server.ReadTimeout = 5 * time.Second
	server.WriteTimeout = 5 * time.Second

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = server.Serve(l) }()
	t.Cleanup(func() { _ = server.Close() })

	host, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return backend, host, p
}

func TestSMTPNotifier_Send(t *testing.T) {
	backend, host, port := startServer(t)
	n := NewSMTPNotifier(SMTPOptions{Address: host, Port: port, From: "agent@example.com"}, zap.NewNop())

	err := n.Send(context.Background(), "mailto:me@example.com", "Scanned 5 emails: 5 new\nDetails follow")
	require.NoError(t, err)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.deliveries, 1)
	d := backend.deliveries[0]
	assert.Equal(t, "agent@example.com", d.from)
	assert.Equal(t, []string{"me@example.com"}, d.to)
	assert.Contains(t, d.data, "Subject: Scanned 5 emails: 5 new")
	assert.Contains(t, d.data, "Details follow")
}

// testTLSConfig borrows the self-signed certificate of an httptest server
func testTLSConfig(t *testing.T) *tls.Config {
	t.Helper()
	ts := httptest.NewUnstartedServer(http.NotFoundHandler())
	ts.StartTLS()
	cfg := &tls.Config{Certificates: ts.TLS.Certificates}
	ts.Close()
	return cfg
}

func TestSMTPNotifier_StartTLS(t *testing.T) {
	backend, host, port := startServerTLS(t, testTLSConfig(t))
	n := NewSMTPNotifier(SMTPOptions{
		Address:       host,
		Port:          port,
		From:          "agent@example.com",
		StartTLS:      true,
		TLSSkipVerify: true,
	}, zap.NewNop())

	require.NoError(t, n.Send(context.Background(), "me@example.com", "Reminder: water bill"))

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.deliveries, 1)
	assert.True(t, backend.deliveries[0].tls)
	assert.Contains(t, backend.deliveries[0].data, "Subject: Reminder: water bill")
}

func TestSMTPNotifier_PlainWhenStartTLSDisabled(t *testing.T) {
	backend, host, port := startServerTLS(t, testTLSConfig(t))
	n := NewSMTPNotifier(SMTPOptions{Address: host, Port: port, From: "agent@example.com"}, nil)

	require.NoError(t, n.Send(context.Background(), "me@example.com", "hello"))

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.deliveries, 1)
	assert.False(t, backend.deliveries[0].tls)
}

func TestSMTPNotifier_StartTLSUnsupported(t *testing.T) {
	_, host, port := startServer(t)
	n := NewSMTPNotifier(SMTPOptions{Address: host, Port: port, From: "agent@example.com", StartTLS: true, Timeout: time.Second}, nil)

	err := n.Send(context.Background(), "me@example.com", "hello")
	assert.ErrorContains(t, err, "STARTTLS failed")
}

func TestSMTPNotifier_RequiresRecipient(t *testing.T) {
	n := NewSMTPNotifier(SMTPOptions{Address: "127.0.0.1", From: "agent@example.com"}, nil)
	err := n.Send(context.Background(), " ", "hello")
	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSMTPNotifier_ConnectFailure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().(*net.TCPAddr)
	require.NoError(t, l.Close())

	n := NewSMTPNotifier(SMTPOptions{Address: "127.0.0.1", Port: addr.Port, From: "a@example.com", Timeout: time.Second}, nil)
	err = n.Send(context.Background(), "me@example.com", "hello")
	assert.ErrorContains(t, err, "failed to connect")
}

func TestSubjectOf(t *testing.T) {
	assert.Equal(t, "first line", subjectOf("  first line \nsecond"))
	assert.Equal(t, "Inbox agent notification", subjectOf(""))
	assert.Len(t, []rune(subjectOf(strings.Repeat("a", 100))), 78)
}

func TestLogNotifier(t *testing.T) {
	obs, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(obs))
	require.NoError(t, n.Send(context.Background(), "ops", "done"))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "done", logs.All()[0].ContextMap()["message"])
}

type stubNotifier struct {
	channel, message string
	err              error
}

func (s *stubNotifier) Send(_ context.Context, channel, message string) error {
	s.channel, s.message = channel, message
	return s.err
}

func TestReminders(t *testing.T) {
	due := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	stub := &stubNotifier{}
	r := NewReminders(stub, "me@example.com")

	msg := "Reminder: City Water is due on 2026-11-01 (42.10 USD)"
	require.NoError(t, r.Schedule(context.Background(), core.Reminder{RecordID: "b1", Message: msg, DueDate: &due}))
	assert.Equal(t, "me@example.com", stub.channel)
	assert.Equal(t, msg, stub.message)

	require.NoError(t, r.Schedule(context.Background(), core.Reminder{RecordID: "b3", DueDate: &due}))
	assert.Equal(t, "Reminder for b3, due 2026-11-01", stub.message)

	stub.err = errors.New("relay down")
	err := r.Schedule(context.Background(), core.Reminder{RecordID: "b2", Message: "Pay gas"})
	assert.ErrorContains(t, err, "b2")
}
