// Package gmail fetches raw messages from the Gmail API.
package gmail

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/mikey/inbox-agent/internal/core"
)

// NewService builds a read-only Gmail service from an OAuth client
// credentials file and a previously authorized token file. Refreshed tokens
// are written back to tokenFile.
func NewService(ctx context.Context, credentialsFile, tokenFile string, logger *zap.Logger) (*gmailapi.Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	credentials, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read gmail credentials: %v", core.ErrAuth, err)
	}
	oauthCfg, err := google.ConfigFromJSON(credentials, gmailapi.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse gmail credentials: %v", core.ErrAuth, err)
	}

	token, err := readToken(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read gmail token %s: %v", core.ErrAuth, tokenFile, err)
	}

	ts := &persistingTokenSource{
		src:     oauthCfg.TokenSource(ctx, token),
		current: token,
		path:    tokenFile,
		logger:  logger,
	}
	svc, err := gmailapi.NewService(ctx, option.WithTokenSource(oauth2.ReuseTokenSource(token, ts)))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return svc, nil
}

func readToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// persistingTokenSource saves the token whenever the access token changes
type persistingTokenSource struct {
	src    oauth2.TokenSource
	path   string
	logger *zap.Logger

	mu      sync.Mutex
	current *oauth2.Token
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrAuth, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := writeToken(s.path, t); err != nil {
			s.logger.Warn("Failed to save refreshed gmail token", zap.String("path", s.path), zap.Error(err))
		}
	}
	return t, nil
}

func writeToken(path string, t *oauth2.Token) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
