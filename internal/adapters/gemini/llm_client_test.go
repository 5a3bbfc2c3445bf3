package gemini

import (
	"errors"
	"net/http"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mikey/inbox-agent/internal/core"
)

func TestMapError(t *testing.T) {
	assert.ErrorIs(t, mapError(&googleapi.Error{Code: http.StatusForbidden}), core.ErrAuth)
	assert.ErrorIs(t, mapError(&googleapi.Error{Code: http.StatusTooManyRequests}), core.ErrRateLimit)
	assert.ErrorIs(t, mapError(status.Error(codes.ResourceExhausted, "quota")), core.ErrRateLimit)
	assert.ErrorIs(t, mapError(status.Error(codes.Unauthenticated, "key")), core.ErrAuth)

	other := errors.New("boom")
	assert.Equal(t, other, mapError(other))
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text(" {\"a\":"), genai.Text("1} ")}},
	}}}
	assert.Equal(t, `{"a":1}`, responseText(resp))
	assert.Equal(t, "", responseText(&genai.GenerateContentResponse{}))
	assert.Equal(t, "", responseText(nil))
}
