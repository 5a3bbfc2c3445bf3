package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/inbox-agent/internal/core"
)

func TestSearXNG_Search(t *testing.T) {
	var gotQuery, gotFormat string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		gotFormat = r.URL.Query().Get("format")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"title":" Cheap Water Co ","url":"https://a.example","content":"Save 20%"},
			{"title":"no url","url":""},
			{"title":"B","url":"https://b.example","content":"b"},
			{"title":"C","url":"https://c.example","content":"c"}
		]}`))
	}))
	defer srv.Close()

	s := NewSearXNG(srv.URL+"/", 2, time.Second, nil)
	results, err := s.Search(context.Background(), "cheaper alternatives to City Water")
	require.NoError(t, err)

	assert.Equal(t, "cheaper alternatives to City Water", gotQuery)
	assert.Equal(t, "json", gotFormat)
	assert.Equal(t, []core.SearchResult{
		{Title: "Cheap Water Co", URL: "https://a.example", Snippet: "Save 20%"},
		{Title: "B", URL: "https://b.example", Snippet: "b"},
	}, results)
}

func TestSearXNG_StatusErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, core.ErrRateLimit},
		{http.StatusForbidden, core.ErrAuth},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := NewSearXNG(srv.URL, 5, time.Second, nil).Search(context.Background(), "q")
			assert.ErrorIs(t, err, tt.want)
		})
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	_, err := NewSearXNG(srv.URL, 5, time.Second, nil).Search(context.Background(), "q")
	assert.ErrorContains(t, err, "502")
}
