package generate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPCompleter(t *testing.T) {
	var got CompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}]}`))
	}))
	defer srv.Close()

	c := NewHTTPCompleter(srv.URL+"/v1/", "k", 5*time.Second)
	resp, err := c.Complete(context.Background(), CompletionRequest{
		Model:    "m",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "hello", resp.Choices[0].Message.Content)
	assert.Equal(t, "m", got.Model)
}

func TestHTTPCompleterStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, ErrUpstreamRateLimited},
		{http.StatusPaymentRequired, ErrQuotaExhausted},
		{http.StatusInternalServerError, ErrUpstream},
		{http.StatusUnauthorized, ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "upstream says no", tt.status)
			}))
			defer srv.Close()

			_, err := NewHTTPCompleter(srv.URL, "k", time.Second).Complete(context.Background(), CompletionRequest{})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHTTPCompleterBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := NewHTTPCompleter(srv.URL, "k", time.Second).Complete(context.Background(), CompletionRequest{})
	assert.ErrorIs(t, err, ErrUpstream)
}
