package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"whatsdesk/internal/config"
	apperrors "whatsdesk/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(url string) *Client {
	return NewClient(config.LLMConfig{
		GatewayURL:   url,
		APIKey:       "secret",
		DefaultModel: "default-model",
		Timeout:      5 * time.Second,
	}, zap.NewNop())
}

func TestComplete_Success(t *testing.T) {
	var got ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"default-model","choices":[{"message":{"role":"assistant","content":" Olá! "},"finish_reason":"stop"}],"usage":{"total_tokens":12}}`))
	}))
	defer srv.Close()

	out, err := newTestClient(srv.URL).Complete(context.Background(), ChatRequest{
		Messages:    []Message{{Role: RoleSystem, Content: "be nice"}, {Role: RoleUser, Content: "oi"}},
		Temperature: 0.3,
	})

	require.NoError(t, err)
	assert.Equal(t, "Olá!", out.Content)
	assert.Equal(t, 12, out.Usage.TotalTokens)
	assert.Equal(t, "default-model", got.Model)
	assert.Len(t, got.Messages, 2)
	assert.InDelta(t, 0.3, got.Temperature, 0.0001)
}

func TestComplete_TypedGatewayErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
		code   int
	}{
		{http.StatusTooManyRequests, apperrors.ErrRateLimited, 429},
		{http.StatusPaymentRequired, apperrors.ErrPaymentRequired, 402},
		{http.StatusBadGateway, apperrors.ErrExternal, 500},
		{http.StatusBadRequest, apperrors.ErrExternal, 500},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).Complete(context.Background(), ChatRequest{Model: "m"})

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.code, apperrors.StatusCode(err))
		})
	}
}

func TestComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), ChatRequest{Model: "m"})
	assert.ErrorIs(t, err, apperrors.ErrExternal)
}

func TestComplete_NotConfigured(t *testing.T) {
	_, err := newTestClient("").Complete(context.Background(), ChatRequest{})
	assert.ErrorIs(t, err, apperrors.ErrExternal)
}
