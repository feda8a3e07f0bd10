package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"whatsdesk/internal/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPublishNewMessage(t *testing.T) {
	var got struct {
		Method string `json:"method"`
		Params struct {
			Channel string                 `json:"channel"`
			Data    map[string]interface{} `json:"data"`
		} `json:"params"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api", r.URL.Path)
		assert.Equal(t, "apikey k", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wsID := uuid.New()
	pub := New(config.CentrifugoConfig{URL: srv.URL, APIKey: "k"}, zap.NewNop())
	err := pub.PublishNewMessage(context.Background(), wsID, &MessageEvent{Content: "Oi"})

	require.NoError(t, err)
	assert.Equal(t, "publish", got.Method)
	assert.Equal(t, "chat:workspace_"+wsID.String(), got.Params.Channel)
	assert.Equal(t, EventNewMessage, got.Params.Data["type"])
	assert.Equal(t, "Oi", got.Params.Data["content"])
}

func TestPublishBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	pub := NewCentrifugoClient(config.CentrifugoConfig{URL: srv.URL}, zap.NewNop())
	err := pub.PublishInstanceUpdate(context.Background(), uuid.New(), &InstanceEvent{Status: "connected"})

	assert.Error(t, err)
}

func TestNewWithoutURLIsNoop(t *testing.T) {
	pub := New(config.CentrifugoConfig{}, zap.NewNop())

	_, ok := pub.(*NoopPublisher)
	assert.True(t, ok)
	assert.NoError(t, pub.PublishConversationUpdate(context.Background(), uuid.New(), &ConversationEvent{}))
}
