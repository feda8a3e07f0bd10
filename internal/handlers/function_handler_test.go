package handlers

import (
	"net/http"
	"testing"

	"whatsdesk/internal/bot"
	apperrors "whatsdesk/internal/errors"
	"whatsdesk/internal/models"
	"whatsdesk/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type functionFixture struct {
	responder *fakeResponder
	outbound  *fakeOutbound
	knowledge *fakeKnowledge
	crm       *fakeCRM
}

func newFunctionFixture() *functionFixture {
	return &functionFixture{
		responder: &fakeResponder{},
		outbound:  &fakeOutbound{},
		knowledge: &fakeKnowledge{},
		crm:       &fakeCRM{},
	}
}

// router mounts the functions behind auth, which plays the role of ServiceAuth
func (f *functionFixture) router(auth gin.HandlerFunc, withCRM bool) *gin.Engine {
	var crm services.CRMService
	if withCRM {
		crm = f.crm
	}
	h := NewFunctionHandler(f.responder, f.outbound, f.knowledge, crm, zap.NewNop())

	r := gin.New()
	h.RegisterRoutes(r.Group("/api/v1"), auth)
	return r
}

func TestSendMessage_ServiceCall(t *testing.T) {
	f := newFunctionFixture()
	r := f.router(serviceCall(), false)
	instanceID := uuid.New()

	w := doJSON(r, http.MethodPost, "/api/v1/functions/send-message", map[string]interface{}{
		"instanceId": instanceID.String(),
		"phone":      "5511999990000",
		"message":    "Olá",
		"source":     "ai",
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	req := f.outbound.last()
	require.NotNil(t, req)
	assert.Equal(t, instanceID, req.InstanceID)
	assert.Equal(t, "Olá", req.Text)
	assert.Equal(t, models.SourceAI, req.Source)
	assert.Equal(t, uuid.Nil, req.WorkspaceID, "service calls are not workspace scoped")
}

func TestSendMessage_OperatorDefaultsToHuman(t *testing.T) {
	f := newFunctionFixture()
	op := newOperator(models.RoleOperator)
	r := f.router(op.middleware(), false)
	conversationID := uuid.New()

	w := doJSON(r, http.MethodPost, "/api/v1/functions/send-message", map[string]interface{}{
		"conversation_id": conversationID.String(),
		"text":            "Já te respondo",
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, true, body["takeover"])

	req := f.outbound.last()
	require.NotNil(t, req)
	assert.Equal(t, op.WorkspaceID, req.WorkspaceID)
	assert.Equal(t, op.UserID, req.UserID)
	assert.Equal(t, conversationID, req.ConversationID)
	assert.Equal(t, models.SourceHuman, req.Source)
}

func TestSendMessage_Errors(t *testing.T) {
	t.Run("invalid body", func(t *testing.T) {
		f := newFunctionFixture()
		w := doJSON(f.router(serviceCall(), false), http.MethodPost, "/api/v1/functions/send-message", "[1,2]")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid JSON body", decodeBody(t, w)["error"])
	})

	t.Run("service error keeps the flat body", func(t *testing.T) {
		f := newFunctionFixture()
		f.outbound.err = apperrors.New(apperrors.ErrInvalidInput, "phone or conversation_id is required")

		w := doJSON(f.router(serviceCall(), false), http.MethodPost, "/api/v1/functions/send-message", map[string]interface{}{"text": "x"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, map[string]interface{}{"error": "phone or conversation_id is required"}, decodeBody(t, w))
	})
}

func TestAIProcessMessage(t *testing.T) {
	conversationID, messageID := uuid.New(), uuid.New()
	body := map[string]interface{}{"conversationId": conversationID.String(), "message_id": messageID.String()}

	t.Run("operators are rejected", func(t *testing.T) {
		f := newFunctionFixture()
		r := f.router(newOperator(models.RoleOwner).middleware(), false)

		w := doJSON(r, http.MethodPost, "/api/v1/functions/ai-process-message", body)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, f.responder.requests)
	})

	t.Run("ids are required", func(t *testing.T) {
		f := newFunctionFixture()
		w := doJSON(f.router(serviceCall(), false), http.MethodPost, "/api/v1/functions/ai-process-message", map[string]interface{}{})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("runs the responder", func(t *testing.T) {
		f := newFunctionFixture()
		f.responder.result = &bot.Result{Reply: "Oi! Como posso ajudar?", SentMessageID: "m1"}

		w := doJSON(f.router(serviceCall(), false), http.MethodPost, "/api/v1/functions/ai-process-message", body)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.Len(t, f.responder.requests, 1)
		assert.Equal(t, bot.Request{ConversationID: conversationID, MessageID: messageID}, f.responder.requests[0])
		assert.Equal(t, "Oi! Como posso ajudar?", decodeBody(t, w)["reply"])
	})

	t.Run("payment required from the gateway", func(t *testing.T) {
		f := newFunctionFixture()
		f.responder.err = apperrors.New(apperrors.ErrPaymentRequired, "AI credits exhausted")

		w := doJSON(f.router(serviceCall(), false), http.MethodPost, "/api/v1/functions/ai-process-message", body)

		assert.Equal(t, http.StatusPaymentRequired, w.Code)
		assert.Equal(t, "AI credits exhausted", decodeBody(t, w)["error"])
	})
}

func TestProcessDocument(t *testing.T) {
	f := newFunctionFixture()
	doc := &models.KnowledgeDocument{Status: models.DocumentCompleted, ChunkCount: 3}
	doc.ID = uuid.New()
	f.knowledge.doc = doc

	w := doJSON(f.router(serviceCall(), false), http.MethodPost, "/api/v1/functions/process-document",
		map[string]interface{}{"documentId": doc.ID.String()})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []uuid.UUID{doc.ID}, f.knowledge.processed)
	body := decodeBody(t, w)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, float64(3), body["chunk_count"])
}

func TestBitrixSync(t *testing.T) {
	body := map[string]interface{}{"conversation_id": uuid.New().String(), "message_id": uuid.New().String()}

	t.Run("bridge not configured", func(t *testing.T) {
		f := newFunctionFixture()
		w := doJSON(f.router(serviceCall(), false), http.MethodPost, "/api/v1/functions/bitrix-sync", body)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, decodeBody(t, w)["skipped"])
	})

	t.Run("no active integration", func(t *testing.T) {
		f := newFunctionFixture()
		f.crm.err = apperrors.Wrap(apperrors.ErrSkipped, "no active bitrix24 integration")

		w := doJSON(f.router(serviceCall(), true), http.MethodPost, "/api/v1/functions/bitrix-sync", body)

		require.Equal(t, http.StatusOK, w.Code)
		out := decodeBody(t, w)
		assert.Equal(t, true, out["skipped"])
		assert.Contains(t, out["reason"], "no active bitrix24 integration")
	})

	t.Run("synced", func(t *testing.T) {
		f := newFunctionFixture()
		f.crm.sync = &services.CRMSyncResult{LeadID: "42", LeadCreated: true, OpenLine: true}

		w := doJSON(f.router(serviceCall(), true), http.MethodPost, "/api/v1/functions/bitrix-sync", body)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		out := decodeBody(t, w)
		assert.Equal(t, "42", out["lead_id"])
		assert.Equal(t, true, out["lead_created"])
	})
}
