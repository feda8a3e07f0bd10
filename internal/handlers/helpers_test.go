package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"whatsdesk/internal/bot"
	"whatsdesk/internal/middleware"
	"whatsdesk/internal/models"
	"whatsdesk/internal/provider"
	"whatsdesk/internal/realtime"
	"whatsdesk/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// operator stands in for AuthMiddleware
type operator struct {
	WorkspaceID uuid.UUID
	UserID      uuid.UUID
	Role        models.UserRole
}

func newOperator(role models.UserRole) operator {
	return operator{WorkspaceID: uuid.New(), UserID: uuid.New(), Role: role}
}

func (o operator) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyWorkspaceID, o.WorkspaceID)
		c.Set(middleware.ContextKeyUserID, o.UserID)
		c.Set(middleware.ContextKeyUserRole, o.Role)
		c.Next()
	}
}

// serviceCall stands in for ServiceAuth with the service key
func serviceCall() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyService, true)
		c.Next()
	}
}

func doJSON(r *gin.Engine, method, target string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func doForm(r *gin.Engine, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewBufferString(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func testInstance(p models.ProviderType) *models.Instance {
	inst := &models.Instance{
		WorkspaceID: uuid.New(),
		Name:        "Sales",
		Provider:    p,
		ExternalID:  "acme",
		Status:      models.InstanceConnected,
	}
	inst.ID = uuid.New()
	return inst
}

// ===========================================================================
// Service fakes
// ===========================================================================

type fakeMessages struct {
	mu     sync.Mutex
	events []*provider.Event
	result *services.ProcessResult
	err    error
}

func (f *fakeMessages) ProcessInbound(ctx context.Context, inst *models.Instance, ev *provider.Event) (*services.ProcessResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &services.ProcessResult{Kind: ev.Kind, MessageID: uuid.New()}, nil
}

type fakeOutbound struct {
	mu       sync.Mutex
	requests []*services.SendRequest
	err      error
}

func (f *fakeOutbound) Send(ctx context.Context, req *services.SendRequest) (*services.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &services.SendResult{
		MessageID:      uuid.New(),
		ConversationID: req.ConversationID,
		Takeover:       req.Source == models.SourceHuman,
	}, nil
}

func (f *fakeOutbound) last() *services.SendRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

type fakeCRM struct {
	callback *services.CRMCallback
	sync     *services.CRMSyncResult
	err      error
	forms    []url.Values
}

func (f *fakeCRM) SyncMessage(ctx context.Context, conversationID, messageID uuid.UUID) (*services.CRMSyncResult, error) {
	return f.sync, f.err
}

func (f *fakeCRM) ParseCallback(ctx context.Context, integrationID uuid.UUID, form url.Values) (*services.CRMCallback, error) {
	f.forms = append(f.forms, form)
	return f.callback, f.err
}

type fakeResponder struct {
	requests []bot.Request
	messages []string
	result   *bot.Result
	err      error
}

func (f *fakeResponder) Process(ctx context.Context, req bot.Request) (*bot.Result, error) {
	f.requests = append(f.requests, req)
	return f.result, f.err
}

func (f *fakeResponder) Playground(ctx context.Context, workspaceID, personaID uuid.UUID, message string) (*bot.Result, error) {
	f.messages = append(f.messages, message)
	return f.result, f.err
}

type fakeKnowledge struct {
	services.KnowledgeService
	processed []uuid.UUID
	doc       *models.KnowledgeDocument
	err       error
}

func (f *fakeKnowledge) Process(ctx context.Context, documentID uuid.UUID) (*models.KnowledgeDocument, error) {
	f.processed = append(f.processed, documentID)
	return f.doc, f.err
}

type fakePublisher struct {
	mu            sync.Mutex
	conversations []*realtime.ConversationEvent
}

func (p *fakePublisher) PublishNewMessage(ctx context.Context, workspaceID uuid.UUID, event *realtime.MessageEvent) error {
	return nil
}

func (p *fakePublisher) PublishConversationUpdate(ctx context.Context, workspaceID uuid.UUID, event *realtime.ConversationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conversations = append(p.conversations, event)
	return nil
}

func (p *fakePublisher) PublishInstanceUpdate(ctx context.Context, workspaceID uuid.UUID, event *realtime.InstanceEvent) error {
	return nil
}
