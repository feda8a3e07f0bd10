package services

import (
	"context"
	"net/url"
	"sync"
	"time"

	"whatsdesk/internal/dispatch"
	"whatsdesk/internal/flow"
	"whatsdesk/internal/models"
	"whatsdesk/internal/provider"
	"whatsdesk/internal/realtime"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func inlineRunner() dispatch.Runner {
	return dispatch.Inline{Timeout: time.Second, Logger: zap.NewNop()}
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

func testContact(inst *models.Instance, phone string) *models.Contact {
	c := &models.Contact{WorkspaceID: inst.WorkspaceID, InstanceID: inst.ID, Phone: phone}
	c.ID = uuid.New()
	return c
}

func testConversation(inst *models.Instance, contact *models.Contact, mode models.AttendanceMode) *models.Conversation {
	conv := &models.Conversation{
		WorkspaceID:    inst.WorkspaceID,
		InstanceID:     inst.ID,
		ContactID:      contact.ID,
		Status:         models.StatusOpen,
		AttendanceMode: mode,
		Contact:        contact,
	}
	conv.ID = uuid.New()
	return conv
}

// ===========================================================================
// Fakes
// ===========================================================================

type fnCall struct {
	fn   string
	body interface{}
}

type fakeFunctions struct {
	mu    sync.Mutex
	calls []fnCall
	err   error
}

func (f *fakeFunctions) Call(ctx context.Context, fn string, body interface{}, out interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fnCall{fn: fn, body: body})
	return f.err
}

type fakePublisher struct {
	mu            sync.Mutex
	messages      []*realtime.MessageEvent
	conversations []*realtime.ConversationEvent
	instances     []*realtime.InstanceEvent
}

func (p *fakePublisher) PublishNewMessage(ctx context.Context, workspaceID uuid.UUID, event *realtime.MessageEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, event)
	return nil
}

func (p *fakePublisher) PublishConversationUpdate(ctx context.Context, workspaceID uuid.UUID, event *realtime.ConversationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conversations = append(p.conversations, event)
	return nil
}

func (p *fakePublisher) PublishInstanceUpdate(ctx context.Context, workspaceID uuid.UUID, event *realtime.InstanceEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.instances = append(p.instances, event)
	return nil
}

type fakeFlow struct {
	enabled bool
	events  []*flow.Event
}

func (f *fakeFlow) Enabled() bool { return f.enabled }

func (f *fakeFlow) Publish(ctx context.Context, ev *flow.Event) error {
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeFlow) Close() error { return nil }

type syncCall struct {
	conversationID uuid.UUID
	messageID      uuid.UUID
}

type fakeCRM struct {
	mu    sync.Mutex
	syncs []syncCall
}

func (c *fakeCRM) SyncMessage(ctx context.Context, conversationID, messageID uuid.UUID) (*CRMSyncResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncs = append(c.syncs, syncCall{conversationID: conversationID, messageID: messageID})
	return &CRMSyncResult{}, nil
}

func (c *fakeCRM) ParseCallback(ctx context.Context, integrationID uuid.UUID, form url.Values) (*CRMCallback, error) {
	return nil, nil
}

func registryWith(p provider.Provider) *provider.Registry {
	r := provider.NewRegistry()
	r.Register(p)
	return r
}

// queuedRunner holds submitted work until run is called
type queuedRunner struct {
	mu    sync.Mutex
	names []string
	tasks []func(ctx context.Context) error
}

func (r *queuedRunner) Submit(name string, fn func(ctx context.Context) error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	r.tasks = append(r.tasks, fn)
	return true
}

func (r *queuedRunner) run() {
	r.mu.Lock()
	tasks := r.tasks
	r.tasks = nil
	r.mu.Unlock()
	for _, fn := range tasks {
		_ = fn(context.Background())
	}
}
