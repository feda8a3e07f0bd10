package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"whatsdesk/internal/config"
	"whatsdesk/internal/dispatch"
	apperrors "whatsdesk/internal/errors"
	"whatsdesk/internal/knowledge"
	"whatsdesk/internal/llm"
	"whatsdesk/internal/models"
	"whatsdesk/internal/repositories/mocks"
	"whatsdesk/internal/voice"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ===========================================================================
// Fakes
// ===========================================================================

type mockCompleter struct{ mock.Mock }

func (m *mockCompleter) Complete(ctx context.Context, req llm.ChatRequest) (*llm.Completion, error) {
	args := m.Called(ctx, req)
	if c := args.Get(0); c != nil {
		return c.(*llm.Completion), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockVoice struct {
	mock.Mock
	enabled bool
}

func (m *mockVoice) Enabled() bool { return m.enabled }

func (m *mockVoice) Synthesize(ctx context.Context, text, voiceID string) (*voice.Audio, error) {
	args := m.Called(ctx, text, voiceID)
	if a := args.Get(0); a != nil {
		return a.(*voice.Audio), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockVoice) Transcribe(ctx context.Context, mediaURL string) (string, error) {
	args := m.Called(ctx, mediaURL)
	return args.String(0), args.Error(1)
}

type mockFunctions struct{ mock.Mock }

func (m *mockFunctions) Call(ctx context.Context, fn string, body interface{}, out interface{}) error {
	args := m.Called(ctx, fn, body)
	if r, ok := out.(*sendReply); ok && r != nil {
		r.MessageID = "sent-1"
	}
	return args.Error(0)
}

type fixture struct {
	convs     *mocks.ConversationRepository
	msgs      *mocks.MessageRepository
	personas  *mocks.PersonaRepository
	knowledge *mocks.KnowledgeRepository
	completer *mockCompleter
	voice     *mockVoice
	functions *mockFunctions
	responder Responder

	conv    *models.Conversation
	trigger *models.Message
	persona *models.Persona
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		convs:     &mocks.ConversationRepository{},
		msgs:      &mocks.MessageRepository{},
		personas:  &mocks.PersonaRepository{},
		knowledge: &mocks.KnowledgeRepository{},
		completer: &mockCompleter{},
		voice:     &mockVoice{},
		functions: &mockFunctions{},
	}
	f.responder = NewResponder(f.convs, f.msgs, f.personas, f.knowledge, f.completer, f.voice, f.functions,
		NewPromptBuilder(), config.KnowledgeConfig{TopN: 5, HistoryLimit: 10}, "default-model", zap.NewNop())

	wsID := uuid.New()
	f.conv = &models.Conversation{
		WorkspaceID:    wsID,
		InstanceID:     uuid.New(),
		AttendanceMode: models.AttendanceAI,
		Contact:        &models.Contact{Phone: "5511988887777"},
	}
	f.conv.ID = uuid.New()

	text := "qual o horário de funcionamento"
	f.trigger = &models.Message{
		ConversationID: f.conv.ID,
		Direction:      models.DirectionIncoming,
		Type:           models.TypeText,
		Content:        &text,
	}
	f.trigger.ID = uuid.New()

	f.persona = &models.Persona{WorkspaceID: wsID, SystemPrompt: "Você é a Ana.", Temperature: 0.5, MaxTokens: 300}
	f.persona.ID = uuid.New()
	return f
}

func (f *fixture) expectPipeline() {
	f.convs.On("FindByID", mock.Anything, f.conv.ID).Return(f.conv, nil)
	f.msgs.On("FindByID", mock.Anything, f.trigger.ID).Return(f.trigger, nil)
	f.personas.On("FindDefault", mock.Anything, f.conv.WorkspaceID).Return(f.persona, nil)
	f.msgs.On("FindRecent", mock.Anything, f.conv.ID, 10).Return([]models.Message{*f.trigger}, nil)
	f.knowledge.On("ListSearchableChunks", mock.Anything, f.conv.WorkspaceID).Return([]models.KnowledgeChunk{
		{Content: "O horário é 9h às 18h"},
		{Content: "Aceitamos cartão e pix"},
	}, nil)
}

func (f *fixture) request() Request {
	return Request{ConversationID: f.conv.ID, MessageID: f.trigger.ID}
}

// ===========================================================================
// Tests
// ===========================================================================

func TestProcess_TextReplyWithKnowledge(t *testing.T) {
	f := newFixture(t)
	f.expectPipeline()

	var sentReq llm.ChatRequest
	f.completer.On("Complete", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sentReq = args.Get(1).(llm.ChatRequest) }).
		Return(&llm.Completion{Content: "Atendemos das 9h às 18h."}, nil)

	var sendBody map[string]interface{}
	f.functions.On("Call", mock.Anything, dispatch.FnSendMessage, mock.Anything).
		Run(func(args mock.Arguments) { sendBody = args.Get(2).(map[string]interface{}) }).
		Return(nil)

	res, err := f.responder.Process(context.Background(), f.request())

	require.NoError(t, err)
	assert.Equal(t, "Atendemos das 9h às 18h.", res.Reply)
	assert.Equal(t, f.persona.ID, res.PersonaID)
	assert.Equal(t, 1, res.KnowledgeMatches)
	assert.False(t, res.Voice)
	assert.Equal(t, "sent-1", res.SentMessageID)

	assert.Equal(t, "default-model", sentReq.Model)
	assert.InDelta(t, 0.5, sentReq.Temperature, 0.0001)
	require.Len(t, sentReq.Messages, 2)
	assert.Equal(t, llm.RoleSystem, sentReq.Messages[0].Role)
	assert.Contains(t, sentReq.Messages[0].Content, "Você é a Ana.")
	assert.Contains(t, sentReq.Messages[0].Content, "O horário é 9h às 18h")
	assert.NotContains(t, sentReq.Messages[0].Content, "pix")
	assert.Equal(t, llm.RoleUser, sentReq.Messages[1].Role)

	assert.Equal(t, "ai", sendBody["source"])
	assert.Equal(t, "text", sendBody["type"])
	assert.Equal(t, "5511988887777", sendBody["phone"])
	assert.Equal(t, f.conv.InstanceID.String(), sendBody["instance_id"])
}

func TestProcess_SkipsHumanAttendance(t *testing.T) {
	f := newFixture(t)
	f.conv.AttendanceMode = models.AttendanceHuman
	f.convs.On("FindByID", mock.Anything, f.conv.ID).Return(f.conv, nil)

	res, err := f.responder.Process(context.Background(), f.request())

	require.NoError(t, err)
	assert.True(t, res.Skipped)
	f.completer.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
	f.functions.AssertNotCalled(t, "Call", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_NoDefaultPersona(t *testing.T) {
	f := newFixture(t)
	f.convs.On("FindByID", mock.Anything, f.conv.ID).Return(f.conv, nil)
	f.msgs.On("FindByID", mock.Anything, f.trigger.ID).Return(f.trigger, nil)
	f.personas.On("FindDefault", mock.Anything, f.conv.WorkspaceID).Return(nil, gorm.ErrRecordNotFound)

	_, err := f.responder.Process(context.Background(), f.request())

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, 404, apperrors.StatusCode(err))
}

func TestProcess_GatewayErrorsPassThrough(t *testing.T) {
	for _, sentinel := range []error{apperrors.ErrRateLimited, apperrors.ErrPaymentRequired} {
		f := newFixture(t)
		f.expectPipeline()
		f.completer.On("Complete", mock.Anything, mock.Anything).Return(nil, apperrors.New(sentinel, "gateway"))

		_, err := f.responder.Process(context.Background(), f.request())

		assert.ErrorIs(t, err, sentinel)
		f.functions.AssertNotCalled(t, "Call", mock.Anything, mock.Anything, mock.Anything)
	}
}

func TestProcess_VoiceReplyForAudioTrigger(t *testing.T) {
	f := newFixture(t)
	f.persona.VoiceEnabled = true
	f.persona.VoiceID = "voice-1"
	f.voice.enabled = true
	transcript := "qual o horário"
	f.trigger.Type = models.TypeAudio
	f.trigger.Content = nil
	f.trigger.Transcription = &transcript
	f.expectPipeline()

	f.completer.On("Complete", mock.Anything, mock.Anything).Return(&llm.Completion{Content: "Das 9h às 18h."}, nil)
	f.voice.On("Synthesize", mock.Anything, "Das 9h às 18h.", "voice-1").
		Return(&voice.Audio{Data: []byte("ID3"), MimeType: "audio/mpeg"}, nil)

	var sendBody map[string]interface{}
	f.functions.On("Call", mock.Anything, dispatch.FnSendMessage, mock.Anything).
		Run(func(args mock.Arguments) { sendBody = args.Get(2).(map[string]interface{}) }).
		Return(nil)

	res, err := f.responder.Process(context.Background(), f.request())

	require.NoError(t, err)
	assert.True(t, res.Voice)
	assert.Equal(t, "audio", sendBody["type"])
	assert.True(t, strings.HasPrefix(sendBody["media_url"].(string), "data:audio/mpeg;base64,"))
	f.functions.AssertNumberOfCalls(t, "Call", 1)
}

func TestProcess_TTSFailureFallsBackToText(t *testing.T) {
	f := newFixture(t)
	f.persona.VoiceEnabled = true
	f.voice.enabled = true
	f.trigger.Type = models.TypeAudio
	f.expectPipeline()

	f.completer.On("Complete", mock.Anything, mock.Anything).Return(&llm.Completion{Content: "Olá!"}, nil)
	f.voice.On("Synthesize", mock.Anything, "Olá!", "").Return(nil, errors.New("tts down"))

	var sendBody map[string]interface{}
	f.functions.On("Call", mock.Anything, dispatch.FnSendMessage, mock.Anything).
		Run(func(args mock.Arguments) { sendBody = args.Get(2).(map[string]interface{}) }).
		Return(nil)

	res, err := f.responder.Process(context.Background(), f.request())

	require.NoError(t, err)
	assert.False(t, res.Voice)
	assert.Equal(t, "text", sendBody["type"])
	assert.Equal(t, "Olá!", sendBody["text"])
}

func TestProcess_TranscribesAudioWithoutText(t *testing.T) {
	f := newFixture(t)
	f.voice.enabled = true
	media := "https://cdn/audio.ogg"
	f.trigger.Type = models.TypeAudio
	f.trigger.Content = nil
	f.trigger.MediaURL = &media
	f.expectPipeline()

	f.voice.On("Transcribe", mock.Anything, media).Return("horário de funcionamento", nil)
	f.msgs.On("SetTranscription", mock.Anything, f.trigger.ID, "horário de funcionamento").Return(nil)
	f.completer.On("Complete", mock.Anything, mock.Anything).Return(&llm.Completion{Content: "9h às 18h"}, nil)
	f.functions.On("Call", mock.Anything, dispatch.FnSendMessage, mock.Anything).Return(nil)

	res, err := f.responder.Process(context.Background(), f.request())

	require.NoError(t, err)
	assert.Equal(t, 1, res.KnowledgeMatches)
	f.msgs.AssertExpectations(t)
}

func TestPlayground_DoesNotSend(t *testing.T) {
	f := newFixture(t)
	f.personas.On("FindInWorkspace", mock.Anything, f.conv.WorkspaceID, f.persona.ID).Return(f.persona, nil)
	f.knowledge.On("ListSearchableChunks", mock.Anything, f.conv.WorkspaceID).Return([]models.KnowledgeChunk{}, nil)
	f.completer.On("Complete", mock.Anything, mock.Anything).Return(&llm.Completion{Content: "Oi!"}, nil)

	res, err := f.responder.Playground(context.Background(), f.conv.WorkspaceID, f.persona.ID, "olá tudo bem")

	require.NoError(t, err)
	assert.Equal(t, "Oi!", res.Reply)
	f.functions.AssertNotCalled(t, "Call", mock.Anything, mock.Anything, mock.Anything)
}

func TestPromptBuilder_HistoryRoles(t *testing.T) {
	in, out := "oi", "olá, como posso ajudar?"
	history := []models.Message{
		{Direction: models.DirectionIncoming, Content: &in},
		{Direction: models.DirectionOutgoing, Content: &out},
	}

	msgs := NewPromptBuilder().Build(&models.Persona{}, &models.Contact{Phone: "55", PushName: &in}, history, []knowledge.Match{{Content: "k"}})

	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[0].Content, defaultSystemPrompt)
	assert.Contains(t, msgs[0].Content, "[1] k")
	assert.Equal(t, llm.RoleUser, msgs[1].Role)
	assert.Equal(t, llm.RoleAssistant, msgs[2].Role)
}
