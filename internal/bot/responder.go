package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"whatsdesk/internal/config"
	"whatsdesk/internal/dispatch"
	apperrors "whatsdesk/internal/errors"
	"whatsdesk/internal/knowledge"
	"whatsdesk/internal/llm"
	"whatsdesk/internal/models"
	"whatsdesk/internal/repositories"
	"whatsdesk/internal/voice"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ===========================================================================
// Bot Responder
// Answers an inbound message of an AI-mode conversation: default persona,
// recent history and keyword-matched knowledge go to the LLM gateway, the
// reply is relayed through the send-message function (voiced when the
// persona speaks and the customer sent audio)
// ===========================================================================

// Request message to answer
type Request struct {
	ConversationID uuid.UUID
	MessageID      uuid.UUID
}

// Result outcome of one responder run
type Result struct {
	Reply            string    `json:"reply"`
	PersonaID        uuid.UUID `json:"persona_id"`
	KnowledgeMatches int       `json:"knowledge_matches"`
	Voice            bool      `json:"voice"`

	// SentMessageID stored outgoing message, empty for the playground
	SentMessageID string `json:"sent_message_id,omitempty"`

	Skipped bool   `json:"skipped,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

type Responder interface {
	Process(ctx context.Context, req Request) (*Result, error)

	// Playground runs persona + knowledge + LLM on a free text without sending anything
	Playground(ctx context.Context, workspaceID, personaID uuid.UUID, message string) (*Result, error)
}

// Voice speech vendor used for transcription and voiced replies
type Voice interface {
	Enabled() bool
	Synthesize(ctx context.Context, text, voiceID string) (*voice.Audio, error)
	Transcribe(ctx context.Context, mediaURL string) (string, error)
}

// ===========================================================================
// Responder Implementation
// ===========================================================================

type responder struct {
	conversationRepo repositories.ConversationRepository
	messageRepo      repositories.MessageRepository
	personaRepo      repositories.PersonaRepository
	knowledgeRepo    repositories.KnowledgeRepository
	completer        llm.Completer
	voice            Voice
	functions        dispatch.FunctionCaller
	prompts          PromptBuilder
	cfg              config.KnowledgeConfig
	defaultModel     string
	logger           *zap.Logger
}

func NewResponder(
	conversationRepo repositories.ConversationRepository,
	messageRepo repositories.MessageRepository,
	personaRepo repositories.PersonaRepository,
	knowledgeRepo repositories.KnowledgeRepository,
	completer llm.Completer,
	voice Voice,
	functions dispatch.FunctionCaller,
	prompts PromptBuilder,
	cfg config.KnowledgeConfig,
	defaultModel string,
	logger *zap.Logger,
) Responder {
	return &responder{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		personaRepo:      personaRepo,
		knowledgeRepo:    knowledgeRepo,
		completer:        completer,
		voice:            voice,
		functions:        functions,
		prompts:          prompts,
		cfg:              cfg,
		defaultModel:     defaultModel,
		logger:           logger.Named("bot"),
	}
}

func (r *responder) Process(ctx context.Context, req Request) (*Result, error) {
	conv, err := r.conversationRepo.FindByID(ctx, req.ConversationID)
	if err != nil {
		return nil, lookupErr(err, "Conversation")
	}
	if !conv.IsAIMode() {
		r.logger.Debug("conversation in human attendance, skipping",
			zap.String("conversation_id", conv.ID.String()),
		)
		return &Result{Skipped: true, Reason: "conversation is in human attendance"}, nil
	}
	if conv.Contact == nil {
		return nil, fmt.Errorf("conversation %s has no contact loaded: %w", conv.ID, apperrors.ErrInternal)
	}

	trigger, err := r.messageRepo.FindByID(ctx, req.MessageID)
	if err != nil {
		return nil, lookupErr(err, "Message")
	}
	if trigger.ConversationID != conv.ID {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "message does not belong to the conversation")
	}
	r.transcribe(ctx, trigger)

	persona, err := r.personaRepo.FindDefault(ctx, conv.WorkspaceID)
	if err != nil {
		return nil, lookupErr(err, "Default persona")
	}

	history, err := r.messageRepo.FindRecent(ctx, conv.ID, r.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	matches := r.searchKnowledge(ctx, conv.WorkspaceID, trigger.Text())

	completion, err := r.completer.Complete(ctx, llm.ChatRequest{
		Model:       persona.ResolveModel(r.defaultModel),
		Messages:    r.prompts.Build(persona, conv.Contact, history, matches),
		Temperature: persona.Temperature,
		MaxTokens:   persona.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	if completion.Content == "" {
		return nil, fmt.Errorf("%w: gateway returned an empty reply", apperrors.ErrExternal)
	}

	result := &Result{
		Reply:            completion.Content,
		PersonaID:        persona.ID,
		KnowledgeMatches: len(matches),
	}

	if persona.SpeaksBack(trigger.Type) && r.voice.Enabled() {
		id, err := r.sendVoice(ctx, conv, persona, completion.Content)
		if err == nil {
			result.Voice = true
			result.SentMessageID = id
			r.logReply(conv, result)
			return result, nil
		}
		r.logger.Warn("voice reply failed, falling back to text",
			zap.String("conversation_id", conv.ID.String()),
			zap.Error(err),
		)
	}

	id, err := r.send(ctx, conv, map[string]interface{}{
		"type": string(models.TypeText),
		"text": completion.Content,
	})
	if err != nil {
		return nil, fmt.Errorf("relay reply: %w", err)
	}
	result.SentMessageID = id

	r.logReply(conv, result)
	return result, nil
}

func (r *responder) Playground(ctx context.Context, workspaceID, personaID uuid.UUID, message string) (*Result, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "message is required")
	}

	persona, err := r.personaRepo.FindInWorkspace(ctx, workspaceID, personaID)
	if err != nil {
		return nil, lookupErr(err, "Persona")
	}

	matches := r.searchKnowledge(ctx, workspaceID, message)
	history := []models.Message{{Direction: models.DirectionIncoming, Type: models.TypeText, Content: &message}}

	completion, err := r.completer.Complete(ctx, llm.ChatRequest{
		Model:       persona.ResolveModel(r.defaultModel),
		Messages:    r.prompts.Build(persona, nil, history, matches),
		Temperature: persona.Temperature,
		MaxTokens:   persona.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Reply:            completion.Content,
		PersonaID:        persona.ID,
		KnowledgeMatches: len(matches),
	}, nil
}

// transcribe fills the transcription of an audio trigger; failures leave
// the message without text and are only logged
func (r *responder) transcribe(ctx context.Context, msg *models.Message) {
	if msg.Type != models.TypeAudio || msg.Text() != "" || msg.MediaURL == nil || !r.voice.Enabled() {
		return
	}

	text, err := r.voice.Transcribe(ctx, *msg.MediaURL)
	if err != nil {
		r.logger.Warn("transcription failed", zap.String("message_id", msg.ID.String()), zap.Error(err))
		return
	}
	if text == "" {
		return
	}
	if err := r.messageRepo.SetTranscription(ctx, msg.ID, text); err != nil {
		r.logger.Warn("failed to store transcription", zap.String("message_id", msg.ID.String()), zap.Error(err))
	}
	msg.Transcription = &text
}

// searchKnowledge keyword scan over the workspace's completed documents
func (r *responder) searchKnowledge(ctx context.Context, workspaceID uuid.UUID, query string) []knowledge.Match {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	chunks, err := r.knowledgeRepo.ListSearchableChunks(ctx, workspaceID)
	if err != nil {
		r.logger.Warn("knowledge lookup failed", zap.String("workspace_id", workspaceID.String()), zap.Error(err))
		return nil
	}

	contents := make([]string, len(chunks))
	for i := range chunks {
		contents[i] = chunks[i].Content
	}
	return knowledge.Search(query, contents, r.cfg.TopN)
}

func (r *responder) sendVoice(ctx context.Context, conv *models.Conversation, persona *models.Persona, text string) (string, error) {
	audio, err := r.voice.Synthesize(ctx, text, persona.VoiceID)
	if err != nil {
		return "", fmt.Errorf("synthesize: %w", err)
	}
	return r.send(ctx, conv, map[string]interface{}{
		"type":      string(models.TypeAudio),
		"media_url": audio.DataURL(),
		"mime_type": audio.MimeType,
		"text":      text,
	})
}

type sendReply struct {
	MessageID string `json:"message_id"`
}

// send relays through the send-message function as source ai
func (r *responder) send(ctx context.Context, conv *models.Conversation, params map[string]interface{}) (string, error) {
	params["instance_id"] = conv.InstanceID.String()
	params["conversation_id"] = conv.ID.String()
	params["phone"] = conv.Contact.Phone
	params["source"] = string(models.SourceAI)

	var out sendReply
	if err := r.functions.Call(ctx, dispatch.FnSendMessage, params, &out); err != nil {
		return "", err
	}
	return out.MessageID, nil
}

func (r *responder) logReply(conv *models.Conversation, result *Result) {
	r.logger.Info("ai reply sent",
		zap.String("conversation_id", conv.ID.String()),
		zap.String("persona_id", result.PersonaID.String()),
		zap.Int("knowledge_matches", result.KnowledgeMatches),
		zap.Bool("voice", result.Voice),
	)
}

func lookupErr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.New(apperrors.ErrNotFound, what+" not found")
	}
	return err
}
