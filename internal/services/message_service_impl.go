package services

import (
	"context"
	"fmt"
	"time"

	"whatsdesk/internal/dispatch"
	apperrors "whatsdesk/internal/errors"
	"whatsdesk/internal/flow"
	"whatsdesk/internal/models"
	"whatsdesk/internal/phone"
	"whatsdesk/internal/provider"
	"whatsdesk/internal/realtime"
	"whatsdesk/internal/repositories"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// ===========================================================================
// Message Service Implementation
// ===========================================================================

type messageService struct {
	instanceRepo     repositories.InstanceRepository
	contactRepo      repositories.ContactRepository
	conversationRepo repositories.ConversationRepository
	messageRepo      repositories.MessageRepository
	echo             *EchoCache
	functions        dispatch.FunctionCaller
	flow             flow.Publisher
	followUp
	now    func() time.Time
	logger *zap.Logger
}

// NewMessageService crm may be nil when no Bitrix24 client is configured
func NewMessageService(
	instanceRepo repositories.InstanceRepository,
	contactRepo repositories.ContactRepository,
	conversationRepo repositories.ConversationRepository,
	messageRepo repositories.MessageRepository,
	echo *EchoCache,
	functions dispatch.FunctionCaller,
	flowPublisher flow.Publisher,
	publisher realtime.Publisher,
	crm CRMService,
	runner dispatch.Runner,
	logger *zap.Logger,
) MessageService {
	logger = logger.Named("ingest")
	return &messageService{
		instanceRepo:     instanceRepo,
		contactRepo:      contactRepo,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		echo:             echo,
		functions:        functions,
		flow:             flowPublisher,
		followUp: followUp{
			publisher: publisher,
			crm:       crm,
			runner:    runner,
			logger:    logger,
		},
		now:    time.Now,
		logger: logger,
	}
}

func (s *messageService) ProcessInbound(ctx context.Context, inst *models.Instance, ev *provider.Event) (*ProcessResult, error) {
	switch ev.Kind {
	case provider.EventMessage:
		return s.processMessage(ctx, inst, ev)
	case provider.EventStatus:
		return s.processStatus(ctx, inst, ev)
	case provider.EventConnection, provider.EventQRCode:
		return s.processConnection(ctx, inst, ev)
	default:
		return &ProcessResult{Kind: provider.EventIgnored, Reason: ev.Reason}, nil
	}
}

// ===========================================================================
// Messages
// ===========================================================================

func (s *messageService) processMessage(ctx context.Context, inst *models.Instance, ev *provider.Event) (*ProcessResult, error) {
	result := &ProcessResult{Kind: provider.EventMessage}

	if ev.MessageID != "" {
		if s.echo.Seen(inst.ID, ev.MessageID) {
			result.Duplicate = true
			result.Reason = "sent by this system"
			return result, nil
		}
		known, err := s.messageRepo.ExistsByWhatsAppID(ctx, inst.ID, ev.MessageID)
		if err != nil {
			return nil, fmt.Errorf("check message id: %w", err)
		}
		if known {
			result.Duplicate = true
			result.Reason = "message already stored"
			return result, nil
		}
	}

	from := phone.Normalize(ev.Phone)
	if from == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "event has no sender phone")
	}

	// fromMe without a known id: typed on the phone itself
	incoming := !ev.FromMe
	sentAt := ev.Timestamp
	if sentAt.IsZero() {
		sentAt = s.now()
	}

	contact := &models.Contact{
		WorkspaceID: inst.WorkspaceID,
		InstanceID:  inst.ID,
		Phone:       from,
	}
	// the push name of an own message is the business account's name
	if incoming {
		contact.PushName = strPtr(ev.PushName)
		contact.ProfilePictureURL = strPtr(ev.ProfilePicture)
	}
	contact, err := s.contactRepo.Upsert(ctx, contact)
	if err != nil {
		return nil, fmt.Errorf("upsert contact: %w", err)
	}
	result.ContactID = contact.ID

	msg := buildInboundMessage(inst, ev, incoming, sentAt)

	conv := &models.Conversation{
		WorkspaceID:    inst.WorkspaceID,
		InstanceID:     inst.ID,
		ContactID:      contact.ID,
		AttendanceMode: models.AttendanceAI,
		DepartmentID:   inst.DepartmentID,
	}
	conv.SetLastMessage(msg.Preview(), sentAt)
	conv, err = s.conversationRepo.UpsertOpen(ctx, conv, incoming)
	if err != nil {
		return nil, fmt.Errorf("upsert conversation: %w", err)
	}
	result.ConversationID = conv.ID

	msg.ConversationID = conv.ID
	inserted, err := s.messageRepo.Insert(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	if !inserted {
		// a concurrent delivery of the same id won the insert
		result.Duplicate = true
		result.Reason = "message already stored"
		return result, nil
	}
	result.MessageID = msg.ID

	s.messageStored(ctx, conv, contact, msg)

	if incoming && conv.IsAIMode() {
		result.Dispatch = s.dispatchAI(inst, conv, contact, msg)
	}

	s.logger.Info("inbound message stored",
		zap.String("instance_id", inst.ID.String()),
		zap.String("conversation_id", conv.ID.String()),
		zap.String("message_id", msg.ID.String()),
		zap.String("type", string(msg.Type)),
		zap.Bool("incoming", incoming),
		zap.String("dispatch", string(result.Dispatch)),
	)
	return result, nil
}

func buildInboundMessage(inst *models.Instance, ev *provider.Event, incoming bool, sentAt time.Time) *models.Message {
	msg := &models.Message{
		WorkspaceID:       inst.WorkspaceID,
		InstanceID:        inst.ID,
		WhatsAppMessageID: strPtr(ev.MessageID),
		Direction:         models.DirectionIncoming,
		Type:              ev.Type,
		Content:           strPtr(ev.Text),
		MediaURL:          strPtr(ev.MediaURL),
		MediaMimeType:     strPtr(ev.MimeType),
		Status:            models.MessageReceived,
		Source:            models.SourceContact,
		SentAt:            sentAt,
		Metadata:          datatypes.JSONMap{},
	}
	if msg.Type == "" {
		msg.Type = models.TypeText
	}
	if !incoming {
		msg.Direction = models.DirectionOutgoing
		msg.Status = models.MessageSent
		msg.Source = models.SourceDevice
		msg.FromMe = true
	}
	if ev.FileName != "" {
		msg.Metadata["file_name"] = ev.FileName
	}
	if ev.PushName != "" && incoming {
		msg.Metadata["push_name"] = ev.PushName
	}
	return msg
}

// dispatchAI hands the message to the flow engine when the instance opts in
// and a broker is configured, otherwise to the AI responder function. Both
// run detached; a full pool drops the dispatch.
func (s *messageService) dispatchAI(inst *models.Instance, conv *models.Conversation, contact *models.Contact, msg *models.Message) Dispatch {
	if inst.UseFlowEngine && s.flow.Enabled() {
		ev := &flow.Event{
			WorkspaceID:    conv.WorkspaceID,
			InstanceID:     inst.ID,
			ConversationID: conv.ID,
			MessageID:      msg.ID,
			ContactPhone:   contact.Phone,
			MessageType:    string(msg.Type),
			Content:        msg.Text(),
			SentAt:         msg.SentAt,
		}
		if msg.MediaURL != nil {
			ev.MediaURL = *msg.MediaURL
		}
		if s.runner.Submit("flow-handoff", func(ctx context.Context) error {
			return s.flow.Publish(ctx, ev)
		}) {
			return DispatchFlow
		}
		return DispatchNone
	}

	body := map[string]interface{}{
		"conversation_id": conv.ID.String(),
		"message_id":      msg.ID.String(),
	}
	if s.runner.Submit(dispatch.FnAIProcessMessage, func(ctx context.Context) error {
		return s.functions.Call(ctx, dispatch.FnAIProcessMessage, body, nil)
	}) {
		return DispatchAI
	}
	return DispatchNone
}

// ===========================================================================
// Status and connection events
// ===========================================================================

func (s *messageService) processStatus(ctx context.Context, inst *models.Instance, ev *provider.Event) (*ProcessResult, error) {
	result := &ProcessResult{Kind: provider.EventStatus}
	if ev.MessageID == "" || ev.Status == "" {
		result.Reason = "status without message id"
		return result, nil
	}

	n, err := s.messageRepo.UpdateStatus(ctx, inst.ID, ev.MessageID, ev.Status)
	if err != nil {
		return nil, fmt.Errorf("update message status: %w", err)
	}
	result.StatusUpdated = n
	if n == 0 {
		result.Reason = "unknown message or status not advancing"
	}
	return result, nil
}

func (s *messageService) processConnection(ctx context.Context, inst *models.Instance, ev *provider.Event) (*ProcessResult, error) {
	info := provider.ConnectionInfo{
		Status:      ev.Connection,
		PhoneNumber: ev.PhoneNumber,
		QRCode:      ev.QRCode,
	}
	if ev.Kind == provider.EventQRCode {
		info.Status = models.InstanceQRPending
	}
	if info.Status == "" {
		return &ProcessResult{Kind: ev.Kind, Reason: "connection event without state"}, nil
	}

	if err := applyConnection(ctx, s.instanceRepo, inst, info, s.now()); err != nil {
		return nil, fmt.Errorf("update instance status: %w", err)
	}
	s.instanceChanged(ctx, inst)

	s.logger.Info("instance status changed",
		zap.String("instance_id", inst.ID.String()),
		zap.String("status", string(inst.Status)),
	)
	return &ProcessResult{Kind: ev.Kind}, nil
}

// applyConnection persists a provider reported state and mirrors it on inst
func applyConnection(ctx context.Context, repo repositories.InstanceRepository, inst *models.Instance, info provider.ConnectionInfo, at time.Time) error {
	upd := repositories.InstanceStatusUpdate{
		Status:      info.Status,
		PhoneNumber: phone.Normalize(info.PhoneNumber),
		QRCode:      info.QRCode,
		At:          at,
	}
	if err := repo.UpdateStatus(ctx, inst.ID, upd); err != nil {
		return err
	}

	inst.SetStatus(info.Status, at)
	if upd.PhoneNumber != "" {
		inst.PhoneNumber = upd.PhoneNumber
	}
	if info.QRCode != "" {
		inst.QRCode = info.QRCode
	}
	return nil
}
