package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"whatsdesk/internal/dto"
	apperrors "whatsdesk/internal/errors"
	"whatsdesk/internal/models"
	"whatsdesk/internal/provider"
	"whatsdesk/internal/repositories/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type outboundFixture struct {
	inst      *models.Instance
	instances *mocks.InstanceRepository
	contacts  *mocks.ContactRepository
	convs     *mocks.ConversationRepository
	msgs      *mocks.MessageRepository
	provider  *provider.MockProvider
	pub       *fakePublisher
	crm       *fakeCRM
	echo      *EchoCache
	svc       OutboundService
}

func newOutboundFixture() *outboundFixture {
	f := &outboundFixture{
		inst:      testInstance(models.ProviderWAPI),
		instances: &mocks.InstanceRepository{},
		contacts:  &mocks.ContactRepository{},
		convs:     &mocks.ConversationRepository{},
		msgs:      &mocks.MessageRepository{},
		pub:       &fakePublisher{},
		crm:       &fakeCRM{},
		echo:      NewEchoCache(0),
	}
	f.provider = provider.NewMockProvider(models.ProviderWAPI, zap.NewNop())
	svc := NewOutboundService(f.instances, f.contacts, f.convs, f.msgs, registryWith(f.provider), f.echo, f.pub, f.crm, inlineRunner(), zap.NewNop())
	svc.(*outboundService).now = func() time.Time { return fixedNow }
	f.svc = svc
	return f
}

func (f *outboundFixture) expectInsert() uuid.UUID {
	id := uuid.New()
	f.msgs.On("Insert", mock.Anything, mock.AnythingOfType("*models.Message")).
		Run(func(args mock.Arguments) { args.Get(1).(*models.Message).ID = id }).
		Return(true, nil)
	return id
}

func TestSend_HumanReplyTakesOver(t *testing.T) {
	f := newOutboundFixture()
	contact := testContact(f.inst, "5511988887777")
	conv := testConversation(f.inst, contact, models.AttendanceAI)
	f.instances.On("FindByID", mock.Anything, f.inst.ID).Return(f.inst, nil)
	f.convs.On("FindByID", mock.Anything, conv.ID).Return(conv, nil)
	msgID := f.expectInsert()
	f.convs.On("TouchOutbound", mock.Anything, conv.ID, "Olá, aqui é a Ana", fixedNow, true).Return(nil)

	userID := uuid.New()
	res, err := f.svc.Send(context.Background(), &SendRequest{
		InstanceID:     f.inst.ID,
		ConversationID: conv.ID,
		UserID:         userID,
		Text:           "Olá, aqui é a Ana",
		Source:         models.SourceHuman,
	})
	require.NoError(t, err)

	assert.Equal(t, msgID, res.MessageID)
	assert.True(t, res.Takeover)
	assert.Equal(t, "mock_sent_1", res.ProviderMessageID)
	assert.True(t, f.echo.Seen(f.inst.ID, "mock_sent_1"))

	sent := f.provider.LastSentMessage()
	require.NotNil(t, sent)
	assert.Equal(t, "5511988887777", sent.Phone)

	stored := f.msgs.Calls[0].Arguments.Get(1).(*models.Message)
	assert.Equal(t, models.DirectionOutgoing, stored.Direction)
	assert.Equal(t, models.SourceHuman, stored.Source)
	assert.False(t, stored.IsFromBot)
	require.NotNil(t, stored.SenderUserID)
	assert.Equal(t, userID, *stored.SenderUserID)

	require.Len(t, f.pub.conversations, 1)
	assert.Equal(t, "human", f.pub.conversations[0].AttendanceMode)
	assert.Len(t, f.pub.messages, 1)
	assert.Len(t, f.crm.syncs, 1)

	f.instances.AssertExpectations(t)
	f.convs.AssertExpectations(t)
	f.msgs.AssertExpectations(t)
}

func TestSend_AIReplyKeepsAttendance(t *testing.T) {
	f := newOutboundFixture()
	contact := testContact(f.inst, "5511988887777")
	conv := testConversation(f.inst, contact, models.AttendanceAI)
	f.instances.On("FindByID", mock.Anything, f.inst.ID).Return(f.inst, nil)
	f.convs.On("FindByID", mock.Anything, conv.ID).Return(conv, nil)
	f.expectInsert()
	f.convs.On("TouchOutbound", mock.Anything, conv.ID, "Abrimos às 9h", fixedNow, false).Return(nil)

	res, err := f.svc.Send(context.Background(), &SendRequest{
		InstanceID:     f.inst.ID,
		ConversationID: conv.ID,
		Phone:          "5511988887777",
		Text:           "Abrimos às 9h",
		Source:         models.SourceAI,
	})
	require.NoError(t, err)

	assert.False(t, res.Takeover)
	assert.Empty(t, f.pub.conversations)
	stored := f.msgs.Calls[0].Arguments.Get(1).(*models.Message)
	assert.True(t, stored.IsFromBot)
	f.convs.AssertExpectations(t)
}

func TestSend_UnknownConversationIsOpenedWithoutUnread(t *testing.T) {
	f := newOutboundFixture()
	contact := testContact(f.inst, "5511977776666")
	conv := testConversation(f.inst, contact, models.AttendanceAI)
	f.instances.On("FindByID", mock.Anything, f.inst.ID).Return(f.inst, nil)
	f.contacts.On("Upsert", mock.Anything, mock.MatchedBy(func(c *models.Contact) bool {
		return c.Phone == "5511977776666"
	})).Return(contact, nil)
	f.convs.On("UpsertOpen", mock.Anything, mock.AnythingOfType("*models.Conversation"), false).Return(conv, nil)
	f.expectInsert()

	res, err := f.svc.Send(context.Background(), &SendRequest{
		InstanceID: f.inst.ID,
		Phone:      "+55 (11) 97777-6666",
		Text:       "Promoção de hoje",
		Source:     models.SourceAPI,
	})
	require.NoError(t, err)

	assert.Equal(t, conv.ID, res.ConversationID)
	f.convs.AssertNotCalled(t, "TouchOutbound", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.contacts.AssertExpectations(t)
	f.convs.AssertExpectations(t)
}

func TestSend_CRMSourceIsNotMirroredBack(t *testing.T) {
	f := newOutboundFixture()
	contact := testContact(f.inst, "5511977776666")
	conv := testConversation(f.inst, contact, models.AttendanceAI)
	f.instances.On("FindByID", mock.Anything, f.inst.ID).Return(f.inst, nil)
	f.contacts.On("Upsert", mock.Anything, mock.Anything).Return(contact, nil)
	f.convs.On("UpsertOpen", mock.Anything, mock.Anything, false).Return(conv, nil)
	f.expectInsert()

	_, err := f.svc.Send(context.Background(), &SendRequest{
		InstanceID: f.inst.ID,
		Phone:      "5511977776666",
		Text:       "Seu pedido foi enviado",
		Source:     models.SourceCRM,
	})
	require.NoError(t, err)

	assert.Empty(t, f.crm.syncs)
	assert.Len(t, f.pub.messages, 1)
}

func TestSend_EchoStoredFirstIsClaimed(t *testing.T) {
	f := newOutboundFixture()
	contact := testContact(f.inst, "5511988887777")
	conv := testConversation(f.inst, contact, models.AttendanceAI)
	f.instances.On("FindByID", mock.Anything, f.inst.ID).Return(f.inst, nil)
	f.convs.On("FindByID", mock.Anything, conv.ID).Return(conv, nil)
	f.convs.On("TouchOutbound", mock.Anything, conv.ID, "Abrimos às 9h", fixedNow, false).Return(nil)
	f.msgs.On("Insert", mock.Anything, mock.AnythingOfType("*models.Message")).Return(false, nil)

	echoed := &models.Message{
		InstanceID:     f.inst.ID,
		ConversationID: conv.ID,
		Direction:      models.DirectionOutgoing,
		Type:           models.TypeText,
		Source:         models.SourceAI,
		IsFromBot:      true,
		FromMe:         true,
	}
	echoed.ID = uuid.New()
	f.msgs.On("ClaimOutbound", mock.Anything, mock.MatchedBy(func(m *models.Message) bool {
		return m.Source == models.SourceAI && m.IsFromBot && *m.WhatsAppMessageID == "mock_sent_1"
	})).Return(echoed, nil)

	res, err := f.svc.Send(context.Background(), &SendRequest{
		InstanceID:     f.inst.ID,
		ConversationID: conv.ID,
		Text:           "Abrimos às 9h",
		Source:         models.SourceAI,
	})
	require.NoError(t, err)

	assert.Equal(t, echoed.ID, res.MessageID)
	require.Len(t, f.pub.messages, 1)
	assert.Equal(t, echoed.ID, f.pub.messages[0].MessageID)
	assert.Equal(t, "ai", f.pub.messages[0].Source)
	// the device copy was mirrored when the echo was stored
	assert.Empty(t, f.crm.syncs)
	f.msgs.AssertExpectations(t)
}

func TestSend_RedeliveredIDIsLeftAlone(t *testing.T) {
	f := newOutboundFixture()
	contact := testContact(f.inst, "5511988887777")
	conv := testConversation(f.inst, contact, models.AttendanceHuman)
	f.instances.On("FindByID", mock.Anything, f.inst.ID).Return(f.inst, nil)
	f.convs.On("FindByID", mock.Anything, conv.ID).Return(conv, nil)
	f.convs.On("TouchOutbound", mock.Anything, conv.ID, "x", fixedNow, true).Return(nil)
	f.msgs.On("Insert", mock.Anything, mock.Anything).Return(false, nil)
	f.msgs.On("ClaimOutbound", mock.Anything, mock.Anything).Return(nil, nil)

	res, err := f.svc.Send(context.Background(), &SendRequest{
		InstanceID:     f.inst.ID,
		ConversationID: conv.ID,
		Text:           "x",
		Source:         models.SourceHuman,
	})
	require.NoError(t, err)

	assert.Equal(t, uuid.Nil, res.MessageID)
	assert.Empty(t, f.pub.messages)
	assert.Empty(t, f.crm.syncs)
	f.msgs.AssertExpectations(t)
}

func TestSend_Validation(t *testing.T) {
	f := newOutboundFixture()

	_, err := f.svc.Send(context.Background(), &SendRequest{Phone: "5511", Text: "x"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.svc.Send(context.Background(), &SendRequest{InstanceID: f.inst.ID, Phone: "5511"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	f.instances.On("FindByID", mock.Anything, f.inst.ID).Return(f.inst, nil).Once()
	_, err = f.svc.Send(context.Background(), &SendRequest{InstanceID: f.inst.ID, Text: "x"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	missing := uuid.New()
	f.instances.On("FindByID", mock.Anything, missing).Return(nil, gorm.ErrRecordNotFound)
	_, err = f.svc.Send(context.Background(), &SendRequest{InstanceID: missing, Phone: "5511", Text: "x"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.Empty(t, f.provider.SentMessages())
}

func TestSend_ForeignConversationIsNotFound(t *testing.T) {
	f := newOutboundFixture()
	contact := testContact(f.inst, "5511988887777")
	conv := testConversation(f.inst, contact, models.AttendanceAI)
	other := uuid.New()
	f.instances.On("FindInWorkspace", mock.Anything, other, f.inst.ID).Return(f.inst, nil)
	f.convs.On("FindByID", mock.Anything, conv.ID).Return(conv, nil)

	_, err := f.svc.Send(context.Background(), &SendRequest{
		WorkspaceID:    other,
		InstanceID:     f.inst.ID,
		ConversationID: conv.ID,
		Text:           "x",
		Source:         models.SourceHuman,
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Empty(t, f.provider.SentMessages())
}

func TestSend_ProviderFailureStoresNothing(t *testing.T) {
	f := newOutboundFixture()
	f.provider.SendErr = errors.New("upstream down")
	f.instances.On("FindByID", mock.Anything, f.inst.ID).Return(f.inst, nil)

	_, err := f.svc.Send(context.Background(), &SendRequest{
		InstanceID: f.inst.ID,
		Phone:      "5511988887777",
		Text:       "x",
	})
	require.Error(t, err)
	f.msgs.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestSendRequestFromParams(t *testing.T) {
	instanceID := uuid.New()
	req := SendRequestFromParams(dto.NormalizeSendParams(map[string]interface{}{
		"instanceId":  instanceID.String(),
		"number":      5511988887777,
		"message":     "oi",
		"senderType":  "operator",
		"messageType": "text",
	}))

	assert.Equal(t, instanceID, req.InstanceID)
	assert.Equal(t, "5511988887777", req.Phone)
	assert.Equal(t, "oi", req.Text)
	assert.Equal(t, models.SourceHuman, req.Source)
	assert.Equal(t, models.TypeText, req.Type)
}
