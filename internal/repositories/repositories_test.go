package repositories

import (
	"context"
	"sync"
	"testing"
	"time"

	"whatsdesk/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sqlRecorder keeps every statement gorm builds, values inlined
type sqlRecorder struct {
	mu    sync.Mutex
	stmts []string
}

func (r *sqlRecorder) LogMode(logger.LogLevel) logger.Interface { return r }

func (r *sqlRecorder) Info(context.Context, string, ...interface{}) {}

func (r *sqlRecorder) Warn(context.Context, string, ...interface{}) {}

func (r *sqlRecorder) Error(context.Context, string, ...interface{}) {}

func (r *sqlRecorder) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	sql, _ := fc()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stmts = append(r.stmts, sql)
}

func (r *sqlRecorder) last(t *testing.T) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.stmts, "no statement was built")
	return r.stmts[len(r.stmts)-1]
}

// dryRunDB builds postgres SQL without a server: the pgx pool is lazy and
// DryRun never executes
func dryRunDB(t *testing.T) (*gorm.DB, *sqlRecorder) {
	rec := &sqlRecorder{}
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=whatsdesk dbname=whatsdesk sslmode=disable",
	}), &gorm.Config{
		DryRun:                 true,
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
		Logger:                 rec,
	})
	require.NoError(t, err)
	return db, rec
}

func TestContactUpsert_KeepsManualName(t *testing.T) {
	db, rec := dryRunDB(t)

	_, err := NewContactRepository(db).Upsert(context.Background(), &models.Contact{
		WorkspaceID: uuid.New(),
		InstanceID:  uuid.New(),
		Phone:       "5511988887777",
	})
	require.NoError(t, err)

	sql := rec.last(t)
	assert.Contains(t, sql, `INSERT INTO "contacts"`)
	assert.Contains(t, sql, `ON CONFLICT ("instance_id","phone") DO UPDATE SET`)
	assert.Contains(t, sql, `"name"=COALESCE(contacts.name, EXCLUDED.name)`)
	assert.Contains(t, sql, `"push_name"=COALESCE(NULLIF(EXCLUDED.push_name, ''), contacts.push_name)`)
	assert.Contains(t, sql, `"deleted_at"=NULL`)
	assert.Contains(t, sql, "RETURNING *")
}

func TestConversationUpsertOpen(t *testing.T) {
	tests := []struct {
		name      string
		incoming  bool
		increment bool
	}{
		{"incoming bumps unread", true, true},
		{"outgoing leaves unread", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, rec := dryRunDB(t)

			conv := &models.Conversation{
				WorkspaceID:    uuid.New(),
				InstanceID:     uuid.New(),
				ContactID:      uuid.New(),
				AttendanceMode: models.AttendanceAI,
			}
			conv.SetLastMessage("oi", time.Now())
			_, err := NewConversationRepository(db).UpsertOpen(context.Background(), conv, tt.incoming)
			require.NoError(t, err)

			sql := rec.last(t)
			assert.Contains(t, sql, `INSERT INTO "conversations"`)
			assert.Contains(t, sql, `ON CONFLICT ("instance_id","contact_id") WHERE status = 'open' DO UPDATE SET`)
			assert.Contains(t, sql, `"last_message_at"=EXCLUDED.last_message_at`)
			assert.Contains(t, sql, "RETURNING *")
			if tt.increment {
				assert.Contains(t, sql, `"unread_count"=conversations.unread_count + 1`)
			} else {
				assert.NotContains(t, sql, `"unread_count"=`)
			}
			assert.Equal(t, models.StatusOpen, conv.Status)
		})
	}
}

func TestMessageInsert_DoNothingOnKnownID(t *testing.T) {
	db, rec := dryRunDB(t)
	wamid := "wamid-1"

	_, err := NewMessageRepository(db).Insert(context.Background(), &models.Message{
		WorkspaceID:       uuid.New(),
		InstanceID:        uuid.New(),
		ConversationID:    uuid.New(),
		WhatsAppMessageID: &wamid,
		Direction:         models.DirectionIncoming,
		Type:              models.TypeText,
		Status:            models.MessageReceived,
		Source:            models.SourceContact,
		SentAt:            time.Now(),
	})
	require.NoError(t, err)

	sql := rec.last(t)
	assert.Contains(t, sql, `INSERT INTO "messages"`)
	assert.Contains(t, sql, `ON CONFLICT ("instance_id","whatsapp_message_id") DO NOTHING`)
}

func TestMessageUpdateStatus_GuardsBackwardMoves(t *testing.T) {
	tests := []struct {
		status models.MessageStatus
		guard  string
	}{
		{models.MessageDelivered, `status IN ('pending','sent')`},
		{models.MessageRead, `status IN ('pending','sent','delivered')`},
		{models.MessageFailed, `status IN ('pending','sent')`},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			db, rec := dryRunDB(t)

			_, err := NewMessageRepository(db).UpdateStatus(context.Background(), uuid.New(), "wamid-1", tt.status)
			require.NoError(t, err)

			sql := rec.last(t)
			assert.Contains(t, sql, `UPDATE "messages" SET`)
			assert.Contains(t, sql, `"status"='`+string(tt.status)+`'`)
			assert.Contains(t, sql, "whatsapp_message_id = 'wamid-1'")
			assert.Contains(t, sql, tt.guard)
		})
	}
}

func TestMessageUpdateStatus_NothingPrecedesPending(t *testing.T) {
	db, rec := dryRunDB(t)

	n, err := NewMessageRepository(db).UpdateStatus(context.Background(), uuid.New(), "wamid-1", models.MessagePending)
	require.NoError(t, err)

	assert.Zero(t, n)
	assert.Empty(t, rec.stmts)
}

func TestMessageClaimOutbound_OnlyTouchesDeviceRows(t *testing.T) {
	db, rec := dryRunDB(t)
	wamid := "wamid-2"
	userID := uuid.New()

	claimed, err := NewMessageRepository(db).ClaimOutbound(context.Background(), &models.Message{
		InstanceID:        uuid.New(),
		WhatsAppMessageID: &wamid,
		Source:            models.SourceHuman,
		SenderUserID:      &userID,
	})
	require.NoError(t, err)
	assert.Nil(t, claimed)

	sql := rec.last(t)
	assert.Contains(t, sql, `UPDATE "messages" SET`)
	assert.Contains(t, sql, `"source"='human'`)
	assert.Contains(t, sql, `"is_from_bot"=false`)
	assert.Contains(t, sql, `"sender_user_id"='`+userID.String()+`'`)
	assert.Contains(t, sql, "whatsapp_message_id = 'wamid-2'")
	assert.Contains(t, sql, "source = 'device'")
	assert.Contains(t, sql, "RETURNING *")
}
