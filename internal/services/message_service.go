package services

import (
	"context"

	"whatsdesk/internal/models"
	"whatsdesk/internal/provider"

	"github.com/google/uuid"
)

// ===========================================================================
// Message Service Interface
// Inbound pipeline: normalized webhook event -> contact upsert ->
// conversation upsert -> message insert -> realtime, CRM and AI dispatch
// ===========================================================================

// Dispatch where an inbound message was handed for an automatic answer
type Dispatch string

const (
	DispatchNone Dispatch = ""
	DispatchAI   Dispatch = "ai"
	DispatchFlow Dispatch = "flow"
)

// ProcessResult outcome of one webhook event
type ProcessResult struct {
	Kind provider.EventKind `json:"kind"`

	ContactID      uuid.UUID `json:"contact_id,omitempty"`
	ConversationID uuid.UUID `json:"conversation_id,omitempty"`
	MessageID      uuid.UUID `json:"message_id,omitempty"`

	// Duplicate the provider id was already known (our own echo or a redelivery)
	Duplicate bool `json:"duplicate,omitempty"`

	Dispatch Dispatch `json:"dispatch,omitempty"`

	// StatusUpdated rows moved forward by a status event
	StatusUpdated int64 `json:"status_updated,omitempty"`

	Reason string `json:"reason,omitempty"`
}

type MessageService interface {
	// ProcessInbound applies one event to the instance. Side effects after the
	// insert never fail the call.
	ProcessInbound(ctx context.Context, inst *models.Instance, ev *provider.Event) (*ProcessResult, error)
}
