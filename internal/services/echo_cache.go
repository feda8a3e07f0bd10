package services

import (
	"errors"
	"time"

	apperrors "whatsdesk/internal/errors"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"
)

// ===========================================================================
// Echo cache
// Provider ids of messages this process just sent. Providers echo our own
// sends back as fromMe webhooks, sometimes before the outgoing row is
// committed; the cache closes that window.
// ===========================================================================

const DefaultEchoTTL = 10 * time.Minute

type EchoCache struct {
	c *cache.Cache
}

func NewEchoCache(ttl time.Duration) *EchoCache {
	if ttl <= 0 {
		ttl = DefaultEchoTTL
	}
	return &EchoCache{c: cache.New(ttl, 2*ttl)}
}

func echoKey(instanceID uuid.UUID, providerMessageID string) string {
	return instanceID.String() + ":" + providerMessageID
}

func (e *EchoCache) Remember(instanceID uuid.UUID, providerMessageID string) {
	if providerMessageID == "" {
		return
	}
	e.c.SetDefault(echoKey(instanceID, providerMessageID), struct{}{})
}

func (e *EchoCache) Seen(instanceID uuid.UUID, providerMessageID string) bool {
	if providerMessageID == "" {
		return false
	}
	_, ok := e.c.Get(echoKey(instanceID, providerMessageID))
	return ok
}

// notFound maps gorm.ErrRecordNotFound to a 404 naming what was missing
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.New(apperrors.ErrNotFound, what+" not found")
	}
	return err
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
