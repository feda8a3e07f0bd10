package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestIntegrationMaskedConfig(t *testing.T) {
	i := &Integration{Config: datatypes.JSONMap{
		"domain":         "acme.bitrix24.com",
		"client_secret":  "s",
		"refresh_token":  "r",
		"apiKey":         "k",
		"empty_password": "",
		"expires_in":     3600,
	}}

	masked := i.MaskedConfig()

	assert.Equal(t, "acme.bitrix24.com", masked["domain"])
	assert.Equal(t, ConfigMask, masked["client_secret"])
	assert.Equal(t, ConfigMask, masked["refresh_token"])
	assert.Equal(t, ConfigMask, masked["apiKey"])
	assert.Equal(t, "", masked["empty_password"], "unset secrets stay visibly empty")
	assert.Equal(t, 3600, masked["expires_in"])
	assert.Equal(t, "s", i.Config["client_secret"], "stored config is untouched")
}

func TestIntegrationMergeConfig(t *testing.T) {
	i := &Integration{}
	i.MergeConfig(map[string]interface{}{"client_id": "app.1", "client_secret": "s"})
	require.Equal(t, "s", i.Config["client_secret"])

	i.MergeConfig(map[string]interface{}{
		"client_secret": ConfigMask,
		"client_id":     nil,
		"domain":        "acme.bitrix24.com",
	})

	assert.Equal(t, "s", i.Config["client_secret"])
	assert.NotContains(t, i.Config, "client_id")
	assert.Equal(t, "acme.bitrix24.com", i.Config["domain"])
}

func TestIntegrationErrorState(t *testing.T) {
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	i := &Integration{Status: IntegrationActive}

	i.MarkError(errors.New("invalid_grant"), at)
	assert.Equal(t, IntegrationError, i.Status)
	require.NotNil(t, i.LastError)
	assert.Equal(t, "invalid_grant", *i.LastError)
	assert.Equal(t, at, *i.LastErrorAt)

	i.ClearError()
	assert.Equal(t, IntegrationActive, i.Status)
	assert.Nil(t, i.LastError)
	assert.Nil(t, i.LastErrorAt)
}
