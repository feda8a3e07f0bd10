package bitrix

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"whatsdesk/internal/config"
	apperrors "whatsdesk/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(oauthURL string) *Client {
	return NewClient(config.BitrixConfig{OAuthURL: oauthURL, Timeout: 5 * time.Second}, zap.NewNop())
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestCredentials_NeedsRefresh(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	buffer := 5 * time.Minute

	fresh := Credentials{ExpiresAt: now.Add(10 * time.Minute).Unix()}
	assert.False(t, fresh.NeedsRefresh(now, buffer))

	insideBuffer := Credentials{ExpiresAt: now.Add(4 * time.Minute).Unix()}
	assert.True(t, insideBuffer.NeedsRefresh(now, buffer))

	exactlyAtBuffer := Credentials{ExpiresAt: now.Add(5 * time.Minute).Unix()}
	assert.True(t, exactlyAtBuffer.NeedsRefresh(now, buffer))

	expired := Credentials{ExpiresAt: now.Add(-time.Hour).Unix()}
	assert.True(t, expired.NeedsRefresh(now, buffer))

	webhook := Credentials{WebhookURL: "https://x.bitrix24.com/rest/1/abc/", ExpiresAt: 0}
	assert.False(t, webhook.NeedsRefresh(now, buffer))
}

func TestRefresh_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "refresh_token", q.Get("grant_type"))
		assert.Equal(t, "cid", q.Get("client_id"))
		assert.Equal(t, "old-refresh", q.Get("refresh_token"))
		writeJSON(w, 200, `{"access_token":"new-access","refresh_token":"new-refresh","expires":1800000000,"domain":"acme.bitrix24.com"}`)
	}))
	defer srv.Close()

	out, err := newTestClient(srv.URL).Refresh(context.Background(), Credentials{
		ClientID: "cid", ClientSecret: "sec", RefreshToken: "old-refresh", Domain: "old.bitrix24.com",
	})

	require.NoError(t, err)
	assert.Equal(t, "new-access", out.AccessToken)
	assert.Equal(t, "new-refresh", out.RefreshToken)
	assert.Equal(t, int64(1800000000), out.ExpiresAt)
	assert.Equal(t, "acme.bitrix24.com", out.Domain)

	cfg := map[string]interface{}{"client_id": "cid"}
	out.WriteTokens(cfg)
	assert.Equal(t, "new-access", cfg["access_token"])
	assert.Equal(t, "cid", cfg["client_id"])
}

func TestRefresh_FailureIsUnauthorized(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, 400, `{"error":"invalid_grant","error_description":"Refresh token expired"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Refresh(context.Background(), Credentials{
		ClientID: "cid", ClientSecret: "sec", RefreshToken: "old",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Contains(t, err.Error(), "Refresh token expired")
	assert.Equal(t, 1, calls)
}

func TestFindLeadByPhone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/crm.duplicate.findbycomm.json", r.URL.Path)
		assert.Equal(t, "tok", r.URL.Query().Get("auth"))
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		values := body["values"].([]interface{})
		if values[0] == "5511999990000" {
			writeJSON(w, 200, `{"result":{"LEAD":[42,57]}}`)
			return
		}
		writeJSON(w, 200, `{"result":[]}`)
	}))
	defer srv.Close()

	c := newTestClient("")
	creds := Credentials{Domain: srv.URL, AccessToken: "tok"}

	id, err := c.FindLeadByPhone(context.Background(), creds, "5511999990000")
	require.NoError(t, err)
	assert.Equal(t, "42", id)

	id, err = c.FindLeadByPhone(context.Background(), creds, "5511000000000")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestAddLeadAndActivity_WebhookPortal(t *testing.T) {
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.URL.Path)
		assert.Empty(t, r.URL.Query().Get("auth"))
		switch r.URL.Path {
		case "/rest/1/hook/crm.lead.add.json":
			writeJSON(w, 200, `{"result":101}`)
		case "/rest/1/hook/crm.activity.add.json":
			var body struct {
				Fields map[string]interface{} `json:"fields"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "101", body.Fields["OWNER_ID"])
			assert.EqualValues(t, directionIncoming, body.Fields["DIRECTION"])
			writeJSON(w, 200, `{"result":"9"}`)
		default:
			writeJSON(w, 404, `{"error":"ERROR_METHOD_NOT_FOUND"}`)
		}
	}))
	defer srv.Close()

	c := newTestClient("")
	creds := Credentials{WebhookURL: srv.URL + "/rest/1/hook/"}

	leadID, err := c.AddLead(context.Background(), creds, Lead{Title: "WhatsApp 5511", Name: "Ana", Phone: "5511"})
	require.NoError(t, err)
	assert.Equal(t, "101", leadID)

	actID, err := c.AddActivity(context.Background(), creds, Activity{LeadID: leadID, Phone: "5511", Subject: "s", Incoming: true})
	require.NoError(t, err)
	assert.Equal(t, "9", actID)
	assert.Len(t, methods, 2)
}

func TestCall_ExpiredToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 401, `{"error":"expired_token","error_description":"The access token provided has expired."}`)
	}))
	defer srv.Close()

	err := newTestClient("").Call(context.Background(), Credentials{Domain: srv.URL, AccessToken: "old"}, "crm.lead.add", nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestSendToOpenLine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/imconnector.send.messages.json", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "whatsdesk", body["CONNECTOR"])
		assert.Equal(t, "3", body["LINE"])
		writeJSON(w, 200, `{"result":{"SUCCESS":true}}`)
	}))
	defer srv.Close()

	c := newTestClient("")
	err := c.SendToOpenLine(context.Background(), Credentials{}, OpenLineMessage{Phone: "5511"})
	assert.ErrorIs(t, err, apperrors.ErrSkipped)

	creds := Credentials{Domain: srv.URL, AccessToken: "tok", ConnectorID: "whatsdesk", LineID: "3"}
	err = c.SendToOpenLine(context.Background(), creds, OpenLineMessage{Phone: "5511", Text: "oi", MessageID: "m1", SentAt: time.Now()})
	assert.NoError(t, err)
}
