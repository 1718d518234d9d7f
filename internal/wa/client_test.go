package wa

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tapbook/salon-booking/internal/card"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{
		BaseURL:       srv.URL,
		AccessToken:   "token-123",
		PhoneNumberID: "555000",
		WebhookSecret: "shhh",
		MaxRetries:    2,
		Backoff:       time.Millisecond,
	})
	require.NoError(t, err)
	return c, srv
}

func TestSendTextPayload(t *testing.T) {
	var got outboundMessage
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/555000/messages", r.URL.Path)
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, c.SendText(context.Background(), "15551234567", "hi there"))
	assert.Equal(t, "whatsapp", got.MessagingProduct)
	assert.Equal(t, "text", got.Type)
	require.NotNil(t, got.Text)
	assert.Equal(t, "hi there", got.Text.Body)
}

func TestSendPresentationButtons(t *testing.T) {
	var got outboundMessage
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	})

	p := card.Presentation{
		Kind: card.KindButtons,
		Text: "Pick a time",
		Buttons: []card.Button{
			{ID: "slot_2026-09-04_15:00_staff-1", Title: "Fri 3:00 PM"},
		},
	}
	require.NoError(t, c.SendPresentation(context.Background(), "15551234567", p))
	assert.Equal(t, "interactive", got.Type)
	require.NotNil(t, got.Interactive)
	assert.Equal(t, "button", got.Interactive.Type)
	require.Len(t, got.Interactive.Action.Buttons, 1)
	assert.Equal(t, "slot_2026-09-04_15:00_staff-1", got.Interactive.Action.Buttons[0].Reply.ID)
}

func TestSendPresentationList(t *testing.T) {
	var got outboundMessage
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	})

	p := card.Presentation{
		Kind: card.KindList,
		Text: "Pick a time",
		Sections: []card.Section{
			{Title: "Fri, Sep 4", Rows: []card.Row{
				{ID: "slot_2026-09-04_15:00_staff-1", Title: "3:00 PM", Description: "Maria"},
			}},
		},
	}
	require.NoError(t, c.SendPresentation(context.Background(), "15551234567", p))
	require.NotNil(t, got.Interactive)
	assert.Equal(t, "list", got.Interactive.Type)
	require.Len(t, got.Interactive.Action.Sections, 1)
	assert.Equal(t, "Fri, Sep 4", got.Interactive.Action.Sections[0].Title)
}

func TestInvokeRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, c.SendText(context.Background(), "15551234567", "hi"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestInvokeDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad recipient","code":131026}}`))
	})

	err := c.SendText(context.Background(), "nope", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad recipient")
	assert.Equal(t, int32(1), calls.Load())
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"object":"whatsapp_business_account"}`)
	mac := hmac.New(sha256.New, []byte("shhh"))
	mac.Write(payload)
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	require.NoError(t, VerifySignature("shhh", sig, payload))
	assert.Error(t, VerifySignature("shhh", sig, []byte("tampered")))
	assert.Error(t, VerifySignature("shhh", "", payload))
	assert.Error(t, VerifySignature("", sig, payload))
}

func TestInboundsFlattensWebhook(t *testing.T) {
	raw := `{
		"object": "whatsapp_business_account",
		"entry": [{"id": "ent-1", "changes": [{"field": "messages", "value": {
			"messaging_product": "whatsapp",
			"metadata": {"phone_number_id": "555000"},
			"contacts": [{"wa_id": "15551234567", "profile": {"name": "Dana"}}],
			"messages": [
				{"id": "m1", "from": "15551234567", "type": "text", "text": {"body": "Haircut Friday 3pm"}},
				{"id": "m2", "from": "15551234567", "type": "interactive",
				 "interactive": {"type": "button_reply", "button_reply": {"id": "slot_2026-09-04_15:00_staff-1", "title": "Fri 3:00 PM"}}},
				{"id": "m3", "from": "15551234567", "type": "image"}
			]
		}}]}]
	}`
	var payload WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	in := payload.Inbounds()
	require.Len(t, in, 2)
	assert.Equal(t, "Haircut Friday 3pm", in[0].Text)
	assert.Equal(t, "Dana", in[0].Name)
	assert.Empty(t, in[0].ActionID)
	assert.Equal(t, "slot_2026-09-04_15:00_staff-1", in[1].ActionID)
	assert.Empty(t, in[1].Text)
}
