package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/tapbook/salon-booking/internal/card"
	"github.com/tapbook/salon-booking/internal/wa"
	"github.com/tapbook/salon-booking/pkg/logging"
)

// Flow handles one customer turn: free text in, or a tapped button in.
type Flow interface {
	HandleInboundMessage(ctx context.Context, salonID, customerID, language, text string) (card.Presentation, error)
	HandleAction(ctx context.Context, salonID, customerID, language, actionID string) (card.Presentation, error)
}

// SalonResolver maps the receiving WhatsApp phone number to a salon.
type SalonResolver interface {
	SalonID(ctx context.Context, phoneNumberID string) (string, error)
}

// StaticSalonResolver routes every webhook to one salon. Single-tenant
// deployments use this.
type StaticSalonResolver string

func (s StaticSalonResolver) SalonID(context.Context, string) (string, error) {
	return string(s), nil
}

// WhatsAppWebhookHandler receives Cloud API webhooks: the GET subscription
// handshake and POSTed inbound messages.
type WhatsAppWebhookHandler struct {
	verifyToken     string
	webhookSecret   string
	defaultLanguage string
	flow            Flow
	salons          SalonResolver
	messenger       wa.Messenger
	logger          *logging.Logger
}

// WhatsAppWebhookConfig configures the webhook handler.
type WhatsAppWebhookConfig struct {
	VerifyToken     string
	WebhookSecret   string
	DefaultLanguage string
	Flow            Flow
	Salons          SalonResolver
	Messenger       wa.Messenger
	Logger          *logging.Logger
}

func NewWhatsAppWebhookHandler(cfg WhatsAppWebhookConfig) *WhatsAppWebhookHandler {
	if cfg.Flow == nil || cfg.Salons == nil || cfg.Messenger == nil {
		panic("handlers: flow, salon resolver and messenger required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	lang := cfg.DefaultLanguage
	if lang == "" {
		lang = "en"
	}
	return &WhatsAppWebhookHandler{
		verifyToken:     strings.TrimSpace(cfg.VerifyToken),
		webhookSecret:   strings.TrimSpace(cfg.WebhookSecret),
		defaultLanguage: lang,
		flow:            cfg.Flow,
		salons:          cfg.Salons,
		messenger:       cfg.Messenger,
		logger:          logger,
	}
}

// Verify answers the Cloud API subscription handshake.
func (h *WhatsAppWebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || q.Get("hub.verify_token") != h.verifyToken || h.verifyToken == "" {
		http.Error(w, "verification failed", http.StatusForbidden)
		return
	}
	_, _ = w.Write([]byte(q.Get("hub.challenge")))
}

// Receive processes inbound webhook deliveries. The 200 goes back regardless
// of per-message outcomes; Meta retries non-2xx deliveries aggressively.
func (h *WhatsAppWebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := wa.VerifySignature(h.webhookSecret, r.Header.Get("X-Hub-Signature-256"), payload); err != nil {
		h.logger.Warn("rejected webhook with bad signature", "error", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var envelope wa.WebhookPayload
	if err := json.Unmarshal(payload, &envelope); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			h.processChange(r.Context(), change)
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (h *WhatsAppWebhookHandler) processChange(ctx context.Context, change wa.Change) {
	single := wa.WebhookPayload{Entry: []wa.Entry{{Changes: []wa.Change{change}}}}
	inbounds := single.Inbounds()
	if len(inbounds) == 0 {
		return
	}

	salonID, err := h.salons.SalonID(ctx, change.Value.Metadata.PhoneNumberID)
	if err != nil {
		h.logger.Error("no salon for phone number", "phone_number_id", change.Value.Metadata.PhoneNumberID, "error", err)
		return
	}

	for _, in := range inbounds {
		var reply card.Presentation
		if in.ActionID != "" {
			reply, err = h.flow.HandleAction(ctx, salonID, in.From, h.defaultLanguage, in.ActionID)
		} else {
			reply, err = h.flow.HandleInboundMessage(ctx, salonID, in.From, h.defaultLanguage, in.Text)
		}
		if err != nil {
			h.logger.Error("flow failed", "salon_id", salonID, "customer", in.From, "error", err)
			continue
		}
		if err := h.messenger.SendPresentation(ctx, in.From, reply); err != nil {
			h.logger.Error("failed to send reply", "salon_id", salonID, "customer", in.From, "error", err)
		}
	}
}
