// Package wa speaks the WhatsApp Cloud API: inbound webhook payloads and
// outbound text/interactive messages.
package wa

import "strings"

// WebhookPayload mirrors the Cloud API webhook envelope.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

type ChangeValue struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts"`
	Messages         []Message `json:"messages"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type Contact struct {
	WaID    string  `json:"wa_id"`
	Profile Profile `json:"profile"`
}

type Profile struct {
	Name string `json:"name"`
}

type Message struct {
	ID          string       `json:"id"`
	From        string       `json:"from"`
	Timestamp   string       `json:"timestamp"`
	Type        string       `json:"type"`
	Text        *Text        `json:"text,omitempty"`
	Interactive *Interactive `json:"interactive,omitempty"`
}

type Text struct {
	Body string `json:"body"`
}

type Interactive struct {
	Type        string `json:"type"`
	ButtonReply *Reply `json:"button_reply,omitempty"`
	ListReply   *Reply `json:"list_reply,omitempty"`
}

type Reply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Inbound is one normalized customer event extracted from a webhook payload:
// either free text or a tapped action ID, never both.
type Inbound struct {
	MessageID string
	From      string
	Name      string
	Text      string
	ActionID  string
}

// Inbounds flattens the webhook envelope into customer events. Non-message
// changes (statuses, errors) are skipped.
func (p *WebhookPayload) Inbounds() []Inbound {
	var out []Inbound
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			names := map[string]string{}
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, msg := range change.Value.Messages {
				in := Inbound{
					MessageID: msg.ID,
					From:      msg.From,
					Name:      names[msg.From],
				}
				switch msg.Type {
				case "text":
					if msg.Text == nil || strings.TrimSpace(msg.Text.Body) == "" {
						continue
					}
					in.Text = msg.Text.Body
				case "interactive":
					if msg.Interactive == nil {
						continue
					}
					switch {
					case msg.Interactive.ButtonReply != nil:
						in.ActionID = msg.Interactive.ButtonReply.ID
					case msg.Interactive.ListReply != nil:
						in.ActionID = msg.Interactive.ListReply.ID
					default:
						continue
					}
				default:
					continue
				}
				out = append(out, in)
			}
		}
	}
	return out
}

// Outbound payload shapes for the /messages endpoint.

type outboundMessage struct {
	MessagingProduct string               `json:"messaging_product"`
	To               string               `json:"to"`
	Type             string               `json:"type"`
	Text             *Text                `json:"text,omitempty"`
	Interactive      *outboundInteractive `json:"interactive,omitempty"`
}

type outboundInteractive struct {
	Type   string         `json:"type"`
	Body   outboundBody   `json:"body"`
	Action outboundAction `json:"action"`
}

type outboundBody struct {
	Text string `json:"text"`
}

type outboundAction struct {
	Buttons  []outboundButton  `json:"buttons,omitempty"`
	Button   string            `json:"button,omitempty"`
	Sections []outboundSection `json:"sections,omitempty"`
}

type outboundButton struct {
	Type  string `json:"type"`
	Reply Reply  `json:"reply"`
}

type outboundSection struct {
	Title string        `json:"title"`
	Rows  []outboundRow `json:"rows"`
}

type outboundRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}
