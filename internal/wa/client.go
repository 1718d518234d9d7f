package wa

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tapbook/salon-booking/internal/card"
	"github.com/tapbook/salon-booking/pkg/logging"
)

const defaultBaseURL = "https://graph.facebook.com/v19.0"

// Messenger sends outbound messages to a customer. The orchestrator depends
// on this, not on the concrete Cloud API client.
type Messenger interface {
	SendText(ctx context.Context, to, body string) error
	SendPresentation(ctx context.Context, to string, p card.Presentation) error
}

// Config controls how the Cloud API client behaves.
type Config struct {
	BaseURL       string
	AccessToken   string
	PhoneNumberID string
	WebhookSecret string
	Timeout       time.Duration
	MaxRetries    int
	Backoff       time.Duration
	HTTPClient    *http.Client
	Logger        *logging.Logger
}

// Client wraps the WhatsApp Cloud API messages endpoint.
type Client struct {
	accessToken   string
	baseURL       string
	phoneNumberID string
	webhookSecret string
	httpClient    *http.Client
	maxRetries    int
	backoff       time.Duration
	logger        *logging.Logger
}

// NewClient creates a configured Client with sane defaults.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, errors.New("wa: access token is required")
	}
	if strings.TrimSpace(cfg.PhoneNumberID) == "" {
		return nil, errors.New("wa: phone number id is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		accessToken:   cfg.AccessToken,
		baseURL:       baseURL,
		phoneNumberID: cfg.PhoneNumberID,
		webhookSecret: cfg.WebhookSecret,
		httpClient:    httpClient,
		maxRetries:    maxRetries,
		backoff:       backoff,
		logger:        logger,
	}, nil
}

// SendText sends a plain text message.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	return c.send(ctx, outboundMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             &Text{Body: body},
	})
}

// SendPresentation renders a card as the matching Cloud API message shape:
// plain text, reply buttons, or a sectioned list.
func (c *Client) SendPresentation(ctx context.Context, to string, p card.Presentation) error {
	switch p.Kind {
	case card.KindText:
		return c.SendText(ctx, to, p.Text)
	case card.KindButtons:
		buttons := make([]outboundButton, 0, len(p.Buttons))
		for _, b := range p.Buttons {
			buttons = append(buttons, outboundButton{
				Type:  "reply",
				Reply: Reply{ID: b.ID, Title: b.Title},
			})
		}
		return c.send(ctx, outboundMessage{
			MessagingProduct: "whatsapp",
			To:               to,
			Type:             "interactive",
			Interactive: &outboundInteractive{
				Type:   "button",
				Body:   outboundBody{Text: p.Text},
				Action: outboundAction{Buttons: buttons},
			},
		})
	case card.KindList:
		sections := make([]outboundSection, 0, len(p.Sections))
		for _, s := range p.Sections {
			rows := make([]outboundRow, 0, len(s.Rows))
			for _, r := range s.Rows {
				rows = append(rows, outboundRow{ID: r.ID, Title: r.Title, Description: r.Description})
			}
			sections = append(sections, outboundSection{Title: s.Title, Rows: rows})
		}
		return c.send(ctx, outboundMessage{
			MessagingProduct: "whatsapp",
			To:               to,
			Type:             "interactive",
			Interactive: &outboundInteractive{
				Type:   "list",
				Body:   outboundBody{Text: p.Text},
				Action: outboundAction{Button: "View times", Sections: sections},
			},
		})
	default:
		return fmt.Errorf("wa: unknown presentation kind %q", p.Kind)
	}
}

// VerifySignature validates the X-Hub-Signature-256 header against the raw
// request body. The header carries "sha256=<hex hmac>".
func (c *Client) VerifySignature(header string, payload []byte) error {
	return VerifySignature(c.webhookSecret, header, payload)
}

// VerifySignature checks an HMAC-SHA256 webhook signature.
func VerifySignature(secret, header string, payload []byte) error {
	if secret == "" {
		return errors.New("wa: webhook secret not configured")
	}
	sig := strings.TrimSpace(header)
	sig = strings.TrimPrefix(sig, "sha256=")
	if sig == "" {
		return errors.New("wa: missing signature header")
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(sig))) {
		return errors.New("wa: signature mismatch")
	}
	return nil
}

func (c *Client) send(ctx context.Context, msg outboundMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("wa: marshal message: %w", err)
	}
	_, err = c.invoke(ctx, fmt.Sprintf("/%s/messages", c.phoneNumberID), body)
	return err
}

func (c *Client) invoke(ctx context.Context, path string, body []byte) ([]byte, error) {
	fullURL := c.baseURL + path
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("wa: build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !shouldRetry(0, err) || attempt == c.maxRetries {
				return nil, fmt.Errorf("wa: http error: %w", err)
			}
			lastErr = err
			c.logRetry(path, attempt, 0, err)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("wa: read response: %w", readErr)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return data, nil
		}
		apiErr := decodeAPIError(resp.StatusCode, data)
		if attempt < c.maxRetries && shouldRetry(resp.StatusCode, nil) {
			lastErr = apiErr
			c.logRetry(path, attempt, resp.StatusCode, apiErr)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		return nil, apiErr
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("wa: request failed without response")
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	delay := c.backoff * time.Duration(1<<attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) logRetry(path string, attempt int, status int, err error) {
	c.logger.Warn("whatsapp retry",
		"path", path,
		"attempt", attempt+1,
		"status", status,
		"error", err,
	)
}

func shouldRetry(status int, err error) bool {
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return true
		}
		return !errors.Is(err, context.Canceled)
	}
	if status == http.StatusTooManyRequests {
		return true
	}
	return status >= 500 && status <= 599
}

type apiError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message,omitempty"`
	Type       string `json:"type,omitempty"`
	Code       int    `json:"code,omitempty"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("wa: %s (status=%d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("wa: http status %d", e.StatusCode)
}

func decodeAPIError(status int, body []byte) error {
	var wrapper struct {
		Error apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return &apiError{StatusCode: status, Message: string(body)}
	}
	wrapper.Error.StatusCode = status
	return &wrapper.Error
}

var _ Messenger = (*Client)(nil)
