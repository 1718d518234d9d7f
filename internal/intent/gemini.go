package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/tapbook/salon-booking/pkg/logging"
)

const extractionPrompt = `Extract the booking intent from the customer message.
Reply with only a JSON object, no prose:
{"service_name": "...", "staff_name": "...", "date": "YYYY-MM-DD", "time": "HH:MM", "confidence": 0.0-1.0}
Omit fields you cannot determine. Today is %s. The message language is %s.
Message: %q`

// GeminiExtractor parses intents with Google's Gemini API, falling back to
// the deterministic keyword extractor when the model call fails or times out
// so the flow never stalls on the LLM.
type GeminiExtractor struct {
	client   *genai.Client
	modelID  string
	fallback *KeywordExtractor
	timeout  time.Duration
	logger   *logging.Logger
	now      func() time.Time
}

// NewGeminiExtractor creates a Gemini-backed extractor.
func NewGeminiExtractor(ctx context.Context, apiKey, modelID string, timeout time.Duration, logger *logging.Logger) (*GeminiExtractor, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("intent: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("intent: failed to create gemini client: %w", err)
	}

	return &GeminiExtractor{
		client:   client,
		modelID:  modelID,
		fallback: NewKeywordExtractor(),
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Parse asks the model for a structured intent. A model failure degrades to
// the keyword extractor rather than surfacing an error to the flow.
func (e *GeminiExtractor) Parse(ctx context.Context, text, language string) (Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	model := e.client.GenerativeModel(e.modelID)
	model.SetTemperature(0)

	prompt := fmt.Sprintf(extractionPrompt, e.now().Format("2006-01-02"), language, text)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		e.logger.Warn("gemini intent extraction failed, using keyword fallback", "error", err)
		return e.fallback.Parse(ctx, text, language)
	}

	raw := firstText(resp)
	parsed, ok := parseModelJSON(raw, e.now())
	if !ok {
		e.logger.Warn("gemini returned unparseable intent", "raw", raw)
		return e.fallback.Parse(ctx, text, language)
	}
	return parsed, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				return string(txt)
			}
		}
	}
	return ""
}

type modelIntent struct {
	ServiceName string  `json:"service_name"`
	StaffName   string  `json:"staff_name"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	Confidence  float64 `json:"confidence"`
}

func parseModelJSON(raw string, now time.Time) (Intent, bool) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var mi modelIntent
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &mi); err != nil {
		return Intent{}, false
	}

	out := Intent{
		ServiceName: strings.TrimSpace(mi.ServiceName),
		StaffName:   strings.TrimSpace(mi.StaffName),
		Confidence:  mi.Confidence,
	}
	if mi.Date != "" {
		if d, err := time.ParseInLocation("2006-01-02", mi.Date, now.Location()); err == nil {
			out.Date = &d
		}
	}
	if mi.Time != "" {
		if t, err := time.Parse("15:04", mi.Time); err == nil {
			out.Time = &ClockTime{Hour: t.Hour(), Minute: t.Minute()}
		}
	}
	return out, true
}
