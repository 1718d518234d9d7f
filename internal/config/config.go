package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Booking flow parameters. These are product decisions surfaced as
	// configuration, not structural constants.
	SessionTTL        time.Duration
	SessionSweepEvery time.Duration
	SlotGranularity   time.Duration
	HorizonDays       int
	MaxSlotResults    int
	ButtonThreshold   int
	ListThreshold     int
	DefaultLanguage   string

	// Identifier ceilings imposed by the chat transport.
	ButtonIDMaxLen  int
	ListRowIDMaxLen int

	// WhatsApp Cloud API credentials.
	WhatsAppToken         string
	WhatsAppPhoneID       string
	WhatsAppWebhookSecret string
	WhatsAppVerifyToken   string
	WhatsAppBaseURL       string
	WhatsAppSendRetries   int
	WhatsAppRetryBaseWait time.Duration

	// Routing: which salon owns the WhatsApp number this instance serves.
	DefaultSalonID string

	// Intent extraction (Gemini).
	GeminiAPIKey  string
	GeminiModelID string
	IntentTimeout time.Duration
	CommitTimeout time.Duration
	LookupTimeout time.Duration

	// SendGrid salon notifications.
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		SessionTTL:        getEnvAsDuration("SESSION_TTL", 15*time.Minute),
		SessionSweepEvery: getEnvAsDuration("SESSION_SWEEP_INTERVAL", time.Minute),
		SlotGranularity:   getEnvAsDuration("SLOT_GRANULARITY", 30*time.Minute),
		HorizonDays:       getEnvAsInt("SLOT_HORIZON_DAYS", 14),
		MaxSlotResults:    getEnvAsInt("SLOT_MAX_RESULTS", 10),
		ButtonThreshold:   getEnvAsInt("CARD_BUTTON_THRESHOLD", 3),
		ListThreshold:     getEnvAsInt("CARD_LIST_THRESHOLD", 10),
		DefaultLanguage:   getEnv("DEFAULT_LANGUAGE", "en"),

		ButtonIDMaxLen:  getEnvAsInt("BUTTON_ID_MAX_LEN", 256),
		ListRowIDMaxLen: getEnvAsInt("LIST_ROW_ID_MAX_LEN", 200),

		WhatsAppToken:         getEnv("WHATSAPP_TOKEN", ""),
		WhatsAppPhoneID:       getEnv("WHATSAPP_PHONE_ID", ""),
		WhatsAppWebhookSecret: getEnv("WHATSAPP_WEBHOOK_SECRET", ""),
		WhatsAppVerifyToken:   getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		WhatsAppBaseURL:       getEnv("WHATSAPP_BASE_URL", "https://graph.facebook.com/v19.0"),
		WhatsAppSendRetries:   getEnvAsInt("WHATSAPP_SEND_RETRIES", 3),
		WhatsAppRetryBaseWait: getEnvAsDuration("WHATSAPP_RETRY_BASE_WAIT", 500*time.Millisecond),

		DefaultSalonID: getEnv("DEFAULT_SALON_ID", ""),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModelID: getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		IntentTimeout: getEnvAsDuration("INTENT_TIMEOUT", 8*time.Second),
		CommitTimeout: getEnvAsDuration("COMMIT_TIMEOUT", 5*time.Second),
		LookupTimeout: getEnvAsDuration("LOOKUP_TIMEOUT", 5*time.Second),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Tapbook"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
