package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath    string
	OutputDir string

	LogLevel  string
	LogFormat string

	LLMBaseURL      string
	LLMAPIKey       string
	LLMTextModel    string
	LLMVisionModel  string
	LLMTemperature  float64
	LLMMaxTokens    int
	LLMTimeoutMs    int
	LLMRateLimitRPS int
	LLMMaxAttempts  int

	VisionProvider string
	GeminiAPIKey   string
	GeminiModel    string

	LedgerBackend      string
	LedgerSchema       string
	SheetID            string
	SheetTab           string
	ServiceAccountJSON string
	ServiceAccountFile string
	LedgerXLSXPath     string
	StoreTimeoutMs     int

	MailProvider  string
	EmailAddress  string
	EmailPassword string
	IMAPHost      string
	IMAPPort      int
	IMAPSecure    bool
	IMAPMailbox   string
	MailTimeoutMs int
	MailFetchMax  int

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	HTTPAddr string

	MailListenerIntervalSec     int
	MailListenerDefaultCategory string
	MailListenerAutoExport      bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "journal.db")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		LLMBaseURL:      getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:       getEnv("OPENAI_API_KEY", ""),
		LLMTextModel:    getEnv("LLM_TEXT_MODEL", "gpt-4o-mini"),
		LLMVisionModel:  getEnv("LLM_VISION_MODEL", "gpt-4o"),
		LLMTemperature:  getEnvFloat("LLM_TEMPERATURE", 0.1),
		LLMMaxTokens:    getEnvInt("LLM_MAX_TOKENS", 300),
		LLMTimeoutMs:    getEnvInt("LLM_TIMEOUT_MS", 30000),
		LLMRateLimitRPS: getEnvInt("LLM_RATE_LIMIT_RPS", 2),
		LLMMaxAttempts:  getEnvInt("LLM_MAX_ATTEMPTS", 1),

		VisionProvider: getEnv("VISION_PROVIDER", "openai"),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		LedgerBackend:      getEnv("LEDGER_BACKEND", "sheets"),
		LedgerSchema:       getEnv("LEDGER_SCHEMA", "v2"),
		SheetID:            getEnv("SHEET_ID", ""),
		SheetTab:           getEnv("SHEET_TAB", ""),
		ServiceAccountJSON: getEnv("SERVICE_ACCOUNT_JSON", ""),
		ServiceAccountFile: getEnv("SERVICE_ACCOUNT_FILE", ""),
		LedgerXLSXPath:     getEnv("LEDGER_XLSX_PATH", filepath.Join(cwd, "data", "ledger.xlsx")),
		StoreTimeoutMs:     getEnvInt("STORE_TIMEOUT_MS", 30000),

		MailProvider:  getEnv("MAIL_PROVIDER", "imap"),
		EmailAddress:  getEnv("EMAIL_ADDRESS", ""),
		EmailPassword: getEnv("EMAIL_PASSWORD", ""),
		IMAPHost:      getEnv("IMAP_HOST", "imap.gmail.com"),
		IMAPPort:      getEnvInt("IMAP_PORT", 993),
		IMAPSecure:    getEnvBool("IMAP_SECURE", true),
		IMAPMailbox:   getEnv("IMAP_MAILBOX", "INBOX"),
		MailTimeoutMs: getEnvInt("MAIL_TIMEOUT_MS", 30000),
		MailFetchMax:  getEnvInt("MAIL_FETCH_MAX", 50),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		MailListenerIntervalSec:     getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 300),
		MailListenerDefaultCategory: getEnv("MAIL_LISTENER_DEFAULT_CATEGORY", "Other"),
		MailListenerAutoExport:      getEnvBool("MAIL_LISTENER_AUTO_EXPORT", false),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

// ServiceAccountCredentials returns the service account key as JSON bytes,
// from SERVICE_ACCOUNT_JSON or SERVICE_ACCOUNT_FILE.
func (c Config) ServiceAccountCredentials() ([]byte, error) {
	raw := strings.TrimSpace(c.ServiceAccountJSON)
	if raw == "" && strings.TrimSpace(c.ServiceAccountFile) != "" {
		blob, err := os.ReadFile(c.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read SERVICE_ACCOUNT_FILE: %w", err)
		}
		raw = string(blob)
	}
	if raw == "" {
		return nil, fmt.Errorf("missing required env var: SERVICE_ACCOUNT_JSON (or SERVICE_ACCOUNT_FILE)")
	}
	return normalizeServiceAccount([]byte(raw))
}

var serviceAccountFields = []string{"type", "project_id", "private_key", "client_email"}

// normalizeServiceAccount checks the key fields and repairs private keys whose
// newlines were escaped when pasted into an env var.
func normalizeServiceAccount(raw []byte) ([]byte, error) {
	var info map[string]any
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("invalid SERVICE_ACCOUNT_JSON format: %w", err)
	}
	for _, field := range serviceAccountFields {
		if _, ok := info[field]; !ok {
			return nil, fmt.Errorf("service account JSON missing required field: %s", field)
		}
	}
	if key, ok := info["private_key"].(string); ok {
		info["private_key"] = strings.ReplaceAll(key, `\n`, "\n")
	}
	return json.Marshal(info)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
