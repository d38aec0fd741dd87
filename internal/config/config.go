package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath     string
	InboxDir   string
	OutputDir  string

	SheetsRateLimitRPS int
	SheetsTimeoutMs    int
	SheetsCacheTTLSec  int

	SyncBatchSize    int
	SyncRetryCount   int
	SyncRetryBaseMs  int

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	GoogleRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool
	IMAPMailbox  string

	ListenerTargets     string
	ListenerIntervalSec int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "toursync.db")),
		InboxDir:  getEnv("INBOX_DIR", filepath.Join(cwd, "data", "inbox")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		SheetsRateLimitRPS: getEnvInt("SHEETS_RATE_LIMIT_RPS", 5),
		SheetsTimeoutMs:    getEnvInt("SHEETS_TIMEOUT_MS", 30000),
		SheetsCacheTTLSec:  getEnvInt("SHEETS_CACHE_TTL_SEC", 300),

		SyncBatchSize:   getEnvInt("SYNC_BATCH_SIZE", 100),
		SyncRetryCount:  getEnvInt("SYNC_RETRY_COUNT", 3),
		SyncRetryBaseMs: getEnvInt("SYNC_RETRY_BASE_MS", 250),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:  getEnv("GOOGLE_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GoogleRefreshToken: getEnv("GOOGLE_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),
		IMAPMailbox:  getEnv("IMAP_MAILBOX", "INBOX"),

		ListenerTargets:     getEnv("SYNC_TARGETS", ""),
		ListenerIntervalSec: getEnvInt("SYNC_INTERVAL_SEC", 300),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
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
