// Package config loads the static configuration of the service once at startup.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultModel is the generative model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// Config holds every static setting. Secrets (API key, client secret, JWT
// secret) are filled in later by the secret resolver.
type Config struct {
	APIKey           string `yaml:"-"`
	ClientID         string `yaml:"client_id"`
	ClientSecret     string `yaml:"-"`
	StorageFolderURL string `yaml:"storage_folder_url"`
	CorpusFolderURL  string `yaml:"corpus_folder_url"`
	Model            string `yaml:"model"`

	RedirectURL      string `yaml:"redirect_url"`
	FrontendURL      string `yaml:"frontend_url"`
	JWTSecret        string `yaml:"-"`
	APIGatewaySecret string `yaml:"-"`

	DevMode        bool   `yaml:"dev_mode"`
	SessionsTable  string `yaml:"sessions_table"`
	PendingTable   string `yaml:"pending_table"`
	FileStoreTable string `yaml:"file_store_table"`
	KMSKeyID       string `yaml:"kms_key_id"`

	AITimeout time.Duration `yaml:"ai_timeout"`
	BusyTTL   time.Duration `yaml:"busy_ttl"`
	LogLevel  string        `yaml:"log_level"`
}

// Load reads the environment and then overlays the YAML file named by
// POLICYDRAFT_CONFIG, if set. File values win over environment values.
func Load() (*Config, error) {
	devMode := getEnv("DEV_MODE", "false") == "true"

	cfg := &Config{
		ClientID:         getEnv("GOOGLE_CLIENT_ID", ""),
		StorageFolderURL: getEnv("STORAGE_FOLDER_URL", ""),
		CorpusFolderURL:  getEnv("CORPUS_FOLDER_URL", ""),
		Model:            getEnv("GEMINI_MODEL", DefaultModel),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:3000"),
		DevMode:          devMode,
		SessionsTable:    getEnv("SESSIONS_TABLE", "PolicySessions"),
		PendingTable:     getEnv("PENDING_OPERATIONS_TABLE", "PendingOperations"),
		FileStoreTable:   getEnv("FILE_STORE_TABLE", "FileStore"),
		KMSKeyID:         getEnv("KMS_KEY_ID", "alias/policydraft-token-key"),
		AITimeout:        getDuration("AI_TIMEOUT", 60*time.Second),
		BusyTTL:          getDuration("BUSY_TTL", 2*time.Minute),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}

	cfg.RedirectURL = getEnv("GOOGLE_REDIRECT_URL", "")
	if cfg.RedirectURL == "" {
		if devMode {
			cfg.RedirectURL = "http://localhost:8080/auth/callback"
		} else {
			cfg.RedirectURL = cfg.FrontendURL + "/api/auth/callback"
		}
	}

	if path := os.Getenv("POLICYDRAFT_CONFIG"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

var folderIDPattern = regexp.MustCompile(`folders/([a-zA-Z0-9_-]+)`)

// FolderIDFromURL extracts the folder id from a Google Drive folder URL such as
// https://drive.google.com/drive/folders/<id>?usp=drive_link.
func FolderIDFromURL(url string) (string, bool) {
	m := folderIDPattern.FindStringSubmatch(url)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	// Plain integers are seconds.
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultValue
}
