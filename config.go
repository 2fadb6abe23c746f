package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	SpreadsheetID           string `yaml:"spreadsheet_id"`
	SheetName               string `yaml:"sheet_name"`
	CategoryColumn          int    `yaml:"category_column"`
	GoogleCredentialsBase64 string `yaml:"google_credentials_base64"`
	// CSVPath switches the data source to a local CSV export instead of the
	// Sheets API.
	CSVPath string `yaml:"csv_path"`

	LLMProvider           string `yaml:"llm_provider"`
	LLMModel              string `yaml:"llm_model"`
	LLMBaseURL            string `yaml:"llm_base_url"`
	OpenRouterAPIKey      string `yaml:"openrouter_api_key"`
	AnthropicAPIKey       string `yaml:"anthropic_api_key"`
	LLMConcurrency        int    `yaml:"llm_concurrency"`
	LLMCallTimeoutSeconds int    `yaml:"llm_call_timeout_seconds"`
	LLMDeadlineSeconds    int    `yaml:"llm_deadline_seconds"`
	PriorityHintsPath     string `yaml:"priority_hints_path"`

	DBPath                     string `yaml:"db_path"`
	ReportOutputDir            string `yaml:"report_output_dir"`
	SlackBotToken              string `yaml:"slack_bot_token"`
	ReportChannelID            string `yaml:"report_channel_id"`
	AnalyzeSchedule            string `yaml:"analyze_schedule"`
	Timezone                   string `yaml:"timezone"`
	ExternalHTTPTimeoutSeconds int    `yaml:"external_http_timeout_seconds"`
	Debug                      bool   `yaml:"debug"`

	Location *time.Location `yaml:"-"` // computed from Timezone, not from YAML
}

func LoadConfig() Config {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	envOverride(&cfg.SpreadsheetID, "SPREADSHEET_ID")
	envOverride(&cfg.SheetName, "SHEET_NAME")
	envOverrideInt(&cfg.CategoryColumn, "CATEGORY_COLUMN")
	envOverride(&cfg.GoogleCredentialsBase64, "GOOGLE_CREDENTIALS_BASE64")
	envOverride(&cfg.CSVPath, "CSV_PATH")
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.LLMBaseURL, "OPENROUTER_BASE_URL")
	envOverride(&cfg.OpenRouterAPIKey, "OPENROUTER_API_KEY")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverrideInt(&cfg.LLMConcurrency, "LLM_CONCURRENCY")
	envOverrideInt(&cfg.LLMCallTimeoutSeconds, "LLM_CALL_TIMEOUT_SECONDS")
	envOverrideInt(&cfg.LLMDeadlineSeconds, "LLM_DEADLINE_SECONDS")
	envOverride(&cfg.PriorityHintsPath, "PRIORITY_HINTS_PATH")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.ReportOutputDir, "REPORT_OUTPUT_DIR")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.ReportChannelID, "REPORT_CHANNEL_ID")
	envOverride(&cfg.AnalyzeSchedule, "ANALYZE_SCHEDULE")
	envOverride(&cfg.Timezone, "TIMEZONE")
	envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS")
	envOverrideBool(&cfg.Debug, "DEBUG")

	if cfg.SheetName == "" {
		cfg.SheetName = "Sheet1"
	}
	if cfg.CategoryColumn == 0 {
		cfg.CategoryColumn = categoryColumn
	}
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "openai"
	}
	if cfg.LLMConcurrency == 0 {
		cfg.LLMConcurrency = defaultEnrichConcurrency
	}
	if cfg.LLMCallTimeoutSeconds == 0 {
		cfg.LLMCallTimeoutSeconds = int(defaultEnrichCallTimeout / time.Second)
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./sheetreport.db"
	}
	if cfg.ReportOutputDir == "" {
		cfg.ReportOutputDir = "./reports"
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}

	if cfg.CSVPath == "" && !cfg.SheetsConfigured() {
		log.Fatalf("No data source configured: set csv_path, or spreadsheet_id together with google_credentials_base64")
	}
	if cfg.SheetsConfigured() {
		if len(cfg.SpreadsheetID) < 10 {
			log.Fatalf("invalid spreadsheet_id '%s': too short to be a sheet ID", cfg.SpreadsheetID)
		}
		if _, err := cfg.DecodeGoogleCredentials(); err != nil {
			log.Fatalf("invalid google_credentials_base64: %v", err)
		}
	}

	switch cfg.LLMProvider {
	case "openai", "anthropic":
	default:
		log.Fatalf("llm_provider must be 'openai' or 'anthropic', got '%s'", cfg.LLMProvider)
	}
	if !cfg.LLMEnabled() {
		log.Printf("WARNING: no LLM API key configured for provider '%s', enrichment disabled", cfg.LLMProvider)
	}

	if cfg.CategoryColumn < 1 || cfg.CategoryColumn > 26 {
		log.Fatalf("invalid category_column '%d': must be between 1 and 26", cfg.CategoryColumn)
	}
	if cfg.LLMConcurrency < 1 {
		log.Fatalf("invalid llm_concurrency '%d': must be >= 1", cfg.LLMConcurrency)
	}
	if cfg.LLMCallTimeoutSeconds < 5 {
		log.Fatalf("invalid llm_call_timeout_seconds '%d': must be >= 5", cfg.LLMCallTimeoutSeconds)
	}
	if cfg.LLMDeadlineSeconds < 0 {
		log.Fatalf("invalid llm_deadline_seconds '%d': must be >= 0", cfg.LLMDeadlineSeconds)
	}
	if cfg.ExternalHTTPTimeoutSeconds < 5 {
		log.Fatalf("invalid external_http_timeout_seconds '%d': must be >= 5", cfg.ExternalHTTPTimeoutSeconds)
	}
	if cfg.SlackBotToken != "" && cfg.ReportChannelID == "" {
		log.Fatalf("slack_bot_token is set but report_channel_id is not")
	}
	if cfg.PriorityHintsPath != "" {
		if _, err := LoadPriorityHints(cfg.PriorityHintsPath); err != nil {
			log.Fatalf("invalid priority_hints_path '%s': %v", cfg.PriorityHintsPath, err)
		}
	}

	if strings.EqualFold(cfg.Timezone, "Local") {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Fatalf("invalid timezone '%s': %v", cfg.Timezone, err)
		}
		cfg.Location = loc
	}

	return cfg
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideBool(field *bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = strings.EqualFold(val, "true") || val == "1"
	}
}

// LLMEnabled reports whether the configured provider has a credential.
// Without one the pipeline runs statistics only.
func (c Config) LLMEnabled() bool {
	if c.LLMProvider == "anthropic" {
		return c.AnthropicAPIKey != ""
	}
	return c.OpenRouterAPIKey != ""
}

func (c Config) SheetsConfigured() bool {
	return c.SpreadsheetID != "" && c.GoogleCredentialsBase64 != ""
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.ReportChannelID != ""
}

// DecodeGoogleCredentials validates and returns the service-account JSON.
func (c Config) DecodeGoogleCredentials() ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(c.GoogleCredentialsBase64))
	if err != nil {
		return nil, fmt.Errorf("decoding base64: %w", err)
	}
	var creds struct {
		Type        string `json:"type"`
		PrivateKey  string `json:"private_key"`
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(decoded, &creds); err != nil {
		return nil, fmt.Errorf("parsing credentials JSON: %w", err)
	}
	if creds.Type != "service_account" {
		return nil, fmt.Errorf("credentials JSON is not a service_account (type=%q)", creds.Type)
	}
	if creds.PrivateKey == "" {
		return nil, fmt.Errorf("credentials JSON is missing private_key")
	}
	return decoded, nil
}

// ServiceEmail extracts the service-account email for logging, without
// exposing the rest of the credential.
func (c Config) ServiceEmail() string {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(c.GoogleCredentialsBase64))
	if err != nil {
		return "invalid_token"
	}
	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(decoded, &creds); err != nil {
		return "invalid_token"
	}
	if creds.ClientEmail == "" {
		return "unknown"
	}
	return creds.ClientEmail
}
