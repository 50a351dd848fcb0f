package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Twilio     TwilioConfig     `yaml:"twilio" mapstructure:"twilio"`
	Storage    StorageConfig    `yaml:"storage" mapstructure:"storage"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	OCR        OCRConfig        `yaml:"ocr" mapstructure:"ocr"`
	FCS        FCSConfig        `yaml:"fcs" mapstructure:"fcs"`
	Qualify    QualifyConfig    `yaml:"qualify" mapstructure:"qualify"`
	Chat       ChatConfig       `yaml:"chat" mapstructure:"chat"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Submission SubmissionConfig `yaml:"submission" mapstructure:"submission"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// TwilioConfig holds SMS carrier credentials. An empty AccountSID disables
// outbound dispatch; sends are then recorded as failed.
type TwilioConfig struct {
	AccountSID string `yaml:"account_sid" mapstructure:"account_sid"`
	AuthToken  string `yaml:"auth_token" mapstructure:"auth_token"`
	FromNumber string `yaml:"from_number" mapstructure:"from_number"`
}

// StorageConfig configures the document object store.
type StorageConfig struct {
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	CredentialsJSON string `yaml:"credentials_json" mapstructure:"credentials_json"`
	SignedURLMins   int    `yaml:"signed_url_mins" mapstructure:"signed_url_mins"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	MaxTokens   int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// OCRConfig configures bank statement text extraction.
type OCRConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	MistralKey    string `yaml:"mistral_api_key" mapstructure:"mistral_api_key"`
	MistralModel  string `yaml:"mistral_ocr_model" mapstructure:"mistral_ocr_model"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// FCSConfig configures the financial analysis pipeline.
type FCSConfig struct {
	TriggerWindowMins int `yaml:"trigger_window_mins" mapstructure:"trigger_window_mins"`
	DocCharBudget     int `yaml:"doc_char_budget" mapstructure:"doc_char_budget"`
	ChunkPages        int `yaml:"chunk_pages" mapstructure:"chunk_pages"`
	ChunkThresholdKB  int `yaml:"chunk_threshold_kb" mapstructure:"chunk_threshold_kb"`
}

// QualifyConfig configures the external lender qualification service.
type QualifyConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Key         string `yaml:"key" mapstructure:"key"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ChatConfig configures the AI assistant chat.
type ChatConfig struct {
	MaxContextMessages int `yaml:"max_context_messages" mapstructure:"max_context_messages"`
}

// NotionConfig holds the pipeline board mirror settings.
type NotionConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	BoardDB string `yaml:"board_db" mapstructure:"board_db"`
}

// SalesforceConfig holds Salesforce export credentials.
type SalesforceConfig struct {
	Domain         string `yaml:"domain" mapstructure:"domain"`
	ConsumerKey    string `yaml:"consumer_key" mapstructure:"consumer_key"`
	ConsumerSecret string `yaml:"consumer_secret" mapstructure:"consumer_secret"`
}

// SubmissionConfig configures lender submission packet delivery.
type SubmissionConfig struct {
	FTPHost     string `yaml:"ftp_host" mapstructure:"ftp_host"`
	FTPUser     string `yaml:"ftp_user" mapstructure:"ftp_user"`
	FTPPassword string `yaml:"ftp_password" mapstructure:"ftp_password"`
	FTPDir      string `yaml:"ftp_dir" mapstructure:"ftp_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CRM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("storage.signed_url_mins", 15)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.timeout_secs", 45)
	v.SetDefault("ocr.provider", "mistral")
	v.SetDefault("ocr.mistral_ocr_model", "pixtral-large-latest")
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("fcs.trigger_window_mins", 5)
	v.SetDefault("fcs.doc_char_budget", 24000)
	v.SetDefault("fcs.chunk_pages", 10)
	v.SetDefault("fcs.chunk_threshold_kb", 4096)
	v.SetDefault("qualify.timeout_secs", 30)
	v.SetDefault("chat.max_context_messages", 20)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
