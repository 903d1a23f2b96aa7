package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all Memovox environment variables.
const EnvPrefix = "MEMOVOX_"

// BaselineMode is the free summarization mode. Every other mode is billed
// at FixedAICost credits.
const BaselineMode = "summary"

// Mode is one summarization preset.
type Mode struct {
	Description  string `yaml:"description"`
	SystemPrompt string `yaml:"system_prompt"`
	UserTemplate string `yaml:"user_template"`
	Model        string `yaml:"model"` // overrides Summarization.Model when set
}

// Summarization configures the summary pipeline.
type Summarization struct {
	Model string          `yaml:"model"`
	Modes map[string]Mode `yaml:"modes"`
}

// Transcriber selects the speech-to-text backend.
type Transcriber struct {
	Provider string `yaml:"provider"` // openai or deepgram
	Model    string `yaml:"model"`
}

// Kafka configures the optional usage/lifecycle event stream.
type Kafka struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Log configures structured logging output.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// Config holds all application configuration. Secrets (API keys) are
// loaded exclusively from environment variables and never appear in the
// config file.
type Config struct {
	DBPath     string `yaml:"db_path"`
	AudioDir   string `yaml:"audio_dir"`
	ListenAddr string `yaml:"listen_addr"`

	// Segmentation and billing constants.
	SegmentLengthSec      float64 `yaml:"segment_length_sec"`
	UnitSeconds           float64 `yaml:"unit_seconds"`
	CostPerUnit           int64   `yaml:"cost_per_unit"`
	ShortContentThreshold int     `yaml:"short_content_threshold"`
	FixedAICost           int64   `yaml:"fixed_ai_cost"`

	// AutoTopUpCredits, when positive, credits the account by this amount
	// whenever the balance falls short. Zero disables automatic top-ups.
	AutoTopUpCredits int64 `yaml:"auto_topup_credits"`

	Transcriber   Transcriber   `yaml:"transcriber"`
	Summarization Summarization `yaml:"summarization"`
	Kafka         Kafka         `yaml:"kafka"`
	Log           Log           `yaml:"log"`

	GDriveFolderID        string `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile string `yaml:"google_credentials_file"`

	// Secrets come from env vars only and are never serialized to YAML.
	OpenAIAPIKey   string `yaml:"-"`
	DeepgramAPIKey string `yaml:"-"`
}

func defaults() Config {
	return Config{
		DBPath:                "data/memovox.db",
		AudioDir:              "data/audio",
		ListenAddr:            ":8080",
		SegmentLengthSec:      600,
		UnitSeconds:           60,
		CostPerUnit:           1,
		ShortContentThreshold: 20,
		FixedAICost:           1,
		Transcriber: Transcriber{
			Provider: "openai",
			Model:    "whisper-1",
		},
		Summarization: Summarization{
			Model: "gpt-4o-mini",
			Modes: map[string]Mode{
				BaselineMode: {
					Description:  "concise general summary",
					SystemPrompt: "Summarize the following voice note concisely in markdown. Keep the speaker's intent.",
					UserTemplate: "{{transcript}}",
				},
			},
		},
		Kafka: Kafka{
			Topic: "memovox.usage",
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
		GoogleCredentialsFile: "./service-account.json",
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// SummaryModes returns the configured mode keys, sorted for a stable
// API response.
func (c *Config) SummaryModes() []string {
	modes := make([]string, 0, len(c.Summarization.Modes))
	for name := range c.Summarization.Modes {
		modes = append(modes, name)
	}
	sort.Strings(modes)
	return modes
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "AUDIO_DIR"); v != "" {
		cfg.AudioDir = v
	}
	if v := os.Getenv(EnvPrefix + "LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvPrefix + "SEGMENT_LENGTH_SEC"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f > 0 {
			cfg.SegmentLengthSec = f
		}
	}
	if v := os.Getenv(EnvPrefix + "UNIT_SECONDS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f > 0 {
			cfg.UnitSeconds = f
		}
	}
	if v := os.Getenv(EnvPrefix + "COST_PER_UNIT"); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && n >= 0 {
			cfg.CostPerUnit = n
		}
	}
	if v := os.Getenv(EnvPrefix + "SHORT_CONTENT_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
			cfg.ShortContentThreshold = n
		}
	}
	if v := os.Getenv(EnvPrefix + "FIXED_AI_COST"); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && n >= 0 {
			cfg.FixedAICost = n
		}
	}
	if v := os.Getenv(EnvPrefix + "AUTO_TOPUP_CREDITS"); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && n >= 0 {
			cfg.AutoTopUpCredits = n
		}
	}
	if v := os.Getenv(EnvPrefix + "TRANSCRIBER_PROVIDER"); v != "" {
		cfg.Transcriber.Provider = v
	}
	if v := os.Getenv(EnvPrefix + "TRANSCRIBER_MODEL"); v != "" {
		cfg.Transcriber.Model = v
	}
	if v := os.Getenv(EnvPrefix + "SUMMARY_MODEL"); v != "" {
		cfg.Summarization.Model = v
	}
	if v := os.Getenv(EnvPrefix + "KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
		cfg.Kafka.Enabled = len(cfg.Kafka.Brokers) > 0
	}
	if v := os.Getenv(EnvPrefix + "KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv(EnvPrefix + "GDRIVE_FOLDER_ID"); v != "" {
		cfg.GDriveFolderID = v
	}
	if v := os.Getenv(EnvPrefix + "GOOGLE_CREDENTIALS_FILE"); v != "" {
		cfg.GoogleCredentialsFile = v
	}
}

func loadSecrets(cfg *Config) {
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
	cfg.DeepgramAPIKey = os.Getenv(EnvPrefix + "DEEPGRAM_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	switch cfg.Transcriber.Provider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			warnings = append(warnings, "OpenAI API key not configured; transcription is disabled. Set "+EnvPrefix+"OPENAI_API_KEY.")
		}
	case "deepgram":
		if cfg.DeepgramAPIKey == "" {
			warnings = append(warnings, "Deepgram API key not configured; transcription is disabled. Set "+EnvPrefix+"DEEPGRAM_API_KEY.")
		}
	default:
		warnings = append(warnings, fmt.Sprintf("Unknown transcriber provider %q; supported providers are openai, deepgram.", cfg.Transcriber.Provider))
	}

	if cfg.OpenAIAPIKey == "" {
		warnings = append(warnings, "OpenAI API key not configured; summarization is disabled. Set "+EnvPrefix+"OPENAI_API_KEY.")
	}
	if _, ok := cfg.Summarization.Modes[BaselineMode]; !ok {
		warnings = append(warnings, fmt.Sprintf("No %q mode configured; the free baseline summary is unavailable.", BaselineMode))
	}
	if cfg.SegmentLengthSec <= 0 {
		warnings = append(warnings, fmt.Sprintf("Invalid segment_length_sec %v, using default 600.", cfg.SegmentLengthSec))
		cfg.SegmentLengthSec = 600
	}
	if cfg.UnitSeconds <= 0 {
		warnings = append(warnings, fmt.Sprintf("Invalid unit_seconds %v, using default 60.", cfg.UnitSeconds))
		cfg.UnitSeconds = 60
	}
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		warnings = append(warnings, "Kafka enabled without brokers; events will be logged only.")
		cfg.Kafka.Enabled = false
	}

	return warnings
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	return result
}
