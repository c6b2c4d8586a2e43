package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendObject = "object"
)

const defaultAttentionThresholdMinutes = 2.0

type Config struct {
	DataDir        string `yaml:"data_dir"`
	DBPath         string `yaml:"db_path"`
	StorageBackend string `yaml:"storage_backend"`

	ObjectStoreURL      string `yaml:"object_store_url"`
	ObjectStoreToken    string `yaml:"object_store_token"`
	ObjectStoreMaxTries int    `yaml:"object_store_max_tries"`

	ExternalHTTPTimeoutSeconds int `yaml:"external_http_timeout_seconds"`

	AttentionThresholdMinutes float64 `yaml:"attention_threshold_minutes"`
	ReportUser                string  `yaml:"report_user"`
	ReportOutputDir           string  `yaml:"report_output_dir"`
	TeamName                  string  `yaml:"team_name"`
	Timezone                  string  `yaml:"timezone"`

	SlackBotToken       string `yaml:"slack_bot_token"`
	SlackAppToken       string `yaml:"slack_app_token"`
	ReportChannelID     string `yaml:"report_channel_id"`
	DailyReportSchedule string `yaml:"daily_report_schedule"`

	LogLevel       string `yaml:"log_level"`
	LogDevelopment bool   `yaml:"log_development"`

	Location *time.Location `yaml:"-"` // computed from Timezone, not from YAML
}

// Load reads path (or CONFIG_PATH, or ./config.yaml), applies environment
// overrides and defaults, and validates the result. A missing file is not an
// error; the configuration then comes from the environment alone.
func Load(path string) (Config, error) {
	// Seeded before decoding so an explicit 0 survives.
	cfg := Config{AttentionThresholdMinutes: defaultAttentionThresholdMinutes}

	if path == "" {
		path = "config.yaml"
		if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
			path = envPath
		}
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("reading %s: %w", path, err)
	}

	envOverride(&cfg.DataDir, "DATA_DIR")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.StorageBackend, "STORAGE_BACKEND")
	envOverride(&cfg.ObjectStoreURL, "OBJECT_STORE_URL")
	envOverride(&cfg.ObjectStoreToken, "OBJECT_STORE_TOKEN")
	envOverride(&cfg.ReportUser, "REPORT_USER")
	envOverride(&cfg.ReportOutputDir, "REPORT_OUTPUT_DIR")
	envOverride(&cfg.TeamName, "TEAM_NAME")
	envOverride(&cfg.Timezone, "TIMEZONE")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackAppToken, "SLACK_APP_TOKEN")
	envOverride(&cfg.ReportChannelID, "REPORT_CHANNEL_ID")
	envOverrideAllowEmpty(&cfg.DailyReportSchedule, "DAILY_REPORT_SCHEDULE")
	envOverride(&cfg.LogLevel, "LOG_LEVEL")
	envOverrideBool(&cfg.LogDevelopment, "LOG_DEVELOPMENT")
	if err := envOverrideInt(&cfg.ObjectStoreMaxTries, "OBJECT_STORE_MAX_TRIES"); err != nil {
		return cfg, err
	}
	if err := envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS"); err != nil {
		return cfg, err
	}
	if err := envOverrideFloat(&cfg.AttentionThresholdMinutes, "ATTENTION_THRESHOLD_MINUTES"); err != nil {
		return cfg, err
	}

	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "protodash.db")
	}
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = BackendSQLite
	}
	if cfg.ObjectStoreMaxTries == 0 {
		cfg.ObjectStoreMaxTries = 4
	}
	if cfg.ReportOutputDir == "" {
		cfg.ReportOutputDir = "./reports"
	}
	if cfg.TeamName == "" {
		cfg.TeamName = "Produtividade"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	switch cfg.StorageBackend {
	case BackendSQLite, BackendFile:
	case BackendObject:
		if cfg.ObjectStoreURL == "" {
			return cfg, fmt.Errorf("object_store_url is required when storage_backend=object")
		}
	default:
		return cfg, fmt.Errorf("storage_backend must be 'sqlite', 'file' or 'object', got '%s'", cfg.StorageBackend)
	}

	if cfg.AttentionThresholdMinutes < 0 {
		return cfg, fmt.Errorf("invalid attention_threshold_minutes '%v': must be >= 0", cfg.AttentionThresholdMinutes)
	}
	if cfg.ExternalHTTPTimeoutSeconds < 0 {
		return cfg, fmt.Errorf("invalid external_http_timeout_seconds '%d': must be >= 0", cfg.ExternalHTTPTimeoutSeconds)
	}
	if cfg.ObjectStoreMaxTries < 1 {
		return cfg, fmt.Errorf("invalid object_store_max_tries '%d': must be >= 1", cfg.ObjectStoreMaxTries)
	}

	if strings.EqualFold(cfg.Timezone, "Local") {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return cfg, fmt.Errorf("invalid timezone '%s': %w", cfg.Timezone, err)
		}
		cfg.Location = loc
	}

	if s := strings.TrimSpace(cfg.DailyReportSchedule); s != "" {
		if _, err := ParseSchedule(s); err != nil {
			return cfg, fmt.Errorf("invalid daily_report_schedule '%s': %w", s, err)
		}
	}

	return cfg, nil
}

// ParseSchedule parses a standard 5-field cron expression
// (minute hour day-of-month month day-of-week).
func ParseSchedule(spec string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(strings.TrimSpace(spec))
}

func (c Config) AttentionThreshold() time.Duration {
	return time.Duration(c.AttentionThresholdMinutes * float64(time.Minute))
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.SlackAppToken != ""
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideAllowEmpty(field *string, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideBool(field *bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = strings.EqualFold(val, "true") || val == "1"
	}
}

func envOverrideFloat(field *float64, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}
