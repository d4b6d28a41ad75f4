package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	// Planner Configuration
	Planner PlannerConfig `yaml:"planner"`

	// Contacts
	ContactsFile string `yaml:"contacts_file"`

	// Google Configuration
	Google GoogleConfig `yaml:"google"`

	// Email Configuration
	Email EmailConfig `yaml:"email"`

	// Session Store
	Session SessionConfig `yaml:"session"`

	// Runtime Configuration
	Runtime RuntimeConfig `yaml:"runtime"`
}

// PlannerConfig selects and configures the planning backend
type PlannerConfig struct {
	Backend   string `yaml:"backend"` // gemini, openai, mock
	GeminiKey string `yaml:"gemini_key"`
	OpenAIKey string `yaml:"openai_key"`
	Model     string `yaml:"model"`
}

// GoogleConfig holds Calendar and Gmail API settings
type GoogleConfig struct {
	CalendarID      string `yaml:"calendar_id"`
	CredentialsFile string `yaml:"credentials_file"`
	GmailFrom       string `yaml:"gmail_from"`
}

// EmailConfig holds outgoing mail settings
type EmailConfig struct {
	SubjectPrefix string `yaml:"subject_prefix"`
	Signature     string `yaml:"signature"`
	NotifyAddress string `yaml:"notify_address"`
}

// SessionConfig selects the transcript store
type SessionConfig struct {
	Backend   string   `yaml:"backend"` // memory, redis
	RedisAddr string   `yaml:"redis_addr"`
	RedisDB   int      `yaml:"redis_db"`
	KeyPrefix string   `yaml:"key_prefix"`
	TTL       Duration `yaml:"ttl"`
}

// RuntimeConfig holds runtime configuration
type RuntimeConfig struct {
	StepTimeout       Duration `yaml:"step_timeout"`
	ObservabilityPort int      `yaml:"observability_port"`
	EnableTracing     bool     `yaml:"enable_tracing"`
}

// Duration parses time.ParseDuration strings ("30s", "1h") from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration usable without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Planner.Backend == "" {
		c.Planner.Backend = "gemini"
	}
	if c.ContactsFile == "" {
		c.ContactsFile = "contacts.csv"
	}
	if c.Google.CalendarID == "" {
		c.Google.CalendarID = "primary"
	}
	if c.Session.Backend == "" {
		c.Session.Backend = "memory"
	}
	if c.Session.RedisAddr == "" {
		c.Session.RedisAddr = "localhost:6379"
	}
	if c.Runtime.StepTimeout == 0 {
		c.Runtime.StepTimeout = Duration(30 * time.Second)
	}
	if c.Runtime.ObservabilityPort == 0 {
		c.Runtime.ObservabilityPort = 8090
	}

	// API keys from environment when not in config
	if c.Planner.GeminiKey == "" {
		c.Planner.GeminiKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.Planner.OpenAIKey == "" {
		c.Planner.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Google.CredentialsFile == "" {
		c.Google.CredentialsFile = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Planner.Backend {
	case "gemini":
		if c.Planner.GeminiKey == "" {
			return fmt.Errorf("planner backend gemini needs gemini_key or GEMINI_API_KEY")
		}
	case "openai":
		if c.Planner.OpenAIKey == "" {
			return fmt.Errorf("planner backend openai needs openai_key or OPENAI_API_KEY")
		}
	case "mock":
	default:
		return fmt.Errorf("unknown planner backend %q", c.Planner.Backend)
	}

	switch c.Session.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	return nil
}
