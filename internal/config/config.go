package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"lawyrs/internal/domain"
)

// Config is the root configuration for the Lawyrs assistant backend.
type Config struct {
	Server    ServerConfig      `mapstructure:"server" yaml:"server"`
	Log       LogConfig         `mapstructure:"log" yaml:"log"`
	Database  DatabaseConfig    `mapstructure:"database" yaml:"database"`
	Assistant AssistantConfig   `mapstructure:"assistant" yaml:"assistant"`
	Routing   RoutingConfig     `mapstructure:"routing" yaml:"routing"`
	Crew      CrewConfig        `mapstructure:"crew" yaml:"crew"`
	LLM       LLMConfig         `mapstructure:"llm" yaml:"llm"`
	Mem0      CloudMemoryConfig `mapstructure:"mem0" yaml:"mem0"`
	Metrics   MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host" yaml:"host"`
	Port         int           `mapstructure:"port" yaml:"port"`
	APIKey       string        `mapstructure:"apiKey" yaml:"apiKey,omitempty"` // empty disables bearer auth
	ReadTimeout  time.Duration `mapstructure:"readTimeout" yaml:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout" yaml:"writeTimeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug | info | warn | error
	Format string `mapstructure:"format" yaml:"format"` // text | json
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AssistantConfig configures the turn lifecycle.
type AssistantConfig struct {
	Principal           string        `mapstructure:"principal" yaml:"principal"`
	HistoryLimit        int           `mapstructure:"historyLimit" yaml:"historyLimit"`   // turns loaded per session
	PromptHistory       int           `mapstructure:"promptHistory" yaml:"promptHistory"` // turns sent to the LLM
	RequestBudget       time.Duration `mapstructure:"requestBudget" yaml:"requestBudget"`
	DefaultJurisdiction string        `mapstructure:"defaultJurisdiction" yaml:"defaultJurisdiction"`
}

// RoutingConfig holds the classifier's tunable constants. The keyword and
// signal tables themselves live in a YAML file (embedded by default).
type RoutingConfig struct {
	File                   string  `mapstructure:"file" yaml:"file,omitempty"`
	DefaultSpecialist      string  `mapstructure:"defaultSpecialist" yaml:"defaultSpecialist"`
	ContinuationBonus      int     `mapstructure:"continuationBonus" yaml:"continuationBonus"`
	CoRouteMargin          int     `mapstructure:"coRouteMargin" yaml:"coRouteMargin"`
	ZeroScoreConfidence    float64 `mapstructure:"zeroScoreConfidence" yaml:"zeroScoreConfidence"`
	MaxConfidence          float64 `mapstructure:"maxConfidence" yaml:"maxConfidence"`
	SecondaryTokenFraction float64 `mapstructure:"secondaryTokenFraction" yaml:"secondaryTokenFraction"`
}

// CrewConfig points at the remote agent service. An empty URL disables it.
type CrewConfig struct {
	URL     string        `mapstructure:"url" yaml:"url,omitempty"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// LLMConfig configures the generic OpenAI-compatible text-generation backend.
// An empty API key disables it.
type LLMConfig struct {
	APIKey             string        `mapstructure:"apiKey" yaml:"apiKey,omitempty"`
	BaseURL            string        `mapstructure:"baseURL" yaml:"baseURL,omitempty"`
	Model              string        `mapstructure:"model" yaml:"model"`
	Timeout            time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxTokens          int           `mapstructure:"maxTokens" yaml:"maxTokens"`
	Temperature        float64       `mapstructure:"temperature" yaml:"temperature"`
	RateLimitPerMinute float64       `mapstructure:"rateLimitPerMinute" yaml:"rateLimitPerMinute"`
	Burst              int           `mapstructure:"burst" yaml:"burst"`
}

// CloudMemoryConfig configures the Mem0-style semantic memory service.
// An empty API key disables it.
type CloudMemoryConfig struct {
	APIKey  string        `mapstructure:"apiKey" yaml:"apiKey,omitempty"`
	BaseURL string        `mapstructure:"baseURL" yaml:"baseURL"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// EnvPrefix namespaces environment overrides, e.g. LAWYRS_LLM_APIKEY.
const EnvPrefix = "LAWYRS"

// DefaultConfigDir returns the default config directory (~/.lawyrs).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lawyrs"
	}
	return filepath.Join(home, ".lawyrs")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Load reads the YAML config at path on top of Defaults. A missing file is
// not an error: the defaults plus environment overrides are used.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Seed every key from the defaults so AutomaticEnv can override any of them.
	base, err := yaml.Marshal(Defaults())
	if err != nil {
		return nil, fmt.Errorf("marshal defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(base)); err != nil {
		return nil, fmt.Errorf("read defaults: %w", err)
	}
	// Secrets are omitted from the seeded defaults, so bind them explicitly.
	for _, key := range []string{"server.apiKey", "llm.apiKey", "llm.baseURL", "crew.url", "mem0.apiKey", "routing.file"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			// Substitute environment variables: ${VAR} and ${VAR:-default}
			data = []byte(ExpandEnvVars(string(data)))
			if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
				return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("cannot decode config: %w", err)
	}

	applyEnvFallbacks(cfg)
	cfg.Database.Path = ExpandPath(cfg.Database.Path)
	cfg.Routing.File = ExpandPath(cfg.Routing.File)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// applyEnvFallbacks honors the conventional provider variables when the
// config leaves a backend unset. OPENAI_* wins over NOVITA_*.
func applyEnvFallbacks(cfg *Config) {
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = os.Getenv("OPENAI_BASE_URL")
		}
	}
	if cfg.LLM.APIKey == "" {
		if key := os.Getenv("NOVITA_API_KEY"); key != "" {
			cfg.LLM.APIKey = key
			cfg.LLM.BaseURL = envOr("NOVITA_BASE_URL", "https://api.novita.ai/v3/openai")
			cfg.LLM.Model = envOr("CREWAI_MODEL", "claude-3-5-sonnet-20241022")
		}
	}
	if m := os.Getenv("CREWAI_MODEL"); m != "" {
		cfg.LLM.Model = m
	}
	if cfg.Mem0.APIKey == "" {
		cfg.Mem0.APIKey = os.Getenv("MEM0_API_KEY")
	}
	if cfg.Crew.URL == "" {
		cfg.Crew.URL = os.Getenv("CREWAI_URL")
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		hasDefault := len(groups) >= 3 && groups[2] != ""

		val, exists := os.LookupEnv(groups[1])
		if !exists || val == "" {
			if hasDefault {
				return groups[2]
			}
			return match
		}
		return val
	})
}

// Save writes cfg as YAML, creating the parent directory.
func Save(path string, cfg *Config) error {
	path = ExpandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "log.level must be one of: debug, info, warn, error")
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, "log.format must be one of: text, json")
	}
	if cfg.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if cfg.Assistant.HistoryLimit < 1 {
		errs = append(errs, "assistant.historyLimit must be >= 1")
	}
	if cfg.Assistant.PromptHistory < 0 {
		errs = append(errs, "assistant.promptHistory must be >= 0")
	}
	if cfg.Assistant.RequestBudget <= 0 {
		errs = append(errs, "assistant.requestBudget must be positive")
	}
	if cfg.Server.WriteTimeout > 0 && cfg.Server.WriteTimeout <= cfg.Assistant.RequestBudget {
		errs = append(errs, "server.writeTimeout must exceed assistant.requestBudget")
	}

	if _, err := domain.ParseSpecialist(cfg.Routing.DefaultSpecialist); err != nil {
		errs = append(errs, fmt.Sprintf("routing.defaultSpecialist: unknown specialist %q", cfg.Routing.DefaultSpecialist))
	}
	if cfg.Routing.ContinuationBonus < 0 {
		errs = append(errs, "routing.continuationBonus must be >= 0")
	}
	if cfg.Routing.CoRouteMargin < 0 {
		errs = append(errs, "routing.coRouteMargin must be >= 0")
	}
	if cfg.Routing.MaxConfidence <= 0.5 || cfg.Routing.MaxConfidence > 1 {
		errs = append(errs, "routing.maxConfidence must be in (0.5, 1]")
	}
	if cfg.Routing.ZeroScoreConfidence < 0 || cfg.Routing.ZeroScoreConfidence > cfg.Routing.MaxConfidence {
		errs = append(errs, "routing.zeroScoreConfidence must be in [0, maxConfidence]")
	}
	if cfg.Routing.SecondaryTokenFraction < 0 || cfg.Routing.SecondaryTokenFraction > 1 {
		errs = append(errs, "routing.secondaryTokenFraction must be in [0, 1]")
	}

	if cfg.Crew.Timeout <= 0 {
		errs = append(errs, "crew.timeout must be positive")
	}
	if cfg.LLM.Timeout <= 0 {
		errs = append(errs, "llm.timeout must be positive")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		errs = append(errs, "llm.temperature must be between 0 and 2")
	}
	if cfg.Mem0.Timeout <= 0 {
		errs = append(errs, "mem0.timeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
