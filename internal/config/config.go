// Package config loads treatydesk settings from .env, an optional
// treatydesk.yaml and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Provider names accepted in Config.Provider.
const (
	ProviderAzure  = "azure"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type Config struct {
	Provider string `mapstructure:"provider" validate:"required,oneof=azure openai ollama"`

	Azure  AzureConfig  `mapstructure:"azure"`
	OpenAI OpenAIConfig `mapstructure:"openai"`
	Ollama OllamaConfig `mapstructure:"ollama"`

	DatabasePath string `mapstructure:"database_path" validate:"required"`
	RefDocsDir   string `mapstructure:"ref_docs_dir" validate:"required"`
	// RuleSetsFile overrides the built-in review catalogue when set.
	RuleSetsFile string `mapstructure:"rule_sets_file"`

	RequestsPerMinute int           `mapstructure:"requests_per_minute" validate:"gte=0"`
	ReviewPause       time.Duration `mapstructure:"review_pause" validate:"gte=0"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// AzureConfig holds the Azure OpenAI deployment. An empty Deployment is not a
// load error; the translator reports it as unconfigured.
type AzureConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Endpoint   string `mapstructure:"endpoint" validate:"omitempty,url"`
	APIVersion string `mapstructure:"api_version"`
	Deployment string `mapstructure:"deployment"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
}

type OllamaConfig struct {
	URL   string `mapstructure:"url" validate:"omitempty,url"`
	Model string `mapstructure:"model"`
}

// envKeys binds config keys to the variable names the deployment uses.
var envKeys = map[string][]string{
	"provider":            {"TREATYDESK_PROVIDER"},
	"azure.api_key":       {"AZURE_AIS_OPENAI_API_KEY"},
	"azure.endpoint":      {"AZURE_AIS_OPENAI_ENDPOINT"},
	"azure.api_version":   {"AZURE_AIS_OPENAI_API_VERSION"},
	"azure.deployment":    {"AZURE_AIS_OPENAI_GPT_DEPLOYMENT"},
	"openai.api_key":      {"OPENAI_API_KEY"},
	"openai.model":        {"OPENAI_MODEL"},
	"openai.base_url":     {"OPENAI_BASE_URL"},
	"ollama.url":          {"OLLAMA_URL"},
	"ollama.model":        {"OLLAMA_MODEL"},
	"database_path":       {"DATABASE_PATH"},
	"ref_docs_dir":        {"REF_DOCS_DIR"},
	"rule_sets_file":      {"RULE_SETS_FILE"},
	"requests_per_minute": {"TREATYDESK_REQUESTS_PER_MINUTE"},
	"review_pause":        {"TREATYDESK_REVIEW_PAUSE"},
	"timeout":             {"TREATYDESK_TIMEOUT"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderAzure)
	v.SetDefault("azure.api_version", "2024-06-01")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("ollama.url", "http://localhost:11434")
	v.SetDefault("database_path", "glossary.db")
	v.SetDefault("ref_docs_dir", "ref_docs")
	v.SetDefault("requests_per_minute", 0)
	v.SetDefault("review_pause", time.Second)
	v.SetDefault("timeout", 120*time.Second)
}

// Options selects where Load looks.
type Options struct {
	// ConfigFile is an explicit config path; empty searches "treatydesk.yaml"
	// in the working directory.
	ConfigFile string
	// EnvFiles are loaded with godotenv before anything else; missing files
	// are ignored. Nil means ".env".
	EnvFiles []string
}

// Load reads the configuration and validates it.
func Load(opts Options) (*Config, error) {
	envFiles := opts.EnvFiles
	if envFiles == nil {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}

	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("treatydesk")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	for key, names := range envKeys {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Model returns the model or deployment name of the selected provider; empty
// means unconfigured.
func (c *Config) Model() string {
	switch c.Provider {
	case ProviderAzure:
		return c.Azure.Deployment
	case ProviderOpenAI:
		return c.OpenAI.Model
	case ProviderOllama:
		return c.Ollama.Model
	}
	return ""
}
