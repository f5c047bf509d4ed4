package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrMissingConfiguration is returned when a required setting is absent
var ErrMissingConfiguration = errors.New("missing required configuration")

// Config holds all configuration for the application
type Config struct {
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Tavily    TavilyConfig    `mapstructure:"tavily"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// OpenAIConfig holds language model API configuration
type OpenAIConfig struct {
	APIKey             string `mapstructure:"api_key"`
	BaseURL            string `mapstructure:"base_url"`
	Model              string `mapstructure:"model"`
	ClarificationModel string `mapstructure:"clarification_model"`
	ResearchModel      string `mapstructure:"research_model"`
}

// TavilyConfig holds web search API configuration
type TavilyConfig struct {
	APIKey      string `mapstructure:"api_key"`
	BaseURL     string `mapstructure:"base_url"`
	SearchDepth string `mapstructure:"search_depth"`
}

// AssistantConfig holds interview and research tuning
type AssistantConfig struct {
	MaxQuestions        int    `mapstructure:"max_questions"`
	RecommendationCount int    `mapstructure:"recommendation_count"`
	PerQueryResults     int    `mapstructure:"per_query_results"`
	SearchConcurrency   int    `mapstructure:"search_concurrency"`
	MaxProducts         int    `mapstructure:"max_products"`
	RetailerURL         string `mapstructure:"retailer_url"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string `mapstructure:"type"` // "file", "memory" or "redis"
	Dir      string `mapstructure:"dir"`
	RedisURL string `mapstructure:"redis_url"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "console" or "json"
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	Environment    string        `mapstructure:"environment"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// RateLimitConfig holds rate limiting configuration.
// PerIP is requests per minute per client, LLM and Search are requests per minute upstream.
type RateLimitConfig struct {
	PerIP  int `mapstructure:"per_ip"`
	LLM    int `mapstructure:"llm"`
	Search int `mapstructure:"search"`
}

// envBindings maps config keys to the environment variable names the assistant has always used
var envBindings = map[string]string{
	"openai.api_key":                 "OPENAI_API_KEY",
	"openai.base_url":                "OPENAI_BASE_URL",
	"openai.model":                   "OPENAI_MODEL",
	"openai.clarification_model":     "OPENAI_CLARIFICATION_MODEL",
	"openai.research_model":          "OPENAI_RESEARCH_MODEL",
	"tavily.api_key":                 "TAVILY_API_KEY",
	"tavily.base_url":                "TAVILY_BASE_URL",
	"tavily.search_depth":            "TAVILY_SEARCH_DEPTH",
	"assistant.max_questions":        "ASSISTANT_MAX_QUESTIONS",
	"assistant.recommendation_count": "ASSISTANT_RECOMMENDATION_COUNT",
	"assistant.per_query_results":    "ASSISTANT_PER_QUERY_RESULTS",
	"assistant.search_concurrency":   "ASSISTANT_SEARCH_CONCURRENCY",
	"assistant.max_products":         "ASSISTANT_MAX_PRODUCTS",
	"assistant.retailer_url":         "ASSISTANT_RETAILER_URL",
	"cache.type":                     "ASSISTANT_CACHE_TYPE",
	"cache.dir":                      "ASSISTANT_CACHE_DIR",
	"cache.redis_url":                "ASSISTANT_REDIS_URL",
	"log.level":                      "ASSISTANT_LOG_LEVEL",
	"log.format":                     "ASSISTANT_LOG_FORMAT",
	"server.port":                    "ASSISTANT_SERVER_PORT",
	"server.environment":             "ASSISTANT_SERVER_ENVIRONMENT",
	"server.allowed_origins":         "ASSISTANT_ALLOWED_ORIGINS",
	"server.request_timeout":         "ASSISTANT_REQUEST_TIMEOUT",
	"ratelimit.per_ip":               "ASSISTANT_RATELIMIT_PER_IP",
	"ratelimit.llm":                  "ASSISTANT_RATELIMIT_LLM",
	"ratelimit.search":               "ASSISTANT_RATELIMIT_SEARCH",
}

// Options tweak how Load finds its inputs
type Options struct {
	// ConfigFile overrides the config search path when set
	ConfigFile string
	// EnvFile is the dotenv file to read before the environment, ".env" by default
	EnvFile string
	// Flags are bound on top of file and environment values
	Flags *pflag.FlagSet
	// RequireSearch makes TAVILY_API_KEY mandatory
	RequireSearch bool
	// Defaults replace built-in defaults for this binary, keyed like "log.level"
	Defaults map[string]any
}

// Load loads configuration from the dotenv file, environment variables and config files
func Load() (*Config, error) {
	return LoadWithOptions(Options{RequireSearch: true})
}

// LoadWithOptions is Load with explicit sources
func LoadWithOptions(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// A missing dotenv file is fine; real environment variables still win
	_ = godotenv.Load(envFile)

	v := viper.New()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.buywithme")
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	setDefaults(v)
	for key, value := range opts.Defaults {
		v.SetDefault(key, value)
	}

	if opts.Flags != nil {
		if err := bindFlags(v, opts.Flags); err != nil {
			return nil, err
		}
	}

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || opts.ConfigFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config, opts.RequireSearch); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// flagKeys maps CLI flag names onto config keys
var flagKeys = map[string]string{
	"log-level":     "log.level",
	"log-format":    "log.format",
	"cache-type":    "cache.type",
	"max-questions": "assistant.max_questions",
	"port":          "server.port",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Language model defaults
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o-mini")

	// Search defaults
	v.SetDefault("tavily.base_url", "https://api.tavily.com")
	v.SetDefault("tavily.search_depth", "advanced")

	// Assistant defaults
	v.SetDefault("assistant.max_questions", 6)
	v.SetDefault("assistant.recommendation_count", 3)
	v.SetDefault("assistant.per_query_results", 5)
	v.SetDefault("assistant.search_concurrency", 1)
	v.SetDefault("assistant.max_products", 12)
	v.SetDefault("assistant.retailer_url", "https://r.jina.ai/https://www.digitec.ch/en/s1/search")

	// Cache defaults
	v.SetDefault("cache.type", "file")
	v.SetDefault("cache.dir", "data/cache")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})
	v.SetDefault("server.request_timeout", "2m")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 30)
	v.SetDefault("ratelimit.llm", 60)
	v.SetDefault("ratelimit.search", 60)
}

// validate validates the configuration
func validate(config *Config, requireSearch bool) error {
	var missing []string
	if strings.TrimSpace(config.OpenAI.APIKey) == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if requireSearch && strings.TrimSpace(config.Tavily.APIKey) == "" {
		missing = append(missing, "TAVILY_API_KEY")
	}
	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		missing = append(missing, "ASSISTANT_REDIS_URL")
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %s", ErrMissingConfiguration, strings.Join(missing, ", "))
	}

	switch config.Cache.Type {
	case "file", "memory", "redis":
	default:
		return fmt.Errorf("cache type must be 'file', 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Tavily.SearchDepth != "basic" && config.Tavily.SearchDepth != "advanced" {
		return fmt.Errorf("search depth must be 'basic' or 'advanced', got: %s", config.Tavily.SearchDepth)
	}

	if config.Assistant.MaxQuestions <= 0 {
		return fmt.Errorf("max questions must be positive, got: %d", config.Assistant.MaxQuestions)
	}

	if config.Assistant.RecommendationCount <= 0 {
		return fmt.Errorf("recommendation count must be positive, got: %d", config.Assistant.RecommendationCount)
	}

	return nil
}

// ClarificationModel returns the model used for the interview, falling back to the default model
func (c *Config) ClarificationModel() string {
	if c.OpenAI.ClarificationModel != "" {
		return c.OpenAI.ClarificationModel
	}
	return c.OpenAI.Model
}

// ResearchModel returns the model used for query drafting and recommendations
func (c *Config) ResearchModel() string {
	if c.OpenAI.ResearchModel != "" {
		return c.OpenAI.ResearchModel
	}
	return c.OpenAI.Model
}
