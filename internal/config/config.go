package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v6"
)

// Supported AI providers.
const (
	ProviderGemini = "gemini"
	ProviderArk    = "ark"
	ProviderOpenAI = "openai"
)

// Config aggregates every setting the service reads at startup.
type Config struct {
	Server ServerConfig
	Log    LogConfig
	AI     AIConfig
	Speech SpeechConfig
}

// Load reads configuration from the environment. Callers load .env beforehand.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	addr, err := normalizeAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	if err := cfg.AI.finish(); err != nil {
		return nil, err
	}
	cfg.Speech.finish()

	return &cfg, nil
}

// LoadSpeech reads only the speech settings, for tools that never talk to a
// chat provider.
func LoadSpeech() (SpeechConfig, error) {
	var cfg SpeechConfig
	if err := env.Parse(&cfg); err != nil {
		return SpeechConfig{}, fmt.Errorf("parse environment: %w", err)
	}
	cfg.finish()
	return cfg, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
	Addr string
}

// normalizeAddr accepts "8080", ":8080" or "127.0.0.1:8080".
func normalizeAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// LogConfig selects the zap preset.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// AIConfig describes the remote chat service.
type AIConfig struct {
	Provider string `env:"AI_PROVIDER" envDefault:"gemini"`

	GeminiAPIKey  string `env:"GEMINI_API_KEY"`
	GeminiModel   string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	GeminiBaseURL string `env:"GEMINI_BASE_URL"`

	ArkAPIKey    string `env:"ARK_API_KEY"`
	ArkAccessKey string `env:"ARK_ACCESS_KEY"`
	ArkSecretKey string `env:"ARK_SECRET_KEY"`
	ArkModel     string `env:"ARK_MODEL"`
	ArkBaseURL   string `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	ArkRegion    string `env:"ARK_REGION" envDefault:"cn-beijing"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`

	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

func (c *AIConfig) finish() error {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = ProviderGemini
	}

	// The hosted web build reads the Gemini key from API_KEY.
	if c.GeminiAPIKey == "" {
		c.GeminiAPIKey = strings.TrimSpace(os.Getenv("API_KEY"))
	}

	var err error
	if c.Temperature, err = parseOptionalFloatEnv("AI_TEMPERATURE"); err != nil {
		return err
	}
	if c.TopP, err = parseOptionalFloatEnv("AI_TOP_P"); err != nil {
		return err
	}
	if c.MaxTokens, err = parseOptionalIntEnv("AI_MAX_TOKENS"); err != nil {
		return err
	}

	return c.Validate()
}

// Validate checks that the selected provider has credentials and a model.
func (c AIConfig) Validate() error {
	switch c.Provider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("gemini provider requires GEMINI_API_KEY (or API_KEY)")
		}
	case ProviderArk:
		if c.ArkModel == "" {
			return fmt.Errorf("ark provider requires ARK_MODEL")
		}
		if c.ArkAPIKey == "" && (c.ArkAccessKey == "" || c.ArkSecretKey == "") {
			return fmt.Errorf("ark provider requires ARK_API_KEY or ARK_ACCESS_KEY + ARK_SECRET_KEY")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("openai provider requires OPENAI_API_KEY")
		}
	default:
		return fmt.Errorf("unknown AI_PROVIDER %q", c.Provider)
	}
	return nil
}

// SpeechConfig describes the optional speech-to-text upstream.
type SpeechConfig struct {
	AppID       string `env:"SPEECH_APP_ID"`
	AccessToken string `env:"SPEECH_ACCESS_TOKEN"`
	APIKey      string `env:"SPEECH_API_KEY"`
	ASRURL      string `env:"SPEECH_ASR_URL" envDefault:"wss://openspeech.bytedance.com/api/v3/sauc/bigmodel_async"`
	ResourceID  string `env:"SPEECH_RESOURCE_ID" envDefault:"volc.bigasr.sauc.duration"`
	Language    string `env:"SPEECH_ASR_LANGUAGE" envDefault:"en-US"`
	Timeout     int    `env:"SPEECH_TIMEOUT" envDefault:"30"`
	Enabled     bool
}

func (c *SpeechConfig) finish() {
	c.AppID = strings.TrimSpace(c.AppID)
	c.AccessToken = strings.TrimSpace(c.AccessToken)
	if c.AccessToken == "" {
		c.AccessToken = strings.TrimSpace(c.APIKey)
	}
	if c.Timeout <= 0 {
		c.Timeout = 30
	}
	c.Enabled = c.AppID != "" && c.AccessToken != ""
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
