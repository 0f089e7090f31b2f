package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	MongoURI    string `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017/journeygen"`
	PostgresURI string `envconfig:"POSTGRES_URI" default:"postgres://localhost:5432/journeygen?sslmode=disable"`
	RedisURI    string `envconfig:"REDIS_URI" default:"redis://localhost:6379/0"`

	Port           string   `envconfig:"PORT" default:"3001"`
	Environment    string   `envconfig:"ENV" default:"development"`
	LogMode        string   `envconfig:"LOG_MODE" default:"development"`
	FrontendURL    string   `envconfig:"FRONTEND_URL" default:"http://localhost:3000"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"` // CORS: falls back to FRONTEND_URL
	AllowedHost    string   `envconfig:"ALLOWED_HOST"`    // production host check; empty disables
	TrustProxy     bool     `envconfig:"TRUST_PROXY" default:"false"`

	// Single shared administrator identity.
	AdminUsername string `envconfig:"ADMIN_USERNAME" default:"admin"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD" default:"pass"`

	EncryptionKey string `envconfig:"ENCRYPTION_KEY"`

	CloudinaryName      string `envconfig:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string `envconfig:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `envconfig:"CLOUDINARY_API_SECRET"`
	CloudinaryFolder    string `envconfig:"CLOUDINARY_FOLDER" default:"journeygen"`
	UploadDir           string `envconfig:"UPLOAD_DIR" default:"uploads"`

	DefaultBackgroundFile string `envconfig:"DEFAULT_BACKGROUND_FILE"` // empty uses the built-in background

	GenerationProvider string        `envconfig:"GENERATION_PROVIDER" default:"openai"`
	OpenAIAPIKey       string        `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL      string        `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com"`
	GeminiAPIKey       string        `envconfig:"GEMINI_API_KEY"`
	GeminiModel        string        `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	JournalModel       string        `envconfig:"JOURNAL_MODEL" default:"gpt-4-0613"`
	ReportModel        string        `envconfig:"REPORT_MODEL" default:"gpt-4.1"`
	JournalMaxTokens   int           `envconfig:"JOURNAL_MAX_TOKENS" default:"4000"`
	ReportMaxTokens    int           `envconfig:"REPORT_MAX_TOKENS" default:"7000"`
	ReportTemperature  float32       `envconfig:"REPORT_TEMPERATURE" default:"0.7"`
	GenerationTimeout  time.Duration `envconfig:"GENERATION_TIMEOUT" default:"0s"` // 0 leaves the upstream call unbounded
	PromptPolicy       string        `envconfig:"PROMPT_POLICY" default:"pad"`

	InviteTokenTTL time.Duration `envconfig:"INVITE_TOKEN_TTL" default:"0s"` // 0 means invite tokens never expire

	SendGridAPIKey string `envconfig:"SENDGRID_API_KEY"`
	MailFrom       string `envconfig:"MAIL_FROM" default:"no-reply@journeygen.app"`
}

// Load reads the environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	cfg.GenerationProvider = strings.ToLower(strings.TrimSpace(cfg.GenerationProvider))
	cfg.PromptPolicy = strings.ToLower(strings.TrimSpace(cfg.PromptPolicy))

	cfg.AllowedOrigins = parseOrigins(cfg.AllowedOrigins)
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = parseOrigins([]string{cfg.FrontendURL})
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"http://localhost:3000"}
	}

	switch cfg.GenerationProvider {
	case "openai", "gemini":
	default:
		return nil, fmt.Errorf("unsupported GENERATION_PROVIDER: %s", cfg.GenerationProvider)
	}
	switch cfg.PromptPolicy {
	case "pad", "reject", "off":
	default:
		return nil, fmt.Errorf("unsupported PROMPT_POLICY: %s", cfg.PromptPolicy)
	}
	return &cfg, nil
}

func parseOrigins(in []string) []string {
	var out []string
	for _, part := range in {
		part = strings.TrimRight(strings.TrimSpace(part), "/")
		if part != "" && !containsOrigin(out, part) {
			out = append(out, part)
		}
	}
	return out
}

func containsOrigin(list []string, o string) bool {
	o = strings.TrimSpace(strings.ToLower(o))
	for _, v := range list {
		if strings.TrimSpace(strings.ToLower(v)) == o {
			return true
		}
	}
	return false
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Models returns the journal and report model names for the configured provider.
// Gemini uses one model for both calls.
func (c *Config) Models() (journal, report string) {
	if c.GenerationProvider == "gemini" {
		return c.GeminiModel, c.GeminiModel
	}
	return c.JournalModel, c.ReportModel
}

// CloudinaryEnabled reports whether all Cloudinary credentials are present.
func (c *Config) CloudinaryEnabled() bool {
	return c.CloudinaryName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}
