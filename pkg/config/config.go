package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port     string
	LogLevel string

	DatabaseDriver string
	DatabaseURL    string

	SessionSecret string
	SessionTTL    time.Duration
	CookieSecure  bool
	CookieDomain  string
	FrontendURL   string
	// AdminEmails may change service-wide settings such as the LLM models.
	AdminEmails []string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string

	AIProvider        string
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	GeminiAPIKey      string
	ResearchModel     string
	WriterModel       string
	LLMTimeout        time.Duration

	GoogleProjectID     string
	SignupTopic         string
	GoogleCredentials   string
	FirebaseCredentials string

	UsageResetSchedule      string
	ConnectionSweepSchedule string
	MetricsEnabled          bool
}

var durationDefaults = map[string]time.Duration{
	"SESSION_TTL": 168 * time.Hour,
	"LLM_TIMEOUT": 2 * time.Minute,
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	return &Config{
		Port:     v.GetString("PORT"),
		LogLevel: v.GetString("LOG_LEVEL"),

		DatabaseDriver: strings.ToLower(v.GetString("DATABASE_DRIVER")),
		DatabaseURL:    v.GetString("DATABASE_URL"),

		SessionSecret: v.GetString("SESSION_SECRET"),
		SessionTTL:    getDuration(v, "SESSION_TTL"),
		CookieSecure:  v.GetBool("COOKIE_SECURE"),
		CookieDomain:  v.GetString("COOKIE_DOMAIN"),
		FrontendURL:   strings.TrimRight(v.GetString("FRONTEND_URL"), "/"),
		AdminEmails:   splitList(v.GetString("ADMIN_EMAILS")),

		GoogleClientID:     v.GetString("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURI:  v.GetString("GOOGLE_REDIRECT_URI"),

		AIProvider:        strings.ToLower(v.GetString("AI_PROVIDER")),
		OpenRouterAPIKey:  v.GetString("OPENROUTER_API_KEY"),
		OpenRouterBaseURL: strings.TrimRight(v.GetString("OPENROUTER_BASE_URL"), "/"),
		GeminiAPIKey:      v.GetString("GEMINI_API_KEY"),
		ResearchModel:     v.GetString("RESEARCH_MODEL"),
		WriterModel:       v.GetString("WRITER_MODEL"),
		LLMTimeout:        getDuration(v, "LLM_TIMEOUT"),

		GoogleProjectID:     v.GetString("GOOGLE_PROJECT_ID"),
		SignupTopic:         v.GetString("SIGNUP_TOPIC"),
		GoogleCredentials:   v.GetString("GOOGLE_CREDENTIALS"),
		FirebaseCredentials: v.GetString("FIREBASE_CREDENTIALS"),

		UsageResetSchedule:      v.GetString("USAGE_RESET_SCHEDULE"),
		ConnectionSweepSchedule: v.GetString("CONNECTION_SWEEP_SCHEDULE"),
		MetricsEnabled:          v.GetBool("METRICS_ENABLED"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SESSION_SECRET", "your-secret-key-change-in-production")
	v.SetDefault("SESSION_TTL", "168h")
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("COOKIE_DOMAIN", "")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("ADMIN_EMAILS", "")
	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("GOOGLE_REDIRECT_URI", "http://localhost:8080/api/google/callback")
	v.SetDefault("AI_PROVIDER", "openrouter")
	v.SetDefault("OPENROUTER_API_KEY", "")
	v.SetDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1")
	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("RESEARCH_MODEL", "perplexity/sonar")
	v.SetDefault("WRITER_MODEL", "anthropic/claude-3.5-sonnet")
	v.SetDefault("LLM_TIMEOUT", "2m")
	v.SetDefault("GOOGLE_PROJECT_ID", "")
	v.SetDefault("SIGNUP_TOPIC", "welcome-signups")
	v.SetDefault("GOOGLE_CREDENTIALS", "")
	v.SetDefault("FIREBASE_CREDENTIALS", "")
	v.SetDefault("USAGE_RESET_SCHEDULE", "@daily")
	v.SetDefault("CONNECTION_SWEEP_SCHEDULE", "@every 60m")
	v.SetDefault("METRICS_ENABLED", true)
}

// getDuration falls back to the built-in default when the value does not parse.
func getDuration(v *viper.Viper, key string) time.Duration {
	if parsed, err := time.ParseDuration(v.GetString(key)); err == nil && parsed > 0 {
		return parsed
	}
	return durationDefaults[key]
}

// splitList parses a comma separated list of emails, lowercased.
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			out = append(out, item)
		}
	}
	return out
}
