package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Config struct {
	ServerPort      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	Version         string

	RateLimit         int
	RateLimitInterval time.Duration

	// Transcript fetching
	Languages      []string
	YouTubeTimeout time.Duration
	MaxRetriesCap  int
	MaxRetryDelay  time.Duration

	// Summarization
	EnableSummary        bool
	HFToken              string
	SummaryModel         string
	SummaryAPIBase       string
	SummaryStrategy      string
	SummaryMaxInputChars int
	SummaryChunkChars    int
	SummaryMaxLength     int
	SummaryMinLength     int
	SummaryTimeout       time.Duration

	LedgerPath string

	LogLevel      string
	LogFormat     string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("Failed to load .env file")
	}
	return LoadFromEnv()
}

func LoadFromEnv() *Config {
	return &Config{
		ServerPort:      GetEnv("SERVER_PORT", "8000"),
		ReadTimeout:     getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvAsDuration("WRITE_TIMEOUT", 10*time.Minute),
		IdleTimeout:     getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		Version:         GetEnv("VERSION", "1.0.0"),

		RateLimit:         getEnvAsInt("RATE_LIMIT", 5),
		RateLimitInterval: getEnvAsDuration("RATE_LIMIT_INTERVAL", 1*time.Second),

		Languages:      getEnvAsStringSlice("TRANSCRIPT_LANGUAGES", []string{"en"}),
		YouTubeTimeout: getEnvAsDuration("YOUTUBE_TIMEOUT", 30*time.Second),
		MaxRetriesCap:  getEnvAsInt("MAX_RETRIES_CAP", 5),
		MaxRetryDelay:  getEnvAsDuration("MAX_RETRY_DELAY", 10*time.Second),

		EnableSummary:        getEnvAsBool("ENABLE_SUMMARY", true),
		HFToken:              GetEnv("HF_TOKEN", ""),
		SummaryModel:         GetEnv("HF_SUMMARY_MODEL", "facebook/bart-large-cnn"),
		SummaryAPIBase:       GetEnv("HF_API_BASE", "https://api-inference.huggingface.co/models"),
		SummaryStrategy:      GetEnv("SUMMARY_STRATEGY", "truncate"),
		SummaryMaxInputChars: getEnvAsInt("SUMMARY_MAX_INPUT_CHARS", 5000),
		SummaryChunkChars:    getEnvAsInt("SUMMARY_CHUNK_CHARS", 1000),
		SummaryMaxLength:     getEnvAsInt("SUMMARY_MAX_LENGTH", 160),
		SummaryMinLength:     getEnvAsInt("SUMMARY_MIN_LENGTH", 60),
		SummaryTimeout:       getEnvAsDuration("SUMMARY_TIMEOUT", 60*time.Second),

		LedgerPath: GetEnv("LEDGER_PATH", ""),

		LogLevel:      GetEnv("LOG_LEVEL", "info"),
		LogFormat:     GetEnv("LOG_FORMAT", "text"),
		LogFile:       GetEnv("LOG_FILE", ""),
		LogMaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 10),
		LogMaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 3),
		LogMaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 28),
	}
}

// SummaryAvailable reports whether summaries can be produced at all.
func (c *Config) SummaryAvailable() bool {
	return c.EnableSummary && c.HFToken != ""
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid duration, using default")
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid integer, using default")
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return boolValue
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid boolean, using default")
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func (c *Config) Validate() error {
	if c.ServerPort == "" {
		return errors.New("server port is required")
	}
	if c.ReadTimeout <= 0 {
		return errors.New("read timeout must be greater than 0")
	}
	if c.WriteTimeout <= 0 {
		return errors.New("write timeout must be greater than 0")
	}
	if c.IdleTimeout <= 0 {
		return errors.New("idle timeout must be greater than 0")
	}
	if c.RateLimit <= 0 || c.RateLimitInterval <= 0 {
		return errors.New("rate limit and interval must be greater than 0")
	}
	if len(c.Languages) == 0 {
		return errors.New("at least one transcript language is required")
	}
	if c.MaxRetriesCap < 1 {
		return errors.New("max retries cap must be at least 1")
	}
	if c.MaxRetryDelay < 0 {
		return errors.New("max retry delay must not be negative")
	}
	if c.SummaryModel == "" {
		return errors.New("summary model is required")
	}
	switch c.SummaryStrategy {
	case "truncate", "chunk":
	default:
		return errors.Errorf("unknown summary strategy %q", c.SummaryStrategy)
	}
	if c.SummaryMaxInputChars <= 0 || c.SummaryChunkChars <= 0 {
		return errors.New("summary input sizes must be greater than 0")
	}
	if c.SummaryMinLength < 0 || c.SummaryMaxLength < c.SummaryMinLength {
		return errors.New("summary max length must be at least the min length")
	}
	if c.SummaryTimeout <= 0 {
		return errors.New("summary timeout must be greater than 0")
	}
	if worst := c.WorstCaseRequest(); worst >= c.WriteTimeout {
		return errors.Errorf("write timeout %s must exceed the worst-case request time %s", c.WriteTimeout, worst)
	}
	return nil
}

// WorstCaseRequest bounds how long a /summarize request accepted under the
// retry caps can run. Each attempt makes two YouTube calls.
func (c *Config) WorstCaseRequest() time.Duration {
	n := time.Duration(c.MaxRetriesCap)
	worst := c.MaxRetryDelay*n*(n-1)/2 + 2*n*c.YouTubeTimeout
	if c.EnableSummary {
		worst += c.SummaryTimeout
	}
	return worst
}
