package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// HTTPConfig covers the listener and request limits.
type HTTPConfig struct {
	Port            string
	MaxUploadMB     int64
	PPTMaxUploadMB  int64
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
	// RateLimit is requests per second over the conversion routes, 0 disables.
	RateLimit float64
	RateBurst int
}

// StorageConfig points at the local working directories.
type StorageConfig struct {
	UploadDir    string
	ConvertedDir  string
	MaxAge        time.Duration
	SweepInterval time.Duration
}

// ConversionConfig controls the batch pipeline and engines.
type ConversionConfig struct {
	BatchSize      int
	Timeout        time.Duration
	Engine         string // "native"|"libreoffice"
	LibreOfficeBin string
	MaxWorkers     int
}

// RecordsConfig configures where conversion records live.
type RecordsConfig struct {
	RedisURL string
	TTL      time.Duration
}

// S3Config configures the optional artifact mirror.
type S3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	PresignTTL      time.Duration
}

// Config is the top-level configuration.
type Config struct {
	Version    string
	Logging    LoggingConfig
	Axiom      AxiomConfig
	HTTP       HTTPConfig
	Storage    StorageConfig
	Conversion ConversionConfig
	Records    RecordsConfig
	S3         S3Config
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{Version: getEnv("APP_VERSION", "3.0.0")}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/pdfconvert.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_pdfconvert",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.HTTP = HTTPConfig{
		Port:            getEnv("PORT", "8789"),
		MaxUploadMB:     int64(parseInt(getEnv("MAX_UPLOAD_MB", "100"), 100)),
		PPTMaxUploadMB:  int64(parseInt(getEnv("PPT_MAX_UPLOAD_MB", "60"), 60)),
		AllowedOrigins:  parseList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),
		RateLimit:       parseFloat(getEnv("RATE_LIMIT_RPS", "0"), 0),
		RateBurst:       parseInt(getEnv("RATE_LIMIT_BURST", "10"), 10),
	}

	cfg.Storage = StorageConfig{
		UploadDir:     getEnv("UPLOAD_DIR", "uploads"),
		ConvertedDir:  getEnv("CONVERTED_DIR", "converted"),
		MaxAge:        parseDuration(getEnv("RETENTION_MAX_AGE", "1h"), time.Hour),
		SweepInterval: parseDuration(getEnv("RETENTION_SWEEP_INTERVAL", "10m"), 10*time.Minute),
	}

	cfg.Conversion = ConversionConfig{
		BatchSize:      parseInt(getEnv("BATCH_SIZE", "20"), 20),
		Timeout:        parseDuration(getEnv("CONVERSION_TIMEOUT", "300s"), 300*time.Second),
		Engine:         strings.ToLower(getEnv("CONVERTER_ENGINE", "native")),
		LibreOfficeBin: getEnv("LIBREOFFICE_BIN", "libreoffice"),
		MaxWorkers:     parseInt(getEnv("LIBREOFFICE_MAX_WORKERS", "2"), 2),
	}
	if cfg.Conversion.BatchSize <= 0 {
		cfg.Conversion.BatchSize = 20
	}

	cfg.Records = RecordsConfig{
		RedisURL: getEnv("REDIS_URL", ""),
		TTL:      parseDuration(getEnv("RECORD_TTL", ""), cfg.Storage.MaxAge),
	}

	cfg.S3 = S3Config{
		Bucket:          getEnv("S3_BUCKET", ""),
		Prefix:          strings.Trim(getEnv("S3_PREFIX", "converted"), "/"),
		Region:          getEnv("AWS_REGION", ""),
		AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		PresignTTL:      parseDuration(getEnv("S3_PRESIGN_TTL", "1h"), time.Hour),
	}

	return cfg
}

// MaxUploadBytes is the general request body limit.
func (c HTTPConfig) MaxUploadBytes() int64 { return c.MaxUploadMB << 20 }

// PPTMaxUploadBytes is the body limit for slide exports.
func (c HTTPConfig) PPTMaxUploadBytes() int64 { return c.PPTMaxUploadMB << 20 }

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func parseList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
