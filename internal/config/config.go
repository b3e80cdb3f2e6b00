// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, the ledger database path, rate limiting,
// observability, and the tunable rules of the token economy.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "timely-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// EconomyConfig carries the token economy rules that operators may tune.
// Defaults match the production rule set; main maps these onto the domain
// economy at boot.
type EconomyConfig struct {
	// Accounts.
	StartBalance int // START_BALANCE
	DailyEarnCap int // DAILY_EARN_CAP
	DailyBonus   int // DAILY_BONUS

	// Post lifecycle.
	PostCost             int // POST_COST
	InitialLifeHours     int // INITIAL_LIFE_HOURS
	ExtendHoursPerToken  int // EXTEND_HOURS_PER_TOKEN
	AuthorExtendHoursCap int // AUTHOR_EXTEND_HOURS_CAP
	BoostStartMinutes    int // BOOST_START_MINUTES

	// Community certification.
	CertLikes    int // CERT_LIKES
	CertComments int // CERT_COMMENTS
	CertExtHours int // CERT_EXT_HOURS (non-author extension hours)

	// Engagement rewards.
	LikeRewardEvery    int // LIKE_REWARD_EVERY
	CommentRewardEvery int // COMMENT_REWARD_EVERY
	EngagementReward   int // ENGAGEMENT_REWARD

	// Settlement.
	PopularMinInvested   int     // POPULAR_MIN_INVESTED
	PopularMinSupporters int     // POPULAR_MIN_SUPPORTERS
	PoolRate             float64 // POOL_RATE in [0..1]

	// Challenges.
	VoteCapPerChallenge int // VOTE_CAP_PER_CHALLENGE
	DefaultPrize        int // CHALLENGE_DEFAULT_PRIZE
	DefaultBonusMinutes int // CHALLENGE_DEFAULT_BONUS_MINUTES

	// Input limits, in runes.
	CommentMaxRunes int // COMMENT_MAX_RUNES
	EntryMaxRunes   int // ENTRY_MAX_RUNES
	TitleMaxRunes   int // TITLE_MAX_RUNES
	DescMaxRunes    int // DESC_MAX_RUNES
	BioMaxRunes     int // BIO_MAX_RUNES
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	// App
	DBPath              string        // SQLite path for the ledger document
	MaintenanceInterval time.Duration // background settle/finalize period

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // lifetime of an Idempotency-Key record

	// Observability
	OTEL OTELConfig

	// Token economy
	Economy EconomyConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath:              getenv("DB_PATH", "timely.db"),
		MaintenanceInterval: getdur("MAINTENANCE_INTERVAL", time.Minute),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "timely-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},

		// Token economy
		Economy: EconomyConfig{
			StartBalance: getint("START_BALANCE", 5),
			DailyEarnCap: getint("DAILY_EARN_CAP", 5),
			DailyBonus:   getint("DAILY_BONUS", 1),

			PostCost:             getint("POST_COST", 1),
			InitialLifeHours:     getint("INITIAL_LIFE_HOURS", 24),
			ExtendHoursPerToken:  getint("EXTEND_HOURS_PER_TOKEN", 6),
			AuthorExtendHoursCap: getint("AUTHOR_EXTEND_HOURS_CAP", 12),
			BoostStartMinutes:    getint("BOOST_START_MINUTES", 30),

			CertLikes:    getint("CERT_LIKES", 20),
			CertComments: getint("CERT_COMMENTS", 10),
			CertExtHours: getint("CERT_EXT_HOURS", 24),

			LikeRewardEvery:    getint("LIKE_REWARD_EVERY", 5),
			CommentRewardEvery: getint("COMMENT_REWARD_EVERY", 2),
			EngagementReward:   getint("ENGAGEMENT_REWARD", 1),

			PopularMinInvested:   getint("POPULAR_MIN_INVESTED", 5),
			PopularMinSupporters: getint("POPULAR_MIN_SUPPORTERS", 3),
			PoolRate:             getfloat("POOL_RATE", 0.20),

			VoteCapPerChallenge: getint("VOTE_CAP_PER_CHALLENGE", 6),
			DefaultPrize:        getint("CHALLENGE_DEFAULT_PRIZE", 10),
			DefaultBonusMinutes: getint("CHALLENGE_DEFAULT_BONUS_MINUTES", 60),

			CommentMaxRunes: getint("COMMENT_MAX_RUNES", 300),
			EntryMaxRunes:   getint("ENTRY_MAX_RUNES", 280),
			TitleMaxRunes:   getint("TITLE_MAX_RUNES", 120),
			DescMaxRunes:    getint("DESC_MAX_RUNES", 280),
			BioMaxRunes:     getint("BIO_MAX_RUNES", 160),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.MaintenanceInterval <= 0 {
		return cfg, errors.New("MAINTENANCE_INTERVAL must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	if cfg.Economy.PoolRate < 0 || cfg.Economy.PoolRate > 1 {
		return cfg, errors.New("POOL_RATE must be in [0,1]")
	}
	if cfg.Economy.StartBalance < 0 || cfg.Economy.PostCost < 0 {
		return cfg, errors.New("START_BALANCE and POST_COST must be >= 0")
	}
	if cfg.Economy.DailyEarnCap < 0 {
		return cfg, errors.New("DAILY_EARN_CAP must be >= 0")
	}
	if cfg.Economy.VoteCapPerChallenge < 1 {
		return cfg, errors.New("VOTE_CAP_PER_CHALLENGE must be >= 1")
	}
	if cfg.Economy.InitialLifeHours < 1 || cfg.Economy.ExtendHoursPerToken < 1 {
		return cfg, errors.New("INITIAL_LIFE_HOURS and EXTEND_HOURS_PER_TOKEN must be >= 1")
	}
	if cfg.Economy.LikeRewardEvery < 1 || cfg.Economy.CommentRewardEvery < 1 {
		return cfg, errors.New("LIKE_REWARD_EVERY and COMMENT_REWARD_EVERY must be >= 1")
	}
	if cfg.Economy.EngagementReward < 0 || cfg.Economy.DefaultPrize < 0 || cfg.Economy.DefaultBonusMinutes < 0 {
		return cfg, errors.New("reward amounts must be >= 0")
	}
	if cfg.Economy.BoostStartMinutes < 0 || cfg.Economy.CertLikes < 0 || cfg.Economy.CertComments < 0 || cfg.Economy.CertExtHours < 0 {
		return cfg, errors.New("boost minutes and certification thresholds must be >= 0")
	}
	if cfg.Economy.PopularMinInvested < 0 || cfg.Economy.PopularMinSupporters < 0 {
		return cfg, errors.New("popularity thresholds must be >= 0")
	}
	if cfg.Economy.CommentMaxRunes < 1 || cfg.Economy.EntryMaxRunes < 1 ||
		cfg.Economy.TitleMaxRunes < 1 || cfg.Economy.DescMaxRunes < 1 || cfg.Economy.BioMaxRunes < 1 {
		return cfg, errors.New("input rune limits must be >= 1")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
