package config

import (
	"errors"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Scheduler SchedulerConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds the shared secret of tokens issued by the account service.
type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulerConfig tunes the timetable generator and its job queue.
type SchedulerConfig struct {
	Enabled              bool
	MaxAttempts          int
	RelaxAfter           int
	BlockBudget          int
	TheoryRounds         int
	LunchSlot            int
	DefaultTeachingSlots int
	// Seed of 0 means a time based seed per run.
	Seed           int64
	Workers        int
	MaxRetries     int
	JobTTL         time.Duration
	CacheTTL       time.Duration
	BlockDurations map[string]int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scheduler = SchedulerConfig{
		Enabled:              v.GetBool("ENABLE_SCHEDULER"),
		MaxAttempts:          v.GetInt("SCHEDULER_MAX_ATTEMPTS"),
		RelaxAfter:           v.GetInt("SCHEDULER_RELAX_AFTER"),
		BlockBudget:          v.GetInt("SCHEDULER_BLOCK_BUDGET"),
		TheoryRounds:         v.GetInt("SCHEDULER_THEORY_ROUNDS"),
		LunchSlot:            v.GetInt("SCHEDULER_LUNCH_SLOT"),
		DefaultTeachingSlots: v.GetInt("SCHEDULER_DEFAULT_TEACHING_SLOTS"),
		Seed:                 v.GetInt64("SCHEDULER_SEED"),
		Workers:              v.GetInt("SCHEDULER_WORKERS"),
		MaxRetries:           v.GetInt("SCHEDULER_MAX_RETRIES"),
		JobTTL:               parseDuration(v.GetString("SCHEDULER_JOB_TTL"), 24*time.Hour),
		CacheTTL:             parseDuration(v.GetString("SCHEDULER_CACHE_TTL"), 10*time.Minute),
		BlockDurations:       parseBlockDurations(v.GetString("SCHEDULER_BLOCK_DURATIONS")),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_SCHEDULER", true)
	v.SetDefault("SCHEDULER_MAX_ATTEMPTS", 50)
	v.SetDefault("SCHEDULER_RELAX_AFTER", 10)
	v.SetDefault("SCHEDULER_BLOCK_BUDGET", 800)
	v.SetDefault("SCHEDULER_THEORY_ROUNDS", 500)
	v.SetDefault("SCHEDULER_LUNCH_SLOT", 4)
	v.SetDefault("SCHEDULER_DEFAULT_TEACHING_SLOTS", 7)
	v.SetDefault("SCHEDULER_SEED", 0)
	v.SetDefault("SCHEDULER_WORKERS", 1)
	v.SetDefault("SCHEDULER_MAX_RETRIES", 2)
	v.SetDefault("SCHEDULER_JOB_TTL", "24h")
	v.SetDefault("SCHEDULER_CACHE_TTL", "10m")
	v.SetDefault("SCHEDULER_BLOCK_DURATIONS", "")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// parseBlockDurations reads "CODE:3,CODE2:2". Malformed pairs and durations
// outside 2..4 are skipped.
func parseBlockDurations(raw string) map[string]int {
	result := make(map[string]int)
	for _, pair := range splitAndTrim(raw) {
		code, value, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		d, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || d < 2 || d > 4 {
			continue
		}
		result[strings.TrimSpace(code)] = d
	}
	return result
}
