package config

import (
	"errors"
	"fmt"
	"io/fs"
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
	Env            string
	Port           int
	DatabaseURL    string
	MigrateOnStart bool
	FrontendURL    string

	Log        LogConfig
	Auth       AuthConfig
	Google     GoogleConfig
	Meeting    MeetingConfig
	Redis      RedisConfig
	Invitation InvitationConfig
	Notify     NotifyConfig
	Followup   FollowupConfig
}

type LogConfig struct {
	Level  string
	Format string
}

type AuthConfig struct {
	StaticTokens []string
	JWTSecret    string
}

// GoogleConfig is complete only when client id, secret and redirect URL are set.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	CalendarID   string
	Timeout      time.Duration
}

func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != "" && g.RedirectURL != ""
}

type MeetingConfig struct {
	RoomBaseURL string
	RoomPrefix  string
	RoomSecret  string
	CacheTTL    time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type InvitationConfig struct {
	TTL time.Duration
}

type NotifyConfig struct {
	Transport    string
	From         string
	KafkaBrokers []string
	KafkaTopic   string
}

type FollowupConfig struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
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
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		Env:            v.GetString("ENV"),
		Port:           v.GetInt("PORT"),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		MigrateOnStart: v.GetBool("MIGRATE_ON_START"),
		FrontendURL:    strings.TrimRight(v.GetString("FRONTEND_BASE_URL"), "/"),
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Auth: AuthConfig{
			StaticTokens: splitAndTrim(v.GetString("STATIC_TOKENS")),
			JWTSecret:    strings.TrimSpace(v.GetString("JWT_HMAC_SECRET")),
		},
		Google: GoogleConfig{
			ClientID:     v.GetString("GOOGLE_CLIENT_ID"),
			ClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  v.GetString("GOOGLE_REDIRECT_URL"),
			CalendarID:   v.GetString("GOOGLE_CALENDAR_ID"),
			Timeout:      parseDuration(v.GetString("GOOGLE_CALENDAR_TIMEOUT"), 4*time.Second),
		},
		Meeting: MeetingConfig{
			RoomBaseURL: strings.TrimRight(v.GetString("MEETING_ROOM_BASE_URL"), "/"),
			RoomPrefix:  v.GetString("MEETING_ROOM_PREFIX"),
			RoomSecret:  v.GetString("MEETING_ROOM_SECRET"),
			CacheTTL:    parseDuration(v.GetString("MEETING_CACHE_TTL"), 30*24*time.Hour),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Invitation: InvitationConfig{
			TTL: parseDuration(v.GetString("INVITATION_TTL"), 7*24*time.Hour),
		},
		Notify: NotifyConfig{
			Transport:    strings.ToLower(v.GetString("NOTIFY_TRANSPORT")),
			From:         v.GetString("MAIL_FROM"),
			KafkaBrokers: splitAndTrim(v.GetString("KAFKA_BROKERS")),
			KafkaTopic:   v.GetString("KAFKA_NOTIFY_TOPIC"),
		},
		Followup: FollowupConfig{
			Workers:    v.GetInt("FOLLOWUP_WORKERS"),
			Retries:    v.GetInt("FOLLOWUP_RETRIES"),
			RetryDelay: parseDuration(v.GetString("FOLLOWUP_RETRY_DELAY"), 5*time.Second),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL required")
	}
	if cfg.Notify.Transport == "kafka" && len(cfg.Notify.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS required when NOTIFY_TRANSPORT=kafka")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("MIGRATE_ON_START", true)
	v.SetDefault("FRONTEND_BASE_URL", "http://localhost:3000")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("GOOGLE_CALENDAR_ID", "primary")
	v.SetDefault("GOOGLE_CALENDAR_TIMEOUT", "4s")

	v.SetDefault("MEETING_ROOM_BASE_URL", "https://meet.jit.si")
	v.SetDefault("MEETING_ROOM_PREFIX", "interview-")
	v.SetDefault("MEETING_ROOM_SECRET", "")
	v.SetDefault("MEETING_CACHE_TTL", "720h")

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("INVITATION_TTL", "168h")

	v.SetDefault("NOTIFY_TRANSPORT", "log")
	v.SetDefault("MAIL_FROM", "interviews@localhost")
	v.SetDefault("KAFKA_NOTIFY_TOPIC", "interview.notifications")

	v.SetDefault("FOLLOWUP_WORKERS", 2)
	v.SetDefault("FOLLOWUP_RETRIES", 3)
	v.SetDefault("FOLLOWUP_RETRY_DELAY", "5s")
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
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
