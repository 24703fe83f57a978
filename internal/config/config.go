package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config is loaded once at startup and passed to everything that needs it.
type Config struct {
	Env         string
	HTTPAddr    string
	StoreDriver string
	DB          DBConfig

	JWTSecret string
	JWTExpiry time.Duration

	LogFile  string
	LogLevel string

	MetricsEnabled     bool
	CORSAllowedOrigins []string

	Simulation    SimulationConfig
	Notifications NotificationConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	TimeZone string
}

// DSN builds the postgres data source name.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode, c.TimeZone,
	)
}

// SimulationConfig anchors simulated positions of buses whose route has no stops.
type SimulationConfig struct {
	AnchorLat     float64
	AnchorLng     float64
	AnchorAddress string
}

type NotificationConfig struct {
	// TTL is how long a notification lives after creation.
	TTL time.Duration
	// Window is the broadcast cutoff used for users without an activation date.
	Window time.Duration
	// PurgeInterval is how often expired notifications are deleted. Zero disables purging.
	PurgeInterval time.Duration
}

func defaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("STORE_DRIVER", StorePostgres)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "shuttle")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_TIMEZONE", "UTC")

	v.SetDefault("JWT_EXPIRY", 72*time.Hour)
	v.SetDefault("LOG_FILE", "./logs/app.log")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")

	v.SetDefault("SIM_ANCHOR_LAT", 12.9716)
	v.SetDefault("SIM_ANCHOR_LNG", 77.5946)
	v.SetDefault("SIM_ANCHOR_ADDRESS", "Main Campus")

	v.SetDefault("NOTIFICATION_TTL", 30*24*time.Hour)
	v.SetDefault("NOTIFICATION_WINDOW", 30*24*time.Hour)
	v.SetDefault("NOTIFICATION_PURGE_INTERVAL", time.Hour)
}

// Load reads .env (if present) and the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found – relying on env vars")
	}

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	defaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Env:         v.GetString("APP_ENV"),
		HTTPAddr:    v.GetString("HTTP_ADDR"),
		StoreDriver: strings.ToLower(v.GetString("STORE_DRIVER")),
		DB: DBConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
			TimeZone: v.GetString("DB_TIMEZONE"),
		},
		JWTSecret:          v.GetString("JWT_SECRET"),
		JWTExpiry:          v.GetDuration("JWT_EXPIRY"),
		LogFile:            v.GetString("LOG_FILE"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		MetricsEnabled:     v.GetBool("METRICS_ENABLED"),
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		Simulation: SimulationConfig{
			AnchorLat:     v.GetFloat64("SIM_ANCHOR_LAT"),
			AnchorLng:     v.GetFloat64("SIM_ANCHOR_LNG"),
			AnchorAddress: v.GetString("SIM_ANCHOR_ADDRESS"),
		},
		Notifications: NotificationConfig{
			TTL:           v.GetDuration("NOTIFICATION_TTL"),
			Window:        v.GetDuration("NOTIFICATION_WINDOW"),
			PurgeInterval: v.GetDuration("NOTIFICATION_PURGE_INTERVAL"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.StoreDriver {
	case StorePostgres, StoreMemory:
	default:
		return errors.Errorf("invalid STORE_DRIVER: %q", c.StoreDriver)
	}
	if c.JWTExpiry <= 0 {
		return errors.Errorf("invalid JWT_EXPIRY: %v", c.JWTExpiry)
	}
	if c.Notifications.TTL <= 0 || c.Notifications.Window <= 0 {
		return errors.New("NOTIFICATION_TTL and NOTIFICATION_WINDOW must be positive")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
