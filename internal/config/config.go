package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"vetclinic-booking/internal/slots"
)

type RemoteBackend string

const (
	RemotePostgres RemoteBackend = "postgres"
	RemoteMongo    RemoteBackend = "mongo"
	RemoteMemory   RemoteBackend = "memory"
	RemoteNone     RemoteBackend = "none"
)

type Config struct {
	App struct {
		Env      string `env:"APP_ENV" envDefault:"local"`
		Timezone string `env:"APP_TIMEZONE" envDefault:"Asia/Taipei"`
	}

	GRPC struct {
		Port string `env:"PORT" envDefault:"50051"`
	}

	HTTP struct {
		Port           string   `env:"WEB_PORT" envDefault:"8080"`
		AllowOrigins   []string `env:"CORS_ALLOW_ORIGINS" envSeparator:"," envDefault:"*"`
		TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
	}

	Auth struct {
		JWTSecret      string        `env:"JWT_SECRET"`
		TokenTTL       time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"24h"`
		RateLimitRPS   float64       `env:"RATE_LIMIT_RPS" envDefault:"5"`
		RateLimitBurst int           `env:"RATE_LIMIT_BURST" envDefault:"10"`
	}

	Admin struct {
		PathPrefix   string `env:"ADMIN_PATH_PREFIX" envDefault:"/admin"`
		Username     string `env:"ADMIN_USERNAME" envDefault:"admin"`
		Password     string `env:"ADMIN_PASSWORD" envDefault:"jinyi2026"`
		SeedEmail    string `env:"ADMIN_SEED_EMAIL" envDefault:"admin@clinic.com"`
		SeedPassword string `env:"ADMIN_SEED_PASSWORD" envDefault:"admin"`
		SeedTestUser bool   `env:"SEED_TEST_USER" envDefault:"true"`
	}

	Remote struct {
		Backend     RemoteBackend `env:"REMOTE_BACKEND" envDefault:"postgres"`
		DatabaseURL string        `env:"DATABASE_URL"`
		Migration   string        `env:"MIGRATION_FILE" envDefault:"db/migrations/001_init.sql"`
		MongoURI    string        `env:"MONGO_URI"`
		MongoDB     string        `env:"MONGO_DB" envDefault:"vetclinic"`
	}

	LocalCache struct {
		Dir      string `env:"LOCAL_CACHE_DIR" envDefault:"data"`
		RedisURL string `env:"LOCAL_CACHE_REDIS_URL"`
	}

	Clinic struct {
		DoctorID   string   `env:"CLINIC_DOCTOR_ID" envDefault:"doc-001"`
		DailyCap   int      `env:"CLINIC_DAILY_CAP" envDefault:"10"`
		WindowDays int      `env:"CLINIC_WINDOW_DAYS" envDefault:"14"`

		// an explicit list wins over sessions
		TimeSlots []string      `env:"CLINIC_TIME_SLOTS" envSeparator:","`
		Sessions  []string      `env:"CLINIC_SESSIONS" envSeparator:"," envDefault:"09:00-12:00,14:00-18:00"`
		SlotStep  time.Duration `env:"CLINIC_SLOT_STEP" envDefault:"30m"`
	}

	Triage struct {
		APIKey    string        `env:"GEMINI_API_KEY"`
		Model     string        `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
		Endpoint  string        `env:"GEMINI_ENDPOINT" envDefault:"https://generativelanguage.googleapis.com/v1beta"`
		Timeout   time.Duration `env:"GEMINI_TIMEOUT" envDefault:"15s"`
		CacheSize int           `env:"TRIAGE_CACHE_SIZE" envDefault:"256"`
	}

	Reminder struct {
		Enabled  bool   `env:"REMINDER_SWEEP_ENABLED" envDefault:"false"`
		Schedule string `env:"REMINDER_SWEEP_SCHEDULE" envDefault:"0 9 * * *"`
	}

	RabbitMQ struct {
		Enabled  bool   `env:"RABBITMQ_ENABLED"`
		URL      string `env:"RABBITMQ_URL"`
		Exchange string `env:"RABBITMQ_EXCHANGE" envDefault:"clinic.appointments"`
	}
}

// Load reads an optional .env file and then the process environment.
func Load(files ...string) (*Config, error) {
	_ = godotenv.Load(files...)
	return Parse()
}

func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	cfg.Remote.Backend = RemoteBackend(strings.ToLower(string(cfg.Remote.Backend)))
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.Remote.Backend {
	case RemotePostgres, RemoteMongo, RemoteMemory, RemoteNone:
	default:
		return fmt.Errorf("unknown REMOTE_BACKEND %q", c.Remote.Backend)
	}
	if c.Clinic.DoctorID == "" {
		return errors.New("CLINIC_DOCTOR_ID is required")
	}
	if c.Clinic.DailyCap <= 0 {
		return errors.New("CLINIC_DAILY_CAP must be positive")
	}
	if c.Clinic.WindowDays <= 0 {
		return errors.New("CLINIC_WINDOW_DAYS must be positive")
	}
	if len(c.Clinic.TimeSlots) == 0 {
		for _, sess := range c.Clinic.Sessions {
			start, end, ok := strings.Cut(strings.TrimSpace(sess), "-")
			if !ok {
				return fmt.Errorf("bad clinic session %q", sess)
			}
			times, err := slots.Generate(strings.TrimSpace(start), strings.TrimSpace(end), c.Clinic.SlotStep)
			if err != nil {
				return fmt.Errorf("clinic session %q: %w", sess, err)
			}
			c.Clinic.TimeSlots = append(c.Clinic.TimeSlots, times...)
		}
	}
	if len(c.Clinic.TimeSlots) == 0 {
		return errors.New("no clinic time slots")
	}
	for _, s := range c.Clinic.TimeSlots {
		if _, err := time.Parse("15:04", s); err != nil {
			return fmt.Errorf("bad time slot %q", s)
		}
	}
	if !strings.HasPrefix(c.Admin.PathPrefix, "/") {
		c.Admin.PathPrefix = "/" + c.Admin.PathPrefix
	}
	c.Admin.PathPrefix = strings.TrimRight(c.Admin.PathPrefix, "/")
	if c.Admin.PathPrefix == "" {
		return errors.New("ADMIN_PATH_PREFIX cannot be the root")
	}
	return nil
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// RemoteEnabled reports whether the configured backend has what it needs to connect.
func (c *Config) RemoteEnabled() bool {
	switch c.Remote.Backend {
	case RemotePostgres:
		return c.Remote.DatabaseURL != ""
	case RemoteMongo:
		return c.Remote.MongoURI != ""
	case RemoteMemory:
		return true
	}
	return false
}
