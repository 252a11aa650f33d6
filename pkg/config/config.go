package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/gagliardetto/solana-go"
	log "github.com/sirupsen/logrus"
)

// Config aggregates every configuration section. Fields are populated from
// environment variables; nested sections are parsed with their envPrefix.
type Config struct {
	Env string `env:"ENV" envDefault:"dev"`

	HTTP     HTTP     `envPrefix:"HTTP_"`
	Log      Log      `envPrefix:"LOG_"`
	Postgres Postgres `envPrefix:"DB_"`
	RabbitMQ Broker   `envPrefix:"RABBITMQ_"`
	Keystore Keystore `envPrefix:"KEYSTORE_"`
	Program  Program  `envPrefix:"PROGRAM_"`
	Schedule Schedule `envPrefix:"SCHEDULE_"`
}

type HTTP struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	RateLimit      float64  `env:"RATE_LIMIT" envDefault:"10"`
	RateBurst      int      `env:"RATE_BURST" envDefault:"20"`
	// DevRoutes exposes the endpoints that mint tokens on the local ledger.
	DevRoutes bool `env:"DEV_ROUTES" envDefault:"false"`
}

type Log struct {
	Level string `env:"LEVEL" envDefault:"info"`
	JSON  bool   `env:"JSON" envDefault:"true"`
}

type Postgres struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"postgres"`
	Password string `env:"PASSWORD"`
	Name     string `env:"NAME" envDefault:"fundraiser"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`
	TimeZone string `env:"TIMEZONE" envDefault:"UTC"`
}

// DSN returns the connection string understood by the postgres driver
func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		p.Host, p.User, p.Password, p.Name, p.Port, p.SSLMode, p.TimeZone)
}

type Broker struct {
	Host       string `env:"HOST"`
	Port       string `env:"PORT" envDefault:"5672"`
	User       string `env:"USER" envDefault:"guest"`
	Password   string `env:"PASSWORD" envDefault:"guest"`
	EventQueue string `env:"EVENT_QUEUE" envDefault:"escrow_events"`
	MaxRetries int    `env:"MAX_RETRIES" envDefault:"10"`
}

// Enabled reports whether a broker is configured
func (r Broker) Enabled() bool {
	return r.Host != ""
}

// URL returns the AMQP connection url
func (r Broker) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", r.User, r.Password, r.Host, r.Port)
}

type Keystore struct {
	Dir string `env:"DIR" envDefault:"configs/keystore"`
}

type Program struct {
	ID string `env:"ID" envDefault:"CG1q69YqagtgKi4G22pNM3WPYeqs1MEBe79qAZGU4FNc"`
	// Airdrop is the lamports credited to every new wallet on the local ledger.
	Airdrop uint64 `env:"AIRDROP_LAMPORTS" envDefault:"1000000000"`
}

// PublicKey parses the configured program id
func (p Program) PublicKey() (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(p.ID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid program id %q: %w", p.ID, err)
	}
	return key, nil
}

type Schedule struct {
	ExpirySweep string `env:"EXPIRY_SWEEP" envDefault:"@every 1m"`
}

// Load reads the configuration from the environment
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SetupLogger applies the log section to the standard logrus logger
func SetupLogger(cfg Log) {
	if cfg.JSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.Warnf("unknown log level %q, using info", cfg.Level)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
