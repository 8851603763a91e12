package config

import (
	"time"

	"github.com/caarlos0/env/v9"
)

type Config struct {
	Port       string `env:"PORT" envDefault:"8080"`
	DBUser     string `env:"DB_USER,required"`
	DBPassword string `env:"DB_PASSWORD,required"`
	DBHost     string `env:"DB_HOST,required"` // e.g. tcp(host:3306) or unix(/cloudsql/instance)
	DBName     string `env:"DB_NAME,required"`
	DBPort     string `env:"DB_PORT" envDefault:"3306"`
	// Cloud SQL connector; overrides DBHost when set.
	InstanceConnectionName string `env:"INSTANCE_CONNECTION_NAME"`

	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	CartTTL       time.Duration `env:"CART_TTL" envDefault:"720h"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	GatewayCurrency     string `env:"GATEWAY_CURRENCY" envDefault:"usd"`
	// Store base unit -> one gateway major unit. Kept as text so it parses into a decimal exactly.
	GatewayExchangeRate string `env:"GATEWAY_EXCHANGE_RATE" envDefault:"0.000041"`

	FirebaseProjectID string `env:"FIREBASE_PROJECT_ID"`
	StaffClaim        string `env:"STAFF_CLAIM" envDefault:"staff"`

	ReconcileAfter time.Duration `env:"RECONCILE_AFTER" envDefault:"30m"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
