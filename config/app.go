package config

import "time"

type App struct {
	Port                string `env:"APP_PORT" default:"8080"`
	DatabaseURL         string `env:"DATABASE_URL,required"`
	JWTSecret           string `env:"JWT_SECRET,required"`
	StripeAPIKey        string `env:"STRIPE_API_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	SMTPAddr            string `env:"SMTP_ADDR"`
	SMTPFrom            string `env:"SMTP_FROM" default:"noreply@rentandreturn.local"`
	SweepInterval       time.Duration
	Env                 string `env:"APP_ENV" default:"dev"`
}
