package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	ProviderAdyen     = "adyen"
	ProviderBraintree = "braintree"
)

type Config struct {
	Environment    Environment
	Log            Log
	HTTP           HTTPServer
	BaseURL        string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseURL    string `env:"DATABASE_URL" envDefault:"storefront.db"`

	Auth      Auth      `envPrefix:"AUTH_"`
	Checkout  Checkout  `envPrefix:"CHECKOUT_"`
	Adyen     Adyen     `envPrefix:"ADYEN_"`
	BrainTree Braintree `envPrefix:"BRAINTREE_"`
	Redis     Redis     `envPrefix:"REDIS_"`
	Kafka     Kafka     `envPrefix:"KAFKA_"`
}

type Auth struct {
	JWTSecret string `env:"JWT_SECRET"`
}

type Checkout struct {
	Provider             string        `env:"PROVIDER" envDefault:"adyen"`
	Currency             string        `env:"CURRENCY" envDefault:"USD"`
	CountryCode          string        `env:"COUNTRY_CODE" envDefault:"US"`
	SessionTTL           time.Duration `env:"SESSION_TTL" envDefault:"1h"`
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"10m"`
}

type Adyen struct {
	BaseApiURL      string `env:"BASE_API_URL" envDefault:"https://checkout-test.adyen.com/v71"`
	APIKey          string `env:"API_KEY"`
	MerchantAccount string `env:"MERCHANT_ACCOUNT"`
	HMACKey         string `env:"HMAC_KEY"`
}

type Braintree struct {
	Environment string `env:"ENVIRONMENT"`
	MerchantID  string `env:"MERCHANT_ID"`
	PublicKey   string `env:"PUBLIC_KEY"`
	PrivateKey  string `env:"PRIVATE_KEY"`
}

type Redis struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type Kafka struct {
	Brokers    []string `env:"BROKERS" envSeparator:","`
	OrderTopic string   `env:"ORDER_TOPIC" envDefault:"order.status.changed"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host         string        `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port         string        `env:"HTTP_PORT" envDefault:"8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
}

// Validate checks the settings the process cannot start without. It runs once
// at startup so a misconfigured provider fails fast instead of on first checkout.
func (c *Config) Validate() error {
	var errs []error

	switch c.DatabaseDriver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET is required"))
	}
	if c.Adyen.HMACKey == "" {
		errs = append(errs, errors.New("ADYEN_HMAC_KEY is required to verify notifications"))
	}

	switch c.Checkout.Provider {
	case ProviderAdyen:
		if c.Adyen.APIKey == "" || c.Adyen.MerchantAccount == "" {
			errs = append(errs, errors.New("ADYEN_API_KEY and ADYEN_MERCHANT_ACCOUNT are required"))
		}
	case ProviderBraintree:
		if c.BrainTree.MerchantID == "" || c.BrainTree.PublicKey == "" || c.BrainTree.PrivateKey == "" {
			errs = append(errs, errors.New("BRAINTREE_MERCHANT_ID, BRAINTREE_PUBLIC_KEY and BRAINTREE_PRIVATE_KEY are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported CHECKOUT_PROVIDER %q", c.Checkout.Provider))
	}

	if len(c.Checkout.Currency) != 3 {
		errs = append(errs, fmt.Errorf("CHECKOUT_CURRENCY must be an ISO 4217 code, got %q", c.Checkout.Currency))
	}
	if c.Checkout.SessionTTL <= 0 {
		errs = append(errs, errors.New("CHECKOUT_SESSION_TTL must be positive"))
	}
	if c.Checkout.SessionSweepInterval <= 0 {
		errs = append(errs, errors.New("CHECKOUT_SESSION_SWEEP_INTERVAL must be positive"))
	}

	return errors.Join(errs...)
}
