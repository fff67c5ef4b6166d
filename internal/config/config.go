package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	SandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	ProductionBaseURL = "https://api.safaricom.co.ke"
)

type Config struct {
	AppPort          string
	Debug            bool
	HMACSecret       string
	SigMaxAgeSeconds int64
	AllowedOrigins   []string

	DBDriver      string
	SQLiteDSN     string
	MySQLDSN      string
	MongoURI      string
	MongoDatabase string

	KafkaBrokers []string
	RedisAddr    string

	Mpesa Mpesa
}

// Mpesa holds the gateway credentials and endpoint selection.
type Mpesa struct {
	ConsumerKey       string
	ConsumerSecret    string
	Passkey           string
	BusinessShortCode string
	CallbackURL       string
	Sandbox           bool
	BaseURL           string
	HTTPTimeout       time.Duration
	Timezone          string
}

// Endpoint returns the gateway base URL without a trailing slash.
func (m Mpesa) Endpoint() string {
	if m.BaseURL != "" {
		return strings.TrimRight(m.BaseURL, "/")
	}
	if m.Sandbox {
		return SandboxBaseURL
	}
	return ProductionBaseURL
}

// Location is the zone used for gateway timestamps and TransactionDate parsing.
func (m Mpesa) Location() *time.Location {
	if m.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func defaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("APP_DEBUG", false)
	v.SetDefault("HMAC_SECRET", "")
	v.SetDefault("SIG_MAX_AGE_SECONDS", 300)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("SQLITE_DSN", "./mpesa.db")
	v.SetDefault("MONGO_DATABASE", "mpesa")
	v.SetDefault("MPESA_SANDBOX", true)
	v.SetDefault("MPESA_HTTP_TIMEOUT", "30s")
}

// Load reads the environment and, when MPESA_CONFIG_FILE is set, a YAML file
// underneath it. Environment values win over the file.
func Load() (Config, error) {
	v := viper.New()
	defaults(v)
	v.AutomaticEnv()

	if path := v.GetString("MPESA_CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	timeout, err := time.ParseDuration(v.GetString("MPESA_HTTP_TIMEOUT"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid MPESA_HTTP_TIMEOUT: %w", err)
	}

	return Config{
		AppPort:          v.GetString("APP_PORT"),
		Debug:            v.GetBool("APP_DEBUG"),
		HMACSecret:       v.GetString("HMAC_SECRET"),
		SigMaxAgeSeconds: v.GetInt64("SIG_MAX_AGE_SECONDS"),
		AllowedOrigins:   splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		DBDriver:         strings.ToLower(v.GetString("DB_DRIVER")),
		SQLiteDSN:        v.GetString("SQLITE_DSN"),
		MySQLDSN:         v.GetString("MYSQL_DSN"),
		MongoURI:         v.GetString("MONGO_URI"),
		MongoDatabase:    v.GetString("MONGO_DATABASE"),
		KafkaBrokers:     splitList(v.GetString("KAFKA_BROKERS")),
		RedisAddr:        v.GetString("REDIS_ADDR"),
		Mpesa: Mpesa{
			ConsumerKey:       v.GetString("MPESA_CONSUMER_KEY"),
			ConsumerSecret:    v.GetString("MPESA_CONSUMER_SECRET"),
			Passkey:           v.GetString("MPESA_PASSKEY"),
			BusinessShortCode: v.GetString("MPESA_BUSINESS_SHORT_CODE"),
			CallbackURL:       v.GetString("MPESA_CALLBACK_URL"),
			Sandbox:           v.GetBool("MPESA_SANDBOX"),
			BaseURL:           v.GetString("MPESA_BASE_URL"),
			HTTPTimeout:       timeout,
			Timezone:          v.GetString("MPESA_TIMEZONE"),
		},
	}, nil
}

// Validate reports every required key that is missing.
func (c Config) Validate() error {
	var missing []string
	check := func(key, val string) {
		if val == "" {
			missing = append(missing, key)
		}
	}
	check("MPESA_CONSUMER_KEY", c.Mpesa.ConsumerKey)
	check("MPESA_CONSUMER_SECRET", c.Mpesa.ConsumerSecret)
	check("MPESA_PASSKEY", c.Mpesa.Passkey)
	check("MPESA_BUSINESS_SHORT_CODE", c.Mpesa.BusinessShortCode)
	check("MPESA_CALLBACK_URL", c.Mpesa.CallbackURL)

	switch c.DBDriver {
	case "sqlite":
		check("SQLITE_DSN", c.SQLiteDSN)
	case "mysql":
		check("MYSQL_DSN", c.MySQLDSN)
	case "mongo":
		check("MONGO_URI", c.MongoURI)
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
