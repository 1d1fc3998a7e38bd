package config

import (
	"net/url"
	"time"
)

// Config is the process environment surface, read with prefix CHAIR
// (e.g. CHAIR_DB_HOST, CHAIR_PORT).
type Config struct {
	Port string `default:"3000"`

	DBHost     string `split_words:"true" required:"true"`
	DBUser     string `split_words:"true" required:"true"`
	DBPassword string `split_words:"true"`
	DBName     string `split_words:"true" required:"true"`
	DBSSLMode  string `envconfig:"DB_SSL_MODE" default:"require"`
	DBMaxConns int32  `split_words:"true" default:"10"`

	CORSAllowOrigin string `split_words:"true" default:"*"`
	StaticDir       string `split_words:"true" default:"public"`

	IngestRateLimit   int           `split_words:"true" default:"600"`
	IngestRateWindow  time.Duration `split_words:"true" default:"1m"`
	TrustProxyHeaders bool          `split_words:"true"`

	DeviceOfflineTimeout time.Duration `split_words:"true" default:"45s"`
	MonitorInterval      time.Duration `split_words:"true" default:"5s"`

	MQTTBroker   string `split_words:"true"`
	MQTTClientID string `split_words:"true" default:"chair-backend"`
	MQTTUsername string `split_words:"true"`
	MQTTPassword string `split_words:"true"`
	MQTTTopic    string `split_words:"true" default:"chair/+/vitals"`
}

// DatabaseURL assembles a postgres connection string from the discrete DB_*
// fields, which mirror the variables the deployment already sets.
func (config Config) DatabaseURL() string {
	userInfo := url.User(config.DBUser)
	if config.DBPassword != "" {
		userInfo = url.UserPassword(config.DBUser, config.DBPassword)
	}

	connection := url.URL{
		Scheme:   "postgres",
		User:     userInfo,
		Host:     config.DBHost,
		Path:     "/" + config.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(config.DBSSLMode),
	}
	return connection.String()
}
