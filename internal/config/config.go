package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config represents the application configuration structure.
// It contains settings for the environment, logging, the HTTP server, the chat
// relay, content validation, tracing, alerting and graceful shutdown behavior.
type Config struct {
	// Environment specifies the current running environment (development, production, etc.)
	Environment string `env:"ENVIRONMENT" env-default:"development" yaml:"environment"`
	// LogLevel overrides the environment's default log level. Changes are applied without restart.
	LogLevel string `env:"LOG_LEVEL" env-default:"" yaml:"logLevel"`

	// HTTP contains all HTTP server related configurations
	HTTP struct {
		// Addr is the address and port the HTTP server will listen on
		Addr string `env:"HTTP_ADDR" env-default:":3000" yaml:"addr"`
		// ReadTimeout is the maximum duration for reading the entire request, including the body
		ReadTimeout time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"1m" yaml:"readTimeout"`
		// ReadHeaderTimeout is the amount of time allowed to read request headers
		ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" env-default:"10s" yaml:"readHeaderTimeout"`
		// WriteTimeout is the maximum duration before timing out writes of the response
		WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"2m" yaml:"writeTimeout"`
		// IdleTimeout is the maximum amount of time to wait for the next request when keep-alives are enabled
		IdleTimeout time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"2m" yaml:"idleTimeout"`
		// RequestTimeout is the maximum time allowed for processing a single request
		RequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT" env-default:"10s" yaml:"requestTimeout"`
		// MaxHeaderBytes controls the maximum number of bytes the server will read parsing the request header
		MaxHeaderBytes int `env:"HTTP_MAX_HEADER_BYTES" env-default:"0" yaml:"maxHeaderBytes"`
		// MetricsPath defines the URL path where metrics are exposed
		MetricsPath string `env:"HTTP_METRICS_PATH" env-default:"/metrics" yaml:"metricsPath"`
		// AllowedOrigins lists the origins allowed by CORS and by the WebSocket upgrade. "*" allows any.
		AllowedOrigins []string `env:"HTTP_ALLOWED_ORIGINS" env-default:"*" env-separator:"," yaml:"allowedOrigins"`
	} `yaml:"http"`

	// Chat contains the WebSocket relay configurations
	Chat struct {
		// MaxMessageSize is the largest inbound frame, in bytes, a client may send
		MaxMessageSize int64 `env:"CHAT_MAX_MESSAGE_SIZE" env-default:"65536" yaml:"maxMessageSize"`
		// SendBuffer is the number of outbound messages queued per client before it is dropped
		SendBuffer int `env:"CHAT_SEND_BUFFER" env-default:"256" yaml:"sendBuffer"`
		// WriteWait is the time allowed to write a message to a client
		WriteWait time.Duration `env:"CHAT_WRITE_WAIT" env-default:"10s" yaml:"writeWait"`
		// PongWait is the time allowed to read the next pong from a client
		PongWait time.Duration `env:"CHAT_PONG_WAIT" env-default:"60s" yaml:"pongWait"`
		// PingPeriod is the interval between pings; it must be shorter than PongWait
		PingPeriod time.Duration `env:"CHAT_PING_PERIOD" env-default:"54s" yaml:"pingPeriod"`
	} `yaml:"chat"`

	// Content contains message validation configurations
	Content struct {
		// TrustedDomainsFile is an optional YAML file replacing the built-in media allow-list
		TrustedDomainsFile string `env:"CONTENT_TRUSTED_DOMAINS_FILE" env-default:"" yaml:"trustedDomainsFile"`
	} `yaml:"content"`

	// Tracing contains OpenTelemetry tracing configurations
	Tracing struct {
		// Endpoint is the OTLP gRPC collector URL; tracing is disabled when empty
		Endpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:"" yaml:"endpoint"`
		// ServiceName is reported as the service.name resource attribute
		ServiceName string `env:"OTEL_SERVICE_NAME" env-default:"chatrelay" yaml:"serviceName"`
		// ServiceVersion is reported as the service.version resource attribute
		ServiceVersion string `env:"SERVICE_VERSION" env-default:"1.0.0" yaml:"serviceVersion"`
		// SampleRatio is the fraction of traces sampled, between 0 and 1
		SampleRatio float64 `env:"OTEL_SAMPLE_RATIO" env-default:"1" yaml:"sampleRatio"`
	} `yaml:"tracing"`

	// Alert contains the error alert webhook configurations
	Alert struct {
		// WebhookURL is the Discord-compatible webhook; alerts are only logged when empty
		WebhookURL string `env:"ALERT_WEBHOOK_URL" env-default:"" yaml:"webhookURL"`
		// Timeout bounds a single webhook delivery
		Timeout time.Duration `env:"ALERT_TIMEOUT" env-default:"5s" yaml:"timeout"`
		// QueueSize is the number of pending alerts kept before new ones are dropped
		QueueSize int `env:"ALERT_QUEUE_SIZE" env-default:"64" yaml:"queueSize"`
	} `yaml:"alert"`

	// GracefulShutdownTimeout is the maximum duration to wait for ongoing requests to complete during shutdown
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_TIMEOUT" env-default:"10s" yaml:"gracefulShutdownTimeout"` //nolint: lll
}

// Load receives the path for yaml config file and returns a filled Config struct.
// Variables from a .env file in the working directory are exported first.
// A missing config file is not an error: the configuration is then read from
// the environment alone.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("could not load .env file: %w", err)
	}

	var cfg Config
	if _, err := os.Stat(configPath); configPath == "" || errors.Is(err, fs.ErrNotExist) {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("could not read config from environment: %w", err)
		}
	} else if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("could not read config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the relations between settings that cleanenv cannot express.
func (c *Config) Validate() error {
	switch {
	case c.Chat.PingPeriod <= 0 || c.Chat.PingPeriod >= c.Chat.PongWait:
		return fmt.Errorf("chat ping period %s must be positive and shorter than pong wait %s",
			c.Chat.PingPeriod, c.Chat.PongWait)
	case c.Chat.MaxMessageSize <= 0:
		return fmt.Errorf("chat max message size must be positive, got %d", c.Chat.MaxMessageSize)
	case c.Chat.SendBuffer <= 0:
		return fmt.Errorf("chat send buffer must be positive, got %d", c.Chat.SendBuffer)
	case c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1:
		return fmt.Errorf("tracing sample ratio must be between 0 and 1, got %v", c.Tracing.SampleRatio)
	}

	return nil
}
