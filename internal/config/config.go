package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Clinic
	ClinicName       string
	ClinicTimezone   string
	ClinicPhone      string
	WhatsAppNumber   string
	WhatsAppGreeting string

	// Workflow timing
	SubmitDelay     time.Duration
	NotificationTTL time.Duration
	SessionIdleTTL  time.Duration
	SweepInterval   time.Duration

	// HTTP
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	RateLimitBackend   string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	NotificationBackend string

	// Backend hand-off
	SubmitTransport string
	SubmitQueueURL  string
	AMQPURL         string
	AMQPQueue       string
	HandoffTimeout  time.Duration

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Confirmation email
	EmailProvider  string
	SendGridAPIKey string
	EmailFrom      string
	EmailFromName  string

	// Tracing
	OTELEndpoint    string
	OTELInsecure    bool
	OTELServiceName string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		ClinicName:       getEnv("CLINIC_NAME", "Consultorio Médico"),
		ClinicTimezone:   getEnv("CLINIC_TIMEZONE", "America/Mexico_City"),
		ClinicPhone:      getEnv("CLINIC_PHONE", "+525512345678"),
		WhatsAppNumber:   getEnv("WHATSAPP_NUMBER", "525512345678"),
		WhatsAppGreeting: getEnv("WHATSAPP_GREETING", "Hola, me gustaría agendar una cita médica."),

		SubmitDelay:     getEnvAsDuration("SUBMIT_DELAY", 2*time.Second),
		NotificationTTL: getEnvAsDuration("NOTIFICATION_TTL", 5*time.Second),
		SessionIdleTTL:  getEnvAsDuration("SESSION_IDLE_TTL", 30*time.Minute),
		SweepInterval:   getEnvAsDuration("SWEEP_INTERVAL", time.Minute),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
		RateLimitBackend:   lower(getEnv("RATE_LIMIT_BACKEND", "memory")),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		NotificationBackend: lower(getEnv("NOTIFICATION_BACKEND", "memory")),

		SubmitTransport: lower(getEnv("SUBMIT_TRANSPORT", "log")),
		SubmitQueueURL:  getEnv("SUBMIT_QUEUE_URL", ""),
		AMQPURL:         getEnv("AMQP_URL", ""),
		AMQPQueue:       getEnv("AMQP_QUEUE", "appointment-requests"),
		HandoffTimeout:  getEnvAsDuration("HANDOFF_TIMEOUT", 10*time.Second),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		EmailProvider:  lower(getEnv("EMAIL_PROVIDER", "stub")),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		EmailFrom:      getEnv("EMAIL_FROM", ""),
		EmailFromName:  getEnv("EMAIL_FROM_NAME", "Consultorio Médico"),

		OTELEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:    getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELServiceName: getEnv("OTEL_SERVICE_NAME", "clinic-appointments"),
	}
}

// Location resolves ClinicTimezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return nil, fmt.Errorf("config: CLINIC_TIMEZONE %q: %w", c.ClinicTimezone, err)
	}
	return loc, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	for name, d := range map[string]time.Duration{
		"SUBMIT_DELAY":     c.SubmitDelay,
		"NOTIFICATION_TTL": c.NotificationTTL,
		"SESSION_IDLE_TTL": c.SessionIdleTTL,
		"SWEEP_INTERVAL":   c.SweepInterval,
		"HANDOFF_TIMEOUT":  c.HandoffTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("config: %s must be positive, got %s", name, d))
		}
	}
	if !oneOf(c.RateLimitBackend, "memory", "redis") {
		errs = append(errs, fmt.Errorf("config: unknown RATE_LIMIT_BACKEND %q", c.RateLimitBackend))
	}
	if !oneOf(c.NotificationBackend, "memory", "redis") {
		errs = append(errs, fmt.Errorf("config: unknown NOTIFICATION_BACKEND %q", c.NotificationBackend))
	}
	if (c.RateLimitBackend == "redis" || c.NotificationBackend == "redis") && strings.TrimSpace(c.RedisAddr) == "" {
		errs = append(errs, errors.New("config: REDIS_ADDR required for redis backends"))
	}
	switch c.SubmitTransport {
	case "log", "memory":
	case "sqs":
		if c.SubmitQueueURL == "" {
			errs = append(errs, errors.New("config: SUBMIT_QUEUE_URL required for sqs transport"))
		}
	case "amqp":
		if c.AMQPURL == "" {
			errs = append(errs, errors.New("config: AMQP_URL required for amqp transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown SUBMIT_TRANSPORT %q", c.SubmitTransport))
	}
	switch c.EmailProvider {
	case "stub", "ses":
	case "sendgrid":
		if c.SendGridAPIKey == "" {
			errs = append(errs, errors.New("config: SENDGRID_API_KEY required for sendgrid provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown EMAIL_PROVIDER %q", c.EmailProvider))
	}
	return errors.Join(errs...)
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping empty entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
