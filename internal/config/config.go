package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT (issued by the accounts service, verified here)
	JWTSecret string

	// Admin
	AdminEmails  string
	AdminUserIDs string
	AdminToken   string

	// Payments
	RazorpayKeyID         string
	RazorpayKeySecret     string
	PaymentCurrency       string
	PendingPaymentTimeout time.Duration

	// Background jobs
	ExpirySweepInterval  time.Duration
	PendingSweepInterval time.Duration
	LogRetention         time.Duration
	RedisURL             string

	// Email
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPSender   string

	// Server
	Port        string
	CORSOrigins string
	AppEnv      string
	SentryDSN   string
}

func Load() *Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "astro_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		AdminEmails:  getEnv("ADMIN_EMAILS", ""),
		AdminUserIDs: getEnv("ADMIN_USER_IDS", ""),
		AdminToken:   getEnv("ADMIN_TOKEN", ""),

		RazorpayKeyID:         getEnv("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret:     getEnv("RAZORPAY_KEY_SECRET", ""),
		PaymentCurrency:       getEnv("PAYMENT_CURRENCY", "INR"),
		PendingPaymentTimeout: parseDuration(getEnv("PENDING_PAYMENT_TIMEOUT", "24h"), 24*time.Hour),

		ExpirySweepInterval:  parseDuration(getEnv("EXPIRY_SWEEP_INTERVAL", "24h"), 24*time.Hour),
		PendingSweepInterval: parseDuration(getEnv("PENDING_SWEEP_INTERVAL", "1h"), time.Hour),
		LogRetention:         parseDuration(getEnv("LOG_RETENTION", "720h"), 30*24*time.Hour),
		RedisURL:             getEnv("REDIS_URL", ""),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPSender:   getEnv("SMTP_SENDER", ""),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		AppEnv:      getEnv("APP_ENV", "development"),
		SentryDSN:   getEnv("SENTRY_DSN", ""),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
