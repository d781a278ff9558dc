package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds every runtime setting the server needs.
type Config struct {
	Port          string
	MongoURI      string
	DBName        string
	JWTSecret     string
	TokenExpiry   time.Duration
	AllowedOrigin string
	SMTPHost      string
	SMTPPort      string
	SMTPSender    string
	SMTPPassword  string
}

// LoadConfig reads configuration from the environment, with .env as a
// convenience for local development.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, relying on environment variables")
	}

	expiry := 24 * time.Hour
	if raw := os.Getenv("TOKEN_EXPIRY"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			expiry = parsed
		} else {
			logrus.WithError(err).Warn("Invalid TOKEN_EXPIRY, using default")
		}
	}

	return &Config{
		Port:          getEnv("PORT", "8080"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:        getEnv("DB_NAME", "roadmap_tracker"),
		JWTSecret:     getEnv("JWT_SECRET", "dev-secret"),
		TokenExpiry:   expiry,
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "http://localhost:3000"),
		SMTPHost:      os.Getenv("SMTP_HOST"),
		SMTPPort:      getEnv("SMTP_PORT", "587"),
		SMTPSender:    os.Getenv("SMTP_SENDER"),
		SMTPPassword:  os.Getenv("SMTP_PASSWORD"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
