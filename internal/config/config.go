package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for our application
type Config struct {
	Port                     string
	Origin                   string
	Environment              string
	JWTSecret                string
	JWTExpirationMinutes     int
	VerificationTokenExpiry  int // hours
	PasswordResetTokenExpiry int // minutes
	Database                 DatabaseConfig
	Mailer                   MailerConfig
	FrontendURL              string
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// MailerConfig holds SMTP settings for outbound notifications.
type MailerConfig struct {
	SMTPHost string
	SMTPPort string
	Username string
	Password string
	Sender   string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "hospital"),
	}

	// Build DSN (Data Source Name) for MySQL connection
	dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)

	mailerConfig := MailerConfig{
		SMTPHost: getEnv("SMTP_HOST", ""),
		SMTPPort: getEnv("SMTP_PORT", "587"),
		Username: getEnv("SMTP_USERNAME", ""),
		Password: getEnv("SMTP_PASSWORD", ""),
		Sender:   getEnv("SMTP_SENDER", ""),
	}

	jwtExpMinutes, err := strconv.Atoi(getEnv("JWT_EXPIRATION_MINUTES", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MINUTES: %w", err)
	}

	verificationTokenExpiry, err := strconv.Atoi(getEnv("VERIFICATION_TOKEN_EXPIRY_HOURS", "24"))
	if err != nil {
		return nil, fmt.Errorf("invalid VERIFICATION_TOKEN_EXPIRY_HOURS: %w", err)
	}

	passwordResetTokenExpiry, err := strconv.Atoi(getEnv("PASSWORD_RESET_TOKEN_EXPIRY_MINUTES", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid PASSWORD_RESET_TOKEN_EXPIRY_MINUTES: %w", err)
	}

	return &Config{
		Port:                     getEnv("PORT", "3000"),
		Origin:                   getEnv("ORIGIN", "http://localhost:5173"),
		Environment:              getEnv("APP_ENV", "development"),
		JWTSecret:                getEnv("JWT_SECRET", "default_jwt_secret"),
		JWTExpirationMinutes:     jwtExpMinutes,
		VerificationTokenExpiry:  verificationTokenExpiry,
		PasswordResetTokenExpiry: passwordResetTokenExpiry,
		Database:                 dbConfig,
		Mailer:                   mailerConfig,
		FrontendURL:              getEnv("FRONTEND_URL", "http://localhost:5173"),
	}, nil
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
