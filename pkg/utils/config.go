package utils

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Token    TokenConfig
	Order    OrderConfig
	Email    EmailConfig
}

type AppConfig struct {
	Name            string
	Port            string
	Debug           bool
	LogPath         string
	FrontendURL     string
	CORSOrigin      string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Name         string
	User         string
	Password     string
	MaxConns     int32
	QueryTimeout time.Duration
	AutoMigrate  bool
}

type JWTConfig struct {
	Secret            string
	ExpiryHours       int
	TempExpiryMinutes int
}

// TokenConfig holds the lifetimes of single-use verification tokens.
type TokenConfig struct {
	VerificationExpiryMinutes int
	ResetExpiryMinutes        int
}

type OrderConfig struct {
	RequireVerifiedEmail bool
	CommitRetries        int
}

type EmailConfig struct {
	Provider     string
	Host         string
	Port         int
	User         string
	Password     string
	From         string
	Encryption   string
	ResendAPIKey string
	KafkaBrokers []string
	KafkaTopic   string
}

func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")

	// Set defaults
	v.SetDefault("APP_NAME", "MyShop")
	v.SetDefault("PORT", "5000")
	v.SetDefault("DEBUG", false)
	v.SetDefault("LOG_PATH", "logs/")
	v.SetDefault("FRONTEND_URL", "http://localhost:5173")
	v.SetDefault("CLIENT_URL", "http://localhost:5173")
	v.SetDefault("SHUTDOWN_TIMEOUT_SECONDS", 10)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_QUERY_TIMEOUT_SECONDS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("JWT_EXPIRY_HOURS", 168)
	v.SetDefault("JWT_TEMP_EXPIRY_MINUTES", 60)
	v.SetDefault("VERIFICATION_TOKEN_EXPIRY_MINUTES", 15)
	v.SetDefault("RESET_TOKEN_EXPIRY_MINUTES", 15)
	v.SetDefault("ORDER_REQUIRE_VERIFIED_EMAIL", false)
	v.SetDefault("ORDER_COMMIT_RETRIES", 3)
	v.SetDefault("EMAIL_PROVIDER", "")
	v.SetDefault("EMAIL_HOST", "smtp.gmail.com")
	v.SetDefault("EMAIL_PORT", 587)
	v.SetDefault("EMAIL_ENCRYPTION", "starttls")
	v.SetDefault("KAFKA_TOPIC", "storefront.mail")

	if err := v.ReadInConfig(); err != nil {
		// .env is optional, the environment alone is enough
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	v.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:            v.GetString("APP_NAME"),
			Port:            v.GetString("PORT"),
			Debug:           v.GetBool("DEBUG"),
			LogPath:         v.GetString("LOG_PATH"),
			FrontendURL:     strings.TrimRight(v.GetString("FRONTEND_URL"), "/"),
			CORSOrigin:      v.GetString("CLIENT_URL"),
			ShutdownTimeout: time.Duration(v.GetInt("SHUTDOWN_TIMEOUT_SECONDS")) * time.Second,
		},
		Database: DatabaseConfig{
			Host:         v.GetString("DB_HOST"),
			Port:         v.GetString("DB_PORT"),
			Name:         v.GetString("DB_NAME"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASS"),
			MaxConns:     v.GetInt32("DB_MAX_CONNS"),
			QueryTimeout: time.Duration(v.GetInt("DB_QUERY_TIMEOUT_SECONDS")) * time.Second,
			AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
		},
		JWT: JWTConfig{
			Secret:            v.GetString("JWT_SECRET"),
			ExpiryHours:       v.GetInt("JWT_EXPIRY_HOURS"),
			TempExpiryMinutes: v.GetInt("JWT_TEMP_EXPIRY_MINUTES"),
		},
		Token: TokenConfig{
			VerificationExpiryMinutes: v.GetInt("VERIFICATION_TOKEN_EXPIRY_MINUTES"),
			ResetExpiryMinutes:        v.GetInt("RESET_TOKEN_EXPIRY_MINUTES"),
		},
		Order: OrderConfig{
			RequireVerifiedEmail: v.GetBool("ORDER_REQUIRE_VERIFIED_EMAIL"),
			CommitRetries:        v.GetInt("ORDER_COMMIT_RETRIES"),
		},
		Email: EmailConfig{
			Provider:     strings.ToLower(v.GetString("EMAIL_PROVIDER")),
			Host:         v.GetString("EMAIL_HOST"),
			Port:         v.GetInt("EMAIL_PORT"),
			User:         v.GetString("EMAIL_USER"),
			Password:     v.GetString("EMAIL_PASSWORD"),
			From:         v.GetString("EMAIL_FROM"),
			Encryption:   v.GetString("EMAIL_ENCRYPTION"),
			ResendAPIKey: v.GetString("RESEND_API_KEY"),
			KafkaBrokers: splitList(v.GetString("KAFKA_BROKERS")),
			KafkaTopic:   v.GetString("KAFKA_TOPIC"),
		},
	}

	if config.Email.From == "" {
		config.Email.From = config.Email.User
	}

	if config.JWT.Secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return config, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
