package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/farellandr/aquapark/internal/events"
	"github.com/farellandr/aquapark/internal/models"
	"github.com/farellandr/aquapark/internal/payment"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Config struct {
	Environment string
	Port        string
	LogLevel    string
	BaseURL     string
	JWTSecret   string

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPath     string

	PaymentProvider  string
	ProcessorTimeout time.Duration
	SandboxToken     string
	Doku             payment.DokuConfig
	Xendit           payment.XenditConfig

	RedisURL      string
	CacheTTL      time.Duration
	AMQPURL       string
	AMQPExchange  string
	AdminEmail    string
	AdminPassword string
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		BaseURL:     strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPath:     getEnv("DB_PATH", "aquapark.db"),

		PaymentProvider: getEnv("PAYMENT_PROVIDER", "sandbox"),
		SandboxToken:    os.Getenv("SANDBOX_CALLBACK_TOKEN"),

		RedisURL:      os.Getenv("REDIS_URL"),
		AMQPURL:       os.Getenv("AMQP_URL"),
		AMQPExchange:  getEnv("AMQP_EXCHANGE", "aquapark.orders"),
		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}

	var err error
	if cfg.ProcessorTimeout, err = getDuration("PAYMENT_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getDuration("AVAILABILITY_CACHE_TTL", 30*time.Second); err != nil {
		return nil, err
	}

	returnURL := cfg.BaseURL + "/v1/payments/return"
	cfg.Doku = payment.DokuConfig{
		BaseURL:          getEnv("DOKU_BASE_URL", "https://api-sandbox.doku.com"),
		ClientID:         os.Getenv("DOKU_CLIENT_ID"),
		SecretKey:        os.Getenv("DOKU_SECRET_KEY"),
		NotificationPath: getEnv("DOKU_NOTIFICATION_PATH", "/v1/payments/webhook"),
		CallbackURL:      returnURL,
		Currency:         getEnv("PAYMENT_CURRENCY", "IDR"),
		Timeout:          cfg.ProcessorTimeout,
	}
	cfg.Xendit = payment.XenditConfig{
		SecretKey:          os.Getenv("XENDIT_SECRET_KEY"),
		CallbackToken:      os.Getenv("XENDIT_CALLBACK_TOKEN"),
		SuccessRedirectURL: returnURL,
		FailureRedirectURL: returnURL,
		Currency:           getEnv("PAYMENT_CURRENCY", "IDR"),
		Timeout:            cfg.ProcessorTimeout,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	var errs []error
	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch cfg.DBDriver {
	case "postgres":
		if cfg.DBHost == "" || cfg.DBName == "" {
			errs = append(errs, errors.New("DB_HOST and DB_NAME are required for postgres"))
		}
	case "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver))
	}
	switch cfg.PaymentProvider {
	case "sandbox":
		if !cfg.IsDevelopment() {
			errs = append(errs, fmt.Errorf("PAYMENT_PROVIDER=sandbox is only allowed when APP_ENV=development, got %q", cfg.Environment))
		}
		if cfg.SandboxToken == "" {
			errs = append(errs, errors.New("SANDBOX_CALLBACK_TOKEN is required for the sandbox provider"))
		}
	case "doku":
		if cfg.Doku.ClientID == "" || cfg.Doku.SecretKey == "" {
			errs = append(errs, errors.New("DOKU_CLIENT_ID and DOKU_SECRET_KEY are required"))
		}
	case "xendit":
		if cfg.Xendit.SecretKey == "" || cfg.Xendit.CallbackToken == "" {
			errs = append(errs, errors.New("XENDIT_SECRET_KEY and XENDIT_CALLBACK_TOKEN are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown PAYMENT_PROVIDER %q", cfg.PaymentProvider))
	}
	return errors.Join(errs...)
}

func (cfg *Config) IsDevelopment() bool {
	return cfg.Environment == "development"
}

func InitDatabase(cfg *Config, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DBPath)
	default:
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort,
		)
		dialector = postgres.Open(dsn)
	}

	gormLog := gormlogger.Default.LogMode(gormlogger.Warn)
	if cfg.LogLevel == "debug" {
		gormLog = gormlogger.Default.LogMode(gormlogger.Info)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		return nil, err
	}

	if err := seedTicketTypes(db); err != nil {
		return nil, err
	}
	if err := seedAdmin(db, cfg, log); err != nil {
		return nil, err
	}
	return db, nil
}

func seedTicketTypes(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.TicketType{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	tickets := []models.TicketType{
		{TicketID: "adult", Name: "Adult", Price: 8990, Description: "Full-day access for visitors 12 and over.", Features: []string{"All pools", "All slides"}, IsActive: true},
		{TicketID: "child", Name: "Child", Price: 4990, Description: "Full-day access for children aged 3 to 11.", Features: []string{"All pools", "Kids area"}, IsActive: true},
		{TicketID: "senior", Name: "Senior", Price: 4490, Description: "Full-day access for visitors 60 and over.", Features: []string{"All pools", "Lazy river"}, IsActive: true},
	}
	return db.Create(&tickets).Error
}

func seedAdmin(db *gorm.DB, cfg *Config, log *zap.Logger) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}
	email := strings.ToLower(cfg.AdminEmail)
	var existing models.Staff
	if result := db.Where("email = ?", email).First(&existing); result.Error == nil {
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := models.Staff{Email: email, Name: "Administrator", Password: string(hashed), Role: models.RoleAdmin, IsActive: true}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}
	log.Info("seeded admin account", zap.String("email", email))
	return nil
}

func InitPaymentProcessor(cfg *Config) payment.Processor {
	switch cfg.PaymentProvider {
	case "doku":
		return payment.NewDokuProcessor(cfg.Doku)
	case "xendit":
		return payment.NewXenditProcessor(cfg.Xendit)
	default:
		return payment.NewSandboxProcessor(cfg.BaseURL, cfg.SandboxToken)
	}
}

// InitRedis returns nil when REDIS_URL is unset; callers treat that as
// caching disabled.
func InitRedis(ctx context.Context, cfg *Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func InitPublisher(cfg *Config, log *zap.Logger) events.Publisher {
	if cfg.AMQPURL == "" {
		return events.NoopPublisher{}
	}
	return events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
}
