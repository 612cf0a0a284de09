package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Режимы хранилища
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Бэкенды медиа
const (
	MediaCloudinary = "cloudinary"
	MediaS3         = "s3"
)

// Config структура конфигурации
type Config struct {
	Port             string
	AppEnv           string
	LogLevel         slog.Level
	Storage          string
	TelegramBotToken string
	JWTSecret        string
	JWTTTL           time.Duration
	PageSize         int
	DatabaseURL      string
	DatabaseConfig   DatabaseConfig
	MediaBackend     string
	CloudinaryConfig CloudinaryConfig
	S3Config         S3Config
	RedisConfig      RedisConfig
	AuthRateLimit    RateLimitConfig
}

// DatabaseConfig содержит конфигурацию базы данных
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// CloudinaryConfig содержит конфигурацию для Cloudinary
type CloudinaryConfig struct {
	CloudName    string
	APIKey       string
	APISecret    string
	UploadPreset string
	Folder       string
}

// S3Config содержит конфигурацию S3-совместимого хранилища
type S3Config struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	PublicURL     string
	PresignExpiry time.Duration
}

// RedisConfig содержит конфигурацию Redis. Пустой адрес отключает отзыв токенов.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RateLimitConfig ограничение частоты запросов на один IP
type RateLimitConfig struct {
	PerSecond float64
	Burst     int
}

// IsDevelopment сообщает, запущено ли приложение в режиме разработки
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// LoadConfig загружает переменные из .env и окружения
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Info(".env файл не найден, используем переменные окружения")
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("PGHOST", "localhost"),
		Port:     getEnv("PGPORT", "5432"),
		User:     getEnv("PGUSER", "barter_user"),
		Password: getEnv("PGPASSWORD", "barter_pass"),
		Name:     getEnv("PGDATABASE", "barter"),
		SSLMode:  getEnv("PGSSLMODE", "disable"),
		MaxConns: int32(getEnvInt("PG_MAX_CONNS", 10)),
		MinConns: int32(getEnvInt("PG_MIN_CONNS", 2)),
	}

	// Формируем строку подключения к базе данных, если она не задана целиком
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		dbURL = (&url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(dbConfig.User, dbConfig.Password),
			Host:     dbConfig.Host + ":" + dbConfig.Port,
			Path:     "/" + dbConfig.Name,
			RawQuery: "sslmode=" + dbConfig.SSLMode,
		}).String()
	}

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		AppEnv:           getEnv("APP_ENV", "production"), // По умолчанию production
		LogLevel:         parseLevel(getEnv("LOG_LEVEL", "info")),
		Storage:          strings.ToLower(getEnv("STORAGE", StoragePostgres)),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTTTL:           getEnvDuration("JWT_TTL", 72*time.Hour),
		PageSize:         getEnvInt("PAGE_SIZE", 15),
		DatabaseURL:      dbURL,
		DatabaseConfig:   dbConfig,
		MediaBackend:     strings.ToLower(getEnv("MEDIA_BACKEND", MediaCloudinary)),
		CloudinaryConfig: CloudinaryConfig{
			CloudName:    getEnv("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:       getEnv("CLOUDINARY_API_KEY", ""),
			APISecret:    getEnv("CLOUDINARY_API_SECRET", ""),
			UploadPreset: getEnv("CLOUDINARY_UPLOAD_PRESET", "barter"),
			Folder:       getEnv("CLOUDINARY_FOLDER", "barter/ads"),
		},
		S3Config: S3Config{
			Endpoint:      getEnv("S3_ENDPOINT", ""),
			Region:        getEnv("S3_REGION", "us-east-1"),
			Bucket:        getEnv("S3_BUCKET", ""),
			AccessKey:     getEnv("S3_ACCESS_KEY", ""),
			SecretKey:     getEnv("S3_SECRET_KEY", ""),
			PublicURL:     getEnv("S3_PUBLIC_URL", ""),
			PresignExpiry: getEnvDuration("S3_PRESIGN_EXPIRY", 15*time.Minute),
		},
		RedisConfig: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		AuthRateLimit: RateLimitConfig{
			PerSecond: getEnvFloat("AUTH_RATE_PER_SEC", 1),
			Burst:     getEnvInt("AUTH_RATE_BURST", 5),
		},
	}

	return cfg
}

// Validate проверяет обязательные значения
func (c *Config) Validate() error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("не задан JWT_SECRET"))
	}
	if c.PageSize < 1 {
		errs = append(errs, fmt.Errorf("PAGE_SIZE должен быть положительным, получено %d", c.PageSize))
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL должен быть положительным"))
	}

	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("не задан адрес базы данных"))
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("неизвестный STORAGE: %q", c.Storage))
	}

	switch c.MediaBackend {
	case MediaCloudinary:
		cc := c.CloudinaryConfig
		if cc.CloudName == "" || cc.APIKey == "" || cc.APISecret == "" {
			errs = append(errs, errors.New("не заданы CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY или CLOUDINARY_API_SECRET"))
		}
	case MediaS3:
		if c.S3Config.Bucket == "" {
			errs = append(errs, errors.New("не задан S3_BUCKET"))
		}
	default:
		errs = append(errs, fmt.Errorf("неизвестный MEDIA_BACKEND: %q", c.MediaBackend))
	}

	return errors.Join(errs...)
}

// getEnv получает переменную окружения или использует дефолтное значение
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("некорректное целое значение, используем значение по умолчанию", "key", key, "value", value)
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		slog.Warn("некорректное числовое значение, используем значение по умолчанию", "key", key, "value", value)
		return defaultValue
	}
	return f
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("некорректная длительность, используем значение по умолчанию", "key", key, "value", value)
		return defaultValue
	}
	return d
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
