// Package config загружает настройки сервера из переменных окружения.
// Локально переменные можно положить в .env файл.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/iudanet/webauth/internal/crypto"
)

// Config хранит настройки сервера
type Config struct {
	// Addr - адрес, на котором слушает HTTP сервер
	Addr string
	// BaseURL - внешний адрес сервиса для ссылок в письмах
	BaseURL string

	// DatabasePath - путь к SQLite базе пользователей
	DatabasePath string
	// SessionsPath - путь к BoltDB базе сессий
	SessionsPath string

	// SessionTTL - срок бездействия, после которого сессия уничтожается
	SessionTTL time.Duration
	// RememberDays - срок жизни remember-me токена в днях
	RememberDays int
	// RememberLegacyFallback включает поиск plaintext remember-me строк.
	// Выключается после прогона -invalidate-remember-tokens
	RememberLegacyFallback bool

	// ResetTokenTTL - срок жизни reset токена
	ResetTokenTTL time.Duration
	// ResetRateLimit - максимум запросов сброса с одного IP за окно
	ResetRateLimit int
	// ResetRateWindow - скользящее окно лимита запросов сброса
	ResetRateWindow time.Duration

	// BcryptCost - cost-параметр хеширования паролей
	BcryptCost int
	// SecureCookies выставляет флаг Secure на cookie.
	// Выключается только для локальной разработки без TLS
	SecureCookies bool

	// LogLevel - уровень логирования: debug, info, warn, error
	LogLevel string
}

// Load читает настройки из окружения, подхватывая .env файл, если он есть
func Load() (*Config, error) {
	// Отсутствующий .env - не ошибка
	_ = godotenv.Load(".env")

	cfg := &Config{
		Addr:    getEnv("AUTH_ADDR", ":8080"),
		BaseURL: getEnv("AUTH_BASE_URL", "http://localhost:8080"),

		DatabasePath: getEnv("AUTH_DB_PATH", "webauth.db"),
		SessionsPath: getEnv("AUTH_SESSIONS_PATH", "sessions.db"),

		SessionTTL:             getEnvAsSeconds("AUTH_SESSION_TTL", 86400),
		RememberDays:           getEnvAsInt("AUTH_REMEMBER_DAYS", 30),
		RememberLegacyFallback: getEnvAsBool("AUTH_REMEMBER_LEGACY_FALLBACK", false),

		ResetTokenTTL:   getEnvAsSeconds("AUTH_RESET_TOKEN_TTL", 3600),
		ResetRateLimit:  getEnvAsInt("AUTH_RESET_RATE_LIMIT", 5),
		ResetRateWindow: getEnvAsSeconds("AUTH_RESET_RATE_WINDOW", 3600),

		BcryptCost:    getEnvAsInt("AUTH_BCRYPT_COST", crypto.DefaultBcryptCost),
		SecureCookies: getEnvAsBool("AUTH_SECURE_COOKIES", false),

		LogLevel: getEnv("AUTH_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("AUTH_ADDR must not be empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("AUTH_BASE_URL must not be empty")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("AUTH_BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("AUTH_SESSION_TTL must be positive")
	}
	if c.RememberDays <= 0 {
		return fmt.Errorf("AUTH_REMEMBER_DAYS must be positive")
	}
	if c.ResetTokenTTL <= 0 {
		return fmt.Errorf("AUTH_RESET_TOKEN_TTL must be positive")
	}
	if c.ResetRateLimit <= 0 {
		return fmt.Errorf("AUTH_RESET_RATE_LIMIT must be positive")
	}
	if c.ResetRateWindow <= 0 {
		return fmt.Errorf("AUTH_RESET_RATE_WINDOW must be positive")
	}
	return nil
}

// getEnv возвращает переменную окружения или значение по умолчанию
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt возвращает переменную окружения как целое число
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool возвращает переменную окружения как bool
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSeconds возвращает переменную окружения (число секунд) как Duration
func getEnvAsSeconds(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultValue)) * time.Second
}
