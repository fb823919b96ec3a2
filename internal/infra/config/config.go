package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Имена переменных окружения с ключами приложения Instapaper.
const (
	ConsumerIDEnvVar     = "INSTAPAPER_CONSUMER_ID"
	ConsumerSecretEnvVar = "INSTAPAPER_CONSUMER_SECRET"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"UTC"`
	Port   int    `envconfig:"PORT" default:"8080"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	Instapaper struct {
		ConsumerID     string        `envconfig:"INSTAPAPER_CONSUMER_ID"`
		ConsumerSecret string        `envconfig:"INSTAPAPER_CONSUMER_SECRET"`
		Username       string        `envconfig:"INSTAPAPER_USERNAME"`
		Password       string        `envconfig:"INSTAPAPER_PASSWORD"`
		BaseURL        string        `envconfig:"INSTAPAPER_BASE_URL"`
		Timeout        time.Duration `envconfig:"INSTAPAPER_TIMEOUT" default:"15s"`
	} `envconfig:""`

	Limits struct {
		SyncPage int `envconfig:"SYNC_PAGE_LIMIT" default:"500"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Resolve возвращает значение по упорядоченному списку источников:
// явный аргумент, затем значение конфигурации, затем переменная
// окружения. Если все источники пусты, возвращает ошибку.
func Resolve(explicit, configured, envKey string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if configured != "" {
		return configured, nil
	}
	if val := os.Getenv(envKey); val != "" {
		return val, nil
	}
	return "", fmt.Errorf("значение не задано ни явно, ни в конфиге, ни в %s", envKey)
}
