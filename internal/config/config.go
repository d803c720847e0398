package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/chatclient/internal/logger"
)

// loadEnv читает .env только вне production (в контейнере/prod конфиг только из env).
func loadEnv() {
	if os.Getenv("APP_ENV") == "production" {
		return
	}
	// godotenv не перезаписывает уже выставленные переменные.
	_ = godotenv.Load()
}

// Config содержит настройки клиента: адреса бэкенда, интервалы синхронизации и WebSocket.
// Приоритет: переменные окружения > YAML-файл > значения по умолчанию.
type Config struct {
	// Бэкенд
	APIBaseURL string `yaml:"api_base_url"`
	WSURL      string `yaml:"ws_url"`

	// Синхронизация активного диалога
	SyncInterval time.Duration `yaml:"-"`
	SyncPageSize int           `yaml:"sync_page_size"`
	LoadPageSize int           `yaml:"load_page_size"`

	// Индикатор набора текста
	TypingIdleTimeout time.Duration `yaml:"-"`

	// WebSocket
	WSWriteTimeout   time.Duration `yaml:"-"`
	WSPongTimeout    time.Duration `yaml:"-"`
	WSMaxMessageSize int64         `yaml:"ws_max_message_size"`
	WSSendBufferSize int           `yaml:"ws_send_buffer_size"`

	// HTTP
	HTTPTimeout time.Duration `yaml:"-"`

	// Логирование
	LogLevel string `yaml:"log_level"`
}

// yamlConfig — промежуточная структура для парсинга YAML (интервалы в секундах).
type yamlConfig struct {
	APIBaseURL        string `yaml:"api_base_url"`
	WSURL             string `yaml:"ws_url"`
	SyncIntervalSec   int    `yaml:"sync_interval"`
	SyncPageSize      int    `yaml:"sync_page_size"`
	LoadPageSize      int    `yaml:"load_page_size"`
	TypingIdleSec     int    `yaml:"typing_idle_timeout"`
	WSWriteTimeoutSec int    `yaml:"ws_write_timeout"`
	WSPongTimeoutSec  int    `yaml:"ws_pong_timeout"`
	WSMaxMessageSize  int64  `yaml:"ws_max_message_size"`
	WSSendBufferSize  int    `yaml:"ws_send_buffer_size"`
	HTTPTimeoutSec    int    `yaml:"http_timeout"`
	LogLevel          string `yaml:"log_level"`
}

// Load загружает конфигурацию.
// Сначала подгружаются переменные из .env (если есть), затем YAML и env (env имеет приоритет).
func Load() *Config {
	loadEnv()
	// Значения по умолчанию
	yc := yamlConfig{
		APIBaseURL:        "http://localhost:8080",
		WSURL:             "ws://localhost:8080/ws",
		SyncIntervalSec:   3,
		SyncPageSize:      20,
		LoadPageSize:      50,
		TypingIdleSec:     3,
		WSWriteTimeoutSec: 10,
		WSPongTimeoutSec:  60,
		WSMaxMessageSize:  65536,
		WSSendBufferSize:  256,
		HTTPTimeoutSec:    10,
		LogLevel:          "info",
	}

	// Загрузка конфигурации: CONFIG_PATH → config/client.yaml
	paths := []string{os.Getenv("CONFIG_PATH"), "config/client.yaml"}
	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, &yc); err != nil {
			logger.Errorf("config: ошибка парсинга %s: %v (используются значения по умолчанию)", path, err)
		} else {
			logger.Infof("config: загружен %s", path)
		}
		break
	}

	// Переменные окружения имеют приоритет над YAML.
	if v := os.Getenv("API_BASE_URL"); v != "" {
		yc.APIBaseURL = v
	}
	if v := os.Getenv("WS_URL"); v != "" {
		yc.WSURL = v
	}
	if v := envInt("SYNC_INTERVAL"); v > 0 {
		yc.SyncIntervalSec = v
	}
	if v := envInt("SYNC_PAGE_SIZE"); v > 0 {
		yc.SyncPageSize = v
	}
	if v := envInt("LOAD_PAGE_SIZE"); v > 0 {
		yc.LoadPageSize = v
	}
	if v := envInt("TYPING_IDLE_TIMEOUT"); v > 0 {
		yc.TypingIdleSec = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		yc.LogLevel = v
	}
	logger.SetLevel(yc.LogLevel)

	return &Config{
		APIBaseURL:        yc.APIBaseURL,
		WSURL:             yc.WSURL,
		SyncInterval:      time.Duration(yc.SyncIntervalSec) * time.Second,
		SyncPageSize:      yc.SyncPageSize,
		LoadPageSize:      yc.LoadPageSize,
		TypingIdleTimeout: time.Duration(yc.TypingIdleSec) * time.Second,
		WSWriteTimeout:    time.Duration(yc.WSWriteTimeoutSec) * time.Second,
		WSPongTimeout:     time.Duration(yc.WSPongTimeoutSec) * time.Second,
		WSMaxMessageSize:  yc.WSMaxMessageSize,
		WSSendBufferSize:  yc.WSSendBufferSize,
		HTTPTimeout:       time.Duration(yc.HTTPTimeoutSec) * time.Second,
		LogLevel:          yc.LogLevel,
	}
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
