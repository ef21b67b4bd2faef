// Package config описывает настройки сервиса и загружает их из YAML
// с переопределением через переменные окружения.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Окружения запуска.
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string        `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string        `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING" env-required:"true"`
	MigrationsPath          string        `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	StorageTimeout          time.Duration `yaml:"storage_timeout" env:"STORAGE_TIMEOUT" env-default:"5s"`
	HTTPServer              `yaml:"http_server"`
	RedisConnection         `yaml:"redis_connection"`
	JWTToken                `yaml:"jwttoken"`
	Openpay                 `yaml:"openpay"`
	Webhook                 `yaml:"webhook"`
	RabbitMQ                `yaml:"rabbitmq"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP    string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP    time.Duration `yaml:"timeouthttp" env-default:"40s"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" env-default:"60s"`
	RateLimit      float64       `yaml:"rate_limit" env-default:"20"`
	RateLimitBurst int           `yaml:"rate_limit_burst" env-default:"40"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user" env:"REDIS_USER"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
	PlanTTL      time.Duration `yaml:"plan_ttl" env-default:"1h"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY" env-required:"true"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// Openpay задаёт доступ к платёжному шлюзу. Без BaseURL адрес выбирается по Sandbox.
type Openpay struct {
	MerchantID             string        `yaml:"merchant_id" env:"OPENPAY_MERCHANT_ID" env-required:"true"`
	PrivateKey             string        `yaml:"private_key" env:"OPENPAY_PRIVATE_KEY" env-required:"true"`
	BaseURL                string        `yaml:"base_url" env:"OPENPAY_BASE_URL"`
	Sandbox                bool          `yaml:"sandbox" env:"OPENPAY_SANDBOX"`
	Timeout                time.Duration `yaml:"timeout" env:"OPENPAY_TIMEOUT" env-default:"30s"`
	DefaultDeviceSessionID string        `yaml:"default_device_session_id" env:"OPENPAY_DEVICE_SESSION_ID" env-default:"kR1MiQhz2otdIuUlQkbEyitIqVMiI16f"`
}

// Webhook задаёт Basic-авторизацию входящих уведомлений шлюза.
// Пустой пользователь отключает проверку.
type Webhook struct {
	User     string `yaml:"user" env:"WEBHOOK_USER"`
	Password string `yaml:"password" env:"WEBHOOK_PASSWORD"`
}

// RabbitMQ настраивает брокер для сигналов о расхождениях.
type RabbitMQ struct {
	URL      string        `yaml:"url" env:"RABBITMQ_URL"`
	Exchange string        `yaml:"exchange" env-default:"payflow.alerts"`
	Queue    string        `yaml:"queue" env-default:"payflow.alerts.drift"`
	Retries  int           `yaml:"retries" env-default:"5"`
	Delay    time.Duration `yaml:"delay" env-default:"2s"`
}

// Load читает конфиг из файла path, затем применяет переменные окружения.
func Load(path string) (*Config, error) {
	const op = "config.Load"
	if path == "" {
		return nil, fmt.Errorf("%s: config path is empty", op)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// LoadEnv подгружает переменные из .env, если файл есть.
// Уже заданные переменные окружения не перезаписываются.
func LoadEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("cannot read .env: %s", err)
	}
}

// MustLoad загружает конфиг из CONFIG_PATH и завершает процесс при ошибке.
func MustLoad() *Config {
	LoadEnv()
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// String печатает конфиг без секретов.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"MigrationsPath: %s\n"+
			"StorageTimeout: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"Redis:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"Openpay:\n"+
			"  MerchantID: %s\n"+
			"  Sandbox: %t\n"+
			"  Timeout: %s\n"+
			"RabbitMQ:\n"+
			"  Exchange: %s\n",
		c.Env,
		c.MigrationsPath,
		c.StorageTimeout,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.AddressRedis,
		c.DB,
		c.MerchantID,
		c.Sandbox,
		c.Openpay.Timeout,
		c.Exchange,
	)
}
