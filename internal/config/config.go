package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"local"`
	Tokens     `yaml:"tokens"`
	Postgres   `yaml:"postgres"`
	S3         `yaml:"s3"`
	RabbitMQ   `yaml:"rabbitmq"`
	Uploads    `yaml:"uploads"`
	HTTPServer `yaml:"http_server"`
}

type HTTPServer struct {
	Address            string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8000"`
	Timeout            time.Duration `yaml:"timeout" env-default:"10s"`
	IdleTimeout        time.Duration `yaml:"idle_timeout" env-default:"60s"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins" env:"CORS_ORIGINS" env-separator:","`
	InsecureCookies    bool          `yaml:"insecure_cookies" env:"INSECURE_COOKIES"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"postgres"`
	Port     int    `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-required:"true"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD" env-required:"true"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB" env-required:"true"`
	SSLMode  string `yaml:"sslmode" env-default:"disable"`
}

// Tokens holds the signing material for the two token kinds. The secrets must differ.
type Tokens struct {
	AccessTokenSecret  string        `yaml:"access_token_secret" env:"ACCESS_TOKEN_SECRET" env-required:"true"`
	AccessTokenTTL     time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_EXPIRY" env-default:"24h"`
	RefreshTokenSecret string        `yaml:"refresh_token_secret" env:"REFRESH_TOKEN_SECRET" env-required:"true"`
	RefreshTokenTTL    time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_EXPIRY" env-default:"240h"`
}

type S3 struct {
	Endpoint      string `yaml:"endpoint" env:"S3_ENDPOINT" env-required:"true"`
	Region        string `yaml:"region" env:"S3_REGION" env-default:"us-east-1"`
	Bucket        string `yaml:"bucket" env:"S3_BUCKET" env-required:"true"`
	AccessKey     string `yaml:"access_key" env:"S3_ACCESS_KEY" env-required:"true"`
	SecretKey     string `yaml:"secret_key" env:"S3_SECRET_KEY" env-required:"true"`
	PublicBaseURL string `yaml:"public_base_url" env:"S3_PUBLIC_BASE_URL"`
}

type RabbitMQ struct {
	URL       string `yaml:"url" env:"RABBITMQ_URL" env-required:"true"`
	QueueName string `yaml:"queue_name" env-default:"blob_cleanup"`
}

type Uploads struct {
	TempDir   string `yaml:"temp_dir" env:"UPLOADS_TEMP_DIR"`
	MaxMemory int64  `yaml:"max_memory" env-default:"33554432"`
	MaxBody   int64  `yaml:"max_body" env:"UPLOADS_MAX_BODY" env-default:"52428800"`
}

func MustLoad(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("Config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("Failed to read config: " + err.Error())
	}

	if cfg.Tokens.AccessTokenSecret == cfg.Tokens.RefreshTokenSecret {
		panic("access and refresh token secrets must differ")
	}

	return &cfg
}
