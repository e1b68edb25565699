package config

import (
	"github.com/customeros/dmarcwatch/internal/logger"
	"github.com/customeros/dmarcwatch/internal/tracing"
)

type AppConfig struct {
	APIPort string `env:"PORT" envDefault:"12233"`
	APIKey  string `env:"API_KEY,required"`
	Logger  *logger.Config
	Tracing *tracing.JaegerConfig
}

type DatabaseConfig struct {
	Host            string `env:"DMARCWATCH_POSTGRES_HOST,required"`
	Port            string `env:"DMARCWATCH_POSTGRES_PORT,required"`
	User            string `env:"DMARCWATCH_POSTGRES_USER,required"`
	DBName          string `env:"DMARCWATCH_POSTGRES_DB_NAME,required"`
	Password        string `env:"DMARCWATCH_POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"DMARCWATCH_POSTGRES_DB_MAX_CONN" envDefault:"25"`
	MaxIdleConn     int    `env:"DMARCWATCH_POSTGRES_DB_MAX_IDLE_CONN" envDefault:"10"`
	ConnMaxLifetime int    `env:"DMARCWATCH_POSTGRES_DB_CONN_MAX_LIFETIME" envDefault:"60"`
	LogLevel        string `env:"DMARCWATCH_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"DMARCWATCH_POSTGRES_SSL_MODE" envDefault:"disable"`
}

type IMAPConfig struct {
	Host     string `env:"IMAP_HOST,required"`
	Port     int    `env:"IMAP_PORT" envDefault:"993"`
	Username string `env:"IMAP_USER,required"`
	Password string `env:"IMAP_PASSWORD,required"`
	Folder   string `env:"IMAP_FOLDER" envDefault:"INBOX"`
	TLS      bool   `env:"IMAP_TLS" envDefault:"true"`
}

type SMTPConfig struct {
	Host     string `env:"SMTP_HOST,required"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USER,required"`
	Password string `env:"SMTP_PASSWORD,required"`
	From     string `env:"SMTP_FROM,required"`
}

type AIConfig struct {
	APIKey     string `env:"ANTHROPIC_API_KEY,required"`
	URL        string `env:"ANTHROPIC_API_URL" envDefault:"https://api.anthropic.com"`
	Model      string `env:"ANTHROPIC_MODEL" envDefault:"claude-sonnet-4-5-20250929"`
	MaxTokens  int    `env:"ANTHROPIC_MAX_TOKENS" envDefault:"2000"`
	MaxRetries int    `env:"ANTHROPIC_MAX_RETRIES" envDefault:"3"`
}

type AlertConfig struct {
	Recipient             string `env:"ALERT_RECIPIENT,required"`
	ThrottleWindowMinutes int    `env:"ALERT_THROTTLE_WINDOW_MINUTES" envDefault:"60"`
}

type ArchiveStorageConfig struct {
	Enabled         bool   `env:"RAW_ARCHIVE_ENABLED" envDefault:"false"`
	AccountID       string `env:"CLOUDFLARE_R2_ACCOUNT_ID"`
	AccessKeyID     string `env:"CLOUDFLARE_R2_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"CLOUDFLARE_R2_ACCESS_KEY_SECRET"`
	Bucket          string `env:"BUCKET_NAME_RAW_REPORTS" envDefault:"dmarc-raw-reports"`
}
