package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/customeros/dmarcwatch/internal/logger"
	"github.com/customeros/dmarcwatch/internal/tracing"
)

type Config struct {
	AppConfig      *AppConfig
	Logger         *logger.Config
	Tracing        *tracing.JaegerConfig
	DatabaseConfig *DatabaseConfig
	IMAPConfig     *IMAPConfig
	SMTPConfig     *SMTPConfig
	AIConfig       *AIConfig
	AlertConfig    *AlertConfig
	ArchiveConfig  *ArchiveStorageConfig
}

func InitConfig() (*Config, error) {
	config := &Config{
		AppConfig:      &AppConfig{},
		Logger:         &logger.Config{},
		Tracing:        &tracing.JaegerConfig{},
		DatabaseConfig: &DatabaseConfig{},
		IMAPConfig:     &IMAPConfig{},
		SMTPConfig:     &SMTPConfig{},
		AIConfig:       &AIConfig{},
		AlertConfig:    &AlertConfig{},
		ArchiveConfig:  &ArchiveStorageConfig{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(config)
	if err != nil {
		log.Fatalf("Error loading dmarcwatch config: %v", err)
	}

	return config, nil
}
