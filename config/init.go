package config

import (
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/xiaomo-123/gemini-api-service/internal/logger"
	"github.com/xiaomo-123/gemini-api-service/internal/tracing"
)

func InitConfig() (*Config, error) {
	// .env is optional, real deployments use the environment directly
	_ = godotenv.Load()

	cfg := Config{
		AppConfig: &AppConfig{
			Logger:  &logger.Config{},
			Tracing: &tracing.JaegerConfig{},
		},
		GeminiSiteConfig: &GeminiSiteConfig{},
		CronConfig:       &CronConfig{},
	}

	if err := env.Parse(cfg.AppConfig); err != nil {
		return nil, errors.Wrap(err, "failed to parse app config")
	}
	if err := env.Parse(cfg.AppConfig.Logger); err != nil {
		return nil, errors.Wrap(err, "failed to parse logger config")
	}
	if err := env.Parse(cfg.AppConfig.Tracing); err != nil {
		return nil, errors.Wrap(err, "failed to parse tracing config")
	}
	if err := env.Parse(cfg.GeminiSiteConfig); err != nil {
		return nil, errors.Wrap(err, "failed to parse gemini site config")
	}
	if err := env.Parse(cfg.CronConfig); err != nil {
		return nil, errors.Wrap(err, "failed to parse cron config")
	}

	return &cfg, nil
}
