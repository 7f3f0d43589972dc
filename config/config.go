/*
Package config loads the engine's runtime configuration.

PURPOSE:
  Two configuration surfaces:

  1. Process settings (ports, database path, collaborator endpoints, SMTP
     credentials, log settings) come from the environment. A .env file is
     loaded first when present, then the Config struct is parsed from env
     tags.
  2. Notification rules live in a YAML file (see rules.go) and are
     re-read at the start of every pass, so rule edits need no restart.

EXAMPLE .env:
  PORT=8080
  DB_PATH=./data/compliance.db
  RULES_PATH=./rules.yaml
  TIMESHEET_BASE_URL=https://timesheets.internal
  DIRECTORY_BASE_URL=https://directory.internal
  CHAT_BASE_URL=https://chat.internal
  SMTP_HOST=smtp.internal
*/
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

// Config is the process-level configuration.
type Config struct {
	Port      int    `env:"PORT" envDefault:"8080"`
	DBPath    string `env:"DB_PATH" envDefault:"compliance.db"`
	RulesPath string `env:"RULES_PATH" envDefault:"rules.yaml"`

	PassInterval time.Duration `env:"PASS_INTERVAL" envDefault:"10m"`
	RuleTimeout  time.Duration `env:"RULE_TIMEOUT" envDefault:"2m"`

	TimesheetBaseURL string `env:"TIMESHEET_BASE_URL"`
	TimesheetToken   string `env:"TIMESHEET_TOKEN"`

	DirectoryBaseURL string `env:"DIRECTORY_BASE_URL"`
	DirectoryToken   string `env:"DIRECTORY_TOKEN"`

	ChatBaseURL string `env:"CHAT_BASE_URL"`
	ChatToken   string `env:"CHAT_TOKEN"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	MailFrom     string `env:"MAIL_FROM"`
	MailFromName string `env:"MAIL_FROM_NAME" envDefault:"Timesheet Bot"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // text or json
	LogOutput string `env:"LOG_OUTPUT" envDefault:"stdout"` // stdout, file, both
	LogPath   string `env:"LOG_PATH" envDefault:"./logs/engine.log"`
}

// Load reads .env (when present) and parses the environment.
func Load() (*Config, error) {
	// A missing .env is fine; real deployments export the variables.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
