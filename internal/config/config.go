package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
	} `yaml:"telegram"`
	Responder struct {
		URL            string `yaml:"url"`
		TimeoutSeconds int64  `yaml:"timeout_seconds"`
	} `yaml:"responder"`
	Notifications struct {
		TelegramBotToken string `yaml:"telegram_bot_token"`
		TelegramChatID   int64  `yaml:"telegram_chat_id"`
		EmailAPIURL      string `yaml:"email_api_url"`
		EmailAPIKey      string `yaml:"email_api_key"`
		EmailFrom        string `yaml:"email_from"`
		EmailTo          string `yaml:"email_to"`
		CooldownSeconds  int64  `yaml:"cooldown_seconds"`
	} `yaml:"notifications"`
	Engine struct {
		BaseURL      string   `yaml:"base_url"`
		AllowedHosts []string `yaml:"allowed_hosts"`
		HistoryLimit int      `yaml:"history_limit"`
	} `yaml:"engine"`
	Experiments struct {
		Enabled  bool     `yaml:"enabled"`
		Variants []string `yaml:"variants"`
	} `yaml:"experiments"`
	Scoring struct {
		PriorityRoles   []string `yaml:"priority_roles"`
		Urgency         []string `yaml:"urgency"`
		Compensation    []string `yaml:"compensation"`
		HumanAssistance []string `yaml:"human_assistance"`
	} `yaml:"scoring"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
}

// LoadConfig reads configuration from the specified YAML file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return config, nil
}
