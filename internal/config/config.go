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
	Telegram struct {
		BotToken             string  `yaml:"bot_token"`
		ControlChatID        int64   `yaml:"control_chat_id"`
		LegacyMigration      bool    `yaml:"legacy_migration"`
		LegacyChats          []int64 `yaml:"legacy_chats"`
		UpdateWorkers        int     `yaml:"update_workers"`
		DefaultCommandPrefix string  `yaml:"default_command_prefix"`
	} `yaml:"telegram"`
	RabbitMQ struct {
		URL          string `yaml:"url"`
		ResultsQueue string `yaml:"results_queue"`
		FanoutQueue  string `yaml:"fanout_queue"`
	} `yaml:"rabbitmq"`
	Queues struct {
		GroupPerMinute   int   `yaml:"group_per_minute"`
		PrivatePerMinute int   `yaml:"private_per_minute"`
		TickMillis       int64 `yaml:"tick_millis"`
	} `yaml:"queues"`
	UptimeMonitor struct {
		URL     string `yaml:"url"`
		Seconds int64  `yaml:"seconds"`
	} `yaml:"uptime_monitor"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	ChatDefaults map[string]string `yaml:"chat_defaults"`
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

	config.applyDefaults()
	return config, nil
}

// applyDefaults fills in values that are safe to leave out of the file.
func (c *Config) applyDefaults() {
	if c.RabbitMQ.ResultsQueue == "" {
		c.RabbitMQ.ResultsQueue = "tg.results"
	}
	if c.RabbitMQ.FanoutQueue == "" {
		c.RabbitMQ.FanoutQueue = "tg.terminal.fanout"
	}
	if c.Queues.GroupPerMinute <= 0 {
		c.Queues.GroupPerMinute = 20
	}
	if c.Queues.PrivatePerMinute <= 0 {
		c.Queues.PrivatePerMinute = 60
	}
	if c.Queues.TickMillis <= 0 {
		c.Queues.TickMillis = 100
	}
	if c.UptimeMonitor.Seconds <= 0 {
		c.UptimeMonitor.Seconds = 300
	}
	if c.Telegram.UpdateWorkers <= 0 {
		c.Telegram.UpdateWorkers = 32
	}
	if c.Telegram.DefaultCommandPrefix == "" {
		c.Telegram.DefaultCommandPrefix = "/"
	}
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.ChatDefaults == nil {
		c.ChatDefaults = map[string]string{}
	}
	if _, ok := c.ChatDefaults["DeleteSystemMessages"]; !ok {
		c.ChatDefaults["DeleteSystemMessages"] = "false"
	}
}
