package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/fx"
)

// Config holds all configuration from environment variables.
type Config struct {
	Token string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`

	// Khoda LLM API backend
	APIBaseURL  string        `envconfig:"API_BASE_URL" default:"http://localhost:8020"`
	APIUsername string        `envconfig:"API_USERNAME" default:"admin"`
	APIPassword string        `envconfig:"API_PASSWORD" default:"admin"`
	AskTimeout  time.Duration `envconfig:"ASK_TIMEOUT" default:"120s"`

	// Provider selects the LLM backend: "khoda" (session-aware HTTP API)
	// or "openai" (any OpenAI-compatible chat completions endpoint).
	Provider      string `envconfig:"LLM_PROVIDER" default:"khoda"`
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	OpenAIModel   string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Conversation memory defaults; per-chat overrides live in the store.
	MemoryDefault  bool `envconfig:"MEMORY_DEFAULT" default:"true"`
	MemoryInGroups bool `envconfig:"MEMORY_IN_GROUPS" default:"false"`

	// Path to config.toml file
	ConfigFile string `envconfig:"CONFIG_FILE" default:"config.toml"`

	// User-facing messages loaded from config.toml
	Messages Messages
}

// Messages holds user-facing message templates loaded from config.toml.
type Messages struct {
	Welcome      string `toml:"welcome"`
	AskUsage     string `toml:"ask_usage"`
	ReportUsage  string `toml:"report_usage"`
	GenericError string `toml:"generic_error"`
}

// FileConfig represents the structure of config.toml.
type FileConfig struct {
	Messages Messages `toml:"messages"`
}

// DefaultMessages provides fallback messages if config.toml is not found.
var DefaultMessages = Messages{
	Welcome: `Hi! I am an AI assistant backed by a custom LLM.

Commands:
/start, /help - show this message
/ping - check bot response time
/report <message> - send a report to the administrators
/ask <question> - ask me anything (required in group chats)
/new_chat - start a fresh conversation
/end_chat - end the current conversation
/enable_memory - keep conversation history for this chat
/disable_memory - drop conversation history for this chat

In private chats you can just send me a message, no /ask needed.`,
	AskUsage: "Please provide a question after the /ask command.\n" +
		"Example: /ask What is the capital of France?",
	ReportUsage: "Please provide your report message after /report command.\n" +
		"Example: /report I found a bug in the bot",
	GenericError: "Sorry, I encountered an error while processing your request.",
}

// LoadEnv loads the configuration from environment variables.
func (c Config) LoadEnv() (Config, error) {
	cfg := c

	if err := envconfig.Process("", &cfg); err != nil {
		return c, err
	}

	return cfg, nil
}

// LoadFile loads messages from config.toml file.
func (c *Config) LoadFile() error {
	// Try to find config file
	configPath := c.ConfigFile
	if !filepath.IsAbs(configPath) {
		// Try current directory first
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			// Try executable directory
			execPath, err := os.Executable()
			if err == nil {
				execDir := filepath.Dir(execPath)
				configPath = filepath.Join(execDir, c.ConfigFile)
			}
		}
	}

	// Check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Use defaults if no config file
		c.Messages = DefaultMessages
		return nil
	}

	// Load TOML file
	var fileConfig FileConfig
	if _, err := toml.DecodeFile(configPath, &fileConfig); err != nil {
		return err
	}

	c.Messages = fileConfig.Messages

	// Use defaults for empty messages
	if c.Messages.Welcome == "" {
		c.Messages.Welcome = DefaultMessages.Welcome
	}
	if c.Messages.AskUsage == "" {
		c.Messages.AskUsage = DefaultMessages.AskUsage
	}
	if c.Messages.ReportUsage == "" {
		c.Messages.ReportUsage = DefaultMessages.ReportUsage
	}
	if c.Messages.GenericError == "" {
		c.Messages.GenericError = DefaultMessages.GenericError
	}

	return nil
}

func NewConfig() (*Config, error) {
	var cfg Config
	loadedCfg, err := cfg.LoadEnv()
	if err != nil {
		return nil, err
	}

	// Load messages from config.toml
	if err := loadedCfg.LoadFile(); err != nil {
		return nil, err
	}

	return &loadedCfg, nil
}

func Module() fx.Option {
	return fx.Module(
		"config",
		fx.Provide(
			NewConfig,
		),
	)
}
