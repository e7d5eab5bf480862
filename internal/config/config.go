package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EngineConfig is the engine.yaml file.
type EngineConfig struct {
	Version int `yaml:"version"`
	Engine  struct {
		BotsDir                string `yaml:"bots_dir"`
		HistoryTurns           int    `yaml:"history_turns"`
		ConversationTTLSeconds int    `yaml:"conversation_ttl_seconds"`
	} `yaml:"engine"`
	LLM struct {
		BaseURL   string `yaml:"base_url"`
		Model     string `yaml:"model"`
		MaxTokens int    `yaml:"max_tokens"`
	} `yaml:"llm"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	MQTT struct {
		ClientID string `yaml:"client_id"`
	} `yaml:"mqtt"`
}

// BotsDir returns the configured bot directory, defaulting to ./bots.
func (c *EngineConfig) BotsDir() string {
	if c.Engine.BotsDir == "" {
		return "./bots"
	}
	return c.Engine.BotsDir
}

// HistoryTurns returns the history window size, defaulting to 20 turns.
func (c *EngineConfig) HistoryTurns() int {
	if c.Engine.HistoryTurns == 0 {
		return 20
	}
	return c.Engine.HistoryTurns
}

// ConversationTTLSeconds returns the conversation expiry, defaulting to
// one day.
func (c *EngineConfig) ConversationTTLSeconds() int {
	if c.Engine.ConversationTTLSeconds == 0 {
		return 86400
	}
	return c.Engine.ConversationTTLSeconds
}

// MQTTClientID returns the MQTT client identity, defaulting to
// botweaver-engine.
func (c *EngineConfig) MQTTClientID() string {
	if c.MQTT.ClientID == "" {
		return "botweaver-engine"
	}
	return c.MQTT.ClientID
}

// LoadEngineConfig reads and validates the engine YAML config.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg EngineConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported engine.yaml version: %d", cfg.Version)
	}

	return &cfg, nil
}

// Secrets are credentials and endpoints taken from the environment only;
// they never appear in the YAML file.
type Secrets struct {
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	RedisURL     string `envconfig:"REDIS_URL"`
	MQTTURL      string `envconfig:"MQTT_URL"`
}

// LoadSecrets reads credentials from the environment.
func LoadSecrets() (*Secrets, error) {
	var s Secrets
	if err := envconfig.Process("", &s); err != nil {
		return nil, fmt.Errorf("error processing environment configuration: %w", err)
	}
	return &s, nil
}
