// Package config loads drover's runtime configuration: compiled-in
// defaults, overlaid by .drover/config.toml in the project directory,
// overlaid by DROVER_* environment variables.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

type LLMConfig struct {
	Provider     string  `toml:"provider"`
	Model        string  `toml:"model"`
	APIKey       string  `toml:"api_key"`
	BaseURL      string  `toml:"base_url"`
	Command      string  `toml:"command"`
	Temperature  float64 `toml:"temperature"`
	TopP         float64 `toml:"top_p"`
	NumRetries   int     `toml:"num_retries"`
	RetryMinWait int     `toml:"retry_min_wait"`
	RetryMaxWait int     `toml:"retry_max_wait"`
}

type SandboxConfig struct {
	Type           string `toml:"type"`
	Image          string `toml:"image"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type AgentConfig struct {
	Library       string `toml:"library"`
	MaxIterations int    `toml:"max_iterations"`
	MaxChars      int    `toml:"max_chars"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type Config struct {
	WorkspaceDir string `toml:"workspace_dir"`
	StorePath    string `toml:"store_path"`
	GithubToken  string `toml:"github_token"`

	LLM     LLMConfig     `toml:"llm"`
	Sandbox SandboxConfig `toml:"sandbox"`
	Agent   AgentConfig   `toml:"agent"`
	Log     LogConfig     `toml:"log"`
}

func defaults() Config {
	return Config{
		WorkspaceDir: "./workspace",
		StorePath:    filepath.Join(".drover", "drover.db"),
		LLM: LLMConfig{
			Provider:     "openai",
			Model:        "gpt-3.5-turbo-1106",
			Temperature:  0,
			TopP:         0.5,
			NumRetries:   5,
			RetryMinWait: 3,
			RetryMaxWait: 60,
		},
		Sandbox: SandboxConfig{
			Type:           "local",
			Image:          "ghcr.io/drover-dev/sandbox:latest",
			TimeoutSeconds: 120,
		},
		Agent: AgentConfig{
			Library:       "agents",
			MaxIterations: 100,
			MaxChars:      5_000_000,
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(".drover", "drover.log"),
		},
	}
}

func Load(projectDir string) (*Config, error) {
	cfg := defaults()
	path := filepath.Join(projectDir, ".drover", "config.toml")

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(&cfg)
	return &cfg, nil
}

// applyEnv overlays the environment variables an operator most often
// needs to set without touching the config file, secrets in particular.
func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("DROVER_LLM_PROVIDER", &cfg.LLM.Provider)
	setString("DROVER_LLM_MODEL", &cfg.LLM.Model)
	setString("DROVER_LLM_API_KEY", &cfg.LLM.APIKey)
	setString("DROVER_LLM_BASE_URL", &cfg.LLM.BaseURL)
	setString("DROVER_SANDBOX_TYPE", &cfg.Sandbox.Type)
	setString("DROVER_WORKSPACE_DIR", &cfg.WorkspaceDir)
	setString("DROVER_GITHUB_TOKEN", &cfg.GithubToken)
	setString("DROVER_LOG_LEVEL", &cfg.Log.Level)

	if v := os.Getenv("DROVER_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Agent.MaxIterations = n
		}
	}
}
