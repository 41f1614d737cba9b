// Package config loads the application's YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration. Zero values mean "use defaults".
type Config struct {
	// ChatModel, ImageModel, and SpeechModel override the default Gemini
	// model names.
	ChatModel   string `yaml:"chat_model"`
	ImageModel  string `yaml:"image_model"`
	SpeechModel string `yaml:"speech_model"`

	// PreviewAddr is the listen address of the snippet preview server.
	PreviewAddr string `yaml:"preview_addr"`

	// VoiceMode enables continuous voice conversation at startup.
	VoiceMode bool `yaml:"voice_mode"`

	// EnvFile points at an additional env file to load before reading
	// credentials.
	EnvFile string `yaml:"env_file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		PreviewAddr: "127.0.0.1:8787",
	}
}

// Load reads a YAML config file on top of the defaults. A missing file (or
// empty path) yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}
	return cfg, nil
}
