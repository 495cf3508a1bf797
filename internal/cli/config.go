// Package cli holds the shared plumbing of the flagshipctl command:
// profile configuration and output formatting.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the CLI configuration
type Config struct {
	DefaultProfile string             `yaml:"default_profile"`
	Profiles       map[string]Profile `yaml:"profiles"`
}

// Profile represents one flag service connection
type Profile struct {
	URL         string `yaml:"url"`
	Environment string `yaml:"environment"`
	Namespace   string `yaml:"namespace"`
	ClientToken string `yaml:"client_token"`
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".flagship", "config.yaml"), nil
}

// LoadConfig loads the configuration from file
func LoadConfig() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty config if file doesn't exist
			return &Config{Profiles: make(map[string]Profile)}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// SaveConfig saves the configuration to file
func SaveConfig(cfg *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetProfile resolves the connection settings to use.
// Priority: command flags > environment variables > config file.
func GetProfile(profileName, urlFlag, tokenFlag string) (*Profile, error) {
	envURL := os.Getenv("FLAGSHIP_URL")
	envToken := os.Getenv("FLAGSHIP_CLIENT_TOKEN")

	// Direct flags or env vars are enough on their own.
	if urlFlag != "" {
		return &Profile{URL: urlFlag, ClientToken: tokenFlag}, nil
	}
	if envURL != "" {
		token := tokenFlag
		if token == "" {
			token = envToken
		}
		return &Profile{URL: envURL, ClientToken: token}, nil
	}

	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	if profileName == "" {
		profileName = cfg.DefaultProfile
	}
	if profileName == "" {
		return nil, fmt.Errorf("no URL given and no default profile configured; use --url or add %s", configHint())
	}

	profile, ok := cfg.Profiles[profileName]
	if !ok {
		return nil, fmt.Errorf("profile '%s' not found in config", profileName)
	}
	if tokenFlag != "" {
		profile.ClientToken = tokenFlag
	} else if envToken != "" {
		profile.ClientToken = envToken
	}
	if profile.URL == "" {
		return nil, fmt.Errorf("url must be configured for profile '%s'", profileName)
	}
	return &profile, nil
}

func configHint() string {
	path, err := GetConfigPath()
	if err != nil {
		return "~/.flagship/config.yaml"
	}
	return path
}

// InitConfig creates a default config file
func InitConfig() error {
	cfg := &Config{
		DefaultProfile: "local",
		Profiles: map[string]Profile{
			"local": {
				URL:       "http://localhost:8080",
				Namespace: "default",
			},
			"prod": {
				URL:         "https://flags.example.com",
				Environment: "production",
				Namespace:   "default",
				ClientToken: "replace-me",
			},
		},
	}

	return SaveConfig(cfg)
}
