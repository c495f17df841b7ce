package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ServiceSettings describes one agent in the deployment registry.
type ServiceSettings struct {
	Enabled     bool   `yaml:"enabled"`
	Port        int    `yaml:"port"`
	Description string `yaml:"description"`
}

// ServicesConfig is the deployment registry of agent services.
type ServicesConfig struct {
	Services map[string]*ServiceSettings `yaml:"services"`
}

// LoadServicesConfig loads the registry from config/services.yaml.
func LoadServicesConfig() (*ServicesConfig, error) {
	return LoadServicesConfigFromPath(filepath.Join("config", "services.yaml"))
}

// LoadServicesConfigFromPath loads the registry from a specific path.
func LoadServicesConfigFromPath(path string) (*ServicesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read services config: %w", err)
	}

	var cfg ServicesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse services config: %w", err)
	}

	for id, settings := range cfg.Services {
		if settings.Port == 0 {
			return nil, fmt.Errorf("service %s: port is required", id)
		}
	}
	return &cfg, nil
}

// LoadServicesConfigOrDefault loads the registry or falls back to defaults.
func LoadServicesConfigOrDefault() *ServicesConfig {
	cfg, err := LoadServicesConfig()
	if err != nil {
		return DefaultServicesConfig()
	}
	return cfg
}

// DefaultServicesConfig returns the default agent registry.
func DefaultServicesConfig() *ServicesConfig {
	return &ServicesConfig{
		Services: map[string]*ServiceSettings{
			"actions": {
				Enabled:     true,
				Port:        8081,
				Description: "Action routing and status tracking",
			},
			"codetasks": {
				Enabled:     true,
				Port:        8082,
				Description: "Code task dispatch with idempotent creation",
			},
			"linear": {
				Enabled:     true,
				Port:        8083,
				Description: "Linear connection and issue management",
			},
			"calendar": {
				Enabled:     true,
				Port:        8084,
				Description: "Google Calendar event access",
			},
			"research": {
				Enabled:     true,
				Port:        8085,
				Description: "Long-running LLM research jobs",
			},
			"promptvault": {
				Enabled:     true,
				Port:        8086,
				Description: "Prompt storage backed by Notion",
			},
			"web": {
				Enabled:     true,
				Port:        8087,
				Description: "Link preview fetching",
			},
			"insights": {
				Enabled:     true,
				Port:        8088,
				Description: "Data visualization generation",
			},
		},
	}
}
