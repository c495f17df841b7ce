package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeRegistry(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "services.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}
	return path
}

func TestLoadServicesConfigFromPath(t *testing.T) {
	path := writeRegistry(t, `
services:
  actions:
    enabled: true
    port: 8081
    description: Action routing
  web:
    enabled: false
    port: 8087
`)
	cfg, err := LoadServicesConfigFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Services) != 2 {
		t.Fatalf("services = %d", len(cfg.Services))
	}
	actions := cfg.Services["actions"]
	if actions == nil || !actions.Enabled || actions.Port != 8081 {
		t.Fatalf("actions = %+v", actions)
	}
	if cfg.Services["web"].Enabled {
		t.Fatal("web should be disabled")
	}
}

func TestLoadServicesConfigRejectsMissingPort(t *testing.T) {
	path := writeRegistry(t, `
services:
  actions:
    enabled: true
`)
	if _, err := LoadServicesConfigFromPath(path); err == nil {
		t.Fatal("expected error for missing port")
	}
}

func TestLoadServicesConfigRejectsBadYAML(t *testing.T) {
	path := writeRegistry(t, "services: [not a map")
	if _, err := LoadServicesConfigFromPath(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDefaultServicesConfigCoversEveryAgent(t *testing.T) {
	cfg := DefaultServicesConfig()
	for _, name := range []string{"actions", "codetasks", "linear", "calendar", "research", "promptvault", "web", "insights"} {
		settings, ok := cfg.Services[name]
		if !ok {
			t.Errorf("registry missing %s", name)
			continue
		}
		if settings.Port == 0 {
			t.Errorf("%s has no port", name)
		}
	}
	seen := make(map[int]string)
	for name, settings := range cfg.Services {
		if other, dup := seen[settings.Port]; dup {
			t.Errorf("port %d assigned to both %s and %s", settings.Port, name, other)
		}
		seen[settings.Port] = name
	}
}
