package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfiguration_NoFile(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() with empty path error = %v", err)
	}
	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}
	if cfg.Version != 1 {
		t.Errorf("Default config version = %d, want 1", cfg.Version)
	}
	if len(cfg.Render.Viewports) != 2 {
		t.Fatalf("Default viewports = %d, want 2", len(cfg.Render.Viewports))
	}
	mobile := cfg.Render.Viewports[0]
	if mobile.Name != "mobile" || !mobile.Mobile || mobile.Width != 375 || mobile.Height != 812 {
		t.Errorf("Unexpected mobile viewport: %+v", mobile)
	}
	desktop := cfg.Render.Viewports[1]
	if desktop.Name != "desktop" || desktop.Mobile || desktop.Width != 1280 || desktop.Height != 800 {
		t.Errorf("Unexpected desktop viewport: %+v", desktop)
	}
	if cfg.Render.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Render.Timeout)
	}
	if cfg.Render.Wait != "networkidle" {
		t.Errorf("Wait = %q, want networkidle", cfg.Render.Wait)
	}
	if cfg.Render.IdleWindow != 500*time.Millisecond {
		t.Errorf("IdleWindow = %v, want 500ms", cfg.Render.IdleWindow)
	}
	if !strings.Contains(cfg.Output.UsedName, "{{ .Filter }}") {
		t.Errorf("UsedName template must not be expanded on load, got %q", cfg.Output.UsedName)
	}
}

func TestLoadConfiguration_EnvironmentUnset(t *testing.T) {
	for _, name := range []string{"CRITCSS_CHROME", "CRITCSS_AUTH_USER", "CRITCSS_AUTH_PASSWORD"} {
		t.Setenv(name, "")
	}
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if cfg.Render.ExecPath != "" || cfg.Render.Auth.User != "" || cfg.Render.Auth.Password != "" {
		t.Errorf("Expected empty values, got %q %q %q", cfg.Render.ExecPath, cfg.Render.Auth.User, cfg.Render.Auth.Password.Reveal())
	}
}

func TestLoadConfiguration_EnvironmentSet(t *testing.T) {
	chrome := filepath.Join(t.TempDir(), "chrome")
	if err := os.WriteFile(chrome, nil, 0755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CRITCSS_CHROME", chrome)
	t.Setenv("CRITCSS_AUTH_USER", "staging")
	t.Setenv("CRITCSS_AUTH_PASSWORD", `p"a:ss`)

	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if cfg.Render.ExecPath != chrome {
		t.Errorf("ExecPath = %q, want %q", cfg.Render.ExecPath, chrome)
	}
	if cfg.Render.Auth.User != "staging" || cfg.Render.Auth.Password.Reveal() != `p"a:ss` {
		t.Errorf("Unexpected auth %q %q", cfg.Render.Auth.User, cfg.Render.Auth.Password.Reveal())
	}
}

func TestLoadConfiguration_WithFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `version: 1
render:
  headless: true
  timeout: 0s
  wait: load
  idle_window: 1s
  scroll: false
  settle: 0s
  viewports:
    - name: tablet
      width: 768
      height: 1024
      mobile: true
pages:
  - https://example.com/
  - https://example.com/contact
output:
  directory: ` + filepath.Join(tmpDir, "out") + `
  used_name: "used.css"
  reconstruct_extract: true
  minify: true
logging:
  console:
    level: normal
  file:
    level: none
reporting:
  destination: ` + filepath.Join(tmpDir, "report.zip") + `
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfiguration(configPath)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if cfg.Render.Timeout != 0 {
		t.Errorf("Timeout = %v, want 0 (unbounded)", cfg.Render.Timeout)
	}
	if cfg.Render.Wait != "load" {
		t.Errorf("Wait = %q, want load", cfg.Render.Wait)
	}
	if len(cfg.Render.Viewports) != 1 || cfg.Render.Viewports[0].Name != "tablet" {
		t.Errorf("Viewports = %+v, want single tablet", cfg.Render.Viewports)
	}
	if len(cfg.Pages) != 2 {
		t.Errorf("Pages = %v, want 2 entries", cfg.Pages)
	}
	if !cfg.Output.ReconstructExtract {
		t.Error("Expected ReconstructExtract to be true")
	}
	if !cfg.Output.Minify {
		t.Error("Expected Minify to be true")
	}
}

func TestLoadConfiguration_UnknownField(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("version: 1\nrender:\n  browser: firefox\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfiguration(configPath); err == nil {
		t.Error("Expected error for unknown configuration field")
	}
}

func TestLoadConfiguration_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad version", "version: 2\n"},
		{"bad wait", "version: 1\nrender:\n  wait: domcontentloaded\n"},
		{"no viewports", "version: 1\nrender:\n  viewports: []\n"},
		{"bad page", "version: 1\npages: [\"not a url\"]\n"},
		{"negative settle", "version: 1\nrender:\n  settle: -1s\n"},
		{"duplicate viewport", "version: 1\nrender:\n  viewports:\n    - {name: a, width: 1, height: 1}\n    - {name: a, width: 2, height: 2}\n"},
		{"viewport is not a directory name", "version: 1\nrender:\n  viewports:\n    - {name: a/b, width: 1, height: 1}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadConfiguration(configPath); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestDump_HidesPassword(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Render.Auth.User = "staging"
	cfg.Render.Auth.Password = "hunter2"

	data, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if strings.Contains(string(data), "hunter2") {
		t.Error("Dump() leaked password")
	}
	if !strings.Contains(string(data), SecretStringValue) {
		t.Error("Dump() does not contain masked password")
	}
}

func TestPrepare(t *testing.T) {
	data, err := Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if !strings.Contains(string(data), "viewports:") {
		t.Error("Prepared configuration has no viewports")
	}
}
