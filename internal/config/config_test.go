package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(old) })
}

// clearEnv unsets every bound variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, names := range envKeys {
		for _, n := range names {
			t.Setenv(n, "")
			os.Unsetenv(n)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	cfg, err := Load(Options{EnvFiles: []string{}})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider != ProviderAzure {
		t.Errorf("Provider = %q", cfg.Provider)
	}
	if cfg.DatabasePath != "glossary.db" || cfg.RefDocsDir != "ref_docs" {
		t.Errorf("unexpected paths: %+v", cfg)
	}
	if cfg.ReviewPause != time.Second {
		t.Errorf("ReviewPause = %v", cfg.ReviewPause)
	}
	if cfg.Model() != "" {
		t.Errorf("expected no deployment by default, got %q", cfg.Model())
	}
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("AZURE_AIS_OPENAI_API_KEY", "secret")
	t.Setenv("AZURE_AIS_OPENAI_ENDPOINT", "https://example.openai.azure.com/")
	t.Setenv("AZURE_AIS_OPENAI_GPT_DEPLOYMENT", "gpt-4o-treaty")
	t.Setenv("DATABASE_PATH", "/data/glossary.db")
	t.Setenv("TREATYDESK_REVIEW_PAUSE", "250ms")

	cfg, err := Load(Options{EnvFiles: []string{}})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Azure.APIKey != "secret" || cfg.Azure.Endpoint != "https://example.openai.azure.com/" {
		t.Errorf("unexpected azure config: %+v", cfg.Azure)
	}
	if cfg.Model() != "gpt-4o-treaty" {
		t.Errorf("Model() = %q", cfg.Model())
	}
	if cfg.DatabasePath != "/data/glossary.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.ReviewPause != 250*time.Millisecond {
		t.Errorf("ReviewPause = %v", cfg.ReviewPause)
	}
}

func TestLoad_FileAndDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	chdir(t, dir)

	yaml := "provider: ollama\nollama:\n  model: qwen3:14b\nref_docs_dir: docs\n"
	if err := os.WriteFile(filepath.Join(dir, "treatydesk.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	envFile := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envFile, []byte("OLLAMA_URL=http://gpu-box:11434\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("OLLAMA_URL") })

	cfg, err := Load(Options{EnvFiles: []string{envFile}})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider != ProviderOllama || cfg.Model() != "qwen3:14b" {
		t.Errorf("unexpected provider/model: %q %q", cfg.Provider, cfg.Model())
	}
	if cfg.Ollama.URL != "http://gpu-box:11434" {
		t.Errorf("Ollama.URL = %q", cfg.Ollama.URL)
	}
	if cfg.RefDocsDir != "docs" {
		t.Errorf("RefDocsDir = %q", cfg.RefDocsDir)
	}
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("TREATYDESK_PROVIDER", "bing")

	_, err := Load(Options{EnvFiles: []string{}})
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(Options{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml"), EnvFiles: []string{}})
	if err == nil {
		t.Error("expected error for missing explicit config file")
	}
}
