package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("  s3cret\n"), 0o600); err != nil {
		t.Fatalf("writing secret file: %v", err)
	}

	secret, err := Load(Source{Name: "api key", File: path, Value: "ignored"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secret != "s3cret" {
		t.Fatalf("expected trimmed secret, got %q", secret)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("JOBCATCHER_TEST_SECRET", " from-env ")

	secret, err := Load(Source{Name: "api key", Env: "JOBCATCHER_TEST_SECRET", Value: "fallback"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secret != "from-env" {
		t.Fatalf("expected env secret, got %q", secret)
	}
}

func TestLoadFallsBackToValue(t *testing.T) {
	secret, err := Load(Source{Name: "api key", Env: "JOBCATCHER_UNSET_SECRET", Value: "inline"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secret != "inline" {
		t.Fatalf("expected inline secret, got %q", secret)
	}
}

func TestLoadEmptyFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("   \n"), 0o600); err != nil {
		t.Fatalf("writing secret file: %v", err)
	}

	if _, err := Load(Source{Name: "api key", File: path}); err == nil {
		t.Fatal("expected error for empty secret file")
	}
}

func TestLoadUnconfiguredFails(t *testing.T) {
	_, err := Load(Source{Name: "smtp password"})
	if err == nil {
		t.Fatal("expected error for unconfigured secret")
	}
	if !strings.Contains(err.Error(), "smtp password") {
		t.Fatalf("error must name the secret, got %v", err)
	}
}
