package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"studai/internal/config"
	"studai/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("space", dir, 1); !result.Passed {
		t.Fatalf("expected pass with 1 byte minimum, got %s", result.Detail)
	}
	if result := CheckFreeSpace("space", dir, ^uint64(0)); result.Passed {
		t.Fatal("expected failure with impossible minimum")
	}
	if result := CheckFreeSpace("space", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestCheckLLM(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	ok := CheckLLM(context.Background(), "LLM", config.LLM{APIKey: "good-key", BaseURL: srv.URL, Model: "test"})
	if !ok.Passed {
		t.Fatalf("expected pass, got %s", ok.Detail)
	}
	bad := CheckLLM(context.Background(), "LLM", config.LLM{APIKey: "bad-key", BaseURL: srv.URL, Model: "test"})
	if bad.Passed {
		t.Fatal("expected failure for bad key")
	}
	missing := CheckLLM(context.Background(), "LLM", config.LLM{})
	if missing.Passed || !strings.Contains(missing.Detail, "OPENROUTER_API_KEY") {
		t.Fatalf("expected missing key detail, got %+v", missing)
	}
}

func TestCheckSpeechFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Speech.ResourceKey = ""
	if result := CheckSpeechFromConfig(cfg); result.Passed || !strings.Contains(result.Detail, "TTS_AZURE_RESOURCE_KEY") {
		t.Fatalf("expected missing key, got %+v", result)
	}
	cfg.Speech.ResourceKey = "key"
	cfg.Speech.Region = ""
	cfg.Speech.Endpoint = ""
	if result := CheckSpeechFromConfig(cfg); result.Passed {
		t.Fatal("expected failure without region or endpoint")
	}
	cfg.Speech.Region = "eastus"
	if result := CheckSpeechFromConfig(cfg); !result.Passed || !strings.Contains(result.Detail, "eastus") {
		t.Fatalf("expected pass, got %+v", result)
	}
}

func TestCheckStorageFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := os.MkdirAll(cfg.Storage.LocalDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if result := CheckStorageFromConfig(cfg); !result.Passed || !strings.HasPrefix(result.Detail, "Local ") {
		t.Fatalf("expected local pass, got %+v", result)
	}

	cfg.Storage.Driver = config.StorageDriverAzure
	cfg.Storage.AccountName = "acct"
	cfg.Storage.AccountKey = ""
	cfg.Storage.Container = ""
	result := CheckStorageFromConfig(cfg)
	if result.Passed {
		t.Fatal("expected failure with missing azure settings")
	}
	if !strings.Contains(result.Detail, "AZURE_STORAGE_ACCOUNT_KEY") || !strings.Contains(result.Detail, "AZURE_STORAGE_CONTAINER") {
		t.Fatalf("expected missing settings to be named, got %q", result.Detail)
	}
}

func TestCheckTranscriptionFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if result := CheckTranscriptionFromConfig(cfg); !result.Passed || result.Detail != "Disabled" {
		t.Fatalf("expected disabled pass, got %+v", result)
	}
	cfg.Captions.Enabled = true
	cfg.Transcription.Provider = config.TranscriptionAssemblyAI
	cfg.Transcription.AssemblyAIKey = ""
	if result := CheckTranscriptionFromConfig(cfg); result.Passed {
		t.Fatal("expected failure without assemblyai key")
	}
	cfg.Transcription.AssemblyAIKey = "key"
	if result := CheckTranscriptionFromConfig(cfg); !result.Passed {
		t.Fatalf("expected pass, got %+v", result)
	}
}

func TestCheckBaseVideo(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Compositor.BaseVideo = ""
	if result := CheckBaseVideo(cfg); result.Passed {
		t.Fatal("expected failure without base video")
	}
	cfg = testsupport.NewConfig(t, testsupport.WithBaseVideo())
	if result := CheckBaseVideo(cfg); !result.Passed {
		t.Fatalf("expected pass, got %+v", result)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ReportsEveryCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBaseVideo())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	cfg.LLM.APIKey = ""

	results := RunAll(context.Background(), cfg)
	names := make(map[string]Result, len(results))
	for _, r := range results {
		names[r.Name] = r
	}
	for _, want := range []string{"Work directory", "State directory", "Script LLM", "Speech synthesis", "Artifact storage", "Base video"} {
		if _, ok := names[want]; !ok {
			t.Errorf("missing check %q", want)
		}
	}
	if _, ok := names["Redis registry"]; ok {
		t.Error("redis check must only run for the redis backend")
	}
	if !names["Work directory"].Passed {
		t.Errorf("work directory check failed: %s", names["Work directory"].Detail)
	}
	if !Failed(results) {
		t.Error("expected Failed to report the missing LLM key")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[uint64]string{512: "512 B", 2048: "2.0 KiB", 3 << 30: "3.0 GiB"}
	for input, want := range tests {
		if got := formatBytes(input); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", input, got, want)
		}
	}
}
