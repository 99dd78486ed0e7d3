package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"studai/internal/api"
	"studai/internal/captions"
	"studai/internal/jobs"
	"studai/internal/jobs/history"
	"studai/internal/notifications"
	"studai/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	tmp := t.TempDir()
	target := filepath.Join(tmp, "studai", "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target})
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}

	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	out, _, err = runCLI(t, []string{"--config", configPath, "config", "validate"})
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Config path: "+configPath)
	requireContains(t, out, "Configuration valid")
}

func TestConfigValidateRejectsBadDriver(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Storage.Driver = "ftp"
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	_, _, err := runCLI(t, []string{"--config", configPath, "config", "validate"})
	if err == nil || !strings.Contains(err.Error(), "storage.driver") {
		t.Fatalf("expected storage.driver error, got %v", err)
	}
}

func TestSubmitWaitCompletes(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "submit", "--instruction", "mitosis", "--wait", "--poll-interval", "20ms", "--json")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	var job api.Job
	if err := json.Unmarshal([]byte(out), &job); err != nil {
		t.Fatalf("decode submit output: %v\n%s", err, out)
	}
	if job.Status != "completed" {
		t.Fatalf("expected completed job, got %+v", job)
	}
	if job.Result == nil || job.Result.VideoURL == nil {
		t.Fatalf("expected a video url, got %+v", job.Result)
	}

	out, _, err = env.run(t, "job", job.ID)
	if err != nil {
		t.Fatalf("job: %v", err)
	}
	requireContains(t, out, job.ID)
	requireContains(t, out, "Completed")
	requireContains(t, out, *job.Result.VideoURL)

	out, _, err = env.run(t, "jobs")
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	requireContains(t, out, job.ID)
}

func TestSubmitUploadsDocument(t *testing.T) {
	env := setupCLITestEnv(t)
	doc := testsupport.WriteText(t, filepath.Join(t.TempDir(), "cells.pdf"), "%PDF-1.4\n1 0 obj\n<<>>\nendobj\n%%EOF\n")

	out, _, err := env.run(t, "submit", doc, "--gender", "female")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	requireContains(t, out, "Submitted job ")
	requireContains(t, out, "(queued)")
}

func TestSubmitRequiresInput(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := env.run(t, "submit")
	if err == nil || !strings.Contains(err.Error(), "--instruction") {
		t.Fatalf("expected missing input error, got %v", err)
	}
}

func TestJobNotFound(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := env.run(t, "job", "missing")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "System Status")
	requireContains(t, out, "Running (pid")
	requireContains(t, out, "Stages")
	requireContains(t, out, "Queued")

	out, _, err = env.run(t, "status", "--json")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running || status.HistoryPath != env.cfg.History.Path {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestStatusWhenDaemonStopped(t *testing.T) {
	listener := httptest.NewServer(http.NotFoundHandler())
	addr := listener.Listener.Addr().String()
	listener.Close()

	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	out, _, err := runCLI(t, []string{"--addr", addr, "--config", configPath, "status"})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Not running")
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := env.run(t, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "ntfy topic not configured")
}

func TestHistoryListsArchivedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.History.Enabled = true
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	now := time.Now().Add(-48 * time.Hour)
	job := jobs.NewJob("job-archived", jobs.Request{DocumentName: "cells.pdf"}, now)
	job.Status = jobs.StatusCompleted
	job.Result = &jobs.Result{Script: "Cells divide.", VideoError: "render timed out"}
	completed := now.Add(time.Minute)
	job.CompletedAt = &completed
	if err := store.Archive(context.Background(), []*jobs.Job{job}); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	store.Close()

	out, _, err := runCLI(t, []string{"--config", configPath, "history"})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "job-archived")
	requireContains(t, out, "cells.pdf")
	requireContains(t, out, "Completed (no video)")

	out, _, err = runCLI(t, []string{"--config", configPath, "history", "job-archived"})
	if err != nil {
		t.Fatalf("history <id>: %v", err)
	}
	requireContains(t, out, "render timed out")
	requireContains(t, out, "Archived")

	if _, _, err := runCLI(t, []string{"--config", configPath, "history", "unknown"}); err == nil {
		t.Fatal("expected error for unknown archived job")
	}
}

func TestHistoryDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.History.Enabled = false
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	_, _, err := runCLI(t, []string{"--config", configPath, "history"})
	if err == nil || !strings.Contains(err.Error(), "disabled") {
		t.Fatalf("expected disabled error, got %v", err)
	}
}

func TestCaptionsFromWords(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	dir := t.TempDir()
	words := []captions.Word{
		{Text: "Cells", StartMS: 0, EndMS: 400},
		{Text: "divide.", StartMS: 400, EndMS: 900},
		{Text: "Then", StartMS: 1000, EndMS: 1300},
		{Text: "grow.", StartMS: 1300, EndMS: 1800},
	}
	data, err := json.Marshal(map[string]any{"words": words})
	if err != nil {
		t.Fatalf("marshal words: %v", err)
	}
	input := testsupport.WriteText(t, filepath.Join(dir, "words.json"), string(data))
	assPath := filepath.Join(dir, "out.ass")

	out, _, err := runCLI(t, []string{"--config", configPath, "captions", input, "--ass", assPath, "--font", "Inter"})
	if err != nil {
		t.Fatalf("captions: %v", err)
	}
	requireContains(t, out, "Wrote 2 cues to "+filepath.Join(dir, "words.srt"))

	srt, err := os.ReadFile(filepath.Join(dir, "words.srt"))
	if err != nil {
		t.Fatalf("read srt: %v", err)
	}
	requireContains(t, string(srt), "00:00:00,000 --> 00:00:00,900")
	requireContains(t, string(srt), "Then grow.")

	ass, err := os.ReadFile(assPath)
	if err != nil {
		t.Fatalf("read ass: %v", err)
	}
	requireContains(t, string(ass), "Inter")

	converted := filepath.Join(dir, "converted.ass")
	out, _, err = runCLI(t, []string{"--config", configPath, "captions", filepath.Join(dir, "words.srt"), "--ass", converted})
	if err != nil {
		t.Fatalf("captions srt: %v", err)
	}
	requireContains(t, out, "Wrote 2 cues to "+converted)
}

func TestCaptionsRejectsEmptyWords(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	input := testsupport.WriteText(t, filepath.Join(t.TempDir(), "words.json"), "[]")

	if _, _, err := runCLI(t, []string{"--config", configPath, "captions", input}); err == nil {
		t.Fatal("expected error for empty word list")
	}
}

func TestDoctorReportsMissingCredentials(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("LLM_API_KEY", "")
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	out, _, err := runCLI(t, []string{"--config", configPath, "doctor", "--json"})
	if err == nil {
		t.Fatal("expected doctor to fail without LLM credentials")
	}
	var report doctorReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if report.Healthy {
		t.Fatal("expected unhealthy report")
	}
	found := false
	for _, check := range report.Checks {
		if check.Name == "Work directory" && check.Passed {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a passing work directory check, got %+v", report.Checks)
	}
}

func TestCallbackHandlerPrintsEvents(t *testing.T) {
	var out strings.Builder
	terminal := make(chan struct{})
	server := httptest.NewServer(newCallbackHandler(&out, terminal))
	defer server.Close()

	post := func(event notifications.Event) {
		t.Helper()
		body, err := json.Marshal(event)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		resp, err := http.Post(server.URL, "application/json", strings.NewReader(string(body)))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", resp.StatusCode)
		}
	}

	post(notifications.Event{Stage: notifications.StageTTSGeneration, Message: "Generating audio", JobID: "job-1"})
	select {
	case <-terminal:
		t.Fatal("terminal closed before a terminal event")
	default:
	}
	post(notifications.Event{Stage: notifications.StageCompleted, Message: "done", JobID: "job-1"}.With("video_url", "http://x/v.mp4"))

	select {
	case <-terminal:
	case <-time.After(time.Second):
		t.Fatal("expected terminal signal")
	}
	requireContains(t, out.String(), "[tts_generation] job-1 Generating audio")
	requireContains(t, out.String(), "video_url=http://x/v.mp4")
}

func TestDialableAddress(t *testing.T) {
	cases := map[string]string{
		":8080":            "127.0.0.1:8080",
		"0.0.0.0:9000":     "127.0.0.1:9000",
		"10.0.0.5:8080":    "10.0.0.5:8080",
		"http://host:8080": "http://host:8080",
		"":                 "",
	}
	for input, want := range cases {
		if got := dialableAddress(input); got != want {
			t.Fatalf("dialableAddress(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFormatStatusLabel(t *testing.T) {
	if got := formatStatusLabel("script_generation"); got != "Script Generation" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := formatStatusLabel(""); got != "" {
		t.Fatalf("expected empty label, got %q", got)
	}
}

func TestLogsFiltersByJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	testsupport.WriteText(t, filepath.Join(cfg.Paths.LogDir, "studai.log"), strings.Join([]string{
		`{"time":"2026-10-19T10:00:00Z","level":"INFO","msg":"job queued","job_id":"job-a"}`,
		`{"time":"2026-10-19T10:00:01Z","level":"INFO","msg":"job queued","job_id":"job-b"}`,
		`{"time":"2026-10-19T10:00:02Z","level":"WARN","msg":"video degraded","job_id":"job-a"}`,
	}, "\n")+"\n")

	out, _, err := runCLI(t, []string{"--config", configPath, "logs", "--job", "job-a"})
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "job-b") {
		t.Fatalf("expected job-b to be filtered out:\n%s", out)
	}
	requireContains(t, out, "video degraded")

	out, _, err = runCLI(t, []string{"--config", configPath, "logs", "-n", "1"})
	if err != nil {
		t.Fatalf("logs -n 1: %v", err)
	}
	if strings.Count(strings.TrimSpace(out), "\n") != 0 {
		t.Fatalf("expected a single line, got:\n%s", out)
	}
}
