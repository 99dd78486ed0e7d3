package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"studai/internal/api"
	"studai/internal/jobs"
	"studai/internal/workflow"
)

func TestFromJobKeepsNullVideoURL(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	done := created.Add(time.Minute)
	job := &jobs.Job{
		ID:           "abc",
		Status:       jobs.StatusCompleted,
		StageMessage: "Video generation completed!",
		Request:      jobs.Request{DocumentName: "notes.pdf"},
		Result:       &jobs.Result{Script: "hello", AudioURL: "http://x/a.mp3", VideoError: "render failed"},
		CreatedAt:    created,
		CompletedAt:  &done,
	}
	dto := api.FromJob(job)
	if dto.ID != "abc" || dto.Status != "completed" || dto.Label != "notes.pdf" {
		t.Fatalf("unexpected dto: %+v", dto)
	}
	if dto.CreatedAt != "2026-03-01T10:00:00.000Z" {
		t.Fatalf("unexpected created_at %q", dto.CreatedAt)
	}
	data, err := json.Marshal(dto)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"video_url":null`) {
		t.Fatalf("expected null video_url, got %s", data)
	}
	if !strings.Contains(string(data), `"video_error":"render failed"`) {
		t.Fatalf("expected video_error, got %s", data)
	}
}

func TestFromStatusSummary(t *testing.T) {
	summary := workflow.StatusSummary{
		Running:       true,
		RenderWorkers: 2,
		JobStats:      map[jobs.Status]int{jobs.StatusProcessing: 1, jobs.StatusCompleted: 3},
		StageHealth: []workflow.StageHealth{
			{Name: "speech", Ready: false, Detail: "missing key"},
			{Name: "extraction", Ready: true},
		},
	}
	out := api.FromStatusSummary(summary)
	if !out.Running || out.RenderWorkers != 2 {
		t.Fatalf("unexpected summary: %+v", out)
	}
	if out.JobStats["completed"] != 3 || out.JobStats["processing"] != 1 {
		t.Fatalf("unexpected stats: %+v", out.JobStats)
	}
	if len(out.StageHealth) != 2 || out.StageHealth[0].Name != "extraction" {
		t.Fatalf("expected sorted stage health, got %+v", out.StageHealth)
	}
	if out.StartedAt != "" {
		t.Fatalf("expected empty started_at, got %q", out.StartedAt)
	}
}

func TestClientSubmitMultipart(t *testing.T) {
	doc := filepath.Join(t.TempDir(), "lesson.pdf")
	if err := os.WriteFile(doc, []byte("%PDF-1.4\n%test\n"), 0o644); err != nil {
		t.Fatalf("write doc: %v", err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != api.RouteGenerate {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.FormValue("user_additional_input"); got != "focus on cells" {
			t.Errorf("unexpected instruction %q", got)
		}
		if got := r.FormValue("gender"); got != "female" {
			t.Errorf("unexpected gender %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			defer file.Close()
			if header.Filename != "lesson.pdf" {
				t.Errorf("unexpected filename %q", header.Filename)
			}
			if ct := header.Header.Get("Content-Type"); ct != "application/pdf" {
				t.Errorf("unexpected content type %q", ct)
			}
			data, _ := io.ReadAll(file)
			if !strings.HasPrefix(string(data), "%PDF") {
				t.Errorf("unexpected upload body %q", data)
			}
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(api.SubmitResponse{JobID: "job-1", Status: "queued"})
	}))
	defer server.Close()

	client := api.NewClient(server.URL, "secret", server.Client())
	resp, err := client.Submit(context.Background(), api.SubmitRequest{
		FilePath:    doc,
		Instruction: "focus on cells",
		Gender:      "female",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.JobID != "job-1" || resp.Status != "queued" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestClientResultNotReady(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case api.RouteResult + "pending":
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "job not ready"})
		case api.RouteResult + "done":
			_, _ = w.Write([]byte(`{"script":"s","audio_url":"a","video_url":null}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "job not found", Kind: "not_found"})
		}
	}))
	defer server.Close()

	client := api.NewClient(server.URL, "", server.Client())
	if _, err := client.Result(context.Background(), "pending"); !errors.Is(err, api.ErrJobNotReady) {
		t.Fatalf("expected ErrJobNotReady, got %v", err)
	}
	raw, err := client.Result(context.Background(), "done")
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if !strings.Contains(string(raw), `"video_url":null`) {
		t.Fatalf("unexpected result %s", raw)
	}
	_, err = client.Job(context.Background(), "missing")
	var statusErr *api.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusNotFound || statusErr.Kind != "not_found" {
		t.Fatalf("expected 404 status error, got %v", err)
	}
}

func TestNewClientAddsScheme(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(api.JobListResponse{Jobs: []api.Job{{ID: "one"}}})
	}))
	defer server.Close()

	client := api.NewClient(strings.TrimPrefix(server.URL, "http://"), "", server.Client())
	list, err := client.Jobs(context.Background())
	if err != nil {
		t.Fatalf("Jobs: %v", err)
	}
	if len(list) != 1 || list[0].ID != "one" {
		t.Fatalf("unexpected jobs %+v", list)
	}
}
