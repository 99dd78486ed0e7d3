package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"studai/internal/config"
)

const userAgent = "StudAI-Go/0.1.0"

// Service sends operator alerts about job outcomes.
type Service interface {
	NotifyJobCompleted(ctx context.Context, jobID, label string, degraded bool) error
	NotifyJobFailed(ctx context.Context, jobID, label string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds an alert service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		completed: cfg.Notifications.JobCompleted,
		failed:    cfg.Notifications.JobFailed,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	completed bool
	failed    bool
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, jobID, label string, degraded bool) error {
	if !n.completed {
		return nil
	}
	data := payload{
		title:   "StudAI - Video Ready",
		message: fmt.Sprintf("✅ Job %s finished: %s", shortID(jobID), displayLabel(label)),
		tags:    []string{"studai", "job", "completed"},
	}
	if degraded {
		data.title = "StudAI - Audio Only"
		data.message = fmt.Sprintf("⚠️ Job %s finished without video: %s", shortID(jobID), displayLabel(label))
		data.tags = []string{"studai", "job", "degraded"}
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, jobID, label string, err error) error {
	if !n.failed {
		return nil
	}
	var builder strings.Builder
	fmt.Fprintf(&builder, "❌ Job %s failed: %s", shortID(jobID), displayLabel(label))
	builder.WriteString("\n")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown error")
	}
	return n.send(ctx, payload{
		title:    "StudAI - Job Failed",
		message:  builder.String(),
		tags:     []string{"studai", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "StudAI - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"studai", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func displayLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "untitled"
	}
	return label
}

type noopService struct{}

func (noopService) NotifyJobCompleted(context.Context, string, string, bool) error { return nil }
func (noopService) NotifyJobFailed(context.Context, string, string, error) error   { return nil }
func (noopService) TestNotification(context.Context) error                         { return nil }
