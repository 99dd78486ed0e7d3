package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// Route paths served by the daemon.
const (
	RouteGenerate = "/generate/video"
	RouteStatus   = "/generate/video/status/"
	RouteResult   = "/generate/video/result/"
	RouteSocket   = "/ws/generate"
	RouteDaemon   = "/api/status"
	RouteJobs     = "/api/jobs"
	RouteHistory  = "/api/history"
	RouteNotify   = "/api/notifications/test"

	// RequestIDHeader carries the correlation id echoed by the daemon.
	RequestIDHeader = "X-Request-ID"
)

// ErrJobNotReady is returned by Client.Result while the job is still running.
var ErrJobNotReady = errors.New("job not ready")

// StatusError is a non-2xx reply decoded from the daemon.
type StatusError struct {
	Code    int
	Message string
	Kind    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned %d", e.Code)
	}
	return fmt.Sprintf("daemon returned %d: %s", e.Code, e.Message)
}

// SubmitRequest describes a generation request sent by the CLI.
type SubmitRequest struct {
	FilePath    string
	Instruction string
	Gender      string
	CallbackURL string
}

// Client talks to the daemon's HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient returns a client for the daemon listening at baseURL.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base != "" && !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{baseURL: base, token: strings.TrimSpace(token), http: httpClient}
}

// Status retrieves the daemon status.
func (c *Client) Status(ctx context.Context) (*DaemonStatus, error) {
	var resp DaemonStatus
	if err := c.getJSON(ctx, RouteDaemon, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Job returns the snapshot for a job id.
func (c *Client) Job(ctx context.Context, id string) (*Job, error) {
	var resp Job
	if err := c.getJSON(ctx, RouteStatus+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Jobs lists live jobs.
func (c *Client) Jobs(ctx context.Context) ([]Job, error) {
	var resp JobListResponse
	if err := c.getJSON(ctx, RouteJobs, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// History lists archived jobs, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	path := RouteHistory
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var resp []HistoryEntry
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Result returns the result payload of a completed job. ErrJobNotReady is
// returned while the job is queued or processing.
func (c *Client) Result(ctx context.Context, id string) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.getJSON(ctx, RouteResult+url.PathEscape(id), &raw)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusConflict {
		return nil, ErrJobNotReady
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// TestNotification asks the daemon to send an operator test alert.
func (c *Client) TestNotification(ctx context.Context) (*NotificationResponse, error) {
	req, err := c.newRequest(ctx, http.MethodPost, RouteNotify, nil)
	if err != nil {
		return nil, err
	}
	var resp NotificationResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Submit uploads a generation request.
func (c *Client) Submit(ctx context.Context, submit SubmitRequest) (*SubmitResponse, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	fields := map[string]string{
		"user_additional_input": submit.Instruction,
		"gender":                submit.Gender,
		"callback_url":          submit.CallbackURL,
	}
	for key, value := range fields {
		if strings.TrimSpace(value) == "" {
			continue
		}
		if err := writer.WriteField(key, value); err != nil {
			return nil, err
		}
	}
	if path := strings.TrimSpace(submit.FilePath); path != "" {
		if err := attachFile(writer, path); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, RouteGenerate, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	var resp SubmitResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func attachFile(writer *multipart.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open document: %w", err)
	}
	defer file.Close()
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("detect document type: %w", err)
	}
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{
		fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)),
	}
	header["Content-Type"] = []string{mtype.String()}
	part, err := writer.CreatePart(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file)
	return err
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if c.baseURL == "" {
		return nil, errors.New("daemon address is not configured")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contact daemon: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read daemon response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Code: resp.StatusCode}
		var payload ErrorResponse
		if json.Unmarshal(data, &payload) == nil {
			statusErr.Message = payload.Error
			statusErr.Kind = payload.Kind
		} else {
			statusErr.Message = strings.TrimSpace(string(data))
		}
		return statusErr
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode daemon response: %w", err)
	}
	return nil
}
