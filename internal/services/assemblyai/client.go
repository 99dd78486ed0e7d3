// Package assemblyai transcribes narration through the AssemblyAI REST API:
// upload the audio, create a transcript, and poll until it completes.
package assemblyai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"studai/internal/captions"
	"studai/internal/services"
)

const (
	stageName           = "video_editing"
	defaultBaseURL      = "https://api.assemblyai.com"
	defaultPollInterval = 3 * time.Second
	defaultTimeout      = 5 * time.Minute
)

// Config configures the client.
type Config struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
	Timeout      time.Duration
}

// Client talks to AssemblyAI.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient constructs a client. httpClient may be nil.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Minute}
	}
	return &Client{cfg: cfg, http: httpClient}
}

type transcriptRequest struct {
	AudioURL     string `json:"audio_url"`
	LanguageCode string `json:"language_code,omitempty"`
	Punctuate    bool   `json:"punctuate"`
}

type transcriptResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
	Words  []struct {
		Text  string `json:"text"`
		Start int64  `json:"start"`
		End   int64  `json:"end"`
	} `json:"words"`
}

// Transcribe uploads audioPath and waits for word timings.
func (c *Client) Transcribe(ctx context.Context, audioPath, languageCode string) (string, []captions.Word, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", nil, services.Wrap(services.ErrConfiguration, stageName, "assemblyai",
			"transcription.assemblyai_api_key is not set (ASSEMBLYAI_API_KEY)", nil)
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	uploadURL, err := c.upload(ctx, audioPath)
	if err != nil {
		return "", nil, err
	}
	var created transcriptResponse
	body := transcriptRequest{AudioURL: uploadURL, LanguageCode: languageCode, Punctuate: true}
	if err := c.doJSON(ctx, http.MethodPost, "/v2/transcript", body, &created); err != nil {
		return "", nil, err
	}

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	current := created
	for {
		switch current.Status {
		case "completed":
			return current.Text, convertWords(current), nil
		case "error", "failed":
			return "", nil, services.Wrap(services.ErrExternalTool, stageName, "assemblyai",
				"transcription failed: "+current.Error, nil)
		}
		select {
		case <-ctx.Done():
			return "", nil, services.Wrap(services.ErrTimeout, stageName, "assemblyai", "waiting for transcript", ctx.Err())
		case <-ticker.C:
		}
		if err := c.doJSON(ctx, http.MethodGet, "/v2/transcript/"+created.ID, nil, &current); err != nil {
			return "", nil, err
		}
	}
}

func convertWords(resp transcriptResponse) []captions.Word {
	words := make([]captions.Word, 0, len(resp.Words))
	for _, w := range resp.Words {
		words = append(words, captions.Word{Text: w.Text, StartMS: w.Start, EndMS: w.End})
	}
	return words
}

func (c *Client) upload(ctx context.Context, audioPath string) (string, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, stageName, "assemblyai upload", audioPath, err)
	}
	defer file.Close()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v2/upload", file)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, stageName, "assemblyai upload", "build request", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	var out struct {
		UploadURL string `json:"upload_url"`
	}
	if err := c.send(req, &out); err != nil {
		return "", err
	}
	if out.UploadURL == "" {
		return "", services.Wrap(services.ErrExternalTool, stageName, "assemblyai upload", "missing upload_url", nil)
	}
	return out.UploadURL, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = strings.NewReader(string(encoded))
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, stageName, "assemblyai", "build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	req.Header.Set("Authorization", c.cfg.APIKey)
	resp, err := c.http.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, stageName, "assemblyai", "request failed", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return services.Wrap(services.ErrTransient, stageName, "assemblyai", "read response", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		msg := fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return services.Wrap(services.ErrConfiguration, stageName, "assemblyai", msg, nil)
		case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= http.StatusInternalServerError:
			return services.Wrap(services.ErrTransient, stageName, "assemblyai", msg, nil)
		default:
			return services.Wrap(services.ErrExternalTool, stageName, "assemblyai", msg, nil)
		}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return services.Wrap(services.ErrExternalTool, stageName, "assemblyai", "decode response", err)
	}
	return nil
}
