package speech

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"studai/internal/config"
	"studai/internal/logging"
	"studai/internal/services"
)

const (
	stageName           = "tts_generation"
	defaultOutputFormat = "audio-24khz-48kbitrate-mono-mp3"
	userAgent           = "StudAI-Go/0.1.0"
)

// Config carries Azure Speech credentials and output settings.
type Config struct {
	ResourceKey  string
	Region       string
	Endpoint     string
	OutputFormat string
	Timeout      time.Duration
}

// Service synthesizes speech with Azure Speech.
type Service struct {
	cfg    Config
	client *http.Client
	pick   func(n int) int
	logger *slog.Logger
}

// Option customizes the service.
type Option func(*Service)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		if client != nil {
			s.client = client
		}
	}
}

// WithVoicePicker overrides random voice selection (for tests).
func WithVoicePicker(pick func(n int) int) Option {
	return func(s *Service) {
		if pick != nil {
			s.pick = pick
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logging.NewComponentLogger(logger, "speech")
	}
}

// NewService constructs a speech service.
func NewService(cfg Config, opts ...Option) *Service {
	if strings.TrimSpace(cfg.OutputFormat) == "" {
		cfg.OutputFormat = defaultOutputFormat
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	s := &Service{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		pick:   rand.IntN,
		logger: logging.NewComponentLogger(nil, "speech"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromConfig builds the service from the speech config section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Service {
	return NewService(Config{
		ResourceKey:  cfg.Speech.ResourceKey,
		Region:       cfg.Speech.Region,
		Endpoint:     cfg.Speech.Endpoint,
		OutputFormat: cfg.Speech.OutputFormat,
		Timeout:      time.Duration(cfg.Speech.TimeoutSeconds) * time.Second,
	}, WithLogger(logger))
}

// Synthesize renders script to outputPath and returns the path and detected language.
func (s *Service) Synthesize(ctx context.Context, script, gender, outputPath string) (string, string, error) {
	endpoint, err := s.endpoint()
	if err != nil {
		return "", "", err
	}
	language := DetectLanguage(script)
	text := StripLanguageTags(script)
	if text == "" {
		return "", "", services.Wrap(services.ErrValidation, stageName, "synthesize", "script has no speakable text", nil)
	}
	candidates := voiceCandidates(language, gender)
	voice := candidates[s.pick(len(candidates))]
	ssml := BuildSSML(voice, ProsodyRate(language), text)

	logging.WithContext(ctx, s.logger).Info("synthesizing narration",
		logging.String("language", language),
		logging.String("voice", voice),
		logging.Int("characters", len(text)),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(ssml))
	if err != nil {
		return "", "", services.Wrap(services.ErrConfiguration, stageName, "synthesize", "build request", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", s.cfg.ResourceKey)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", s.cfg.OutputFormat)
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", "", services.Wrap(services.ErrTransient, stageName, "synthesize", "azure speech request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", "", statusError(resp.StatusCode, body)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", "", services.Wrap(services.ErrConfiguration, stageName, "synthesize", "create audio directory", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return "", "", services.Wrap(services.ErrTransient, stageName, "synthesize", "read audio stream", err)
	}
	if buf.Len() == 0 {
		return "", "", services.Wrap(services.ErrExternalTool, stageName, "synthesize", "azure speech returned no audio", nil)
	}
	if err := os.WriteFile(outputPath, buf.Bytes(), 0o644); err != nil {
		return "", "", services.Wrap(services.ErrExternalTool, stageName, "synthesize", "write audio", err)
	}
	return outputPath, language, nil
}

func (s *Service) endpoint() (string, error) {
	if strings.TrimSpace(s.cfg.ResourceKey) == "" {
		return "", services.Wrap(services.ErrConfiguration, stageName, "synthesize",
			"speech.resource_key is not set (TTS_AZURE_RESOURCE_KEY)", nil)
	}
	if endpoint := strings.TrimSpace(s.cfg.Endpoint); endpoint != "" {
		parsed, err := url.Parse(endpoint)
		if err != nil || parsed.Host == "" {
			return "", services.Wrap(services.ErrConfiguration, stageName, "synthesize", "speech.endpoint is not a valid URL", err)
		}
		if strings.Trim(parsed.Path, "/") == "" {
			parsed.Path = "/cognitiveservices/v1"
		}
		return parsed.String(), nil
	}
	if region := strings.TrimSpace(s.cfg.Region); region != "" {
		return fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", region), nil
	}
	return "", services.Wrap(services.ErrConfiguration, stageName, "synthesize",
		"either speech.region (TTS_AZURE_REGION) or speech.endpoint (TTS_AZURE_ENDPOINT) must be set", nil)
}

func statusError(code int, body []byte) error {
	msg := fmt.Sprintf("azure speech http %d: %s", code, strings.TrimSpace(string(body)))
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, stageName, "synthesize", msg, nil)
	case code == http.StatusTooManyRequests, code >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransient, stageName, "synthesize", msg, nil)
	default:
		return services.Wrap(services.ErrExternalTool, stageName, "synthesize", msg, nil)
	}
}

// BuildSSML wraps text in a single voice and prosody element.
func BuildSSML(voice, rate, text string) string {
	var escaped bytes.Buffer
	_ = xml.EscapeText(&escaped, []byte(text))
	return fmt.Sprintf(
		"<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xmlns:mstts='http://www.w3.org/2001/mstts' xml:lang='%s'>"+
			"<voice name='%s'><prosody rate='%s'>%s</prosody></voice></speak>",
		voiceLocale(voice), voice, rate, escaped.String(),
	)
}
