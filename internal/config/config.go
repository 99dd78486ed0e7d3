package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains working directory configuration.
type Paths struct {
	WorkDir  string `toml:"work_dir"`
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// API contains the HTTP/WebSocket listener configuration.
type API struct {
	Bind          string `toml:"bind"`
	Token         string `toml:"token"`
	MaxUploadMB   int    `toml:"max_upload_mb"`
	PublicBaseURL string `toml:"public_base_url"`
	// DocumentHosts limits where a WebSocket pdf_url may point. A leading dot
	// matches any subdomain. Empty allows any public host.
	DocumentHosts []string `toml:"document_hosts"`
}

// LLM contains the chat-completions connection used for script generation.
type LLM struct {
	APIKey          string  `toml:"api_key"`
	BaseURL         string  `toml:"base_url"`
	Model           string  `toml:"model"`
	Referer         string  `toml:"referer"`
	Title           string  `toml:"title"`
	Temperature     float64 `toml:"temperature"`
	TimeoutSeconds  int     `toml:"timeout_seconds"`
	MaxSourceLength int     `toml:"max_source_length"`
}

// Speech contains Azure text-to-speech settings.
type Speech struct {
	ResourceKey    string `toml:"resource_key"`
	Region         string `toml:"region"`
	Endpoint       string `toml:"endpoint"`
	OutputFormat   string `toml:"output_format"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Transcription selects the word-timing provider used for captions.
type Transcription struct {
	Provider            string `toml:"provider"`
	AssemblyAIKey       string `toml:"assemblyai_api_key"`
	AssemblyAIBaseURL   string `toml:"assemblyai_base_url"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	WhisperXModel       string `toml:"whisperx_model"`
	WhisperXCUDAEnabled bool   `toml:"whisperx_cuda_enabled"`
}

// Storage selects where generated artifacts are published.
type Storage struct {
	Driver         string `toml:"driver"`
	AccountName    string `toml:"account_name"`
	AccountKey     string `toml:"account_key"`
	Container      string `toml:"container"`
	SASExpiryHours int    `toml:"sas_expiry_hours"`
	LocalDir       string `toml:"local_dir"`
}

// Compositor contains rendering settings for the base clip edit and burn-in.
type Compositor struct {
	FFmpegPath           string `toml:"ffmpeg_path"`
	FFprobePath          string `toml:"ffprobe_path"`
	BaseVideo            string `toml:"base_video"`
	Preset               string `toml:"preset"`
	Threads              int    `toml:"threads"`
	FPS                  int    `toml:"fps"`
	RenderTimeoutSeconds int    `toml:"render_timeout_seconds"`
	BurnTimeoutSeconds   int    `toml:"burn_timeout_seconds"`
}

// Captions contains caption styling and grouping settings.
type Captions struct {
	Enabled  bool   `toml:"enabled"`
	Font     string `toml:"font"`
	FontSize int    `toml:"font_size"`
	FontsDir string `toml:"fonts_dir"`
	MaxWords int    `toml:"max_words"`
}

// Workflow contains concurrency and timing settings for the pipeline.
type Workflow struct {
	MaxConcurrentJobs  int `toml:"max_concurrent_jobs"`
	RenderWorkers      int `toml:"render_workers"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	StageAttempts      int `toml:"stage_attempts"`
	StageBackoffMillis int `toml:"stage_backoff_millis"`
	ShutdownGrace      int `toml:"shutdown_grace"`
}

// Registry selects the live job registry backend and its retention.
type Registry struct {
	Backend        string `toml:"backend"`
	RedisAddr      string `toml:"redis_addr"`
	RedisPassword  string `toml:"redis_password"`
	RedisDB        int    `toml:"redis_db"`
	KeyPrefix      string `toml:"key_prefix"`
	RetentionHours int    `toml:"retention_hours"`
	SweepInterval  int    `toml:"sweep_interval"`
}

// History contains the sqlite archive for pruned jobs.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Notifications contains webhook delivery and ntfy operator alert settings.
type Notifications struct {
	WebhookTimeout int    `toml:"webhook_timeout"`
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobCompleted   bool   `toml:"job_completed"`
	JobFailed      bool   `toml:"job_failed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for StudAI.
//
// Configuration sections by subsystem:
//   - Paths: work, state, and log directories
//   - API: HTTP/WebSocket listener
//   - LLM, Speech, Transcription: external AI collaborators
//   - Storage: artifact publishing (Azure Blob or local directory)
//   - Compositor, Captions: rendering and subtitle burn-in
//   - Workflow: job concurrency, render pool, heartbeat
//   - Registry, History: live job state and the pruned-job archive
//   - Notifications, Logging: observers and log output
type Config struct {
	Paths         Paths         `toml:"paths"`
	API           API           `toml:"api"`
	LLM           LLM           `toml:"llm"`
	Speech        Speech        `toml:"speech"`
	Transcription Transcription `toml:"transcription"`
	Storage       Storage       `toml:"storage"`
	Compositor    Compositor    `toml:"compositor"`
	Captions      Captions      `toml:"captions"`
	Workflow      Workflow      `toml:"workflow"`
	Registry      Registry      `toml:"registry"`
	History       History       `toml:"history"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/studai/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("studai.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.WorkDir, c.Paths.StateDir, c.Paths.LogDir}
	if c.Storage.Driver == StorageDriverLocal {
		dirs = append(dirs, c.Storage.LocalDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "studaid.lock")
}

// FFprobeBinary returns the ffprobe executable used for media inspection.
func (c *Config) FFprobeBinary() string {
	if path := strings.TrimSpace(c.Compositor.FFprobePath); path != "" {
		return path
	}
	return "ffprobe"
}

// HeartbeatInterval returns the rendering heartbeat period.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Workflow.HeartbeatInterval) * time.Second
}

// Retention returns how long terminal jobs stay in the live registry.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Registry.RetentionHours) * time.Hour
}

// SweepInterval returns how often the retention sweeper runs.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Registry.SweepInterval) * time.Second
}

// ShutdownGrace returns how long shutdown waits for in-flight jobs.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.Workflow.ShutdownGrace) * time.Second
}

// WebhookTimeout returns the per-event callback delivery timeout.
func (c *Config) WebhookTimeout() time.Duration {
	return time.Duration(c.Notifications.WebhookTimeout) * time.Second
}

// SASExpiry returns the lifetime of signed artifact URLs.
func (c *Config) SASExpiry() time.Duration {
	return time.Duration(c.Storage.SASExpiryHours) * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
