package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. Missing collaborator
// credentials are not rejected here; the stage that needs them fails instead.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateCompositor(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateRegistry(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAPI() error {
	if strings.TrimSpace(c.API.Bind) == "" {
		return errors.New("api.bind must be set")
	}
	if c.API.MaxUploadMB <= 0 {
		return errors.New("api.max_upload_mb must be positive")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.TimeoutSeconds <= 0 {
		return errors.New("llm.timeout_seconds must be positive")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.New("llm.temperature must be between 0 and 2")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.Provider {
	case TranscriptionAssemblyAI, TranscriptionWhisperX, TranscriptionNone:
	default:
		return fmt.Errorf("transcription.provider: unsupported value %q (use assemblyai, whisperx, or none)", c.Transcription.Provider)
	}
	return ensurePositiveMap(map[string]int{
		"transcription.poll_interval_seconds": c.Transcription.PollIntervalSeconds,
		"transcription.timeout_seconds":       c.Transcription.TimeoutSeconds,
		"speech.timeout_seconds":              c.Speech.TimeoutSeconds,
	})
}

func (c *Config) validateStorage() error {
	switch c.Storage.Driver {
	case StorageDriverLocal:
		if strings.TrimSpace(c.Storage.LocalDir) == "" {
			return errors.New("storage.local_dir must be set when storage.driver is local")
		}
	case StorageDriverAzure:
		if strings.TrimSpace(c.Storage.Container) == "" {
			return errors.New("storage.container must be set when storage.driver is azure")
		}
	default:
		return fmt.Errorf("storage.driver: unsupported value %q (use azure or local)", c.Storage.Driver)
	}
	if c.Storage.SASExpiryHours <= 0 {
		return errors.New("storage.sas_expiry_hours must be positive")
	}
	return nil
}

func (c *Config) validateCompositor() error {
	if err := ensurePositiveMap(map[string]int{
		"compositor.threads":                c.Compositor.Threads,
		"compositor.fps":                    c.Compositor.FPS,
		"compositor.render_timeout_seconds": c.Compositor.RenderTimeoutSeconds,
		"compositor.burn_timeout_seconds":   c.Compositor.BurnTimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Captions.FontSize <= 0 {
		return errors.New("captions.font_size must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.max_concurrent_jobs":   c.Workflow.MaxConcurrentJobs,
		"workflow.render_workers":        c.Workflow.RenderWorkers,
		"workflow.heartbeat_interval":    c.Workflow.HeartbeatInterval,
		"workflow.stage_attempts":        c.Workflow.StageAttempts,
		"notifications.webhook_timeout": c.Notifications.WebhookTimeout,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Workflow.StageBackoffMillis < 0 {
		return errors.New("workflow.stage_backoff_millis must be >= 0")
	}
	if c.Workflow.ShutdownGrace < 0 {
		return errors.New("workflow.shutdown_grace must be >= 0")
	}
	return nil
}

func (c *Config) validateRegistry() error {
	switch c.Registry.Backend {
	case RegistryMemory:
	case RegistryRedis:
		if strings.TrimSpace(c.Registry.RedisAddr) == "" {
			defaultPath, err := DefaultConfigPath()
			if err != nil {
				defaultPath = "~/.config/studai/config.toml"
			}
			return fmt.Errorf("registry.redis_addr is required when registry.backend is redis. Set REDIS_ADDR env var or edit %s (create with 'studai config init')", defaultPath)
		}
	default:
		return fmt.Errorf("registry.backend: unsupported value %q (use memory or redis)", c.Registry.Backend)
	}
	if c.Registry.RetentionHours <= 0 {
		return errors.New("registry.retention_hours must be positive")
	}
	if c.Registry.SweepInterval <= 0 {
		return errors.New("registry.sweep_interval must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (use console or json)", c.Logging.Format)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
