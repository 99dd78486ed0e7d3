package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeLLM()
	c.normalizeSpeech()
	c.normalizeTranscription()
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	if err := c.normalizeCompositor(); err != nil {
		return err
	}
	if err := c.normalizeCaptions(); err != nil {
		return err
	}
	c.normalizeRegistry()
	if err := c.normalizeHistory(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(defaultIfBlank(c.Paths.WorkDir, defaultWorkDir)); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(defaultIfBlank(c.Paths.StateDir, defaultStateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(defaultIfBlank(c.Paths.LogDir, defaultLogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = defaultIfBlank(c.API.Bind, defaultAPIBind)
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		c.API.Token = lookupEnv("STUDAI_API_TOKEN")
	}
	c.API.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.API.PublicBaseURL), "/")
	hosts := c.API.DocumentHosts[:0]
	for _, host := range c.API.DocumentHosts {
		if host = strings.ToLower(strings.TrimSpace(host)); host != "" {
			hosts = append(hosts, host)
		}
	}
	c.API.DocumentHosts = hosts
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = lookupEnv("OPENROUTER_API_KEY", "LLM_API_KEY")
	}
	c.LLM.BaseURL = defaultIfBlank(c.LLM.BaseURL, defaultLLMBaseURL)
	c.LLM.Model = defaultIfBlank(c.LLM.Model, defaultLLMModel)
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.MaxSourceLength <= 0 {
		c.LLM.MaxSourceLength = defaultMaxSourceLength
	}
}

func (c *Config) normalizeSpeech() {
	c.Speech.ResourceKey = strings.TrimSpace(c.Speech.ResourceKey)
	if c.Speech.ResourceKey == "" {
		c.Speech.ResourceKey = lookupEnv("TTS_AZURE_RESOURCE_KEY")
	}
	c.Speech.Region = strings.TrimSpace(c.Speech.Region)
	if c.Speech.Region == "" {
		c.Speech.Region = lookupEnv("TTS_AZURE_REGION")
	}
	c.Speech.Endpoint = strings.TrimSpace(c.Speech.Endpoint)
	if c.Speech.Endpoint == "" {
		c.Speech.Endpoint = lookupEnv("TTS_AZURE_ENDPOINT")
	}
	c.Speech.OutputFormat = defaultIfBlank(c.Speech.OutputFormat, defaultSpeechOutputFormat)
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Provider = strings.ToLower(defaultIfBlank(c.Transcription.Provider, TranscriptionAssemblyAI))
	c.Transcription.AssemblyAIKey = strings.TrimSpace(c.Transcription.AssemblyAIKey)
	if c.Transcription.AssemblyAIKey == "" {
		c.Transcription.AssemblyAIKey = lookupEnv("ASSEMBLYAI_API_KEY")
	}
	c.Transcription.AssemblyAIBaseURL = strings.TrimRight(defaultIfBlank(c.Transcription.AssemblyAIBaseURL, defaultAssemblyAIBaseURL), "/")
	c.Transcription.WhisperXModel = defaultIfBlank(c.Transcription.WhisperXModel, defaultWhisperXModel)
}

func (c *Config) normalizeStorage() error {
	c.Storage.Driver = strings.ToLower(defaultIfBlank(c.Storage.Driver, StorageDriverLocal))
	c.Storage.AccountName = strings.TrimSpace(c.Storage.AccountName)
	if c.Storage.AccountName == "" {
		c.Storage.AccountName = lookupEnv("AZURE_STORAGE_ACCOUNT_NAME")
	}
	c.Storage.AccountKey = strings.TrimSpace(c.Storage.AccountKey)
	if c.Storage.AccountKey == "" {
		c.Storage.AccountKey = lookupEnv("AZURE_STORAGE_ACCOUNT_KEY")
	}
	if value := lookupEnv("AZURE_STORAGE_CONTAINER"); value != "" && strings.TrimSpace(c.Storage.Container) == defaultContainer {
		c.Storage.Container = value
	}
	c.Storage.Container = defaultIfBlank(c.Storage.Container, defaultContainer)
	var err error
	if c.Storage.LocalDir, err = expandPath(defaultIfBlank(c.Storage.LocalDir, defaultLocalStorageDir)); err != nil {
		return fmt.Errorf("storage.local_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCompositor() error {
	c.Compositor.FFmpegPath = strings.TrimSpace(c.Compositor.FFmpegPath)
	if c.Compositor.FFmpegPath == "" {
		c.Compositor.FFmpegPath = lookupEnv("FFMPEG_PATH")
	}
	c.Compositor.FFprobePath = strings.TrimSpace(c.Compositor.FFprobePath)
	c.Compositor.Preset = defaultIfBlank(c.Compositor.Preset, defaultPreset)
	if strings.TrimSpace(c.Compositor.BaseVideo) != "" {
		var err error
		if c.Compositor.BaseVideo, err = expandPath(strings.TrimSpace(c.Compositor.BaseVideo)); err != nil {
			return fmt.Errorf("compositor.base_video: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeCaptions() error {
	c.Captions.Font = defaultIfBlank(c.Captions.Font, defaultCaptionFont)
	if c.Captions.MaxWords <= 0 {
		c.Captions.MaxWords = defaultCaptionMaxWords
	}
	var err error
	if c.Captions.FontsDir, err = expandPath(defaultIfBlank(c.Captions.FontsDir, defaultFontsDir)); err != nil {
		return fmt.Errorf("captions.fonts_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRegistry() {
	c.Registry.Backend = strings.ToLower(defaultIfBlank(c.Registry.Backend, RegistryMemory))
	if value := lookupEnv("REDIS_ADDR"); value != "" && (c.Registry.RedisAddr == "" || c.Registry.RedisAddr == defaultRedisAddr) {
		c.Registry.RedisAddr = value
	}
	c.Registry.RedisAddr = defaultIfBlank(c.Registry.RedisAddr, defaultRedisAddr)
	c.Registry.KeyPrefix = defaultIfBlank(c.Registry.KeyPrefix, defaultRegistryKeyPrefix)
}

func (c *Config) normalizeHistory() error {
	path := strings.TrimSpace(c.History.Path)
	if path == "" {
		path = filepath.Join(c.Paths.StateDir, defaultHistoryFile)
	}
	var err error
	if c.History.Path, err = expandPath(path); err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(defaultIfBlank(c.Logging.Format, defaultLogFormat))
	c.Logging.Level = strings.ToLower(defaultIfBlank(c.Logging.Level, defaultLogLevel))
}

func defaultIfBlank(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func lookupEnv(keys ...string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}
