package config

const (
	StorageDriverAzure = "azure"
	StorageDriverLocal = "local"

	TranscriptionAssemblyAI = "assemblyai"
	TranscriptionWhisperX   = "whisperx"
	TranscriptionNone       = "none"

	RegistryMemory = "memory"
	RegistryRedis  = "redis"
)

const (
	defaultWorkDir              = "~/.local/share/studai/work"
	defaultStateDir             = "~/.local/share/studai/state"
	defaultLogDir               = "~/.local/share/studai/logs"
	defaultLocalStorageDir      = "~/.local/share/studai/artifacts"
	defaultAPIBind              = "127.0.0.1:8000"
	defaultMaxUploadMB          = 50
	defaultLLMBaseURL           = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel             = "google/gemini-2.5-flash"
	defaultLLMReferer           = "https://github.com/studai/studai"
	defaultLLMTitle             = "StudAI Script Writer"
	defaultLLMTemperature       = 0.9
	defaultLLMTimeoutSeconds    = 120
	defaultMaxSourceLength      = 15000
	defaultSpeechOutputFormat   = "audio-24khz-48kbitrate-mono-mp3"
	defaultSpeechTimeoutSeconds = 60
	defaultAssemblyAIBaseURL    = "https://api.assemblyai.com"
	defaultTranscribePoll       = 3
	defaultTranscribeTimeout    = 300
	defaultWhisperXModel        = "large-v3-turbo"
	defaultContainer            = "studai"
	defaultSASExpiryHours       = 24 * 30
	defaultPreset               = "ultrafast"
	defaultThreads              = 4
	defaultFPS                  = 30
	defaultRenderTimeout        = 600
	defaultBurnTimeout          = 300
	defaultCaptionFont          = "Gilroy-Bold"
	defaultCaptionFontSize      = 56
	defaultFontsDir             = "assets/fonts"
	defaultCaptionMaxWords      = 10
	defaultMaxConcurrentJobs    = 4
	defaultRenderWorkers        = 2
	defaultHeartbeatInterval    = 10
	defaultStageAttempts        = 2
	defaultStageBackoffMillis   = 500
	defaultShutdownGrace        = 10
	defaultRedisAddr            = "127.0.0.1:6379"
	defaultRegistryKeyPrefix    = "studai:job:"
	defaultRetentionHours       = 24
	defaultSweepInterval        = 300
	defaultHistoryFile          = "history.db"
	defaultWebhookTimeout       = 10
	defaultNotifyTimeout        = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:  defaultWorkDir,
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		API: API{
			Bind:          defaultAPIBind,
			MaxUploadMB:   defaultMaxUploadMB,
			DocumentHosts: []string{".blob.core.windows.net"},
		},
		LLM: LLM{
			BaseURL:         defaultLLMBaseURL,
			Model:           defaultLLMModel,
			Referer:         defaultLLMReferer,
			Title:           defaultLLMTitle,
			Temperature:     defaultLLMTemperature,
			TimeoutSeconds:  defaultLLMTimeoutSeconds,
			MaxSourceLength: defaultMaxSourceLength,
		},
		Speech: Speech{
			OutputFormat:   defaultSpeechOutputFormat,
			TimeoutSeconds: defaultSpeechTimeoutSeconds,
		},
		Transcription: Transcription{
			Provider:            TranscriptionAssemblyAI,
			AssemblyAIBaseURL:   defaultAssemblyAIBaseURL,
			PollIntervalSeconds: defaultTranscribePoll,
			TimeoutSeconds:      defaultTranscribeTimeout,
			WhisperXModel:       defaultWhisperXModel,
		},
		Storage: Storage{
			Driver:         StorageDriverLocal,
			Container:      defaultContainer,
			SASExpiryHours: defaultSASExpiryHours,
			LocalDir:       defaultLocalStorageDir,
		},
		Compositor: Compositor{
			Preset:               defaultPreset,
			Threads:              defaultThreads,
			FPS:                  defaultFPS,
			RenderTimeoutSeconds: defaultRenderTimeout,
			BurnTimeoutSeconds:   defaultBurnTimeout,
		},
		Captions: Captions{
			Enabled:  true,
			Font:     defaultCaptionFont,
			FontSize: defaultCaptionFontSize,
			FontsDir: defaultFontsDir,
			MaxWords: defaultCaptionMaxWords,
		},
		Workflow: Workflow{
			MaxConcurrentJobs:  defaultMaxConcurrentJobs,
			RenderWorkers:      defaultRenderWorkers,
			HeartbeatInterval:  defaultHeartbeatInterval,
			StageAttempts:      defaultStageAttempts,
			StageBackoffMillis: defaultStageBackoffMillis,
			ShutdownGrace:      defaultShutdownGrace,
		},
		Registry: Registry{
			Backend:        RegistryMemory,
			RedisAddr:      defaultRedisAddr,
			KeyPrefix:      defaultRegistryKeyPrefix,
			RetentionHours: defaultRetentionHours,
			SweepInterval:  defaultSweepInterval,
		},
		History: History{
			Enabled: true,
		},
		Notifications: Notifications{
			WebhookTimeout: defaultWebhookTimeout,
			RequestTimeout: defaultNotifyTimeout,
			JobCompleted:   true,
			JobFailed:      true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
