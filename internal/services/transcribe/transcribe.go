// Package transcribe selects the word-timing provider used for captions.
package transcribe

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"studai/internal/captions"
	"studai/internal/config"
	"studai/internal/deps"
	"studai/internal/services/assemblyai"
	"studai/internal/services/whisperx"
)

// Transcriber turns narration audio into text and word timings.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, languageCode string) (string, []captions.Word, error)
}

// NewFromConfig returns the configured provider, or nil when captions are
// disabled or the provider is "none".
func NewFromConfig(cfg *config.Config) (Transcriber, error) {
	if !cfg.Captions.Enabled {
		return nil, nil
	}
	switch cfg.Transcription.Provider {
	case config.TranscriptionAssemblyAI:
		return assemblyai.NewClient(assemblyai.Config{
			APIKey:       cfg.Transcription.AssemblyAIKey,
			BaseURL:      cfg.Transcription.AssemblyAIBaseURL,
			PollInterval: time.Duration(cfg.Transcription.PollIntervalSeconds) * time.Second,
			Timeout:      time.Duration(cfg.Transcription.TimeoutSeconds) * time.Second,
		}, nil), nil
	case config.TranscriptionWhisperX:
		ffmpeg := deps.ResolveFFmpeg(cfg.Compositor.FFmpegPath)
		path := ""
		if ffmpeg.Available {
			path = ffmpeg.Command
		}
		return whisperx.NewService(whisperx.Config{
			Model:       cfg.Transcription.WhisperXModel,
			CUDAEnabled: cfg.Transcription.WhisperXCUDAEnabled,
			FFmpegPath:  path,
			WorkDir:     filepath.Join(cfg.Paths.WorkDir, "transcripts"),
		}), nil
	case config.TranscriptionNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported transcription provider %q", cfg.Transcription.Provider)
	}
}
