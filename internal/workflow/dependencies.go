package workflow

import (
	"fmt"
	"log/slog"

	"studai/internal/compositor"
	"studai/internal/config"
	"studai/internal/services/extract"
	"studai/internal/services/llm"
	"studai/internal/services/speech"
	"studai/internal/services/transcribe"
	"studai/internal/storage"
)

// NewDependencies wires the production collaborators from configuration.
// Missing credentials do not fail here; the stage that needs them reports a
// configuration error when a job reaches it.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (Dependencies, error) {
	store, err := storage.Open(cfg, logger)
	if err != nil {
		return Dependencies{}, fmt.Errorf("open storage: %w", err)
	}
	transcriber, err := transcribe.NewFromConfig(cfg)
	if err != nil {
		return Dependencies{}, fmt.Errorf("transcription: %w", err)
	}
	return Dependencies{
		Extractor:  extract.New(extract.Options{WorkDir: cfg.Paths.WorkDir, Logger: logger}),
		Scripts:    llm.NewScriptWriterFromConfig(cfg),
		Speech:     speech.NewFromConfig(cfg, logger),
		Compositor: compositor.NewFromConfig(cfg, transcriber, logger),
		Store:      store,
	}, nil
}
