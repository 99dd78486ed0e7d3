package workflow

import (
	"context"

	"studai/internal/compositor"
	"studai/internal/notifications"
	"studai/internal/storage"
)

// Extractor pulls source text out of a document.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// ScriptWriter turns source text and an instruction into narration.
type ScriptWriter interface {
	GenerateScript(ctx context.Context, sourceText, instruction string) (string, error)
}

// Synthesizer renders narration to audio and reports the detected language.
type Synthesizer interface {
	Synthesize(ctx context.Context, script, gender, outputPath string) (string, string, error)
}

// Composer renders the final narrated video.
type Composer interface {
	Compose(ctx context.Context, req compositor.Request) (string, error)
}

// Dependencies bundles the collaborators a job calls.
type Dependencies struct {
	Extractor  Extractor
	Scripts    ScriptWriter
	Speech     Synthesizer
	Compositor Composer
	Store      storage.Store
}

// Submission is one generation request.
type Submission struct {
	// DocumentPath is a local copy of an uploaded document.
	DocumentPath string
	// DocumentName is the caller-facing document name.
	DocumentName string
	// DocumentURL is fetched into the job workspace when DocumentPath is empty.
	DocumentURL string
	Instruction string
	Gender      string
	// Destination receives progress events. Pass a nil interface for none.
	Destination notifications.Destination
	// DestinationLabel is recorded on the job, e.g. the callback URL.
	DestinationLabel string
}

func (s Submission) hasDocument() bool {
	return s.DocumentPath != "" || s.DocumentURL != ""
}

// pipelineState carries per-job values between stages.
type pipelineState struct {
	jobID        string
	fileID       string
	workDir      string
	dest         notifications.Destination
	sub          Submission
	documentPath string
	result       resultDraft
}

type resultDraft struct {
	script     string
	audioURL   string
	videoURL   string
	videoError string
	language   string
	pdfName    string
	pdfBlobURL string
	topic      string
}
