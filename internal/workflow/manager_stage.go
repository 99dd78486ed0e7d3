package workflow

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"studai/internal/compositor"
	"studai/internal/jobs"
	"studai/internal/logging"
	"studai/internal/notifications"
	"studai/internal/services"
	"studai/internal/stageexec"
	"studai/internal/storage"
)

// EmptyScriptMessage is the job error when the script generator returns no text.
const EmptyScriptMessage = "Generated script is empty."

const defaultGender = "male"

const (
	msgStart       = "Starting video generation pipeline..."
	msgExtraction  = "Extracting text from PDF..."
	msgScript      = "Generating short-form video script..."
	msgSpeech      = "Generating voiceover..."
	msgAudioUpload = "Uploading audio..."
	msgEditing     = "Merging video and audio..."
	msgRendering   = "Rendering/uploading, still working..."
	msgUploading   = "Uploading video..."
	msgCompleted   = "Video generation completed!"
)

// execute runs the stages of one job in order. A returned error is fatal for
// the job; degrading and ignorable failures are handled inside.
func (m *Manager) execute(ctx context.Context, state *pipelineState) error {
	if err := m.advance(ctx, state, jobs.StatusProcessing, notifications.Event{Stage: notifications.StageStart, Message: msgStart}); err != nil {
		return err
	}

	sourceText := m.prepareDocument(ctx, state)

	script, err := m.generateScript(ctx, state, sourceText)
	if err != nil {
		return err
	}
	state.result.script = script

	audioPath, language, err := m.synthesize(ctx, state, script)
	if err != nil {
		return err
	}
	state.result.language = language

	if err := m.uploadAudio(ctx, state, audioPath, language); err != nil {
		return err
	}

	m.renderVideo(ctx, state, audioPath, language)
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.complete(ctx, state)
}

func (m *Manager) stageOptions(stage notifications.Stage, marker error, operation string) stageexec.Options {
	return stageexec.Options{
		Name:      string(stage),
		Logger:    m.logger,
		Attempts:  m.cfg.Workflow.StageAttempts,
		Backoff:   time.Duration(m.cfg.Workflow.StageBackoffMillis) * time.Millisecond,
		Marker:    marker,
		Operation: operation,
	}
}

// prepareDocument uploads and extracts the job's document. Every failure here
// is logged and yields empty source text.
func (m *Manager) prepareDocument(ctx context.Context, state *pipelineState) string {
	sub := state.sub
	if !sub.hasDocument() {
		state.result.topic = sub.Instruction
		return ""
	}
	state.result.pdfName = state.fileID
	logger := logging.WithContext(ctx, m.logger)

	path := sub.DocumentPath
	if path == "" {
		path = filepath.Join(state.workDir, "source", documentFileName(sub))
		err := stageexec.Run(ctx, m.stageOptions(notifications.StagePDFExtraction, services.ErrTransient, "download document"),
			func(ctx context.Context, _ *slog.Logger) error {
				return m.deps.Store.Download(ctx, sub.DocumentURL, path)
			})
		if err != nil {
			m.warnIgnored(logger, "document download failed; continuing without source text", "document_download_failed", err)
			return ""
		}
	}
	state.documentPath = path

	var blobURL string
	err := stageexec.Run(ctx, m.stageOptions(notifications.StagePDFExtraction, services.ErrTransient, "upload document"),
		func(ctx context.Context, _ *slog.Logger) error {
			url, err := m.deps.Store.Upload(ctx, path, storage.DocumentName(state.fileID))
			blobURL = url
			return err
		})
	if err != nil {
		m.warnIgnored(logger, "document upload failed; continuing without source text", "document_upload_failed", err)
		return ""
	}
	state.result.pdfBlobURL = blobURL

	event := notifications.Event{Stage: notifications.StagePDFExtraction, Message: msgExtraction}.With("pdf_url", blobURL)
	_ = m.advance(ctx, state, jobs.StatusProcessing, event)

	if m.deps.Extractor == nil {
		m.warnIgnored(logger, "no text extractor configured; continuing without source text", "extractor_missing", nil)
		return ""
	}
	var text string
	err = stageexec.Run(ctx, m.stageOptions(notifications.StagePDFExtraction, services.ErrExternalTool, "extract text"),
		func(ctx context.Context, _ *slog.Logger) error {
			out, err := m.deps.Extractor.Extract(ctx, path)
			text = out
			return err
		})
	if err != nil {
		m.warnIgnored(logger, "text extraction failed; continuing without source text", "extraction_failed", err)
		return ""
	}
	return text
}

func (m *Manager) generateScript(ctx context.Context, state *pipelineState, sourceText string) (string, error) {
	_ = m.advance(ctx, state, jobs.StatusProcessing, notifications.Event{Stage: notifications.StageScriptGeneration, Message: msgScript})
	if m.deps.Scripts == nil {
		return "", services.Wrap(services.ErrConfiguration, string(notifications.StageScriptGeneration), "generate script", "no script generator configured", nil)
	}
	var script string
	err := stageexec.Run(ctx, m.stageOptions(notifications.StageScriptGeneration, services.ErrExternalTool, "generate script"),
		func(ctx context.Context, _ *slog.Logger) error {
			out, err := m.deps.Scripts.GenerateScript(ctx, sourceText, state.sub.Instruction)
			if err != nil {
				return err
			}
			if strings.TrimSpace(out) == "" {
				return services.Wrap(services.ErrValidation, string(notifications.StageScriptGeneration), "generate script", EmptyScriptMessage, nil)
			}
			script = out
			return nil
		})
	return script, err
}

func (m *Manager) synthesize(ctx context.Context, state *pipelineState, script string) (string, string, error) {
	_ = m.advance(ctx, state, jobs.StatusProcessing, notifications.Event{Stage: notifications.StageTTSGeneration, Message: msgSpeech})
	if m.deps.Speech == nil {
		return "", "", services.Wrap(services.ErrConfiguration, string(notifications.StageTTSGeneration), "synthesize", "no speech synthesizer configured", nil)
	}
	gender := strings.TrimSpace(state.sub.Gender)
	if gender == "" {
		gender = defaultGender
	}
	var audioPath, language string
	err := stageexec.Run(ctx, m.stageOptions(notifications.StageTTSGeneration, services.ErrExternalTool, "synthesize"),
		func(ctx context.Context, _ *slog.Logger) error {
			path, lang, err := m.deps.Speech.Synthesize(ctx, script, gender, filepath.Join(state.workDir, "audio", state.fileID+".mp3"))
			audioPath, language = path, lang
			return err
		})
	return audioPath, language, err
}

func (m *Manager) uploadAudio(ctx context.Context, state *pipelineState, audioPath, language string) error {
	_ = m.advance(ctx, state, jobs.StatusProcessing, notifications.Event{Stage: notifications.StageAudioUpload, Message: msgAudioUpload})
	return stageexec.Run(ctx, m.stageOptions(notifications.StageAudioUpload, services.ErrTransient, "upload audio"),
		func(ctx context.Context, _ *slog.Logger) error {
			url, err := m.deps.Store.Upload(ctx, audioPath, storage.AudioName(state.fileID, language))
			if err != nil {
				return err
			}
			state.result.audioURL = url
			return nil
		})
}

// renderVideo composes and uploads the video. Failures degrade the job.
func (m *Manager) renderVideo(ctx context.Context, state *pipelineState, audioPath, language string) {
	_ = m.advance(ctx, state, jobs.StatusProcessing, notifications.Event{Stage: notifications.StageVideoEditing, Message: msgEditing})

	stop := notifications.StartHeartbeat(ctx, m.cfg.HeartbeatInterval(), func(hbCtx context.Context) {
		m.notifier.Notify(hbCtx, state.dest, notifications.Event{
			Stage:   notifications.StageVideoRendering,
			Message: msgRendering,
			JobID:   state.jobID,
		})
	})
	defer stop()

	if m.deps.Compositor == nil {
		m.degrade(ctx, state, services.Wrap(services.ErrConfiguration, string(notifications.StageVideoEditing), "compose", "no compositor configured", nil))
		return
	}

	var videoPath string
	opts := m.stageOptions(notifications.StageVideoEditing, services.ErrExternalTool, "compose")
	opts.Pool = m.renderPool
	opts.Attempts = 1
	err := stageexec.Run(ctx, opts, func(ctx context.Context, _ *slog.Logger) error {
		out, err := m.deps.Compositor.Compose(ctx, compositor.Request{
			BaseVideo: m.cfg.Compositor.BaseVideo,
			Audio:     audioPath,
			Language:  language,
			Output:    filepath.Join(state.workDir, "videos", state.fileID+"_final_video_"+language+".mp4"),
		})
		videoPath = out
		return err
	})
	if err != nil {
		m.degrade(ctx, state, err)
		return
	}

	_ = m.advance(ctx, state, jobs.StatusProcessing, notifications.Event{Stage: notifications.StageUploading, Message: msgUploading})
	err = stageexec.Run(ctx, m.stageOptions(notifications.StageUploading, services.ErrTransient, "upload video"),
		func(ctx context.Context, _ *slog.Logger) error {
			url, err := m.deps.Store.Upload(ctx, videoPath, storage.VideoName(state.fileID, language))
			if err != nil {
				return err
			}
			state.result.videoURL = url
			return nil
		})
	if err != nil {
		m.degrade(ctx, state, err)
	}
}

func documentFileName(sub Submission) string {
	name := strings.TrimSpace(filepath.Base(sub.DocumentName))
	if name == "" || name == "." || name == "/" {
		return "document.pdf"
	}
	return name
}
