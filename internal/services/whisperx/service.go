package whisperx

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"studai/internal/captions"
	"studai/internal/services"
)

const stageName = "video_editing"

// Service provides WhisperX transcription capabilities.
type Service struct {
	cfg           Config
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config) *Service {
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

// run executes a command, using the custom runner if set.
func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Transcribe runs WhisperX over audioPath and returns the transcript text and
// word timings in milliseconds.
func (s *Service) Transcribe(ctx context.Context, audioPath, languageCode string) (string, []captions.Word, error) {
	if strings.TrimSpace(audioPath) == "" {
		return "", nil, services.Wrap(services.ErrValidation, stageName, "whisperx", "audio path required", nil)
	}
	outputDir := s.cfg.WorkDir
	if outputDir == "" {
		outputDir = filepath.Dir(audioPath)
	}
	outputDir = filepath.Join(outputDir, "whisperx")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", nil, services.Wrap(services.ErrConfiguration, stageName, "whisperx", "create output dir", err)
	}

	source := audioPath
	if ffmpeg := strings.TrimSpace(s.cfg.FFmpegPath); ffmpeg != "" {
		wav := filepath.Join(outputDir, strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))+".wav")
		if err := s.run(ctx, ffmpeg, buildFFmpegConvertArgs(audioPath, wav)...); err != nil {
			return "", nil, services.Wrap(services.ErrExternalTool, stageName, "whisperx", "convert narration to wav", err)
		}
		source = wav
	}

	if err := s.run(ctx, UVXCommand, s.buildArgs(source, outputDir, languageCode)...); err != nil {
		return "", nil, services.Wrap(services.ErrExternalTool, stageName, "whisperx", "transcription failed", err)
	}

	jsonPath := filepath.Join(outputDir, strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))+".json")
	segments, err := LoadSegments(jsonPath)
	if err != nil {
		return "", nil, services.Wrap(services.ErrExternalTool, stageName, "whisperx", "read transcript", err)
	}
	text, words := Flatten(segments)
	return text, words, nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) buildArgs(source, outputDir, language string) []string {
	args := make([]string, 0, 32)
	if s.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", s.Model(),
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--chunk_size", ChunkSize,
		"--beam_size", BeamSize,
		"--temperature", Temperature,
		"--vad_method", VADMethod,
	)

	if lang := strings.ToLower(strings.TrimSpace(language)); lang != "" {
		args = append(args, "--language", lang)
	}

	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}
	return args
}

// Word represents a single word with timing from WhisperX output.
type Word struct {
	Word  string   `json:"word"`
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Words []Word  `json:"words"`
}

type whisperXPayload struct {
	Segments []Segment `json:"segments"`
}

// LoadSegments loads segments from a WhisperX JSON file.
func LoadSegments(jsonPath string) ([]Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	return payload.Segments, nil
}

// Flatten joins segment text and converts word timings to milliseconds.
// Words WhisperX could not align (no start/end) inherit the previous word's
// end so the sequence stays non-decreasing.
func Flatten(segments []Segment) (string, []captions.Word) {
	var parts []string
	var words []captions.Word
	var cursor int64
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
		for _, w := range seg.Words {
			text := strings.TrimSpace(w.Word)
			if text == "" {
				continue
			}
			start, end := cursor, cursor
			if w.Start != nil {
				start = secondsToMillis(*w.Start)
			}
			if w.End != nil {
				end = secondsToMillis(*w.End)
			}
			if start < cursor {
				start = cursor
			}
			if end < start {
				end = start
			}
			words = append(words, captions.Word{Text: text, StartMS: start, EndMS: end})
			cursor = end
		}
	}
	return strings.Join(parts, " "), words
}

func secondsToMillis(seconds float64) int64 {
	if seconds <= 0 || math.IsNaN(seconds) {
		return 0
	}
	return int64(math.Round(seconds * 1000))
}
