package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"studai/internal/config"
)

// Requirement defines an external binary the pipeline invokes.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Requirements lists the binaries the configured pipeline may call. ffmpeg
// and ffprobe are optional because their absence only disables video output.
func Requirements(cfg *config.Config) []Requirement {
	ffmpeg := ResolveFFmpeg(cfg.Compositor.FFmpegPath)
	reqs := []Requirement{
		{Name: "FFmpeg", Command: ffmpeg.Command, Description: "Video composition and caption burn-in", Optional: true},
		{Name: "FFprobe", Command: cfg.FFprobeBinary(), Description: "Media duration and dimension probing", Optional: true},
		{Name: "pdftotext", Command: "pdftotext", Description: "Direct PDF text extraction", Optional: true},
		{Name: "pdftoppm", Command: "pdftoppm", Description: "PDF page rasterisation for OCR", Optional: true},
		{Name: "tesseract", Command: "tesseract", Description: "OCR fallback for scanned PDFs", Optional: true},
	}
	if cfg.Transcription.Provider == config.TranscriptionWhisperX {
		reqs = append(reqs, Requirement{Name: "uvx", Command: "uvx", Description: "Runs WhisperX for caption timing", Optional: !cfg.Captions.Enabled})
	}
	return reqs
}
