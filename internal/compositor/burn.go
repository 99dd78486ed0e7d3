package compositor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"studai/internal/captions"
	"studai/internal/logging"
	"studai/internal/services"
)

// burnCaptions transcribes the narration, writes SRT and ASS tracks next to
// the output, and burns the ASS track into input producing req.Output.
func (c *Compositor) burnCaptions(ctx context.Context, req Request, input string) error {
	logger := logging.WithContext(ctx, c.logger)
	fontsDir, err := filepath.Abs(c.opts.Captions.FontsDir)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, stageName, "captions", "resolve fonts dir", err)
	}
	if info, statErr := os.Stat(fontsDir); statErr != nil || !info.IsDir() {
		return services.Wrap(services.ErrConfiguration, stageName, "captions",
			fmt.Sprintf("fonts directory %s missing", fontsDir), statErr)
	}

	code := captions.LanguageCode(req.Language)
	_, words, err := c.opts.Transcriber.Transcribe(ctx, req.Audio, code)
	if err != nil {
		return err
	}
	cues := captions.Segment(words, c.opts.Captions.MaxWords)

	base := strings.TrimSuffix(req.Output, filepath.Ext(req.Output))
	srtPath := base + ".srt"
	assPath := base + ".ass"
	if err := captions.WriteSRTFile(srtPath, cues); err != nil {
		return services.Wrap(services.ErrExternalTool, stageName, "captions", "write srt", err)
	}
	count, err := captions.ConvertSRTFile(srtPath, assPath, c.opts.Captions.Style)
	if err != nil {
		return services.Wrap(services.ErrValidation, stageName, "captions", "convert srt", err)
	}
	logger.Info("caption track built",
		logging.Int("words", len(words)),
		logging.Int("cues", count),
		logging.String("language_code", code),
	)

	filter := fmt.Sprintf("ass=filename='%s':fontsdir='%s'", escapeFilterPath(assPath), escapeFilterPath(fontsDir))
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", input,
		"-vf", filter,
		"-c:v", "libx264",
		"-preset", c.opts.Preset,
		"-threads", fmt.Sprint(c.opts.Threads),
		"-c:a", "copy",
		req.Output,
	}
	if err := c.run(ctx, c.opts.BurnTimeout, args...); err != nil {
		_ = os.Remove(req.Output)
		return err
	}
	return nil
}

// escapeFilterPath makes a path safe inside a single-quoted ffmpeg filter
// option. The graph parser strips the quotes and the option parser then
// unescapes, so a quote closes the string, emits \\\' and reopens.
func escapeFilterPath(path string) string {
	path = filepath.ToSlash(path)
	path = strings.ReplaceAll(path, `\`, `\\`)
	path = strings.ReplaceAll(path, ":", `\:`)
	return strings.ReplaceAll(path, "'", `'\\\''`)
}
