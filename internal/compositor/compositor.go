package compositor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"studai/internal/captions"
	"studai/internal/config"
	"studai/internal/deps"
	"studai/internal/logging"
	"studai/internal/media/ffprobe"
	"studai/internal/services"
)

const stageName = "video_editing"

// Transcriber produces word timings for the narration track.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, languageCode string) (string, []captions.Word, error)
}

// CommandRunner executes an external command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Prober inspects a media file.
type Prober func(ctx context.Context, path string) (ffprobe.Result, error)

// Request describes one composition.
type Request struct {
	BaseVideo string
	Audio     string
	Language  string
	Output    string
}

// CaptionOptions controls the burned-in caption sub-path.
type CaptionOptions struct {
	Enabled  bool
	Style    captions.Style
	FontsDir string
	MaxWords int
}

// Options configures a Compositor.
type Options struct {
	FFmpegPath    string
	FFprobePath   string
	Preset        string
	Threads       int
	FPS           int
	RenderTimeout time.Duration
	BurnTimeout   time.Duration
	Captions      CaptionOptions
	Transcriber   Transcriber
	Runner        CommandRunner
	Probe         Prober
	// Float returns a value in [0, 1) used to pick the segment start.
	Float  func() float64
	Logger *slog.Logger
}

// Compositor renders narrated vertical videos.
type Compositor struct {
	opts   Options
	logger *slog.Logger
}

// New constructs a Compositor, filling unset options with defaults.
func New(opts Options) *Compositor {
	if strings.TrimSpace(opts.Preset) == "" {
		opts.Preset = "ultrafast"
	}
	if opts.Threads <= 0 {
		opts.Threads = 4
	}
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	if opts.RenderTimeout <= 0 {
		opts.RenderTimeout = 10 * time.Minute
	}
	if opts.BurnTimeout <= 0 {
		opts.BurnTimeout = 300 * time.Second
	}
	if opts.Captions.MaxWords <= 0 {
		opts.Captions.MaxWords = captions.DefaultMaxWords
	}
	if opts.Runner == nil {
		opts.Runner = execRunner
	}
	if opts.Probe == nil {
		binary := opts.FFprobePath
		opts.Probe = func(ctx context.Context, path string) (ffprobe.Result, error) {
			return ffprobe.Inspect(ctx, binary, path)
		}
	}
	if opts.Float == nil {
		opts.Float = rand.Float64
	}
	return &Compositor{opts: opts, logger: logging.NewComponentLogger(opts.Logger, "compositor")}
}

// NewFromConfig builds a Compositor from configuration. transcriber may be nil,
// which disables captions.
func NewFromConfig(cfg *config.Config, transcriber Transcriber, logger *slog.Logger) *Compositor {
	ffmpeg := deps.ResolveFFmpeg(cfg.Compositor.FFmpegPath)
	path := ""
	if ffmpeg.Available {
		path = ffmpeg.Command
	}
	return New(Options{
		FFmpegPath:    path,
		FFprobePath:   cfg.FFprobeBinary(),
		Preset:        cfg.Compositor.Preset,
		Threads:       cfg.Compositor.Threads,
		FPS:           cfg.Compositor.FPS,
		RenderTimeout: time.Duration(cfg.Compositor.RenderTimeoutSeconds) * time.Second,
		BurnTimeout:   time.Duration(cfg.Compositor.BurnTimeoutSeconds) * time.Second,
		Captions: CaptionOptions{
			Enabled:  cfg.Captions.Enabled,
			Style:    captions.Style{Font: cfg.Captions.Font, Size: cfg.Captions.FontSize},
			FontsDir: cfg.Captions.FontsDir,
			MaxWords: cfg.Captions.MaxWords,
		},
		Transcriber: transcriber,
		Logger:      logger,
	})
}

// Available reports whether an ffmpeg binary is configured.
func (c *Compositor) Available() bool {
	return strings.TrimSpace(c.opts.FFmpegPath) != ""
}

// Compose renders req and returns the final video path.
func (c *Compositor) Compose(ctx context.Context, req Request) (string, error) {
	logger := logging.WithContext(ctx, c.logger)
	if _, err := os.Stat(req.Audio); err != nil {
		return "", services.Wrap(services.ErrNotFound, stageName, "compose", req.Audio, ErrAudioNotFound)
	}
	if !c.Available() {
		return "", services.Wrap(services.ErrConfiguration, stageName, "compose",
			"set compositor.ffmpeg_path or FFMPEG_PATH", ErrFFmpegUnavailable)
	}
	if strings.TrimSpace(req.Output) == "" {
		return "", services.Wrap(services.ErrValidation, stageName, "compose", "output path is required", nil)
	}

	plan, err := c.plan(ctx, req)
	if err != nil {
		return "", err
	}
	logger.Info("composing video",
		logging.String("base_video", req.BaseVideo),
		logging.Float64("start_seconds", plan.start),
		logging.Float64("duration_seconds", plan.duration),
		logging.Int("crop_width", plan.cropWidth),
		logging.Int("height", plan.height),
	)

	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, stageName, "compose", "create output directory", err)
	}
	tempPath := uncaptionedPath(req.Output)
	if err := c.run(ctx, c.opts.RenderTimeout, c.renderArgs(req, plan, tempPath)...); err != nil {
		_ = os.Remove(tempPath)
		return "", err
	}

	if c.captionsEnabled() {
		if err := c.burnCaptions(ctx, req, tempPath); err != nil {
			logging.WarnWithContext(logger, "captioning failed; using uncaptioned video", "captions_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorKind, string(services.Kind(err))),
				logging.String(logging.FieldErrorHint, "check transcription credentials and captions.fonts_dir"),
				logging.String(logging.FieldImpact, "video is delivered without captions"),
			)
		} else {
			_ = os.Remove(tempPath)
			return req.Output, nil
		}
	}

	if err := os.Rename(tempPath, req.Output); err != nil {
		return tempPath, nil
	}
	return req.Output, nil
}

type segmentPlan struct {
	start     float64
	duration  float64
	width     int
	height    int
	cropWidth int
	cropX     int
}

func (c *Compositor) plan(ctx context.Context, req Request) (segmentPlan, error) {
	audioInfo, err := c.opts.Probe(ctx, req.Audio)
	if err != nil {
		return segmentPlan{}, services.Wrap(services.ErrExternalTool, stageName, "probe audio", req.Audio, err)
	}
	audioDuration := audioInfo.DurationSeconds()
	if audioDuration <= 0 {
		return segmentPlan{}, services.Wrap(services.ErrValidation, stageName, "probe audio", "narration has no duration", nil)
	}

	baseInfo, err := c.opts.Probe(ctx, req.BaseVideo)
	if err != nil {
		return segmentPlan{}, services.Wrap(services.ErrExternalTool, stageName, "probe base video", req.BaseVideo, err)
	}
	baseDuration := baseInfo.DurationSeconds()
	if baseDuration < audioDuration {
		return segmentPlan{}, services.Wrap(services.ErrValidation, stageName, "select segment",
			fmt.Sprintf("base %.2fs, narration %.2fs", baseDuration, audioDuration), ErrVideoTooShort)
	}
	width, height, err := baseInfo.Dimensions()
	if err != nil {
		return segmentPlan{}, services.Wrap(services.ErrValidation, stageName, "probe base video", req.BaseVideo, err)
	}
	cropWidth := TargetWidth(height)
	if width < cropWidth {
		return segmentPlan{}, services.Wrap(services.ErrValidation, stageName, "crop",
			fmt.Sprintf("width %d below target %d", width, cropWidth), ErrVideoTooNarrow)
	}

	return segmentPlan{
		start:     SegmentStart(baseDuration, audioDuration, c.opts.Float()),
		duration:  audioDuration,
		width:     width,
		height:    height,
		cropWidth: cropWidth,
		cropX:     (width - cropWidth) / 2,
	}, nil
}

// TargetWidth returns the 9:16 crop width for a frame height.
func TargetWidth(height int) int {
	return height * 9 / 16
}

// SegmentStart maps u in [0, 1) onto the valid start offsets [0, base-narration].
func SegmentStart(baseDuration, narrationDuration, u float64) float64 {
	span := baseDuration - narrationDuration
	if span <= 0 {
		return 0
	}
	if u < 0 {
		u = 0
	}
	if u > 1 {
		u = 1
	}
	return math.Round(span*u*1000) / 1000
}

func (c *Compositor) renderArgs(req Request, plan segmentPlan, output string) []string {
	filter := fmt.Sprintf("crop=%d:%d:%d:0,fps=%d", plan.cropWidth, plan.height, plan.cropX, c.opts.FPS)
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", formatSeconds(plan.start),
		"-t", formatSeconds(plan.duration),
		"-i", req.BaseVideo,
		"-i", req.Audio,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-vf", filter,
		"-c:v", "libx264",
		"-preset", c.opts.Preset,
		"-threads", strconv.Itoa(c.opts.Threads),
		"-r", strconv.Itoa(c.opts.FPS),
		"-c:a", "aac",
		"-shortest",
		output,
	}
}

func (c *Compositor) captionsEnabled() bool {
	return c.opts.Captions.Enabled && c.opts.Transcriber != nil
}

// run invokes ffmpeg under a hard timeout. A deadline hit maps to ErrRenderTimeout.
func (c *Compositor) run(ctx context.Context, timeout time.Duration, args ...string) error {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	output, err := c.opts.Runner(runCtx, c.opts.FFmpegPath, args...)
	if err == nil {
		return nil
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return services.Wrap(services.ErrTimeout, stageName, "ffmpeg",
			fmt.Sprintf("exceeded %s", timeout), ErrRenderTimeout)
	}
	detail := strings.TrimSpace(string(output))
	if len(detail) > 512 {
		detail = detail[len(detail)-512:]
	}
	return services.Wrap(services.ErrExternalTool, stageName, "ffmpeg", detail, err)
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

func uncaptionedPath(output string) string {
	ext := filepath.Ext(output)
	if ext == "" {
		ext = ".mp4"
	}
	return strings.TrimSuffix(output, filepath.Ext(output)) + ".uncaptioned" + ext
}

func formatSeconds(value float64) string {
	return strconv.FormatFloat(value, 'f', 3, 64)
}
