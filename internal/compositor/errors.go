package compositor

import "errors"

var (
	// ErrAudioNotFound reports a missing narration file.
	ErrAudioNotFound = errors.New("narration audio not found")
	// ErrVideoTooShort reports a base clip shorter than the narration.
	ErrVideoTooShort = errors.New("base video shorter than narration")
	// ErrVideoTooNarrow reports a base clip narrower than the 9:16 crop width.
	ErrVideoTooNarrow = errors.New("base video narrower than vertical crop")
	// ErrRenderTimeout reports an ffmpeg invocation killed by its wall-clock limit.
	ErrRenderTimeout = errors.New("render timed out")
	// ErrFFmpegUnavailable reports that no ffmpeg binary could be resolved.
	ErrFFmpegUnavailable = errors.New("ffmpeg unavailable")
)
