package whisperx

// Config captures runtime settings for WhisperX operations.
type Config struct {
	// Model is the WhisperX model to use (e.g., "large-v3-turbo").
	Model string
	// CUDAEnabled enables GPU acceleration.
	CUDAEnabled bool
	// FFmpegPath converts narration to 16kHz mono WAV before transcription.
	// Empty skips conversion and feeds the source file directly.
	FFmpegPath string
	// WorkDir holds WhisperX output. Empty uses the audio file's directory.
	WorkDir string
}

// WhisperX configuration constants.
const (
	DefaultModel   = "large-v3-turbo"
	CUDAIndexURL   = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL   = "https://pypi.org/simple"
	BatchSize      = "4"
	ChunkSize      = "15"
	BeamSize       = "5"
	Temperature    = "0.0"
	OutputFormat   = "json"
	CPUDevice      = "cpu"
	CUDADevice     = "cuda"
	CPUComputeType = "float32"
	VADMethod      = "silero"
)

// UVXCommand runs WhisperX from its published package.
const UVXCommand = "uvx"
