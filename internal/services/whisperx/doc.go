// Package whisperx runs local WhisperX transcription through uvx and turns
// its JSON output into millisecond word timings for captions.
package whisperx
