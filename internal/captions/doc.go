// Package captions turns word-level transcription timings into subtitle cues
// and renders them as SRT and styled ASS tracks for ffmpeg burn-in.
//
// Segment is a pure greedy grouping pass. The emitters are bit-exact with the
// SRT interchange format and the libass v4.00+ script format; DecodeSubtitle
// reads externally produced SRT files by trying an ordered list of candidate
// encodings before giving up with ErrUndecodableSubtitle.
package captions
