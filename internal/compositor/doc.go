// Package compositor turns a base clip and narration audio into a vertical
// 9:16 video with the narration as its only audio track, and optionally
// burns word-timed captions into it.
//
// All ffmpeg and ffprobe calls go through injectable hooks so tests never
// need the real binaries. Caption failures never fail a composition: the
// un-captioned render is returned instead.
package compositor
