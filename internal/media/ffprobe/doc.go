// Package ffprobe wraps ffprobe JSON output for the compositor.
//
// Inspect runs ffprobe and Parse decodes its output. Result exposes the
// container duration and the dimensions of the first video stream, which is
// all segment selection and the vertical crop need.
package ffprobe
