// Package workflow runs generation jobs end to end.
//
// The Manager accepts submissions, records them in the job registry, and runs
// each job on its own goroutine: optional document upload and text
// extraction, script generation, speech synthesis, audio upload, then video
// composition on the bounded render pool and the final video upload. Every
// stage boundary updates the registry and emits a progress event to the
// job's destination. A failed script, speech, or audio upload step ends the
// job in error; a failed render or video upload still completes the job with
// the reason recorded in result.video_error.
//
// Jobs never share state. A panic or error inside one job is contained by
// that job's boundary, and shutdown cancels in-flight jobs and marks them as
// failed with "shutdown".
package workflow
