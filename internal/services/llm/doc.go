// Package llm provides an OpenAI-compatible chat client (OpenRouter by
// default) and the ScriptWriter that turns extracted document text into a
// short narration script.
//
// The client retries HTTP 408/429/5xx responses and network timeouts with
// exponential backoff (base 1s, max 10s, up to 5 attempts by default).
// Context cancellation aborts retries immediately. Failures leave the package
// classified with a services marker: rejected credentials are configuration
// errors, throttling and 5xx are transient.
//
// The script prompt asks the model to prefix its reply with a language tag,
// [SP] or [EN], which speech synthesis uses to pick a voice.
package llm
