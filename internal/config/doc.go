// Package config loads, normalizes, and validates StudAI configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENROUTER_API_KEY, TTS_AZURE_RESOURCE_KEY, and FFMPEG_PATH. The Config type
// centralizes every knob the daemon and CLI need so work directories, render
// settings, and collaborator credentials are discovered in one pass.
//
// Credentials are optional at load time: a missing key only
// fails the pipeline stage that needs it.
package config
