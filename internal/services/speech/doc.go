// Package speech synthesizes narration audio through the Azure Speech REST
// API.
//
// The script's leading language tag ([SP] or [EN]) selects the language,
// voice list, and prosody rate. Tags are stripped before synthesis. The
// returned language ("spanish" or "english") is what the captioning path maps
// to a transcription language code.
package speech
