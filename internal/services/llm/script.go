package llm

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"studai/internal/config"
	"studai/internal/services"
)

// DefaultMaxSourceLength bounds the source excerpt sent with a script request.
const DefaultMaxSourceLength = 15000

const scriptSystemPrompt = "You are a witty and concise short-form scriptwriter who only outputs spoken text, no notes or structure. " +
	"If no source material is provided, use the user's additional instructions to guide the script."

const scriptBrief = "Write a short, funny, and engaging script for a short-form video (40-75 seconds). " +
	"Use natural spoken rhythm with short sentences and line breaks for pacing. " +
	"The tone should be clever, informative, and a little dramatic, like a storytelling short. " +
	"Aim for 120-225 words (around 3 words per second). " +
	"Start with a strong hook in the first 3-5 seconds, include one surprising or humorous twist, " +
	"and end with a one-line mic-drop conclusion. " +
	"Do NOT include any formatting, labels, bullet points, or stage directions, only the spoken script."

const scriptSourceGuide = "Use the following source material as inspiration if relevant, but do not simply summarize it. " +
	"If it is not relevant, create an original script on the theme. " +
	"Write in the language of the source material, or the language requested in the additional instructions, " +
	"and begin the script with the language tag [SP] for Spanish or [EN] for English."

// ScriptWriter generates narration scripts.
type ScriptWriter struct {
	client          *Client
	maxSourceLength int
}

// NewScriptWriter wraps client. maxSourceLength <= 0 uses DefaultMaxSourceLength.
func NewScriptWriter(client *Client, maxSourceLength int) *ScriptWriter {
	if maxSourceLength <= 0 {
		maxSourceLength = DefaultMaxSourceLength
	}
	return &ScriptWriter{client: client, maxSourceLength: maxSourceLength}
}

// NewScriptWriterFromConfig builds a writer from the llm config section.
func NewScriptWriterFromConfig(cfg *config.Config) *ScriptWriter {
	client := NewClient(Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      1500,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	return NewScriptWriter(client, cfg.LLM.MaxSourceLength)
}

// Client exposes the underlying chat client for health checks.
func (w *ScriptWriter) Client() *Client { return w.client }

// GenerateScript writes a narration script from source text and an optional
// user instruction. The returned script may be empty; callers decide whether
// that is fatal.
func (w *ScriptWriter) GenerateScript(ctx context.Context, sourceText, instruction string) (string, error) {
	if w == nil || w.client == nil {
		return "", services.Wrap(services.ErrConfiguration, "script_generation", "generate", "script writer not configured", nil)
	}
	prompt := BuildScriptPrompt(sourceText, instruction, w.maxSourceLength)
	script, err := w.client.Complete(ctx, scriptSystemPrompt, prompt)
	if err != nil {
		var empty *emptyContentError
		if errors.As(err, &empty) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(script), nil
}

// BuildScriptPrompt assembles the user prompt. The source is truncated to
// maxSource characters.
func BuildScriptPrompt(sourceText, instruction string, maxSource int) string {
	var b strings.Builder
	b.WriteString(scriptBrief)
	if instruction = strings.TrimSpace(instruction); instruction != "" {
		b.WriteString(" ")
		b.WriteString(instruction)
		if !strings.HasSuffix(instruction, ".") {
			b.WriteString(".")
		}
	}
	b.WriteString("\n\n")
	b.WriteString(scriptSourceGuide)
	b.WriteString("\n\nSource excerpt:\n")
	b.WriteString(TruncateRunes(sourceText, maxSource))
	return b.String()
}

// TruncateRunes returns at most limit characters of text without splitting a rune.
func TruncateRunes(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	count := 0
	for i := range text {
		if count == limit {
			return text[:i]
		}
		count++
	}
	return text
}
