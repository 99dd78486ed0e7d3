package captions

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EncodeSRT renders cues in SubRip format. Each entry ends with a blank line.
func EncodeSRT(cues []Cue) string {
	var sb strings.Builder
	for _, cue := range cues {
		sb.WriteString(strconv.Itoa(cue.Index))
		sb.WriteByte('\n')
		sb.WriteString(FormatSRTTime(cue.StartMS))
		sb.WriteString(" --> ")
		sb.WriteString(FormatSRTTime(cue.EndMS))
		sb.WriteByte('\n')
		sb.WriteString(cue.Text)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// WriteSRTFile writes cues to path in SubRip format.
func WriteSRTFile(path string, cues []Cue) error {
	if err := os.WriteFile(path, []byte(EncodeSRT(cues)), 0o644); err != nil {
		return fmt.Errorf("write srt: %w", err)
	}
	return nil
}

// ParseSRT reads SubRip text. Entries need at least three lines and a timing
// line containing " --> "; multi-line text is joined with spaces and entries
// with empty text or unparseable timings are skipped. Cues are renumbered
// sequentially from 1.
func ParseSRT(text string) []Cue {
	text = normalizeNewlines(text)
	var cues []Cue
	for _, block := range strings.Split(strings.TrimSpace(text), "\n\n") {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 3 {
			continue
		}
		startRaw, endRaw, ok := strings.Cut(lines[1], " --> ")
		if !ok {
			continue
		}
		start, err := ParseSRTTime(startRaw)
		if err != nil {
			continue
		}
		end, err := ParseSRTTime(endRaw)
		if err != nil {
			continue
		}
		parts := make([]string, 0, len(lines)-2)
		for _, line := range lines[2:] {
			if line = strings.TrimSpace(line); line != "" {
				parts = append(parts, line)
			}
		}
		body := strings.Join(parts, " ")
		if body == "" {
			continue
		}
		cues = append(cues, Cue{Index: len(cues) + 1, Text: body, StartMS: start, EndMS: end})
	}
	return cues
}

// ReadSRTFile decodes and parses an SRT file written by any common encoder.
func ReadSRTFile(path string) ([]Cue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	text, err := DecodeSubtitle(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ParseSRT(text), nil
}

func normalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
