package captions

import "strings"

// DefaultMaxWords is the cue size used when callers pass a non-positive limit.
const DefaultMaxWords = 10

// Word is one transcribed word with millisecond offsets into the audio.
type Word struct {
	Text    string `json:"text"`
	StartMS int64  `json:"start_ms"`
	EndMS   int64  `json:"end_ms"`
}

// Cue is one timed subtitle entry covering one or more words.
type Cue struct {
	Index   int    `json:"index"`
	Text    string `json:"text"`
	StartMS int64  `json:"start_ms"`
	EndMS   int64  `json:"end_ms"`
}

// Segment groups words into cues. A cue closes when it holds maxWords words or
// after a word ending in '.', '!' or '?'. Words with blank text are skipped so
// every cue has non-empty text.
func Segment(words []Word, maxWords int) []Cue {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	var (
		cues  []Cue
		group []Word
	)
	flush := func() {
		if len(group) == 0 {
			return
		}
		texts := make([]string, len(group))
		for i, w := range group {
			texts[i] = w.Text
		}
		cues = append(cues, Cue{
			Index:   len(cues) + 1,
			Text:    strings.Join(texts, " "),
			StartMS: group[0].StartMS,
			EndMS:   group[len(group)-1].EndMS,
		})
		group = group[:0]
	}

	for _, word := range words {
		text := strings.TrimSpace(word.Text)
		if text == "" {
			continue
		}
		word.Text = text
		group = append(group, word)
		if len(group) >= maxWords || endsSentence(text) {
			flush()
		}
	}
	flush()
	return cues
}

func endsSentence(text string) bool {
	switch text[len(text)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
