package captions

import (
	"fmt"
	"os"
	"strings"
)

const (
	DefaultFont     = "Gilroy-Bold"
	DefaultFontSize = 56
)

// Style configures the single Default style of an ASS track.
type Style struct {
	Font string
	Size int
}

func (s Style) withDefaults() Style {
	if strings.TrimSpace(s.Font) == "" {
		s.Font = DefaultFont
	}
	if s.Size <= 0 {
		s.Size = DefaultFontSize
	}
	return s
}

// assHeader declares a 1080x1920 canvas and one bold white style centred on
// screen (alignment 5) with outline 4, shadow 2 and MarginV 50.
const assHeader = `[Script Info]
Title: Subtitles
ScriptType: v4.00+
WrapStyle: 0
PlayResX: 1080
PlayResY: 1920
ScaledBorderAndShadow: yes

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Default,%s,%d,&H00FFFFFF,&H00FFFFFF,&H00000000,&H80000000,-1,0,0,0,100,100,0,0,1,4,2,5,10,10,50,1

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
`

// EncodeASS renders cues as an ASS script. Zero cues yield a header-only track.
func EncodeASS(cues []Cue, style Style) string {
	style = style.withDefaults()
	var sb strings.Builder
	fmt.Fprintf(&sb, assHeader, style.Font, style.Size)
	for _, cue := range cues {
		fmt.Fprintf(&sb, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
			FormatASSTime(cue.StartMS), FormatASSTime(cue.EndMS), escapeASSText(cue.Text))
	}
	return sb.String()
}

// WriteASSFile writes cues to path as an ASS script.
func WriteASSFile(path string, cues []Cue, style Style) error {
	if err := os.WriteFile(path, []byte(EncodeASS(cues, style)), 0o644); err != nil {
		return fmt.Errorf("write ass: %w", err)
	}
	return nil
}

// ConvertSRTFile reads an SRT file through the encoding fallbacks and writes
// the equivalent ASS script. It returns the number of dialogue lines written.
func ConvertSRTFile(srtPath, assPath string, style Style) (int, error) {
	cues, err := ReadSRTFile(srtPath)
	if err != nil {
		return 0, err
	}
	if err := WriteASSFile(assPath, cues, style); err != nil {
		return 0, err
	}
	return len(cues), nil
}

// Newlines inside dialogue text would terminate the event line.
func escapeASSText(text string) string {
	text = normalizeNewlines(text)
	return strings.ReplaceAll(text, "\n", `\N`)
}
