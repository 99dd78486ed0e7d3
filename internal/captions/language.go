package captions

import "strings"

// DefaultLanguageCode is used for any speech language without a mapping.
const DefaultLanguageCode = "en"

var languageCodes = map[string]string{
	"spanish": "es",
	"english": "en",
}

// LanguageCode maps a synthesized speech language ("spanish", "english") to
// the transcription language code.
func LanguageCode(language string) string {
	if code, ok := languageCodes[strings.ToLower(strings.TrimSpace(language))]; ok {
		return code
	}
	return DefaultLanguageCode
}
