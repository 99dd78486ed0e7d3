package speech

import "strings"

const (
	LanguageEnglish = "english"
	LanguageSpanish = "spanish"
)

var (
	englishMaleVoices   = []string{"en-US-Andrew:DragonHDLatestNeural", "en-US-AndrewMultilingualNeural"}
	englishFemaleVoices = []string{"en-US-Ava:DragonHDLatestNeural", "en-US-AvaMultilingualNeural"}
	spanishMaleVoices   = []string{"es-MX-JorgeNeural"}
	spanishFemaleVoices = []string{"es-MX-DaliaMultilingualNeural"}
)

// DetectLanguage reports the script language from its [SP] tag.
func DetectLanguage(script string) string {
	if strings.Contains(script, "[SP]") {
		return LanguageSpanish
	}
	return LanguageEnglish
}

// StripLanguageTags removes [SP] and [EN] markers.
func StripLanguageTags(script string) string {
	script = strings.ReplaceAll(script, "[SP]", "")
	script = strings.ReplaceAll(script, "[EN]", "")
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(script), ":"))
}

// ProsodyRate returns the speaking-rate adjustment for a language.
func ProsodyRate(language string) string {
	if language == LanguageSpanish {
		return "+15%"
	}
	return "+20%"
}

// voiceCandidates lists the voices for a language honoring a gender hint.
// An unknown hint returns both genders.
func voiceCandidates(language, gender string) []string {
	male, female := englishMaleVoices, englishFemaleVoices
	if language == LanguageSpanish {
		male, female = spanishMaleVoices, spanishFemaleVoices
	}
	switch strings.ToLower(strings.TrimSpace(gender)) {
	case "male", "m", "hombre", "masculino":
		return male
	case "female", "f", "mujer", "femenino":
		return female
	default:
		out := make([]string, 0, len(male)+len(female))
		out = append(out, male[0], female[0])
		return out
	}
}

// voiceLocale extracts "en-US" from "en-US-AvaMultilingualNeural".
func voiceLocale(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) >= 2 {
		return parts[0] + "-" + parts[1]
	}
	return "en-US"
}
