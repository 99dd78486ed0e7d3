package speech

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"studai/internal/services"
)

func TestDetectLanguageAndStrip(t *testing.T) {
	if DetectLanguage("[SP] Hola") != LanguageSpanish {
		t.Fatal("expected spanish")
	}
	if DetectLanguage("Hello") != LanguageEnglish {
		t.Fatal("expected english default")
	}
	if got := StripLanguageTags("[EN]: Hello [SP]there"); got != "Hello there" {
		t.Fatalf("unexpected stripped text %q", got)
	}
	if ProsodyRate(LanguageSpanish) != "+15%" || ProsodyRate(LanguageEnglish) != "+20%" {
		t.Fatal("unexpected prosody rates")
	}
}

func TestBuildSSMLEscapes(t *testing.T) {
	ssml := BuildSSML("es-MX-JorgeNeural", "+15%", `Tom & "Jerry" <3`)
	if !strings.Contains(ssml, "xml:lang='es-MX'") {
		t.Fatalf("missing locale: %s", ssml)
	}
	if strings.Contains(ssml, "& ") || strings.Contains(ssml, "<3") {
		t.Fatalf("text not escaped: %s", ssml)
	}
}

func TestVoiceCandidatesHonorGender(t *testing.T) {
	if v := voiceCandidates(LanguageSpanish, "female"); v[0] != "es-MX-DaliaMultilingualNeural" {
		t.Fatalf("unexpected spanish female voice %v", v)
	}
	if v := voiceCandidates(LanguageEnglish, "Male"); !strings.HasPrefix(v[0], "en-US-Andrew") {
		t.Fatalf("unexpected english male voice %v", v)
	}
	if v := voiceCandidates(LanguageEnglish, ""); len(v) != 2 {
		t.Fatalf("expected both genders without hint, got %v", v)
	}
}

func TestSynthesizeWritesAudio(t *testing.T) {
	var gotBody, gotKey, gotFormat string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cognitiveservices/v1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotKey = r.Header.Get("Ocp-Apim-Subscription-Key")
		gotFormat = r.Header.Get("X-Microsoft-OutputFormat")
		_, _ = w.Write([]byte("ID3-audio"))
	}))
	defer server.Close()

	svc := NewService(Config{ResourceKey: "secret", Endpoint: server.URL}, WithVoicePicker(func(int) int { return 0 }))
	out := filepath.Join(t.TempDir(), "audio", "job.mp3")
	path, language, err := svc.Synthesize(context.Background(), "[SP] Hola mundo", "male", out)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if path != out || language != LanguageSpanish {
		t.Fatalf("unexpected result %s %s", path, language)
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "ID3-audio" {
		t.Fatalf("unexpected audio file %q: %v", data, err)
	}
	if gotKey != "secret" || gotFormat != defaultOutputFormat {
		t.Fatalf("unexpected headers key=%q format=%q", gotKey, gotFormat)
	}
	if strings.Contains(gotBody, "[SP]") || !strings.Contains(gotBody, "es-MX-JorgeNeural") || !strings.Contains(gotBody, "+15%") {
		t.Fatalf("unexpected ssml: %s", gotBody)
	}
}

func TestSynthesizeMissingCredentials(t *testing.T) {
	svc := NewService(Config{})
	_, _, err := svc.Synthesize(context.Background(), "hello", "", filepath.Join(t.TempDir(), "a.mp3"))
	if !errors.Is(err, services.ErrConfiguration) || !strings.Contains(err.Error(), "TTS_AZURE_RESOURCE_KEY") {
		t.Fatalf("expected configuration error naming the key, got %v", err)
	}

	svc = NewService(Config{ResourceKey: "k"})
	_, _, err = svc.Synthesize(context.Background(), "hello", "", filepath.Join(t.TempDir(), "a.mp3"))
	if !errors.Is(err, services.ErrConfiguration) || !strings.Contains(err.Error(), "TTS_AZURE_REGION") {
		t.Fatalf("expected region error, got %v", err)
	}
}

func TestSynthesizeStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		marker error
	}{
		{http.StatusUnauthorized, services.ErrConfiguration},
		{http.StatusTooManyRequests, services.ErrTransient},
		{http.StatusBadRequest, services.ErrExternalTool},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		svc := NewService(Config{ResourceKey: "k", Endpoint: server.URL})
		_, _, err := svc.Synthesize(context.Background(), "hello", "", filepath.Join(t.TempDir(), "a.mp3"))
		server.Close()
		if !errors.Is(err, tc.marker) {
			t.Errorf("status %d: expected %v, got %v", tc.status, tc.marker, err)
		}
	}
}
