package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"studai/internal/services"
)

func writeDoc(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lesson.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatalf("write doc: %v", err)
	}
	return path
}

func onePage(string) (int, error) { return 1, nil }

func TestNeedsOCR(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"", true},
		{"   \n", true},
		{"Photosynthesis converts light", false},
		{"/g12/g45/g3", true},
	}
	for _, tt := range tests {
		if got := NeedsOCR(tt.text); got != tt.want {
			t.Errorf("NeedsOCR(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestExtractUsesPdftotext(t *testing.T) {
	var calls []string
	ex := New(Options{
		Validate: onePage,
		Runner: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			calls = append(calls, name)
			return []byte("  Cells divide by mitosis.\n"), nil
		},
	})
	text, err := ex.Extract(context.Background(), writeDoc(t))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if text != "Cells divide by mitosis." {
		t.Fatalf("unexpected text %q", text)
	}
	if len(calls) != 1 || calls[0] != "pdftotext" {
		t.Fatalf("expected only pdftotext, got %v", calls)
	}
}

func TestExtractFallsBackToOCR(t *testing.T) {
	ex := New(Options{
		Validate: onePage,
		WorkDir:  t.TempDir(),
		Runner: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			switch name {
			case "pdftotext":
				return []byte("/g12/g13"), nil
			case "pdftoppm":
				prefix := args[len(args)-1]
				for _, page := range []string{"-2.png", "-1.png"} {
					if err := os.WriteFile(prefix+page, []byte("png"), 0o644); err != nil {
						t.Fatalf("write page: %v", err)
					}
				}
				return nil, nil
			case "tesseract":
				if args[len(args)-1] != OCRLanguages {
					t.Errorf("unexpected tesseract args %v", args)
				}
				return []byte("text of " + filepath.Base(args[0])), nil
			}
			t.Fatalf("unexpected command %s", name)
			return nil, nil
		},
	})
	text, err := ex.Extract(context.Background(), writeDoc(t))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if text != "text of page-1.png\ntext of page-2.png" {
		t.Fatalf("unexpected OCR text %q", text)
	}
}

func TestExtractOCRFailureIsExternalTool(t *testing.T) {
	ex := New(Options{
		Validate: onePage,
		WorkDir:  t.TempDir(),
		Runner: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			if name == "pdftoppm" {
				return nil, errors.New("boom")
			}
			return nil, nil
		},
	})
	_, err := ex.Extract(context.Background(), writeDoc(t))
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestExtractRejectsInvalidPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pdf")
	if err := os.WriteFile(path, []byte("not a pdf at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	ex := New(Options{Runner: func(context.Context, string, ...string) ([]byte, error) {
		t.Fatal("runner should not be called")
		return nil, nil
	}})
	_, err := ex.Extract(context.Background(), path)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExtractMissingFile(t *testing.T) {
	_, err := New(Options{}).Extract(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	if !errors.Is(err, services.ErrNotFound) || !strings.Contains(err.Error(), "missing.pdf") {
		t.Fatalf("expected not found error, got %v", err)
	}
}
