package captions

import (
	"reflect"
	"strings"
	"testing"
)

func words(texts ...string) []Word {
	out := make([]Word, len(texts))
	for i, text := range texts {
		out[i] = Word{Text: text, StartMS: int64(i * 300), EndMS: int64(i*300 + 250)}
	}
	return out
}

func TestSegmentEmptyInput(t *testing.T) {
	if cues := Segment(nil, 10); len(cues) != 0 {
		t.Fatalf("expected zero cues, got %d", len(cues))
	}
}

func TestSegmentClosesOnPunctuation(t *testing.T) {
	cues := Segment(words("Black", "holes", "are", "dense.", "Really", "dense!", "Why?"), 10)
	want := []string{"Black holes are dense.", "Really dense!", "Why?"}
	if len(cues) != len(want) {
		t.Fatalf("expected %d cues, got %d: %+v", len(want), len(cues), cues)
	}
	for i, cue := range cues {
		if cue.Text != want[i] {
			t.Fatalf("cue %d text = %q, want %q", i, cue.Text, want[i])
		}
		if cue.Index != i+1 {
			t.Fatalf("cue %d index = %d", i, cue.Index)
		}
	}
	if cues[0].StartMS != 0 || cues[0].EndMS != 3*300+250 {
		t.Fatalf("unexpected timing for first cue: %+v", cues[0])
	}
}

func TestSegmentRespectsMaxWords(t *testing.T) {
	input := words("one", "two", "three", "four", "five", "six", "seven")
	cues := Segment(input, 3)
	if len(cues) != 3 {
		t.Fatalf("expected 3 cues, got %d", len(cues))
	}
	for _, cue := range cues {
		if n := len(strings.Fields(cue.Text)); n > 3 {
			t.Fatalf("cue %q exceeds max words", cue.Text)
		}
	}
	if cues[2].Text != "seven" {
		t.Fatalf("expected trailing partial cue, got %q", cues[2].Text)
	}
}

func TestSegmentDefaultsMaxWords(t *testing.T) {
	input := words("a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l")
	cues := Segment(input, 0)
	if len(cues) != 2 || len(strings.Fields(cues[0].Text)) != DefaultMaxWords {
		t.Fatalf("unexpected default grouping: %+v", cues)
	}
}

func TestSegmentCoverageAndDeterminism(t *testing.T) {
	input := words("The", "event", "horizon", "is", "a", "boundary.", "Nothing", "escapes", "it", "not", "even", "light!", "Wild", "right?")
	first := Segment(input, 4)
	second := Segment(input, 4)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("expected identical cue sequences")
	}

	var rebuilt []string
	for i, cue := range first {
		rebuilt = append(rebuilt, strings.Fields(cue.Text)...)
		if cue.StartMS > cue.EndMS {
			t.Fatalf("cue %d has start after end", i)
		}
		if i > 0 && cue.Index <= first[i-1].Index {
			t.Fatalf("indices not strictly increasing at %d", i)
		}
	}
	var original []string
	for _, w := range input {
		original = append(original, w.Text)
	}
	if !reflect.DeepEqual(rebuilt, original) {
		t.Fatalf("coverage mismatch:\n got %v\nwant %v", rebuilt, original)
	}
}

func TestSegmentSkipsBlankWords(t *testing.T) {
	input := []Word{{Text: " hi ", StartMS: 0, EndMS: 10}, {Text: "  ", StartMS: 10, EndMS: 20}, {Text: "there.", StartMS: 20, EndMS: 30}}
	cues := Segment(input, 10)
	if len(cues) != 1 || cues[0].Text != "hi there." || cues[0].EndMS != 30 {
		t.Fatalf("unexpected cues %+v", cues)
	}
}
