package compositor

import "testing"

func TestEscapeFilterPath(t *testing.T) {
	cases := map[string]string{
		"/work/out/final.ass":       "/work/out/final.ass",
		"/work/fonts:dir":           `/work/fonts\:dir`,
		"/home/o'brien/fonts":       `/home/o'\\\''brien/fonts`,
		`/work/back\slash/it's:now`: `/work/back\\slash/it'\\\''s\:now`,
	}
	for in, want := range cases {
		if got := escapeFilterPath(in); got != want {
			t.Errorf("escapeFilterPath(%q) = %q, want %q", in, got, want)
		}
	}
}
