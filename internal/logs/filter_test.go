package logs

import "testing"

func TestFilterJSONLines(t *testing.T) {
	f := &Filter{JobID: "job-1", Level: "warn"}
	cases := []struct {
		line string
		want bool
	}{
		{`{"time":"t","level":"WARN","msg":"retry","job_id":"job-1"}`, true},
		{`{"time":"t","level":"INFO","msg":"stage","job_id":"job-1"}`, false},
		{`{"time":"t","level":"ERROR","msg":"failed","job_id":"job-2"}`, false},
		{`{broken`, false},
	}
	for _, tc := range cases {
		if got := f.Keep(tc.line); got != tc.want {
			t.Fatalf("Keep(%s) = %v, want %v", tc.line, got, tc.want)
		}
	}
}

func TestFilterConsoleContinuation(t *testing.T) {
	f := &Filter{JobID: "a1b2c3d4-0000-4000-8000-000000000001", Level: "info"}
	lines := []string{
		"2026-10-19 10:00:00 INFO [workflow] Job a1b2c3d4 (tts_generation) – synthesizing",
		"    - voice: en-US",
		"2026-10-19 10:00:01 INFO [workflow] Job ffee0011 (tts_generation) – synthesizing",
		"    - voice: fr-FR",
		"2026-10-19 10:00:02 DEBUG [workflow] Job a1b2c3d4 (tts_generation) – chunk",
		"    - bytes: 512",
	}
	var kept []string
	for _, line := range lines {
		if f.Keep(line) {
			kept = append(kept, line)
		}
	}
	if len(kept) != 2 || kept[1] != "    - voice: en-US" {
		t.Fatalf("unexpected kept lines %#v", kept)
	}
}

func TestEmptyFilterKeepsEverything(t *testing.T) {
	var f Filter
	if !f.Keep("anything") || !f.Keep("    - detail") {
		t.Fatal("expected empty filter to keep every line")
	}
}
