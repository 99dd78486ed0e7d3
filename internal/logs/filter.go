package logs

import (
	"encoding/json"
	"strings"
)

// Filter selects log records by job and minimum level. The zero value keeps
// every line.
type Filter struct {
	JobID string
	Level string

	// keeping tracks whether continuation lines of the current console
	// record belong to a matched header.
	keeping bool
}

// Empty reports whether the filter keeps everything.
func (f *Filter) Empty() bool {
	return strings.TrimSpace(f.JobID) == "" && strings.TrimSpace(f.Level) == ""
}

// Keep reports whether line should be printed. It must see lines in file
// order so console detail lines follow their header's decision.
func (f *Filter) Keep(line string) bool {
	if f.Empty() {
		return true
	}
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		f.keeping = false
		return f.keepJSON(trimmed)
	}
	if strings.HasPrefix(line, "    - ") || trimmed == "" {
		return f.keeping
	}
	f.keeping = f.keepConsole(line)
	return f.keeping
}

func (f *Filter) keepJSON(line string) bool {
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		return false
	}
	if id := strings.TrimSpace(f.JobID); id != "" {
		if value, _ := record["job_id"].(string); value != id {
			return false
		}
	}
	if level := strings.TrimSpace(f.Level); level != "" {
		value, _ := record["level"].(string)
		if levelRank(value) < levelRank(level) {
			return false
		}
	}
	return true
}

func (f *Filter) keepConsole(line string) bool {
	if id := strings.TrimSpace(f.JobID); id != "" && !strings.Contains(line, "Job "+shortJobID(id)) {
		return false
	}
	if level := strings.TrimSpace(f.Level); level != "" {
		// date, time, level
		fields := strings.Fields(line)
		if len(fields) < 3 || levelRank(fields[2]) < levelRank(level) {
			return false
		}
	}
	return true
}

// shortJobID mirrors the truncation in console log headers.
func shortJobID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func levelRank(level string) int {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return 0
	case "INFO":
		return 1
	case "WARN", "WARNING":
		return 2
	case "ERROR", "FATAL":
		return 3
	default:
		return -1
	}
}
