package captions

import (
	"fmt"
	"strconv"
	"strings"
)

func splitMillis(ms int64) (hours, minutes, seconds, millis int64) {
	if ms < 0 {
		ms = 0
	}
	hours = ms / 3_600_000
	minutes = (ms % 3_600_000) / 60_000
	seconds = (ms % 60_000) / 1000
	millis = ms % 1000
	return hours, minutes, seconds, millis
}

// FormatSRTTime renders ms as HH:MM:SS,mmm.
func FormatSRTTime(ms int64) string {
	h, m, s, milli := splitMillis(ms)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, milli)
}

// FormatASSTime renders ms as HH:MM:SS.cc with the centiseconds truncated.
func FormatASSTime(ms int64) string {
	h, m, s, milli := splitMillis(ms)
	return fmt.Sprintf("%02d:%02d:%02d.%02d", h, m, s, milli/10)
}

// ParseSRTTime parses HH:MM:SS,mmm (a '.' separator is also accepted).
func ParseSRTTime(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ".", ",")
	clock, fraction, ok := strings.Cut(value, ",")
	if !ok {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(clock, ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.ParseInt(hms[0], 10, 64)
	minutes, errM := strconv.ParseInt(hms[1], 10, 64)
	seconds, errS := strconv.ParseInt(hms[2], 10, 64)
	millis, errMS := strconv.ParseInt(fraction, 10, 64)
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	if hours < 0 || minutes < 0 || seconds < 0 || millis < 0 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return hours*3_600_000 + minutes*60_000 + seconds*1000 + millis, nil
}
