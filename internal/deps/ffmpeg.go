package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ResolveFFmpeg reports the ffmpeg binary the compositor will execute.
//
// An explicit configured path wins (FFMPEG_PATH is folded into the config
// during load). A bare command name is looked up on PATH. When nothing is
// configured, "ffmpeg" is resolved from PATH.
func ResolveFFmpeg(configured string) Status {
	result := Status{
		Name:        "FFmpeg",
		Description: "Video composition and caption burn-in",
		Optional:    true,
	}

	configured = strings.TrimSpace(configured)
	if configured != "" && strings.ContainsRune(configured, filepath.Separator) {
		result.Command = configured
		info, err := os.Stat(configured)
		if err == nil && isExecutable(info) {
			result.Available = true
			return result
		}
		result.Detail = fmt.Sprintf("configured ffmpeg %q is not executable", configured)
		return result
	}

	name := configured
	if name == "" {
		name = executableName("ffmpeg")
	}
	if resolved, err := exec.LookPath(name); err == nil {
		result.Command = resolved
		result.Available = true
		return result
	}

	result.Command = name
	result.Detail = fmt.Sprintf("binary %q not found", name)
	return result
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
