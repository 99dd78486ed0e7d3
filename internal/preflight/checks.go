package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sys/unix"

	"studai/internal/config"
	"studai/internal/deps"
	"studai/internal/services/llm"
)

// CheckLLM verifies that the LLM API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, cfg config.LLM) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing (set OPENROUTER_API_KEY)"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Referer: cfg.Referer,
		Title:   cfg.Title,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckRedis pings the Redis registry backend.
func CheckRedis(ctx context.Context, cfg config.Registry) Result {
	const name = "Redis registry"
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return Result{Name: name, Detail: "missing address (set REDIS_ADDR)"}
	}
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: 3 * time.Second,
	})
	defer client.Close()

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(checkCtx).Err(); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (ping failed: %s)", cfg.RedisAddr, summarizeNetError(err))}
	}
	return Result{Name: name, Passed: true, Detail: cfg.RedisAddr}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies the filesystem holding path has at least minBytes free.
func CheckFreeSpace(name, path string, minBytes uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	detail := fmt.Sprintf("%s free", formatBytes(free))
	if free < minBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s (need %s)", detail, formatBytes(minBytes))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckSystemDeps evaluates the external binaries the configured pipeline calls.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg))
}

// CheckSpeechFromConfig reports whether speech synthesis credentials are set.
func CheckSpeechFromConfig(cfg *config.Config) Result {
	const name = "Speech synthesis"
	if strings.TrimSpace(cfg.Speech.ResourceKey) == "" {
		return Result{Name: name, Detail: "Missing resource key (set TTS_AZURE_RESOURCE_KEY)"}
	}
	if strings.TrimSpace(cfg.Speech.Region) == "" && strings.TrimSpace(cfg.Speech.Endpoint) == "" {
		return Result{Name: name, Detail: "Missing region or endpoint (set TTS_AZURE_REGION)"}
	}
	target := cfg.Speech.Endpoint
	if target == "" {
		target = "region " + cfg.Speech.Region
	}
	return Result{Name: name, Passed: true, Detail: "Configured (" + target + ")"}
}

// CheckStorageFromConfig reports whether the artifact store can be used.
func CheckStorageFromConfig(cfg *config.Config) Result {
	const name = "Artifact storage"
	switch cfg.Storage.Driver {
	case config.StorageDriverAzure:
		var missing []string
		if strings.TrimSpace(cfg.Storage.AccountName) == "" {
			missing = append(missing, "AZURE_STORAGE_ACCOUNT_NAME")
		}
		if strings.TrimSpace(cfg.Storage.AccountKey) == "" {
			missing = append(missing, "AZURE_STORAGE_ACCOUNT_KEY")
		}
		if strings.TrimSpace(cfg.Storage.Container) == "" {
			missing = append(missing, "AZURE_STORAGE_CONTAINER")
		}
		if len(missing) > 0 {
			return Result{Name: name, Detail: "Azure blob missing " + strings.Join(missing, ", ")}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("Azure blob %s/%s", cfg.Storage.AccountName, cfg.Storage.Container)}
	default:
		check := CheckDirectoryAccess(name, cfg.Storage.LocalDir)
		if check.Passed {
			check.Detail = "Local " + check.Detail
		}
		return check
	}
}

// CheckTranscriptionFromConfig reports the caption word-timing provider state.
func CheckTranscriptionFromConfig(cfg *config.Config) Result {
	const name = "Transcription"
	if !cfg.Captions.Enabled || cfg.Transcription.Provider == config.TranscriptionNone {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	switch cfg.Transcription.Provider {
	case config.TranscriptionAssemblyAI:
		if strings.TrimSpace(cfg.Transcription.AssemblyAIKey) == "" {
			return Result{Name: name, Detail: "Missing API key (set ASSEMBLYAI_API_KEY)"}
		}
		return Result{Name: name, Passed: true, Detail: "AssemblyAI"}
	case config.TranscriptionWhisperX:
		for _, status := range deps.CheckBinaries([]deps.Requirement{{Name: "uvx", Command: "uvx"}}) {
			if !status.Available {
				return Result{Name: name, Detail: "WhisperX needs uvx on PATH"}
			}
		}
		return Result{Name: name, Passed: true, Detail: "WhisperX (" + cfg.Transcription.WhisperXModel + ")"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("unknown provider %q", cfg.Transcription.Provider)}
	}
}

// CheckBaseVideo verifies the base clip used for video composition exists.
func CheckBaseVideo(cfg *config.Config) Result {
	const name = "Base video"
	path := strings.TrimSpace(cfg.Compositor.BaseVideo)
	if path == "" {
		return Result{Name: name, Detail: "compositor.base_video not set (jobs complete without video)"}
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a readable file)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// summarizeNetError produces a human-readable summary for network check failures.
func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (API unreachable)"
	}
	return err.Error()
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
