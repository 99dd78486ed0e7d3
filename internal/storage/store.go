package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"studai/internal/config"
	"studai/internal/logging"
	"studai/internal/services"
)

const stageName = "storage"

// Store uploads local files under an object name and downloads remote objects.
type Store interface {
	Upload(ctx context.Context, localPath, name string) (string, error)
	Download(ctx context.Context, url, destPath string) error
	Driver() string
}

// Open builds the configured Store.
func Open(cfg *config.Config, logger *slog.Logger) (Store, error) {
	logger = logging.NewComponentLogger(logger, "storage")
	switch cfg.Storage.Driver {
	case config.StorageDriverAzure:
		store, err := NewAzure(AzureOptions{
			AccountName: cfg.Storage.AccountName,
			AccountKey:  cfg.Storage.AccountKey,
			Container:   cfg.Storage.Container,
			SASExpiry:   cfg.SASExpiry(),
			Logger:      logger,
		})
		if err != nil {
			logging.WarnWithContext(logger, "azure storage not configured; uploads will fail", "storage_unconfigured",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "set AZURE_STORAGE_ACCOUNT_NAME and AZURE_STORAGE_ACCOUNT_KEY"),
				logging.String(logging.FieldImpact, "jobs fail at the first upload"),
			)
			return unavailable{driver: config.StorageDriverAzure, err: err}, nil
		}
		return store, nil
	case config.StorageDriverLocal, "":
		return NewLocal(cfg.Storage.LocalDir, PublicBaseURL(cfg), logger)
	default:
		return nil, services.Wrap(services.ErrConfiguration, stageName, "open",
			fmt.Sprintf("unsupported storage.driver %q", cfg.Storage.Driver), nil)
	}
}

// unavailable stands in for a driver whose credentials are missing so that
// only the stages that touch storage fail.
type unavailable struct {
	driver string
	err    error
}

func (u unavailable) Upload(context.Context, string, string) (string, error) { return "", u.err }
func (u unavailable) Download(context.Context, string, string) error        { return u.err }
func (u unavailable) Driver() string                                        { return u.driver }

// PublicBaseURL returns the externally reachable base URL of the API.
func PublicBaseURL(cfg *config.Config) string {
	if base := strings.TrimRight(strings.TrimSpace(cfg.API.PublicBaseURL), "/"); base != "" {
		return base
	}
	return "http://" + cfg.API.Bind
}

// DocumentName returns the object name for an uploaded source document.
func DocumentName(fileID string) string {
	return "files/" + fileID
}

// AudioName returns the object name for narration audio.
func AudioName(fileID, language string) string {
	return fmt.Sprintf("audio/%s_%s.mp3", fileID, language)
}

// VideoName returns the object name for the final video.
func VideoName(fileID, language string) string {
	return fmt.Sprintf("videos/%s_final_video_%s.mp4", fileID, language)
}

// ContentType sniffs a local file's MIME type.
func ContentType(path string) string {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "application/octet-stream"
	}
	return mtype.String()
}

// httpDownload fetches a URL into destPath. It backs every driver when the URL
// does not point at storage the driver owns.
func httpDownload(ctx context.Context, client *http.Client, url, destPath string) error {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return services.Wrap(services.ErrValidation, stageName, "download", "invalid url", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, stageName, "download", "request failed", err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, stageName, "download", url, nil)
	case resp.StatusCode >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransient, stageName, "download", fmt.Sprintf("http %d", resp.StatusCode), nil)
	case resp.StatusCode >= http.StatusMultipleChoices:
		return services.Wrap(services.ErrExternalTool, stageName, "download", fmt.Sprintf("http %d", resp.StatusCode), nil)
	}
	return writeStream(resp.Body, destPath)
}

func writeStream(r io.Reader, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, stageName, "download", "create destination dir", err)
	}
	out, err := os.Create(destPath)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, stageName, "download", "create destination", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		_ = os.Remove(destPath)
		return services.Wrap(services.ErrTransient, stageName, "download", "write destination", err)
	}
	if err := out.Close(); err != nil {
		return services.Wrap(services.ErrConfiguration, stageName, "download", "close destination", err)
	}
	return nil
}
