package storage

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"studai/internal/config"
	"studai/internal/fileutil"
	"studai/internal/logging"
	"studai/internal/services"
)

// VideoRoute is the API path prefix that serves local artifacts.
const VideoRoute = "/api/videos/"

// Local stores artifacts in a directory served by the daemon.
type Local struct {
	root    string
	baseURL string
	logger  *slog.Logger
}

// NewLocal builds a local driver rooted at dir. baseURL is the API origin used
// to build returned URLs.
func NewLocal(dir, baseURL string, logger *slog.Logger) (*Local, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "open", "storage.local_dir is not set", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "open", "create storage.local_dir", err)
	}
	return &Local{root: dir, baseURL: strings.TrimRight(baseURL, "/"), logger: logging.NewComponentLogger(logger, "storage")}, nil
}

// Driver names the backend.
func (l *Local) Driver() string { return config.StorageDriverLocal }

// Root returns the directory artifacts are written to.
func (l *Local) Root() string { return l.root }

// Upload copies localPath into the storage directory.
func (l *Local) Upload(ctx context.Context, localPath, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dest, err := fileutil.SafeJoin(l.root, name)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, stageName, "upload", "invalid object name", err)
	}
	info, err := os.Stat(localPath)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, stageName, "upload", localPath, err)
	}
	if err := fileutil.CopyFileVerified(localPath, dest); err != nil {
		return "", services.Wrap(services.ErrExternalTool, stageName, "upload", "copy artifact", err)
	}
	logging.WithContext(ctx, l.logger).Debug("artifact stored",
		logging.String("name", name),
		logging.Int64("bytes", info.Size()),
		logging.String("content_type", ContentType(dest)),
	)
	return l.URL(name), nil
}

// URL returns the public URL of an object name.
func (l *Local) URL(name string) string {
	return l.baseURL + VideoRoute + escapeName(name)
}

// Download copies an object this driver serves, or fetches any other URL over
// HTTP.
func (l *Local) Download(ctx context.Context, rawURL, destPath string) error {
	if name, ok := l.ownName(rawURL); ok {
		src, err := fileutil.SafeJoin(l.root, name)
		if err != nil {
			return services.Wrap(services.ErrValidation, stageName, "download", "invalid object name", err)
		}
		if _, err := os.Stat(src); err != nil {
			return services.Wrap(services.ErrNotFound, stageName, "download", name, err)
		}
		if err := fileutil.CopyFileVerified(src, destPath); err != nil {
			return services.Wrap(services.ErrExternalTool, stageName, "download", "copy artifact", err)
		}
		return nil
	}
	return httpDownload(ctx, nil, rawURL, destPath)
}

func (l *Local) ownName(rawURL string) (string, bool) {
	prefix := l.baseURL + VideoRoute
	if !strings.HasPrefix(rawURL, prefix) {
		return "", false
	}
	name, err := url.PathUnescape(strings.TrimPrefix(rawURL, prefix))
	if err != nil {
		return "", false
	}
	return name, true
}

func escapeName(name string) string {
	parts := strings.Split(name, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
