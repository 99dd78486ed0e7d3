package daemon

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"studai/internal/fileutil"
	"studai/internal/services"
)

// acceptedDocumentTypes lists the upload types the extractor can read.
var acceptedDocumentTypes = []string{"application/pdf"}

type savedUpload struct {
	path     string
	stored   string
	original string
}

// saveUpload persists the multipart file under field into the uploads
// directory. It returns nil when the request carries no such file.
func (s *apiServer) saveUpload(r *http.Request, field string) (*savedUpload, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "submit", "read upload", "read uploaded file", err)
	}
	defer file.Close()

	original := sanitizeUploadName(header.Filename)
	stored := uuid.NewString() + "_" + original
	dir := s.daemon.uploadsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "submit", "save upload", "create uploads directory", err)
	}
	path, err := fileutil.SafeJoin(dir, stored)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "submit", "save upload", "invalid upload name", err)
	}

	out, err := os.Create(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "submit", "save upload", "create upload file", err)
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		_ = os.Remove(path)
		return nil, services.Wrap(services.ErrValidation, "submit", "save upload", "copy uploaded file", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(path)
		return nil, services.Wrap(services.ErrConfiguration, "submit", "save upload", "close upload file", err)
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		_ = os.Remove(path)
		return nil, services.Wrap(services.ErrValidation, "submit", "sniff upload", "detect upload type", err)
	}
	if !mimetype.EqualsAny(mtype.String(), acceptedDocumentTypes...) {
		_ = os.Remove(path)
		return nil, services.Wrap(services.ErrValidation, "submit", "sniff upload",
			fmt.Sprintf("unsupported document type %s; upload a PDF", mtype.String()), nil)
	}
	return &savedUpload{path: path, stored: stored, original: original}, nil
}

// resolveUpload maps a pdf_name from a WebSocket request to a stored upload.
func (s *apiServer) resolveUpload(name string) (string, error) {
	path, err := fileutil.SafeJoin(s.daemon.uploadsDir(), strings.TrimSpace(name))
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "submit", "resolve document", fmt.Sprintf("invalid pdf_name %q", name), err)
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", services.Wrap(services.ErrNotFound, "submit", "resolve document", fmt.Sprintf("document %q not found", name), err)
	}
	return path, nil
}

func sanitizeUploadName(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == 0:
			return -1
		case r < 0x20:
			return '_'
		default:
			return r
		}
	}, name)
	if name == "" || name == "." || name == ".." {
		return "document.pdf"
	}
	return name
}
