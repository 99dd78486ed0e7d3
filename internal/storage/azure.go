package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"

	"studai/internal/config"
	"studai/internal/logging"
	"studai/internal/services"
)

// DefaultSASExpiry is used when AzureOptions.SASExpiry is not positive.
const DefaultSASExpiry = 30 * 24 * time.Hour

// AzureOptions configures the Azure Blob driver.
type AzureOptions struct {
	AccountName string
	AccountKey  string
	Container   string
	// ServiceURL overrides https://<account>.blob.core.windows.net/, e.g. for Azurite.
	ServiceURL string
	SASExpiry  time.Duration
	Logger     *slog.Logger
}

// Azure uploads artifacts to a blob container and hands out SAS URLs.
type Azure struct {
	client    *azblob.Client
	container string
	host      string
	expiry    time.Duration
	logger    *slog.Logger
	now       func() time.Time

	ensureOnce sync.Once
	ensureErr  error
}

// NewAzure builds the driver. Missing credentials are a configuration error
// naming the settings to fill in.
func NewAzure(opts AzureOptions) (*Azure, error) {
	var missing []string
	if strings.TrimSpace(opts.AccountName) == "" {
		missing = append(missing, "storage.account_name (AZURE_STORAGE_ACCOUNT_NAME)")
	}
	if strings.TrimSpace(opts.AccountKey) == "" {
		missing = append(missing, "storage.account_key (AZURE_STORAGE_ACCOUNT_KEY)")
	}
	if strings.TrimSpace(opts.Container) == "" {
		missing = append(missing, "storage.container (AZURE_STORAGE_CONTAINER)")
	}
	if len(missing) > 0 {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "open azure",
			"missing "+strings.Join(missing, ", "), nil)
	}
	cred, err := azblob.NewSharedKeyCredential(opts.AccountName, opts.AccountKey)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "open azure", "invalid account key", err)
	}
	serviceURL := strings.TrimSpace(opts.ServiceURL)
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net/", opts.AccountName)
	}
	parsed, err := url.Parse(serviceURL)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "open azure", "invalid service url", err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "open azure", "create client", err)
	}
	expiry := opts.SASExpiry
	if expiry <= 0 {
		expiry = DefaultSASExpiry
	}
	return &Azure{
		client:    client,
		container: opts.Container,
		host:      parsed.Host,
		expiry:    expiry,
		logger:    logging.NewComponentLogger(opts.Logger, "storage"),
		now:       time.Now,
	}, nil
}

// Driver names the backend.
func (a *Azure) Driver() string { return config.StorageDriverAzure }

// Upload sends localPath to the container as name and returns a read-only SAS URL.
func (a *Azure) Upload(ctx context.Context, localPath, name string) (string, error) {
	if err := a.ensureContainer(ctx); err != nil {
		return "", err
	}
	file, err := os.Open(localPath)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, stageName, "upload", localPath, err)
	}
	defer file.Close()

	contentType := ContentType(localPath)
	_, err = a.client.UploadFile(ctx, a.container, name, file, &azblob.UploadFileOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return "", classifyBlobError("upload", err)
	}
	logging.WithContext(ctx, a.logger).Debug("blob uploaded",
		logging.String("container", a.container),
		logging.String("name", name),
		logging.String("content_type", contentType),
	)
	return a.SignedURL(name)
}

// SignedURL returns a read-only SAS URL for name valid for the configured expiry.
func (a *Azure) SignedURL(name string) (string, error) {
	blobClient := a.client.ServiceClient().NewContainerClient(a.container).NewBlobClient(name)
	signed, err := blobClient.GetSASURL(sas.BlobPermissions{Read: true}, a.now().UTC().Add(a.expiry), nil)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, stageName, "sign url", name, err)
	}
	return signed, nil
}

// Download fetches a blob of this account with the shared key, any other blob
// URL anonymously (SAS or public), and everything else over plain HTTP.
func (a *Azure) Download(ctx context.Context, rawURL, destPath string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return services.Wrap(services.ErrValidation, stageName, "download", "invalid url", err)
	}
	if !strings.HasSuffix(parsed.Host, ".blob.core.windows.net") && parsed.Host != a.host {
		return httpDownload(ctx, nil, rawURL, destPath)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, stageName, "download", "create destination dir", err)
	}
	file, err := os.Create(destPath)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, stageName, "download", "create destination", err)
	}
	defer file.Close()

	if parsed.Host == a.host {
		parts, err := azblob.ParseURL(rawURL)
		if err != nil {
			return services.Wrap(services.ErrValidation, stageName, "download", "invalid blob url", err)
		}
		_, err = a.client.DownloadFile(ctx, parts.ContainerName, parts.BlobName, file, nil)
		return classifyBlobError("download", err)
	}
	anon, err := blob.NewClientWithNoCredential(rawURL, nil)
	if err != nil {
		return services.Wrap(services.ErrValidation, stageName, "download", "invalid blob url", err)
	}
	_, err = anon.DownloadFile(ctx, file, nil)
	return classifyBlobError("download", err)
}

func (a *Azure) ensureContainer(ctx context.Context) error {
	a.ensureOnce.Do(func() {
		_, err := a.client.CreateContainer(ctx, a.container, nil)
		if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			a.ensureErr = classifyBlobError("create container", err)
		}
	})
	return a.ensureErr
}

func classifyBlobError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, stageName, op, "blob request timed out", err)
	case bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound):
		return services.Wrap(services.ErrNotFound, stageName, op, "blob not found", err)
	case bloberror.HasCode(err, bloberror.AuthenticationFailed, bloberror.AuthorizationFailure, bloberror.InvalidAuthenticationInfo):
		return services.Wrap(services.ErrConfiguration, stageName, op, "check storage.account_name and storage.account_key", err)
	case bloberror.HasCode(err, bloberror.ServerBusy, bloberror.InternalError, bloberror.OperationTimedOut):
		return services.Wrap(services.ErrTransient, stageName, op, "blob service unavailable", err)
	default:
		return services.Wrap(services.ErrExternalTool, stageName, op, "blob request failed", err)
	}
}
