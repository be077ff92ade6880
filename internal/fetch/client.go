// Package fetch downloads metadata documents from HTTP servers and
// S3-compatible object storage.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rossigee/episode-catalog/internal/metrics"
	"github.com/sirupsen/logrus"
)

// DefaultPrefix names downloaded documents <prefix><n>.json
const DefaultPrefix = "maniskill_metadata"

// ErrS3NotConfigured is returned for s3:// sources without credentials
var ErrS3NotConfigured = errors.New("object storage credentials are not configured")

// Config holds download settings
type Config struct {
	Endpoint    string
	AccessKey   string
	SecretKey   string
	HTTPTimeout time.Duration
}

// Client handles metadata downloads
type Client struct {
	httpClient  *http.Client
	minioClient *minio.Client
}

// NewClient creates a new download client. The object storage client is
// only created when both keys are set.
func NewClient(cfg Config) (*Client, error) {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 60 * time.Second
	}

	client := &Client{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
	}

	logrus.WithFields(logrus.Fields{
		"endpoint":        cfg.Endpoint,
		"accessKey_found": cfg.AccessKey != "",
		"secretKey_found": cfg.SecretKey != "",
	}).Debug("Object storage configuration check")

	if cfg.AccessKey == "" && cfg.SecretKey == "" {
		return client, nil
	}
	if cfg.AccessKey == "" {
		return nil, fmt.Errorf("minio.access_key (MINIO_ACCESS_KEY) is required when a secret key is set")
	}
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio.secret_key (MINIO_SECRET_KEY) is required when an access key is set")
	}

	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid MINIO_ENDPOINT '%s': %w (expected format: https://hostname:port)", cfg.Endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid MINIO_ENDPOINT scheme '%s': must be http or https", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid MINIO_ENDPOINT '%s': missing hostname", cfg.Endpoint)
	}

	minioClient, err := minio.New(u.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: u.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client for %s: %w", u.Host, err)
	}
	client.minioClient = minioClient

	return client, nil
}

// Download fetches src into destPath and returns the number of bytes written.
// Supported sources are http(s):// URLs and s3://bucket/object.
func (c *Client) Download(ctx context.Context, src, destPath string) (int64, error) {
	u, err := url.Parse(src)
	if err != nil {
		return 0, fmt.Errorf("invalid source URL: %w", err)
	}

	var (
		body     io.ReadCloser
		expected int64 = -1
	)

	switch u.Scheme {
	case "http", "https":
		body, err = c.openHTTP(ctx, src)
	case "s3":
		body, expected, err = c.openObject(ctx, u)
	default:
		return 0, fmt.Errorf("unsupported source scheme '%s'", u.Scheme)
	}
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = body.Close() // Close errors are not critical
	}()

	return writeAtomically(destPath, body, expected)
}

func (c *Client) openHTTP(ctx context.Context, src string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", src, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("failed to download %s - status code: %d", src, resp.StatusCode)
	}

	return resp.Body, nil
}

func (c *Client) openObject(ctx context.Context, u *url.URL) (io.ReadCloser, int64, error) {
	if c.minioClient == nil {
		return nil, 0, ErrS3NotConfigured
	}

	bucketName := u.Host
	objectName := strings.TrimPrefix(u.Path, "/")
	if bucketName == "" || objectName == "" {
		return nil, 0, fmt.Errorf("invalid object URL: %s (expected s3://bucket/object)", u.String())
	}

	objInfo, err := c.minioClient.StatObject(ctx, bucketName, objectName, minio.StatObjectOptions{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to stat object: %w", err)
	}

	object, err := c.minioClient.GetObject(ctx, bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get object: %w", err)
	}

	return object, objInfo.Size, nil
}

// writeAtomically copies r to a temporary file next to destPath and renames
// it into place once the copy is complete.
func writeAtomically(destPath string, r io.Reader, expected int64) (int64, error) {
	tempFile, err := os.CreateTemp(filepath.Dir(destPath), ".download-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	written, err := io.Copy(tempFile, r)
	closeErr := tempFile.Close()
	if err != nil {
		_ = os.Remove(tempPath) // Cleanup errors are not critical
		return 0, fmt.Errorf("failed to write download: %w", err)
	}
	if closeErr != nil {
		_ = os.Remove(tempPath) // Cleanup errors are not critical
		return 0, fmt.Errorf("failed to close temp file: %w", closeErr)
	}

	if expected >= 0 && written != expected {
		_ = os.Remove(tempPath) // Cleanup errors are not critical
		return 0, fmt.Errorf("download incomplete: got %d bytes, expected %d", written, expected)
	}

	if err := os.Rename(tempPath, destPath); err != nil {
		_ = os.Remove(tempPath) // Cleanup errors are not critical
		return 0, fmt.Errorf("failed to move download into place: %w", err)
	}

	return written, nil
}

// FetchAll downloads each source into destDir as <prefix><n>.json, n
// starting at 1, and returns the paths written. A failed download is
// logged and skipped.
func (c *Client) FetchAll(ctx context.Context, sources []string, destDir, prefix string) ([]string, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	var paths []string
	for i, src := range sources {
		destPath := filepath.Join(destDir, fmt.Sprintf("%s%d.json", prefix, i+1))
		log := logrus.WithFields(logrus.Fields{"url": src, "file": destPath})

		n, err := c.Download(ctx, src, destPath)
		if err != nil {
			metrics.DownloadsTotal.WithLabelValues(scheme(src), "failed").Inc()
			log.WithError(err).Error("Failed to download metadata")
			continue
		}

		metrics.DownloadsTotal.WithLabelValues(scheme(src), "downloaded").Inc()
		log.WithField("bytes", n).Info("Downloaded metadata")
		paths = append(paths, destPath)
	}

	return paths, nil
}

// AppendFileList appends paths to the line-oriented file list at listPath
func AppendFileList(listPath string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	f, err := os.OpenFile(listPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open file list: %w", err)
	}

	for _, p := range paths {
		if _, err := fmt.Fprintln(f, p); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to append to file list: %w", err)
		}
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close file list: %w", err)
	}
	return nil
}

func scheme(src string) string {
	if u, err := url.Parse(src); err == nil && u.Scheme != "" {
		return u.Scheme
	}
	return "unknown"
}
