package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Bucket names the two logical destinations files can be stored in.
type Bucket string

const (
	// BucketImages holds child photos and other display assets.
	BucketImages Bucket = "images"
	// BucketDocuments holds application paperwork.
	BucketDocuments Bucket = "documents"
)

// Config contains credentials and folder mapping for the storage backend.
type Config struct {
	CloudName       string
	APIKey          string
	APISecret       string
	ImagesFolder    string
	DocumentsFolder string
}

// UploadResult describes a stored file.
type UploadResult struct {
	FileName string
	URL      string
	Path     string
	Size     int64
}

// NamedFile pairs a file name with its content for batch uploads.
type NamedFile struct {
	Name   string
	Reader io.Reader
	Size   int64
}

// BatchResult holds the per-file outcome of a batch upload.
type BatchResult struct {
	FileName string
	Result   UploadResult
	Err      error
}

// Uploader is the minimal surface services depend on.
type Uploader interface {
	Upload(ctx context.Context, bucket Bucket, name string, reader io.Reader, size int64) (UploadResult, error)
}

// Client stores files in Cloudinary, one folder per logical bucket.
type Client struct {
	client  *cloudinary.Cloudinary
	folders map[Bucket]string
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// New constructs a storage client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Client{
		client: cld,
		folders: map[Bucket]string{
			BucketImages:    strings.Trim(cfg.ImagesFolder, "/"),
			BucketDocuments: strings.Trim(cfg.DocumentsFolder, "/"),
		},
		logger: logger.With().Str("component", "storage").Logger(),
		tracer: otel.Tracer("github.com/littlesprouts/admissions-api/pkg/storage"),
	}, nil
}

// Upload stores the file under a unique path inside the bucket's folder
// and returns its public URL.
func (c *Client) Upload(ctx context.Context, bucket Bucket, name string, reader io.Reader, size int64) (UploadResult, error) {
	ctx, span := c.tracer.Start(ctx, "storage.upload", trace.WithAttributes(
		attribute.String("storage.bucket", string(bucket)),
		attribute.String("storage.original_name", name),
		attribute.Int64("storage.size_bytes", size),
	))
	defer span.End()

	folder, ok := c.folders[bucket]
	if !ok {
		err := fmt.Errorf("unknown bucket %q", bucket)
		span.RecordError(err)
		span.SetStatus(codes.Error, "unknown bucket")
		return UploadResult{}, err
	}

	publicID := BuildPublicID(name)

	result, err := c.client.Upload.Upload(ctx, reader, uploader.UploadParams{
		Folder:       folder,
		PublicID:     publicID,
		ResourceType: "auto",
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		return UploadResult{}, fmt.Errorf("failed to upload asset: %w", err)
	}

	c.logger.Info().
		Str("bucket", string(bucket)).
		Str("public_id", result.PublicID).
		Msg("file stored")
	span.SetStatus(codes.Ok, "stored")

	return UploadResult{
		FileName: name,
		URL:      result.SecureURL,
		Path:     result.PublicID,
		Size:     size,
	}, nil
}

// Delete removes a stored file by its path.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.client.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: path})
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	return nil
}

// UploadBatch stores every file concurrently, best effort. A failed file
// does not stop the others; callers inspect the per-file results.
func UploadBatch(ctx context.Context, u Uploader, bucket Bucket, files []NamedFile) []BatchResult {
	results := make([]BatchResult, len(files))

	var wg sync.WaitGroup
	for i, file := range files {
		wg.Add(1)
		go func(i int, file NamedFile) {
			defer wg.Done()
			result, err := u.Upload(ctx, bucket, file.Name, file.Reader, file.Size)
			results[i] = BatchResult{FileName: file.Name, Result: result, Err: err}
		}(i, file)
	}
	wg.Wait()

	return results
}

// BuildPublicID derives a collision-free storage path segment from the
// original file name.
func BuildPublicID(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = "upload"
	}

	salt := strings.Split(uuid.NewString(), "-")[0]

	return fmt.Sprintf("%s-%d-%s", base, time.Now().Unix(), salt)
}
