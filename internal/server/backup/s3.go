// Package backup periodically exports every stored document to an
// S3-compatible bucket as a single JSON object.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/gophtasks/internal/logging"
	"github.com/dmitrijs2005/gophtasks/internal/server/config"
	"github.com/dmitrijs2005/gophtasks/internal/server/models"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// NewS3Client builds a client for the configured endpoint using static
// credentials and path-style addressing (MinIO and friends).
func NewS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}

// Uploader is the part of *s3.Client the exporter needs.
type Uploader interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Source lists every document to export.
type Source interface {
	All(ctx context.Context) ([]*models.Document, error)
}

type archivedDocument struct {
	ID        string         `json:"id"`
	Path      string         `json:"path"`
	OwnerID   string         `json:"owner_id"`
	Fields    map[string]any `json:"fields"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type archive struct {
	ExportedAt time.Time          `json:"exported_at"`
	Documents  []archivedDocument `json:"documents"`
}

type Exporter struct {
	source   Source
	uploader Uploader
	bucket   string
	logger   logging.Logger
	now      func() time.Time
	newID    func() string
}

func NewExporter(source Source, uploader Uploader, bucket string, logger logging.Logger) *Exporter {
	return &Exporter{
		source:   source,
		uploader: uploader,
		bucket:   bucket,
		logger:   logger.With("module", "backup"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// StorageKey returns backups/YYYY/MM/DD/<id>.json for t.
func StorageKey(t time.Time, id string) string {
	return fmt.Sprintf("backups/%04d/%02d/%02d/%s.json", t.Year(), t.Month(), t.Day(), id)
}

// Export uploads one archive of all documents and returns its object key.
func (e *Exporter) Export(ctx context.Context) (string, error) {
	docs, err := e.source.All(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list documents: %w", err)
	}

	now := e.now().UTC()
	a := archive{ExportedAt: now, Documents: make([]archivedDocument, 0, len(docs))}
	for _, d := range docs {
		a.Documents = append(a.Documents, archivedDocument{
			ID:        d.ID,
			Path:      d.Path,
			OwnerID:   d.OwnerID,
			Fields:    d.Fields,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		})
	}

	body, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("failed to encode archive: %w", err)
	}

	key := StorageKey(now, e.newID())
	if _, err := e.uploader.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	e.logger.Info(ctx, "backup exported", "key", key, "documents", len(a.Documents))
	return key, nil
}

// Run exports every interval until ctx is cancelled. Failed exports are
// logged and retried on the next tick. A non-positive interval disables
// the exporter.
func (e *Exporter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.Export(ctx); err != nil {
				e.logger.Error(ctx, "backup failed", "error", err)
			}
		}
	}
}
