// Package storage provides object storage implementations for raw
// statement archival.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	appbanking "github.com/bankbridge/backend/internal/application/banking"
	infraconfig "github.com/bankbridge/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ensure S3StatementArchiver implements StatementArchiver
var _ appbanking.StatementArchiver = (*S3StatementArchiver)(nil)

// S3StatementArchiver stores raw bank statement payloads in an
// S3-compatible bucket. Objects are laid out by tenant, integration and
// fetch date so an auditor can walk one integration's history with a
// prefix listing.
type S3StatementArchiver struct {
	client *s3.Client
	bucket string
	logger *zap.Logger
}

// S3StatementArchiverOption is a functional option for configuring the archiver
type S3StatementArchiverOption func(*S3StatementArchiver)

// WithLogger sets a custom logger for the archiver
func WithLogger(logger *zap.Logger) S3StatementArchiverOption {
	return func(s *S3StatementArchiver) {
		s.logger = logger
	}
}

// NewS3StatementArchiver creates a new archiver from configuration. It is
// compatible with any S3-compatible backend (AWS S3, MinIO, etc.)
func NewS3StatementArchiver(cfg *infraconfig.StorageConfig, opts ...S3StatementArchiverOption) (*S3StatementArchiver, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("storage secret key is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			endpoint, err := normalizeEndpoint(cfg.Endpoint)
			if err == nil {
				o.BaseEndpoint = aws.String(endpoint)
			}
		}
	})

	archiver := &S3StatementArchiver{
		client: client,
		bucket: cfg.Bucket,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(archiver)
	}
	return archiver, nil
}

// normalizeEndpoint ensures the endpoint carries a protocol and parses
func normalizeEndpoint(endpoint string) (string, error) {
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	if _, err := url.Parse(endpoint); err != nil {
		return "", fmt.Errorf("invalid storage endpoint: %w", err)
	}
	return endpoint, nil
}

// EnsureBucket creates the bucket if it doesn't exist. Call during
// application startup.
func (s *S3StatementArchiver) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("Creating statement archive bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		// A concurrent startup may have won the race
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// ArchiveStatement uploads one raw statement payload. The key embeds the
// fetch timestamp, so re-syncs of the same window archive as separate
// objects rather than overwriting earlier evidence.
func (s *S3StatementArchiver) ArchiveStatement(ctx context.Context, tenantID, integrationID uuid.UUID, accountNumber string, fetchedAt time.Time, payload []byte) error {
	if len(payload) == 0 {
		return errors.New("statement payload is empty")
	}

	key := statementKey(tenantID, integrationID, accountNumber, fetchedAt)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to archive statement: %w", err)
	}

	s.logger.Debug("Archived raw statement",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int("bytes", len(payload)))
	return nil
}

// statementKey builds the object key for one archived statement fetch
func statementKey(tenantID, integrationID uuid.UUID, accountNumber string, fetchedAt time.Time) string {
	return fmt.Sprintf("statements/%s/%s/%s/%s.json",
		tenantID, integrationID, accountNumber, fetchedAt.UTC().Format("2006-01-02T15-04-05Z"))
}
