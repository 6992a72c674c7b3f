package exporter

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"fuelpanel/internal/config"
	apperrors "fuelpanel/internal/errors"
)

const uploadTimeout = 2 * time.Minute

// ObjectPutter is the subset of the S3 client used for uploads
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader uploads exported panel files to a bucket
type S3Uploader struct {
	client ObjectPutter
	bucket string
	prefix string
	logger *slog.Logger
}

// NewS3Client builds an S3 client from the export configuration. Static
// credentials are used when both keys are set, otherwise the default AWS
// credential chain applies.
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, apperrors.NewConfigError("load aws config", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// NewS3Uploader creates an uploader writing below cfg.Prefix in cfg.Bucket
func NewS3Uploader(client ObjectPutter, cfg config.S3Config, logger *slog.Logger) *S3Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Uploader{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: logger.With("component", "s3_uploader"),
	}
}

// Key maps a slash separated output path to its object key
func (u *S3Uploader) Key(relPath string) string {
	relPath = strings.TrimPrefix(relPath, "/")
	if u.prefix == "" {
		return relPath
	}
	return path.Join(u.prefix, relPath)
}

// Upload stores data under the key of relPath and returns the key
func (u *S3Uploader) Upload(ctx context.Context, relPath string, data []byte, format string) (string, error) {
	key := u.Key(relPath)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType(format)),
		Metadata: map[string]string{
			"format":            format,
			"fuelpanel-version": config.AppVersion,
		},
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()
	if _, err := u.client.PutObject(ctx, input); err != nil {
		return "", apperrors.NewStorageError(fmt.Sprintf("upload %s", key), err).
			WithContext("bucket", u.bucket)
	}

	u.logger.InfoContext(ctx, "Panel uploaded",
		slog.String("bucket", u.bucket),
		slog.String("key", key),
		slog.Int("size_bytes", len(data)))
	return key, nil
}

func contentType(format string) string {
	if format == FormatCSV {
		return "text/csv"
	}
	return "application/octet-stream"
}
