package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/erp/ledgerstore/internal/infrastructure/config"
	"go.uber.org/zap"
)

// objectPutter is the part of the S3 client the sink uses
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads archives to an S3-compatible bucket (AWS S3, MinIO, RustFS)
type S3Sink struct {
	client objectPutter
	bucket string
	prefix string
	logger *zap.Logger
}

// S3SinkOption configures an S3Sink
type S3SinkOption func(*S3Sink)

// WithS3Logger sets the sink logger
func WithS3Logger(logger *zap.Logger) S3SinkOption {
	return func(s *S3Sink) {
		s.logger = logger
	}
}

// withClient replaces the S3 client
func withClient(c objectPutter) S3SinkOption {
	return func(s *S3Sink) {
		s.client = c
	}
}

// NewS3Sink creates an S3Sink from configuration. Without static keys the
// default AWS credential chain is used.
func NewS3Sink(ctx context.Context, cfg config.S3Config, opts ...S3SinkOption) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("backup bucket is required")
	}
	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		return nil, errors.New("backup access key id and secret access key must be set together")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	endpoint := cfg.Endpoint
	if endpoint != "" {
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		if _, err := url.Parse(endpoint); err != nil {
			return nil, fmt.Errorf("invalid backup endpoint: %w", err)
		}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	sink := &S3Sink{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(sink)
	}
	return sink, nil
}

// Name implements Sink
func (s *S3Sink) Name() string {
	return "s3"
}

// Key returns the object key an archive name is stored under
func (s *S3Sink) Key(name string) string {
	if s.prefix == "" {
		return name
	}
	return strings.TrimSuffix(s.prefix, "/") + "/" + name
}

// Put uploads one archive
func (s *S3Sink) Put(ctx context.Context, name string, data []byte) error {
	key := s.Key(name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType(name)),
	})
	if err != nil {
		return fmt.Errorf("failed to upload backup %s: %w", key, err)
	}
	s.logger.Info("backup uploaded",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int("bytes", len(data)),
	)
	return nil
}

func contentType(name string) string {
	if strings.HasSuffix(name, ".gz") {
		return "application/gzip"
	}
	return "application/json"
}
