package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/roach88/pipec/internal/ir"
)

// S3Config configures the S3 fetcher. Empty fields fall back to the AWS
// SDK default chain (environment, shared config, instance role).
type S3Config struct {
	Region          string `mapstructure:"region"`
	Profile         string `mapstructure:"profile"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	MaxSize         int64  `mapstructure:"max_size"`
}

// ObjectGetter is the subset of the S3 client the fetcher uses.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 reads remote includes addressed as s3://bucket/key.
type S3 struct {
	client  ObjectGetter
	maxSize int64
}

// NewS3 builds an S3 fetcher from cfg.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewS3WithClient(client, cfg.MaxSize), nil
}

// NewS3WithClient wraps an existing client.
func NewS3WithClient(client ObjectGetter, maxSize int64) *S3 {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &S3{client: client, maxSize: maxSize}
}

func loadAWSConfig(ctx context.Context, cfg S3Config) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}
	// S3-compatible endpoints usually ignore the region but the signer
	// still needs one.
	if awsCfg.Region == "" {
		awsCfg.Region = "us-east-1"
	}
	return awsCfg, nil
}

// IsS3URL reports whether location is an s3:// URL.
func IsS3URL(location string) bool {
	return strings.HasPrefix(location, "s3://")
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(location string) (bucket, key string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("%w: not an s3 URL", ErrUnsupported)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("s3 URL %q has no object key", location)
	}
	return u.Host, key, nil
}

// Fetch implements Fetcher.
func (s *S3) Fetch(ctx context.Context, src ir.IncludeSource) (*ir.Fetched, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if src.Kind != ir.SourceRemote {
		return nil, wrap("fetch", src, ErrUnsupported)
	}
	bucket, key, err := ParseS3URL(src.Location)
	if err != nil {
		return nil, wrap("fetch", src, err)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, wrap("fetch", src, s3Error(err))
	}
	defer out.Body.Close()

	if aws.ToInt64(out.ContentLength) > s.maxSize {
		return nil, wrap("fetch", src, ErrTooLarge)
	}
	content, err := readLimited(out.Body, s.maxSize)
	if err != nil {
		return nil, wrap("fetch", src, err)
	}
	return fetched(path.Base(key), content), nil
}

// s3Error maps S3 failures onto the package sentinels, keeping the
// original error in the chain.
func s3Error(err error) error {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket

	switch {
	case errors.As(err, &notFound), errors.As(err, &noSuchKey), errors.As(err, &noSuchBucket):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("%w: %w", ErrAccessDenied, err)
		}
	}
	return err
}
