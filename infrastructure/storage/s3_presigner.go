package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AzielCF/az-publish/core/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
)

const DefaultPresignTTL = time.Hour

// S3Presigner turns stored media references into time-limited GET URLs.
type S3Presigner struct {
	presign presignFunc
	bucket  string
	ttl     time.Duration
}

type presignFunc func(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)

// NewS3Presigner builds a presigner from the media configuration. Static credentials are
// used when both keys are set, the default AWS chain otherwise.
func NewS3Presigner(ctx context.Context, cfg config.MediaConfig) (*S3Presigner, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("media bucket is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})
	presignClient := s3.NewPresignClient(client)

	logrus.WithFields(logrus.Fields{
		"bucket":   cfg.Bucket,
		"region":   region,
		"endpoint": cfg.Endpoint,
	}).Info("[MEDIA] S3 presigner initialized")

	return newS3Presigner(func(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
		req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(ttl))
		if err != nil {
			return "", err
		}
		return req.URL, nil
	}, cfg.Bucket, cfg.PresignTTL), nil
}

func newS3Presigner(fn presignFunc, bucket string, ttl time.Duration) *S3Presigner {
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	return &S3Presigner{presign: fn, bucket: bucket, ttl: ttl}
}

// Resolve returns a presigned GET URL for the object key.
func (p *S3Presigner) Resolve(ctx context.Context, ref string) (string, error) {
	key := ObjectKey(ref, p.bucket)
	if key == "" {
		return "", fmt.Errorf("empty media reference")
	}
	url, err := p.presign(ctx, p.bucket, key, p.ttl)
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", p.bucket, key, err)
	}
	return url, nil
}

// ObjectKey normalizes a stored reference ("s3://bucket/key", "/key" or "key") to a key.
func ObjectKey(ref, bucket string) string {
	ref = strings.TrimSpace(ref)
	if rest, ok := strings.CutPrefix(ref, "s3://"); ok {
		if b, key, found := strings.Cut(rest, "/"); found && b == bucket {
			return key
		}
		return ""
	}
	return strings.TrimLeft(ref, "/")
}
