package avatar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config points at an S3 compatible bucket such as MinIO.
type S3Config struct {
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
	Bucket       string
	// PublicURL is prepended to object keys to build avatar URLs.
	PublicURL string
	// KeyPrefix defaults to "avatars/".
	KeyPrefix string
}

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Storage uploads avatars as objects.
type S3Storage struct {
	client    objectPutter
	bucket    string
	publicURL string
	keyPrefix string
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

// NewS3Storage builds a client with static credentials. A non-empty
// BaseEndpoint switches to path-style addressing.
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Storage(client, cfg), nil
}

func newS3Storage(client objectPutter, cfg S3Config) *S3Storage {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "avatars/"
	}
	publicURL := cfg.PublicURL
	if publicURL == "" && cfg.BaseEndpoint != "" {
		publicURL = strings.TrimRight(cfg.BaseEndpoint, "/") + "/" + cfg.Bucket
	}
	return &S3Storage{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		keyPrefix: prefix,
	}
}

func (s *S3Storage) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	key := s.keyPrefix + name
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.publicURL + "/" + key, nil
}
