package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
)

// ImageStore makes a submitted image reachable by the model provider.
type ImageStore interface {
	Store(ctx context.Context, src string) (Image, error)
}

// PassthroughStore hands the source URL straight to the provider. With
// Inline set it also downloads the bytes for providers that cannot fetch
// URLs themselves.
type PassthroughStore struct {
	Fetcher *Fetcher
	Inline  bool
}

func (p PassthroughStore) Store(ctx context.Context, src string) (Image, error) {
	if !p.Inline || p.Fetcher == nil {
		return Image{URL: src}, nil
	}
	return p.Fetcher.FetchImage(ctx, src)
}

// S3Config configures an S3Store.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, for S3-compatible services
	AccessKeyID     string // optional, falls back to the default chain
	SecretAccessKey string
	Prefix          string
	URLExpiry       time.Duration
	UsePathStyle    bool
}

// S3Store copies submitted images into a bucket and returns a presigned
// GET URL, so the provider never depends on the origin staying up.
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	fetcher *Fetcher
	bucket  string
	prefix  string
	expiry  time.Duration
}

// NewS3Store creates an S3Store from cfg.
func NewS3Store(ctx context.Context, cfg S3Config, fetcher *Fetcher) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return newS3Store(client, cfg, fetcher), nil
}

func newS3Store(client *s3.Client, cfg S3Config, fetcher *Fetcher) *S3Store {
	if cfg.Prefix == "" {
		cfg.Prefix = "submissions"
	}
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = time.Hour
	}
	if fetcher == nil {
		fetcher = NewFetcher(FetcherConfig{})
	}
	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		fetcher: fetcher,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		expiry:  cfg.URLExpiry,
	}
}

// Store downloads src, uploads it under a fresh key and returns a
// presigned URL along with the bytes.
func (s *S3Store) Store(ctx context.Context, src string) (Image, error) {
	img, err := s.fetcher.FetchImage(ctx, src)
	if err != nil {
		return Image{}, err
	}

	key := path.Join(s.prefix, uuid.NewString()+extensionFor(img.MIMEType))

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(img.Data),
		ContentType: aws.String(img.MIMEType),
	})
	if err != nil {
		return Image{}, fmt.Errorf("upload %s: %w", key, describeS3Error(err))
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return Image{}, fmt.Errorf("presign %s: %w", key, err)
	}

	img.URL = req.URL
	return img, nil
}

func describeS3Error(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s: %w", apiErr.ErrorCode(), apiErr.ErrorMessage(), err)
	}
	return err
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
	"image/heic": ".heic",
}

func extensionFor(mime string) string {
	return imageExtensions[mime]
}
