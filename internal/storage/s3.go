package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/omnibridge/omnibridge/internal/config"
)

// s3API is the minimal S3 interface required by S3Provider. Defined here for testability.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Provider stores objects in an S3-compatible bucket (e.g. Cloudflare R2)
// and serves them from a public base URL.
type S3Provider struct {
	api           s3API
	bucket        string
	publicBaseURL string
}

// NewS3Provider creates the provider for the configured endpoint and bucket.
func NewS3Provider(ctx context.Context, cfg config.StorageConfig) (*S3Provider, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load storage credentials: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Provider{
		api:           client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

// NewS3ProviderWithAPI creates a provider over a pre-built API. Test hook.
func NewS3ProviderWithAPI(api s3API, bucket, publicBaseURL string) *S3Provider {
	return &S3Provider{
		api:           api,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// Put writes data under key with the given MIME type.
func (p *S3Provider) Put(ctx context.Context, key, mimeType string, reader io.Reader) error {
	_, err := p.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        reader,
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// PublicURL returns the stable public URL for a stored key.
func (p *S3Provider) PublicURL(key string) string {
	return p.publicBaseURL + "/" + key
}
