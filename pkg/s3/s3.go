package s3

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config describes an S3-compatible endpoint holding profile photos.
type Config struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Region         string
	DisableTLS     bool
	ForcePathStyle bool
}

// ConfigFromEnv reads S3_ENDPOINT, S3_ACCESS_KEY, S3_SECRET_KEY and the
// optional S3_REGION (default us-east-1), S3_DISABLE_TLS and
// S3_FORCE_PATH_STYLE (default true).
func ConfigFromEnv() Config {
	cfg := Config{
		Endpoint:       strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
		AccessKey:      os.Getenv("S3_ACCESS_KEY"),
		SecretKey:      os.Getenv("S3_SECRET_KEY"),
		Region:         os.Getenv("S3_REGION"),
		ForcePathStyle: true,
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	cfg.DisableTLS, _ = strconv.ParseBool(os.Getenv("S3_DISABLE_TLS"))
	if v := strings.TrimSpace(os.Getenv("S3_FORCE_PATH_STYLE")); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.ForcePathStyle = parsed
		}
	}
	return cfg
}

// endpointURL adds a scheme to bare host:port endpoints.
func (c Config) endpointURL() string {
	if strings.HasPrefix(c.Endpoint, "http://") || strings.HasPrefix(c.Endpoint, "https://") {
		return c.Endpoint
	}
	scheme := "https"
	if c.DisableTLS {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s", scheme, c.Endpoint)
}

// Client presigns object reads.
type Client struct {
	presign *s3.PresignClient
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("S3_ENDPOINT is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("S3_ACCESS_KEY and S3_SECRET_KEY are required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithHTTPClient(awshttp.NewBuildableClient().WithTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		o.BaseEndpoint = aws.String(cfg.endpointURL())
	})
	return &Client{presign: s3.NewPresignClient(api)}, nil
}

// PresignGet generates a presigned GET URL for the provided key and TTL.
func (c *Client) PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if c == nil {
		return "", errors.New("nil client")
	}

	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, func(opts *s3.PresignOptions) {
		opts.Expires = ttl
	})
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// BucketSigner presigns keys of one bucket with a fixed lifetime.
type BucketSigner struct {
	client *Client
	bucket string
	ttl    time.Duration
}

func NewBucketSigner(client *Client, bucket string, ttl time.Duration) (*BucketSigner, error) {
	if client == nil {
		return nil, errors.New("client is required")
	}
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &BucketSigner{client: client, bucket: bucket, ttl: ttl}, nil
}

// URL returns a time-limited download URL for key.
func (s *BucketSigner) URL(ctx context.Context, key string) (string, error) {
	return s.client.PresignGet(ctx, s.bucket, key, s.ttl)
}
