package client

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/clipforge/api/internal/config"
)

// ObjectStore holds rendered artifacts for clients to download.
type ObjectStore interface {
	// PutFile uploads the file at localPath and returns its public URL, or
	// "" when the bucket is private.
	PutFile(ctx context.Context, key, localPath, contentType string) (string, error)
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// R2Client is an ObjectStore on Cloudflare R2 through the S3 API.
type R2Client struct {
	s3        *s3.Client
	presigner *s3.PresignClient
	bucket    string
	publicURL string
}

func NewR2Client(cfg *config.R2Config) (*R2Client, error) {
	if cfg.AccountID == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.BucketName == "" {
		return nil, fmt.Errorf("R2 configuration incomplete")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	return &R2Client{
		s3:        client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.BucketName,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
	}, nil
}

// PutFile streams a rendered file to the bucket. Clips play inline, the
// archive downloads under its own name.
func (c *R2Client) PutFile(ctx context.Context, key, localPath, contentType string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat artifact: %w", err)
	}

	disposition := "inline"
	if contentType == "application/zip" {
		disposition = fmt.Sprintf("attachment; filename=%q", path.Base(key))
	}

	_, err = c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(c.bucket),
		Key:                aws.String(key),
		Body:               f,
		ContentLength:      aws.Int64(info.Size()),
		ContentType:        aws.String(contentType),
		ContentDisposition: aws.String(disposition),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to R2: %w", key, err)
	}
	return c.PublicURL(key), nil
}

// PresignGet returns a time-limited download link for a private bucket.
func (c *R2Client) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	req, err := c.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return req.URL, nil
}

// PublicURL returns the CDN URL for key, or "" for a private bucket.
func (c *R2Client) PublicURL(key string) string {
	if c.publicURL == "" {
		return ""
	}
	return c.publicURL + "/" + key
}

// IsConfigured returns true if the client has valid configuration
func (c *R2Client) IsConfigured() bool {
	return c != nil && c.s3 != nil
}

// ArtifactPublisher copies rendered files to object storage under clips/<jobId>/.
type ArtifactPublisher struct {
	store  ObjectStore
	expiry time.Duration
}

// NewArtifactPublisher wraps an object store. Private buckets get presigned
// links valid for expiry.
func NewArtifactPublisher(store ObjectStore, expiry time.Duration) *ArtifactPublisher {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &ArtifactPublisher{store: store, expiry: expiry}
}

// ArtifactKey is the object key of a job's rendered file.
func ArtifactKey(jobID, filename string) string {
	return path.Join("clips", jobID, filename)
}

// Publish uploads one file and returns the URL clients should use.
func (p *ArtifactPublisher) Publish(ctx context.Context, jobID, localPath, filename, contentType string) (string, error) {
	key := ArtifactKey(jobID, filename)
	url, err := p.store.PutFile(ctx, key, localPath, contentType)
	if err != nil {
		return "", err
	}
	if url != "" {
		return url, nil
	}
	return p.store.PresignGet(ctx, key, p.expiry)
}
