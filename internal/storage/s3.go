package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/yourusername/answer-splitter/internal/config"
)

// S3Client は AWS S3 への保存を行う ObjectStore 実装です。
type S3Client struct {
	client *s3.Client
	region string
	bucket string
}

// NewS3Client は設定からS3クライアントを作成します。
func NewS3Client(ctx context.Context, cfg *config.Config) (*S3Client, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3 bucket name not set")
	}
	if cfg.AwsAccessKey == "" || cfg.AwsSecretKey == "" {
		return nil, fmt.Errorf("AWS credentials not set")
	}
	if cfg.AwsRegion == "" {
		return nil, fmt.Errorf("AWS_REGION not set")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(cfg.AwsRegion),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AwsAccessKey, cfg.AwsSecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &S3Client{
		client: s3.NewFromConfig(awsCfg),
		region: cfg.AwsRegion,
		bucket: cfg.S3Bucket,
	}, nil
}

// Upload はオブジェクトをS3へ保存し、公開URLを返します。
func (c *S3Client) Upload(ctx context.Context, key string, data io.Reader, contentType string) (string, error) {
	uploader := manager.NewUploader(c.client)

	input := &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType),
	}

	ctxUpload, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if _, err := uploader.Upload(ctxUpload, input); err != nil {
		return "", fmt.Errorf("s3 upload failed: %w", err)
	}

	url := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.bucket, c.region, key)
	return url, nil
}

// Probe はバケットへの疎通確認を行います。
func (c *S3Client) Probe(ctx context.Context) error {
	ctxHead, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := c.client.HeadBucket(ctxHead, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	}); err != nil {
		return fmt.Errorf("s3 head bucket failed: %w", err)
	}
	return nil
}
