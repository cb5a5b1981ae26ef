package store

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/blobvault/blobvault/internal/shared"
)

// S3Config carries the settings for an S3-compatible blob backend.
type S3Config struct {
	User     string
	Password string
	Bucket   string
	Region   string
	Endpoint string
}

// S3Blobs is a Blobs implementation backed by an S3-compatible service.
// Object bodies live in the bucket under their literal keys; records stay
// on the local filesystem regardless of the blob backend.
type S3Blobs struct {
	client *s3.Client
	bucket string
}

func NewS3Blobs(ctx context.Context, cfg S3Config) (*S3Blobs, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.User,
			cfg.Password,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	return &S3Blobs{client: client, bucket: cfg.Bucket}, nil
}

func (s *S3Blobs) Save(ctx context.Context, id string, data []byte) error {
	if id == "" {
		return shared.ErrorEmptyIdentifier
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("put blob %s: %w", id, err)
	}
	return nil
}

func (s *S3Blobs) Load(ctx context.Context, id string) ([]byte, error) {
	if id == "" {
		return nil, shared.ErrorEmptyIdentifier
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return nil, fmt.Errorf("get blob %s: %w", id, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", id, err)
	}
	return data, nil
}

func (s *S3Blobs) Delete(ctx context.Context, id string) error {
	if id == "" {
		return shared.ErrorEmptyIdentifier
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return fmt.Errorf("delete blob %s: %w", id, err)
	}
	return nil
}

func (s *S3Blobs) Stream(ctx context.Context, id string) (ChunkStream, error) {
	if id == "" {
		return nil, shared.ErrorEmptyIdentifier
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return nil, fmt.Errorf("get blob %s: %w", id, err)
	}

	return newChunkReader(out.Body), nil
}

func (s *S3Blobs) Size(ctx context.Context, id string) (int64, error) {
	if id == "" {
		return 0, shared.ErrorEmptyIdentifier
	}

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return 0, fmt.Errorf("head blob %s: %w", id, err)
	}

	if out.ContentLength == nil {
		return 0, nil
	}
	return *out.ContentLength, nil
}
