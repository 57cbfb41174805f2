package asset

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Loader downloads predictor assets from S3-compatible object storage.
type S3Loader struct {
	downloader *manager.Downloader
}

func NewS3Loader(ctx context.Context) (*S3Loader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Loader{downloader: manager.NewDownloader(client)}, nil
}

// Load fetches the object at an s3://bucket/key URI.
func (l *S3Loader) Load(ctx context.Context, path string) ([]byte, error) {
	bucket, key, err := splitS3URI(path)
	if err != nil {
		return nil, err
	}

	buf := manager.NewWriteAtBuffer(nil)
	_, err = l.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}
	return bytes.Clone(buf.Bytes()), nil
}

func splitS3URI(path string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(path, "s3://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed s3 uri %q", path)
	}
	return parts[0], parts[1], nil
}
