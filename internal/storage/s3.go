package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Store stores blobs in an S3 bucket.
type S3Store struct {
	client *s3.Client
	bucket string
	region string
}

// NewS3Store creates an S3-backed store using the default AWS credential
// chain.
func NewS3Store(ctx context.Context, bucket, region string) (*S3Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket name is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &S3Store{client: s3.NewFromConfig(cfg), bucket: bucket, region: region}, nil
}

// Download retrieves an object's bytes.
func (s *S3Store) Download(ctx context.Context, objPath string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objPath),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, objPath)
		}
		return nil, fmt.Errorf("failed to download s3://%s/%s: %w", s.bucket, objPath, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3 object body: %w", err)
	}
	return data, nil
}

// Upload writes bytes to a key, returning the key and size.
func (s *S3Store) Upload(ctx context.Context, data []byte, objPath string) (string, int64, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objPath),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to upload s3://%s/%s: %w", s.bucket, objPath, err)
	}
	return objPath, int64(len(data)), nil
}

// Delete removes an object, reporting whether it existed.
func (s *S3Store) Delete(ctx context.Context, objPath string) (bool, error) {
	existed, err := s.Exists(ctx, objPath)
	if err != nil {
		return false, err
	}
	if !existed {
		return false, nil
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objPath),
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete s3://%s/%s: %w", s.bucket, objPath, err)
	}
	return true, nil
}

// Exists reports whether an object exists.
func (s *S3Store) Exists(ctx context.Context, objPath string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objPath),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head s3://%s/%s: %w", s.bucket, objPath, err)
	}
	return true, nil
}

// GetURL returns the canonical HTTPS URL for an object.
func (s *S3Store) GetURL(_ context.Context, objPath string) (string, error) {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, objPath), nil
}

// List enumerates objects directly under a prefix using delimiter grouping,
// so nested folders come back as single IsDir entries.
func (s *S3Store) List(ctx context.Context, prefix string) ([]FileInfo, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var infos []FileInfo
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", s.bucket, prefix, err)
		}
		for _, cp := range page.CommonPrefixes {
			infos = append(infos, FileInfo{
				Path:  aws.ToString(cp.Prefix),
				Name:  path.Base(strings.TrimSuffix(aws.ToString(cp.Prefix), "/")),
				IsDir: true,
			})
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			// The prefix itself shows up as a zero-byte folder marker.
			if key == prefix {
				continue
			}
			infos = append(infos, FileInfo{
				Path:      key,
				Name:      path.Base(key),
				Size:      aws.ToInt64(obj.Size),
				CreatedAt: aws.ToTime(obj.LastModified),
				IsDir:     strings.HasSuffix(key, "/"),
			})
		}
	}
	return infos, nil
}

func isNoSuchKey(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
