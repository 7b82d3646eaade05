package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config holds connection settings for an S3-compatible endpoint.
type S3Config struct {
	Endpoint     string
	Region       string
	AccessKeyID  string
	SecretKey    string
	UsePathStyle bool
}

// S3Store maps each bucket to an S3 bucket of the same name.
type S3Store struct {
	client *s3.Client
	logger *slog.Logger
}

var _ ObjectStore = (*S3Store)(nil)

// NewS3Store builds a client from static credentials. An empty endpoint uses AWS.
func NewS3Store(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Store, error) {
	accessKey := strings.TrimSpace(cfg.AccessKeyID)
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("s3 credentials are not set")
	}

	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if cfg.Endpoint != "" {
			return aws.Endpoint{
				URL:           cfg.Endpoint,
				PartitionID:   "aws",
				SigningRegion: cfg.Region,
			}, nil
		}
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})

	logger.Info("s3 object store configured",
		"endpoint", cfg.Endpoint,
		"region", cfg.Region,
		"path_style", cfg.UsePathStyle,
	)

	return &S3Store{client: client, logger: logger}, nil
}

// Put uploads an object. Without upsert a HeadObject check guards the key;
// the check and the upload are not atomic.
func (s *S3Store) Put(ctx context.Context, bucket, key string, data []byte, contentType string, upsert bool) error {
	if err := validateKey(bucket, key); err != nil {
		return err
	}

	if !upsert {
		exists, err := s.Exists(ctx, bucket, key)
		if err != nil {
			return err
		}
		if exists {
			return ErrObjectExists
		}
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Get downloads an object.
func (s *S3Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := validateKey(bucket, key); err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("get object %s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}

// Exists performs a HeadObject request.
func (s *S3Store) Exists(ctx context.Context, bucket, key string) (bool, error) {
	if err := validateKey(bucket, key); err != nil {
		return false, err
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isS3NotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("head object %s/%s: %w", bucket, key, err)
}

// Delete removes an object. S3 deletes are idempotent, so a HeadObject check
// reports missing objects.
func (s *S3Store) Delete(ctx context.Context, bucket, key string) error {
	exists, err := s.Exists(ctx, bucket, key)
	if err != nil {
		return err
	}
	if !exists {
		return ErrObjectNotFound
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Health checks that a bucket is reachable.
func (s *S3Store) Health(ctx context.Context, bucket string) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	return err
}

func isS3NotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &notFound) || errors.As(err, &noSuchKey)
}
