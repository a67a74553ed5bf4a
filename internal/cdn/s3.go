package cdn

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"vidtube/internal/config"
	"vidtube/internal/logging"
)

// s3API is the part of *s3.Client the uploader uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Uploader implements Uploader using AWS S3.
type S3Uploader struct {
	client        s3API
	bucket        string
	region        string
	publicBaseURL string
}

var _ Uploader = (*S3Uploader)(nil)

// NewS3Uploader builds an S3 client from cfg. Static keys are used when both
// are set; otherwise the default AWS credential chain applies.
func NewS3Uploader(ctx context.Context, cfg config.CDNConfig) (*S3Uploader, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Uploader(client, cfg.Bucket, awsCfg.Region, cfg.PublicBaseURL), nil
}

func newS3Uploader(client s3API, bucket, region, publicBaseURL string) *S3Uploader {
	return &S3Uploader{
		client:        client,
		bucket:        bucket,
		region:        region,
		publicBaseURL: publicBaseURL,
	}
}

func (s *S3Uploader) Upload(ctx context.Context, localPath, folder string, kind Kind) (*Asset, error) {
	f, size, err := openLocal(localPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	key := ObjectKey(folder, localPath)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(ContentType(localPath, kind)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	logging.C(ctx).Info("uploaded to S3",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int64("bytes", size),
	)

	url := s.objectURL(key)
	return &Asset{URL: url, SecureURL: url, ProviderID: key}, nil
}

func (s *S3Uploader) Delete(ctx context.Context, providerID string, _ Kind) error {
	if providerID == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(providerID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

func (s *S3Uploader) objectURL(key string) string {
	if s.publicBaseURL != "" {
		return JoinURL(s.publicBaseURL, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
