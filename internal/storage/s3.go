package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfconvert/internal/config"
)

// Mirror copies finished artifacts to a bucket and hands out presigned
// download links.
type Mirror struct {
	client     *s3.Client
	uploader   *manager.Uploader
	presigner  *s3.PresignClient
	bucket     string
	prefix     string
	presignTTL time.Duration
}

// NewMirror builds a Mirror from cfg. Static credentials are used when an
// access key is configured, otherwise the default AWS chain. Extra options
// are applied to the S3 client.
func NewMirror(ctx context.Context, cfg config.S3Config, optFns ...func(*s3.Options)) (*Mirror, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 mirror: bucket not configured")
	}
	var loadOpts []func(*awscfg.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awscfg.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsConf, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	cli := s3.NewFromConfig(awsConf, optFns...)
	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Mirror{
		client:     cli,
		uploader:   manager.NewUploader(cli),
		presigner:  s3.NewPresignClient(cli),
		bucket:     cfg.Bucket,
		prefix:     cfg.Prefix,
		presignTTL: ttl,
	}, nil
}

// Key is the object key for an artifact name.
func (m *Mirror) Key(name string) string {
	if m.prefix == "" {
		return name
	}
	return path.Join(m.prefix, name)
}

// Upload stores the file at p under Key(base name) and returns a presigned
// GET URL for it.
func (m *Mirror) Upload(ctx context.Context, p, contentType string, meta map[string]string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	key := m.Key(filepath.Base(p))
	started := time.Now()
	_, err = m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(m.bucket),
		Key:                aws.String(key),
		Body:               f,
		ContentType:        aws.String(contentType),
		ContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", filepath.Base(p))),
		Metadata:           meta,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	req, err := m.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(m.presignTTL))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	log.Info().Str("bucket", m.bucket).Str("key", key).Dur("duration", time.Since(started)).Msg("mirrored artifact to S3")
	return req.URL, nil
}

// Ping checks that the bucket is reachable with the configured credentials.
func (m *Mirror) Ping(ctx context.Context) error {
	_, err := m.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(m.bucket)})
	return err
}

func (m *Mirror) Bucket() string { return m.bucket }
