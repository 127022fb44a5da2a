package storage

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tphakala/storm-intake/internal/errors"
	"github.com/tphakala/storm-intake/internal/logger"
)

// S3Config configures the object storage backend
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // S3 compatible endpoint, empty for AWS
	Prefix          string // key prefix inside the bucket
	PublicURL       string // base URL for object links, derived when empty
	AccessKeyID     string // static credentials, default chain when empty
	SecretAccessKey string
	UsePathStyle    bool
}

// PutObjectAPI is the part of the S3 client the store needs
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store uploads attachments to a bucket
type S3Store struct {
	client    PutObjectAPI
	bucket    string
	prefix    string
	publicURL string
	now       func() time.Time
}

// NewS3Store loads AWS configuration and builds the client
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.New(err).
			Component("storage").
			Category(errors.CategoryConfiguration).
			Context("operation", "load_aws_config").
			Build()
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewS3StoreWithClient(client, cfg), nil
}

// NewS3StoreWithClient builds a store around an existing client
func NewS3StoreWithClient(client PutObjectAPI, cfg S3Config) *S3Store {
	return &S3Store{
		client:    client,
		bucket:    cfg.Bucket,
		prefix:    cfg.Prefix,
		publicURL: publicBaseURL(cfg),
		now:       time.Now,
	}
}

// publicBaseURL derives the object URL base when none is configured
func publicBaseURL(cfg S3Config) string {
	switch {
	case cfg.PublicURL != "":
		return cfg.PublicURL
	case cfg.Endpoint != "":
		return joinURL(cfg.Endpoint, cfg.Bucket)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
}

// Store uploads the object under a fresh key
func (s *S3Store) Store(ctx context.Context, obj Object) (Stored, error) {
	start := time.Now()
	key := objectKey(s.now(), obj.Name)
	if s.prefix != "" {
		key = path.Join(s.prefix, key)
	}
	contentType := ContentTypeFor(obj.Name)

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   obj.Body,
		Metadata: map[string]string{
			"original-name": SanitizeName(obj.Name),
		},
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if obj.Size >= 0 {
		input.ContentLength = aws.Int64(obj.Size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		GetLogger().Error("failed to upload attachment",
			logger.String("bucket", s.bucket),
			logger.String("key", key),
			logger.Error(err))
		return Stored{}, errors.New(errors.NewStd("could not upload file")).
			Component("storage").
			Category(errors.CategoryStorage).
			Context("operation", "put_object").
			FileContext(obj.Name, obj.Size).
			Build()
	}

	GetLogger().Debug("uploaded attachment",
		logger.String("key", key),
		logger.Duration("elapsed", time.Since(start)))

	return Stored{
		URL:         joinURL(s.publicURL, key),
		Path:        key,
		ContentType: contentType,
		Size:        max(obj.Size, 0),
	}, nil
}
