package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/boddenberg/facture-btp-bfa/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("artifacts")

const (
	metaOwner    = "owner"
	metaFileName = "filename"
	keyPrefix    = "exports/"
)

// S3Config locates the archive bucket. Endpoint is set for S3-compatible
// services such as Supabase Storage (<project>/storage/v1/s3) or MinIO.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// s3API is the part of *s3.Client the store uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store archives artifacts as objects under exports/<id>.xlsx.
type S3Store struct {
	client s3API
	bucket string
	logger *zap.Logger
}

// NewS3Client builds an S3 client with static credentials and path-style
// addressing, which S3-compatible endpoints require.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	}), nil
}

// NewS3Store creates a store writing into bucket.
func NewS3Store(client s3API, bucket string, logger *zap.Logger) *S3Store {
	return &S3Store{client: client, bucket: bucket, logger: logger}
}

func objectKey(id string) string {
	return keyPrefix + id + ".xlsx"
}

func (s *S3Store) Put(ctx context.Context, a *domain.Artifact) error {
	ctx, span := tracer.Start(ctx, "S3.PutArtifact")
	defer span.End()
	span.SetAttributes(attribute.String("artifact.id", a.ID))

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectKey(a.ID)),
		Body:          bytes.NewReader(a.Data),
		ContentLength: aws.Int64(int64(len(a.Data))),
		ContentType:   aws.String(a.ContentType),
		Metadata: map[string]string{
			metaOwner:    a.OwnerID,
			metaFileName: a.FileName,
		},
	})
	if err != nil {
		s.logger.Error("s3: put artifact failed", zap.String("artifact_id", a.ID), zap.Error(err))
		return &domain.ErrExternalService{Service: "s3", Err: err}
	}

	s.logger.Debug("s3: artifact archived",
		zap.String("artifact_id", a.ID),
		zap.Int("bytes", len(a.Data)),
	)
	return nil
}

func (s *S3Store) Get(ctx context.Context, id string) (*domain.Artifact, error) {
	ctx, span := tracer.Start(ctx, "S3.GetArtifact")
	defer span.End()
	span.SetAttributes(attribute.String("artifact.id", id))

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(id)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, &domain.ErrNotFound{Resource: "export", ID: id}
		}
		return nil, &domain.ErrExternalService{Service: "s3", Err: err}
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "s3", Err: err}
	}

	a := &domain.Artifact{
		ID:          id,
		FileName:    out.Metadata[metaFileName],
		ContentType: aws.ToString(out.ContentType),
		Data:        data,
		OwnerID:     out.Metadata[metaOwner],
		CreatedAt:   aws.ToTime(out.LastModified),
	}
	if a.FileName == "" {
		a.FileName = domain.ExportFileName
	}
	if a.ContentType == "" {
		a.ContentType = domain.XLSXContentType
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return a, nil
}
