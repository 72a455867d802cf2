package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"greendrake/localboard/internal/config"
	"greendrake/localboard/internal/utils"
)

const presignExpiry = 15 * time.Minute

var (
	// ErrTooLarge is returned by Download when an object exceeds the limit.
	ErrTooLarge = errors.New("object exceeds size limit")
	ErrNotFound = errors.New("object not found")
)

// IS3Storage is the object store behind listing images.
type IS3Storage interface {
	GeneratePresignedPutURL(ctx context.Context, userID, listingID utils.SixID, filename, contentType string) (url string, key string, err error)
	Download(ctx context.Context, key string, maxBytes int64) ([]byte, error)
	Upload(ctx context.Context, key string, body []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

type s3Storage struct {
	cfg           *config.Config
	log           *zap.Logger
	s3Client      *s3.Client
	presignClient *s3.PresignClient
}

// NewS3Storage builds a client from the static credentials in cfg. A
// custom endpoint switches to path-style addressing for S3-compatible
// stores.
func NewS3Storage(cfg *config.Config, log *zap.Logger) IS3Storage {
	opts := s3.Options{
		Region: cfg.AwsRegion,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"",
		)),
	}
	if cfg.AwsS3Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.AwsS3Endpoint)
		opts.UsePathStyle = true
	}
	client := s3.New(opts)
	return &s3Storage{
		cfg:           cfg,
		log:           log,
		s3Client:      client,
		presignClient: s3.NewPresignClient(client),
	}
}

// UploadPrefix is the key prefix every upload for the listing lives under.
func UploadPrefix(userID, listingID utils.SixID) string {
	return fmt.Sprintf("uploads/%s/%s/", userID, listingID)
}

// ObjectKey builds a collision-free key for a user's upload, keeping a
// cleaned-up version of the original filename for readability.
func ObjectKey(userID, listingID utils.SixID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	base := utils.Slugify(strings.TrimSuffix(path.Base(filename), path.Ext(filename)))
	if base == "" {
		base = "image"
	}
	return UploadPrefix(userID, listingID) + uuid.NewString() + "_" + base + ext
}

// ProcessedKey is where the resized copy of an upload is stored.
func ProcessedKey(key string) string {
	return "listings/" + strings.TrimPrefix(key, "uploads/")
}

func (s *s3Storage) GeneratePresignedPutURL(ctx context.Context, userID, listingID utils.SixID, filename, contentType string) (string, string, error) {
	objectKey := ObjectKey(userID, listingID, filename)

	presignedReq, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AwsS3Bucket),
		Key:         aws.String(objectKey),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", "", fmt.Errorf("failed to generate presigned PUT URL for key %s: %w", objectKey, err)
	}

	s.log.Debug("presigned upload", zap.String("key", objectKey))
	return presignedReq.URL, objectKey, nil
}

// Download reads the whole object, refusing anything larger than maxBytes.
func (s *s3Storage) Download(ctx context.Context, key string, maxBytes int64) ([]byte, error) {
	out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.AwsS3Bucket),
		Key:    aws.String(key),
	})
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer out.Body.Close()

	if out.ContentLength != nil && *out.ContentLength > maxBytes {
		return nil, fmt.Errorf("%s is %d bytes: %w", key, *out.ContentLength, ErrTooLarge)
	}
	data, err := io.ReadAll(io.LimitReader(out.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%s: %w", key, ErrTooLarge)
	}
	return data, nil
}

func (s *s3Storage) Upload(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AwsS3Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

func (s *s3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.AwsS3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}
