package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// ImageStore accepts item photos and returns where they can be fetched from
type ImageStore interface {
	UploadImage(ctx context.Context, reader io.Reader, filename, contentType string, size int64) (models.UploadResult, error)
	HealthCheck(ctx context.Context) error
}

// MinIOStorage handles image uploads to MinIO
type MinIOStorage struct {
	client         *minio.Client
	bucketName     string
	publicEndpoint string
}

// NewMinIOStorage creates a new MinIO storage client and makes sure the
// bucket exists and is publicly readable.
func NewMinIOStorage(endpoint, publicEndpoint, accessKey, secretKey, bucketName string, useSSL bool) (*MinIOStorage, error) {
	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	if publicEndpoint == "" {
		publicEndpoint = endpoint
	}
	publicEndpoint = strings.TrimSuffix(strings.TrimSpace(publicEndpoint), "/")
	if !strings.Contains(publicEndpoint, "://") {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		publicEndpoint = scheme + "://" + publicEndpoint
	}

	s := &MinIOStorage{
		client:         minioClient,
		bucketName:     bucketName,
		publicEndpoint: publicEndpoint,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := minioClient.BucketExists(ctx, bucketName)
	if err != nil {
		log.Warn().Err(err).Msgf("Failed to check bucket existence for %s (will continue)", bucketName)
	} else if !exists {
		if err := minioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			log.Error().Err(err).Msgf("Failed to create bucket %s", bucketName)
		} else {
			log.Info().Msgf("Bucket %s created successfully", bucketName)

			policy := fmt.Sprintf(`{"Version": "2012-10-17","Statement": [{"Action": ["s3:GetObject"],"Effect": "Allow","Principal": {"AWS": ["*"]},"Resource": ["arn:aws:s3:::%s/*"],"Sid": ""}]}`, bucketName)
			if err := minioClient.SetBucketPolicy(ctx, bucketName, policy); err != nil {
				log.Error().Err(err).Msg("Failed to set bucket policy")
			}
		}
	}

	log.Info().
		Str("endpoint", endpoint).
		Str("public_endpoint", publicEndpoint).
		Str("bucket", bucketName).
		Msg("MinIO storage initialized")

	return s, nil
}

// UploadImage stores an image under a date-partitioned unique key
func (s *MinIOStorage) UploadImage(ctx context.Context, reader io.Reader, filename, contentType string, size int64) (models.UploadResult, error) {
	key := ObjectKey(filename, time.Now())

	_, err := s.client.PutObject(ctx, s.bucketName, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return models.UploadResult{}, fmt.Errorf("failed to upload image: %w", err)
	}

	res := models.UploadResult{Key: key, URL: s.ImageURL(key)}

	log.Info().
		Str("filename", filename).
		Str("key", res.Key).
		Str("url", res.URL).
		Msg("Image uploaded successfully")

	return res, nil
}

// ImageURL returns the public URL for an object key
func (s *MinIOStorage) ImageURL(objectKey string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicEndpoint, s.bucketName, objectKey)
}

// HealthCheck verifies the MinIO connection
func (s *MinIOStorage) HealthCheck(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("MinIO health check failed: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket '%s' does not exist", s.bucketName)
	}
	return nil
}

// ObjectKey builds uploads/<date>/<uuid><ext> for an uploaded file
func ObjectKey(filename string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("uploads/%s/%s%s", now.UTC().Format(models.DateLayout), uuid.New().String(), ext)
}
