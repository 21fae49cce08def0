// Package storage hosts account avatars in a MinIO (S3-compatible) bucket.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fleurease/fleurease-api/internal/models"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// UploadOptions mirror the transformation the storefront requests.
type UploadOptions struct {
	Folder string
	Width  int
	Crop   string
}

// ObjectAPI is the part of *minio.Client the store relies on
type ObjectAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// MinioAvatarStore uploads, transforms and deletes avatars.
type MinioAvatarStore struct {
	objects ObjectAPI
	bucket  string
	baseURL string
	logger  *slog.Logger
}

// NewMinioAvatarStore connects and makes sure the bucket exists.
func NewMinioAvatarStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool, publicBaseURL string, logger *slog.Logger) (*MinioAvatarStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client for %s: %w", endpoint, err)
	}

	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		exists, existsErr := client.BucketExists(ctx, bucket)
		if existsErr != nil || !exists {
			return nil, fmt.Errorf("failed to make bucket %s: %w", bucket, err)
		}
	}

	if publicBaseURL == "" {
		publicBaseURL = client.EndpointURL().String() + "/" + bucket
	}

	logger.Info("avatar store ready", slog.String("bucket", bucket), slog.String("endpoint", endpoint))
	return NewMinioAvatarStoreWithClient(client, bucket, publicBaseURL, logger), nil
}

func NewMinioAvatarStoreWithClient(objects ObjectAPI, bucket, publicBaseURL string, logger *slog.Logger) *MinioAvatarStore {
	return &MinioAvatarStore{
		objects: objects,
		bucket:  bucket,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:  logger,
	}
}

// Upload stores the image carried by a data URL and returns its descriptor.
func (s *MinioAvatarStore) Upload(ctx context.Context, dataURL string, opts UploadOptions) (models.Avatar, error) {
	raw, err := DecodeDataURL(dataURL)
	if err != nil {
		return models.Avatar{}, err
	}
	body, contentType, err := Transform(raw, opts.Width, opts.Crop)
	if err != nil {
		return models.Avatar{}, err
	}

	ext := strings.TrimPrefix(contentType, "image/")
	publicID := strings.Trim(opts.Folder, "/") + "/" + uuid.New().String()
	key := publicID + "." + ext

	_, err = s.objects.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		s.logger.Error("avatar upload failed", slog.String("key", key), slog.Any("error", err))
		return models.Avatar{}, fmt.Errorf("%w: %v", models.ErrImageHost, err)
	}

	// The extension is part of the public id so Delete can address the object directly.
	return models.Avatar{PublicID: key, URL: s.baseURL + "/" + key}, nil
}

// Delete removes the object. Provider avatars and empty ids are ignored.
func (s *MinioAvatarStore) Delete(ctx context.Context, publicID string) error {
	if !(models.Avatar{PublicID: publicID}).IsHosted() {
		return nil
	}
	if err := s.objects.RemoveObject(ctx, s.bucket, publicID, minio.RemoveObjectOptions{}); err != nil {
		s.logger.Error("avatar delete failed", slog.String("key", publicID), slog.Any("error", err))
		return fmt.Errorf("%w: %v", models.ErrImageHost, err)
	}
	return nil
}
