// Package storage uploads avatar images to a gocloud.dev bucket.
package storage

import (
	"context"
	"log/slog"
	"strings"

	"phonebook/config"
	"phonebook/internal/domain/service"
	"phonebook/internal/errors"

	"go.uber.org/fx"
	"gocloud.dev/blob"

	// Bucket drivers selectable through avatar.bucketUrl.
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

const defaultBucketURL = "mem://"

// Params defines the required parameters
type Params struct {
	fx.In
	fx.Lifecycle

	Config *config.Config
	Logger *slog.Logger
}

type blobAvatarStorage struct {
	bucket        *blob.Bucket
	publicBaseURL string
}

// New opens the avatar bucket named by avatar.bucketUrl and closes it on stop.
func New(params Params) (service.AvatarStorage, error) {
	bucketURL := params.Config.Avatar.BucketURL
	if bucketURL == "" {
		bucketURL = defaultBucketURL
	}

	bucket, err := blob.OpenBucket(context.Background(), bucketURL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open avatar bucket %s", bucketURL)
	}
	params.Logger.Info("Avatar bucket opened", slog.String("bucket", bucketURL))

	params.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return bucket.Close()
		},
	})

	return NewBlobAvatarStorage(bucket, params.Config.Avatar.PublicBaseURL), nil
}

// NewBlobAvatarStorage wraps an already opened bucket.
func NewBlobAvatarStorage(bucket *blob.Bucket, publicBaseURL string) service.AvatarStorage {
	return &blobAvatarStorage{
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// Upload overwrites the object at key and returns the URL clients should use.
func (s *blobAvatarStorage) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if key == "" {
		return "", errors.New("key cannot be empty")
	}

	opts := &blob.WriterOptions{
		ContentType:  contentType,
		CacheControl: "no-cache",
	}
	if err := s.bucket.WriteAll(ctx, key, data, opts); err != nil {
		return "", errors.Wrapf(err, "failed to write avatar %s", key)
	}

	if s.publicBaseURL == "" {
		return "/" + key, nil
	}

	return s.publicBaseURL + "/" + key, nil
}
