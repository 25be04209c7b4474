package minioimpl

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/orgball2608/moments-playback-service/internal/media"
	"github.com/orgball2608/moments-playback-service/pkg/config"
	"github.com/orgball2608/moments-playback-service/pkg/errors"
	"github.com/orgball2608/moments-playback-service/pkg/logger"
	"go.uber.org/fx"
)

// durationMetaKey is the user metadata key the upload pipeline sets on video
// objects. MinIO reports user metadata with canonicalized keys.
const durationMetaKey = "Duration-Ms"

type Opts struct {
	fx.In
	LC     fx.Lifecycle
	Config *config.Config
	Logger logger.Logger
}

type MinioImpl struct {
	client *minio.Client
	bucket string
	urlTTL time.Duration
	logger logger.Logger
}

var _ media.Resolver = (*MinioImpl)(nil)

func New(opts Opts) (*MinioImpl, error) {
	client, err := minio.New(opts.Config.Minio.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.Config.Minio.AccessKey, opts.Config.Minio.SecretKey, ""),
		Secure: opts.Config.Minio.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	m := &MinioImpl{
		client: client,
		bucket: opts.Config.Minio.Bucket,
		urlTTL: opts.Config.MediaURLTTL(),
		logger: opts.Logger,
	}

	opts.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := m.ensureBucket(ctx); err != nil {
				return err
			}
			opts.Logger.Info("Connected to object storage", "bucket", m.bucket)
			return nil
		},
	})

	return m, nil
}

func (m *MinioImpl) ensureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

func (m *MinioImpl) ResolveURL(ctx context.Context, key string) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, m.urlTTL, nil)
	if err != nil {
		m.logger.Warn("Failed to presign media url", "key", key, "error", err)
		return "", errors.Wrap(errors.ErrMediaUnavailable, "failed to presign media url")
	}
	return u.String(), nil
}

// ProbeDuration reads the duration hint the uploader stored as object
// metadata. A missing or malformed hint is reported as unknown, not fatal.
func (m *MinioImpl) ProbeDuration(ctx context.Context, key string) (time.Duration, error) {
	info, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		m.logger.Warn("Media duration probe failed", "key", key, "error", err)
		return 0, errors.ErrUnknownDuration
	}

	raw, ok := info.UserMetadata[durationMetaKey]
	if !ok {
		return 0, errors.ErrUnknownDuration
	}

	ms, err := strconv.Atoi(raw)
	if err != nil || ms <= 0 {
		m.logger.Warn("Media duration metadata malformed", "key", key, "value", raw)
		return 0, errors.ErrUnknownDuration
	}

	return time.Duration(ms) * time.Millisecond, nil
}
