package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/santerahq/claimsgate/internal/config"
	"github.com/santerahq/claimsgate/internal/service"
)

// MinioStore satisfies the service.DocumentStore port. Uploads run on
// their own connection and never inside a claim transaction.
type MinioStore struct {
	client *minio.Client
	cfg    config.StorageConfig
}

func NewMinioStore(cfg config.StorageConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing object storage client: %w", err)
	}
	return &MinioStore{client: client, cfg: cfg}, nil
}

// Store writes the document under <scope>/<yyyy-mm>/<uuid>-<name> and
// returns the stored path with a resolvable URL.
func (s *MinioStore) Store(ctx context.Context, r io.Reader, size int64, name, contentType, scope string) (*service.StoredDocument, error) {
	key := path.Join(scope, time.Now().Format("2006-01"), uuid.NewString()+"-"+name)

	_, err := s.client.PutObject(ctx, s.cfg.Bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("storing document %s: %w", key, err)
	}

	url := s.cfg.PublicURL
	if url == "" {
		url = s.client.EndpointURL().String()
	}

	return &service.StoredDocument{
		Path: key,
		URL:  fmt.Sprintf("%s/%s/%s", url, s.cfg.Bucket, key),
	}, nil
}
