package filestore

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"campus_chat_service/pkg/database"

	"github.com/google/uuid"
)

// Object is a stored file: a stable reference plus a servable URL.
type Object struct {
	Ref         string `json:"ref"`
	ServableURL string `json:"servable_url"`
}

// FileStore accepts uploads and resolves stable references to servable URLs.
type FileStore interface {
	Upload(ctx context.Context, fileName string, r io.Reader, size int64, contentType string) (*Object, error)
	ServableURL(ctx context.Context, ref string) (string, error)
}

const urlExpiry = 24 * time.Hour

type minioStore struct {
	client *database.MinIOClient
	prefix string
}

// NewMinIOStore create a FileStore backed by a MinIO bucket. prefix namespaces
// the object keys, e.g. "chat".
func NewMinIOStore(client *database.MinIOClient, prefix string) FileStore {
	return &minioStore{client: client, prefix: prefix}
}

func (s *minioStore) Upload(ctx context.Context, fileName string, r io.Reader, size int64, contentType string) (*Object, error) {
	ref := path.Join(s.prefix, fmt.Sprintf("%s_%s", uuid.New().String(), fileName))
	if err := s.client.PutObject(ctx, ref, r, size, contentType); err != nil {
		return nil, fmt.Errorf("upload [%s] failed: %w", ref, err)
	}

	url, err := s.client.PresignGetURL(ctx, ref, urlExpiry)
	if err != nil {
		return nil, err
	}

	return &Object{Ref: ref, ServableURL: url}, nil
}

func (s *minioStore) ServableURL(ctx context.Context, ref string) (string, error) {
	return s.client.PresignGetURL(ctx, ref, urlExpiry)
}
