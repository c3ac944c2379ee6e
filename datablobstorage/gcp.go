package datablobstorage

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
)

type gcpStore struct {
	logger zerolog.Logger
	bucket string
	prefix string
	client *storage.Client
	creds  *google.Credentials
}

func NewGCPStore(
	logger zerolog.Logger, client *storage.Client, creds *google.Credentials, bucket string, prefix string,
) *gcpStore {
	return &gcpStore{
		bucket: bucket,
		prefix: prefix,
		client: client,
		logger: logger,
		creds:  creds,
	}
}

func (s *gcpStore) CreateFromReader(ctx context.Context, r io.Reader, key string) (Resource, error) {
	key = joinKey(s.prefix, key)

	s.logger.Debug().Str("file", key).Str("project", s.projectID()).Msgf("creating new file")
	wc := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if _, err := io.Copy(wc, r); err != nil {
		return nil, errors.CombineErrors(err, wc.Close())
	}
	if err := wc.Close(); err != nil {
		return nil, err
	}
	s.logger.Debug().Str("file", key).Msgf("gcp file creation complete")
	return &gcpResource{
		store: s,
		key:   key,
	}, nil
}

func (s *gcpStore) Reader(ctx context.Context, key string) (io.ReadCloser, error) {
	return (&gcpResource{store: s, key: joinKey(s.prefix, key)}).Reader(ctx)
}

func (s *gcpStore) URL(key string) string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, joinKey(s.prefix, key))
}

func (s *gcpStore) projectID() string {
	if s.creds == nil {
		return ""
	}
	return s.creds.ProjectID
}

type gcpResource struct {
	store *gcpStore
	key   string
}

func (r *gcpResource) Key() string {
	return r.key
}

func (r *gcpResource) URL() string {
	return fmt.Sprintf("gs://%s/%s", r.store.bucket, r.key)
}

func (r *gcpResource) Reader(ctx context.Context) (io.ReadCloser, error) {
	return r.store.client.Bucket(r.store.bucket).Object(r.key).NewReader(ctx)
}

func (r *gcpResource) MarkForCleanup(ctx context.Context) error {
	return r.store.client.Bucket(r.store.bucket).Object(r.key).Delete(ctx)
}
