package datablobstorage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

type localStore struct {
	logger   zerolog.Logger
	basePath string
}

func NewLocalStore(logger zerolog.Logger, basePath string) (*localStore, error) {
	if err := os.MkdirAll(basePath, os.ModePerm); err != nil {
		return nil, err
	}
	return &localStore{
		logger:   logger,
		basePath: basePath,
	}, nil
}

func (l *localStore) path(key string) string {
	if filepath.IsAbs(key) {
		return key
	}
	return filepath.Join(l.basePath, key)
}

func (l *localStore) CreateFromReader(ctx context.Context, r io.Reader, key string) (Resource, error) {
	p := l.path(key)
	if err := os.MkdirAll(filepath.Dir(p), os.ModePerm); err != nil {
		return nil, err
	}
	logger := l.logger.With().Str("path", p).Logger()
	logger.Debug().Msgf("creating file")
	f, err := os.Create(p)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(f, r); err != nil {
		return nil, errors.CombineErrors(err, errors.CombineErrors(f.Close(), os.Remove(p)))
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	logger.Debug().Msgf("wrote file")
	return &localResource{key: key, path: p, store: l}, nil
}

func (l *localStore) Reader(ctx context.Context, key string) (io.ReadCloser, error) {
	return os.Open(l.path(key))
}

func (l *localStore) URL(key string) string {
	return l.path(key)
}

type localResource struct {
	key   string
	path  string
	store *localStore
}

func (l *localResource) Key() string {
	return l.key
}

func (l *localResource) URL() string {
	return l.path
}

func (l *localResource) Reader(ctx context.Context) (io.ReadCloser, error) {
	return os.Open(l.path)
}

func (l *localResource) MarkForCleanup(ctx context.Context) error {
	l.store.logger.Debug().Msgf("removing %s", l.path)
	return os.Remove(l.path)
}
