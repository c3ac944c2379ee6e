// Package datablobstorage is where extracted CSV files are written to and
// where datasets are read back from.
package datablobstorage

import (
	"context"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
)

type Store interface {
	// CreateFromReader writes everything in r to key.
	CreateFromReader(ctx context.Context, r io.Reader, key string) (Resource, error)
	// Reader opens key for reading.
	Reader(ctx context.Context, key string) (io.ReadCloser, error)
	// URL describes where key lives, for logging.
	URL(key string) string
}

type Resource interface {
	Key() string
	URL() string
	Reader(ctx context.Context) (io.ReadCloser, error)
	MarkForCleanup(ctx context.Context) error
}

// Location is a parsed --store argument.
type Location struct {
	Scheme string
	Bucket string
	// Path is the key prefix for buckets and the base directory otherwise.
	Path string
}

// ParseLocation accepts s3://bucket/prefix, gs://bucket/prefix or a local
// directory. An empty location is the working directory.
func ParseLocation(loc string) (Location, error) {
	if !strings.Contains(loc, "://") {
		if loc == "" {
			loc = "."
		}
		return Location{Scheme: "file", Path: loc}, nil
	}
	u, err := url.Parse(loc)
	if err != nil {
		return Location{}, errors.Wrapf(err, "error parsing store location %q", loc)
	}
	switch u.Scheme {
	case "s3", "gs":
		if u.Host == "" {
			return Location{}, errors.Newf("store location %q has no bucket", loc)
		}
		return Location{Scheme: u.Scheme, Bucket: u.Host, Path: strings.Trim(u.Path, "/")}, nil
	case "file":
		return Location{Scheme: "file", Path: u.Host + u.Path}, nil
	}
	return Location{}, errors.Newf("unsupported store scheme %q", u.Scheme)
}

// Open creates the store for loc.
func Open(ctx context.Context, logger zerolog.Logger, loc string) (Store, error) {
	l, err := ParseLocation(loc)
	if err != nil {
		return nil, err
	}
	switch l.Scheme {
	case "s3":
		sess, err := session.NewSession()
		if err != nil {
			return nil, errors.Wrap(err, "error creating aws session")
		}
		return NewS3Store(logger, sess, l.Bucket, l.Path), nil
	case "gs":
		creds, err := google.FindDefaultCredentials(ctx, storage.ScopeReadWrite)
		if err != nil {
			return nil, errors.Wrap(err, "error finding gcp credentials")
		}
		gcpClient, err := storage.NewClient(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "error creating gcp client")
		}
		return NewGCPStore(logger, gcpClient, creds, l.Bucket, l.Path), nil
	}
	return NewLocalStore(logger, l.Path)
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "/" + strings.TrimPrefix(key, "/")
}
