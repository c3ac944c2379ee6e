package datablobstorage

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/rs/zerolog"
)

type s3Store struct {
	logger  zerolog.Logger
	bucket  string
	prefix  string
	session *session.Session
}

func NewS3Store(logger zerolog.Logger, session *session.Session, bucket string, prefix string) *s3Store {
	return &s3Store{
		bucket:  bucket,
		prefix:  prefix,
		session: session,
		logger:  logger,
	}
}

func (s *s3Store) CreateFromReader(ctx context.Context, r io.Reader, key string) (Resource, error) {
	fileName := joinKey(s.prefix, key)
	s.logger.Debug().Str("file", fileName).Msgf("creating new file")
	if _, err := s3manager.NewUploader(s.session).UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fileName),
		Body:   r,
	}); err != nil {
		return nil, err
	}
	s.logger.Debug().Str("file", fileName).Msgf("s3 file creation complete")
	return &s3Resource{store: s, key: fileName}, nil
}

func (s *s3Store) Reader(ctx context.Context, key string) (io.ReadCloser, error) {
	return (&s3Resource{store: s, key: joinKey(s.prefix, key)}).Reader(ctx)
}

func (s *s3Store) URL(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, joinKey(s.prefix, key))
}

type s3Resource struct {
	store *s3Store
	key   string
}

func (r *s3Resource) Key() string {
	return r.key
}

func (r *s3Resource) URL() string {
	return fmt.Sprintf("s3://%s/%s", r.store.bucket, r.key)
}

func (r *s3Resource) Reader(ctx context.Context) (io.ReadCloser, error) {
	out, err := s3.New(r.store.session).GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.store.bucket),
		Key:    aws.String(r.key),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

func (r *s3Resource) MarkForCleanup(ctx context.Context) error {
	_, err := s3.New(r.store.session).DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.store.bucket),
		Key:    aws.String(r.key),
	})
	return err
}
