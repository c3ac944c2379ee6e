package datablobstorage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2/google"
)

func TestParseLocation(t *testing.T) {
	for _, tc := range []struct {
		desc          string
		loc           string
		expected      Location
		expectedError string
	}{
		{desc: "empty", loc: "", expected: Location{Scheme: "file", Path: "."}},
		{desc: "relative dir", loc: "out/extracts", expected: Location{Scheme: "file", Path: "out/extracts"}},
		{desc: "file url", loc: "file:///tmp/x", expected: Location{Scheme: "file", Path: "/tmp/x"}},
		{desc: "s3", loc: "s3://nangs/a/b/", expected: Location{Scheme: "s3", Bucket: "nangs", Path: "a/b"}},
		{desc: "gs no prefix", loc: "gs://nangs", expected: Location{Scheme: "gs", Bucket: "nangs"}},
		{desc: "no bucket", loc: "s3:///a", expectedError: `store location "s3:///a" has no bucket`},
		{desc: "bad scheme", loc: "ftp://host/a", expectedError: `unsupported store scheme "ftp"`},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			l, err := ParseLocation(tc.loc)
			if tc.expectedError != "" {
				require.EqualError(t, err, tc.expectedError)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, l)
		})
	}
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := Open(ctx, zerolog.Nop(), dir)
	require.NoError(t, err)

	res, err := s.CreateFromReader(ctx, strings.NewReader("id,name\n1,a\n"), "sub/unizin_person.csv")
	require.NoError(t, err)
	require.Equal(t, "sub/unizin_person.csv", res.Key())
	require.Equal(t, filepath.Join(dir, "sub", "unizin_person.csv"), res.URL())
	require.Equal(t, res.URL(), s.URL("sub/unizin_person.csv"))

	rc, err := s.Reader(ctx, "sub/unizin_person.csv")
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "id,name\n1,a\n", string(b))

	// Absolute keys are read as is.
	abs := filepath.Join(t.TempDir(), "abs.csv")
	require.NoError(t, os.WriteFile(abs, []byte("x"), 0644))
	rc, err = s.Reader(ctx, abs)
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	require.NoError(t, res.MarkForCleanup(ctx))
	_, err = s.Reader(ctx, "sub/unizin_person.csv")
	require.True(t, os.IsNotExist(err))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestLocalStorePartialWrite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewLocalStore(zerolog.Nop(), dir)
	require.NoError(t, err)
	_, err = s.CreateFromReader(ctx, io.MultiReader(strings.NewReader("id\n"), failingReader{}), "a.csv")
	require.ErrorContains(t, err, "connection reset")
	_, err = os.Stat(filepath.Join(dir, "a.csv"))
	require.True(t, os.IsNotExist(err))
}

func TestResourceURL(t *testing.T) {
	for _, tc := range []struct {
		desc     string
		r        Resource
		expected string
	}{
		{
			desc:     "s3",
			r:        &s3Resource{key: "asdf/ghjk.csv", store: &s3Store{bucket: "nangs"}},
			expected: "s3://nangs/asdf/ghjk.csv",
		},
		{
			desc: "gcp",
			r: &gcpResource{
				key: "asdf/ghjk.csv",
				store: &gcpStore{
					bucket: "nangs",
					creds:  &google.Credentials{ProjectID: "proj"},
				},
			},
			expected: "gs://nangs/asdf/ghjk.csv",
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			require.Equal(t, tc.expected, tc.r.URL())
		})
	}

	require.Equal(t, "s3://nangs/pre/a.csv", (&s3Store{bucket: "nangs", prefix: "pre"}).URL("a.csv"))
	require.Equal(t, "gs://nangs/a.csv", (&gcpStore{bucket: "nangs"}).URL("a.csv"))
}
