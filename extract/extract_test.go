package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/ucdmtools/recon/datablobstorage"
	"github.com/ucdmtools/recon/dbconn"
	"github.com/ucdmtools/recon/registry"
	"github.com/ucdmtools/recon/retry"
	"github.com/ucdmtools/recon/testutils"
)

func newMockConn(t *testing.T) (*dbconn.MySQLConn, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return dbconn.NewMySQLConn("udw", db, "", "udw"), mock
}

func newStore(t *testing.T) (datablobstorage.Store, string) {
	dir := t.TempDir()
	s, err := datablobstorage.NewLocalStore(zerolog.Nop(), dir)
	require.NoError(t, err)
	return s, dir
}

func readFile(t *testing.T, path string) string {
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

var personSpec = registry.TableSpec{
	Name:          "person",
	Index:         "person_id",
	DSN:           "UDW",
	Prequery:      "SET @term = 'FA18'",
	Query:         "SELECT person_id, name FROM person",
	CanonicalFile: "sis_person.csv",
}

func TestExtractMySQL(t *testing.T) {
	ctx := context.Background()
	conn, mock := newMockConn(t)
	store, dir := newStore(t)

	mock.ExpectExec(personSpec.Prequery).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(personSpec.Query).WillReturnRows(
		sqlmock.NewRows([]string{"person_id", "name"}).
			AddRow("1", "Alice").
			AddRow("2", nil).
			AddRow("3", "Smith, Carol"),
	)

	res, err := Extract(ctx, zerolog.Nop(), conn, store, personSpec, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	require.Equal(t, int64(3), res.Rows)
	require.False(t, res.UsedCopy)
	require.Equal(t, "unizin_person.csv", res.Resource.Key())
	require.Equal(
		t,
		"person_id,name\n1,Alice\n2,\n3,\"Smith, Carol\"\n",
		readFile(t, filepath.Join(dir, "unizin_person.csv")),
	)
}

func TestExtractErrors(t *testing.T) {
	ctx := context.Background()
	store, dir := newStore(t)

	t.Run("no query", func(t *testing.T) {
		conn, _ := newMockConn(t)
		spec := personSpec
		spec.Query = ""
		_, err := Extract(ctx, zerolog.Nop(), conn, store, spec, DefaultConfig())
		var extErr *ExtractionError
		require.True(t, errors.As(err, &extErr))
		require.EqualError(t, err, "error extracting table person: no query defined")
	})

	t.Run("query fails", func(t *testing.T) {
		conn, mock := newMockConn(t)
		mock.ExpectExec(personSpec.Prequery).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(personSpec.Query).WillReturnError(errors.New("table person does not exist"))
		_, err := Extract(ctx, zerolog.Nop(), conn, store, personSpec, DefaultConfig())
		require.EqualError(
			t,
			err,
			"error extracting table person: error running query: table person does not exist",
		)
		require.NoError(t, mock.ExpectationsWereMet())
		_, statErr := os.Stat(filepath.Join(dir, "unizin_person.csv"))
		require.True(t, os.IsNotExist(statErr))
	})

	t.Run("unsupported connection", func(t *testing.T) {
		_, err := Extract(ctx, zerolog.Nop(), dbconn.MakeFakeConn("fake"), store, personSpec, DefaultConfig())
		require.ErrorContains(t, err, "extraction not supported for fake")
	})
}

func TestExtractAll(t *testing.T) {
	ctx := context.Background()
	store, dir := newStore(t)
	conn, mock := newMockConn(t)

	specs := []registry.TableSpec{
		{Name: "academic_term", Index: "term_id", DSN: "UDW", Query: "SELECT term_id FROM academic_term"},
		{Name: "broken", Index: "id", DSN: "OTHER", Query: "SELECT 1"},
		{Name: "no_query", Index: "id", DSN: "UDW"},
		{Name: "course", Index: "course_id", DSN: "UDW", Query: "SELECT course_id FROM course"},
	}
	mock.ExpectQuery(specs[0].Query).WillReturnRows(sqlmock.NewRows([]string{"term_id"}).AddRow("17"))
	mock.ExpectQuery(specs[3].Query).WillReturnRows(sqlmock.NewRows([]string{"course_id"}).AddRow("4").AddRow("5"))

	var connects []string
	connect := func(ctx context.Context, dsn string) (dbconn.Conn, error) {
		connects = append(connects, dsn)
		if dsn == "UDW" {
			return conn, nil
		}
		return nil, errors.Newf("no route to %s", dsn)
	}
	cfg := DefaultConfig()
	cfg.ConnectRetry = retry.Settings{InitialBackoff: time.Millisecond, Multiplier: 1, MaxAttempts: 2}
	cfg.RowsPerSecond = 1000

	results, errs := ExtractAll(ctx, zerolog.Nop(), connect, store, specs, cfg)
	require.NoError(t, mock.ExpectationsWereMet())
	require.Len(t, results, 4)
	require.Len(t, errs, 4)

	// The UDW connection is shared, the OTHER one is retried.
	require.Equal(t, []string{"UDW", "OTHER", "OTHER"}, connects)

	require.NoError(t, errs[0])
	require.Equal(t, int64(1), results[0].Rows)
	require.Equal(t, "term_id\n17\n", readFile(t, filepath.Join(dir, "unizin_academic_term.csv")))

	require.EqualError(
		t,
		errs[1],
		"error extracting table broken: giving up after 2 attempts: no route to OTHER",
	)
	require.Equal(t, "broken", results[1].Table)

	require.EqualError(t, errs[2], "error extracting table no_query: no query defined")

	require.NoError(t, errs[3])
	require.Equal(t, "course_id\n4\n5\n", readFile(t, filepath.Join(dir, "unizin_course.csv")))
}

func TestEnvConnector(t *testing.T) {
	env := map[string]string{"DSN_BAD": "oracle://x"}
	connect := EnvConnector(func(key string) string { return env[key] })
	_, err := connect(context.Background(), "MISSING")
	require.EqualError(t, err, "environment variable DSN_MISSING is not set")
	_, err = connect(context.Background(), "BAD")
	require.EqualError(t, err, "unrecognised scheme oracle")
}

func TestExtractPG(t *testing.T) {
	ctx := context.Background()
	conn, err := dbconn.ConnectPG(ctx, "pg", testutils.PGConnStr())
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	defer func() { _ = conn.Close(ctx) }()
	store, dir := newStore(t)

	spec := registry.TableSpec{
		Name:     "pg_people",
		Index:    "id",
		Prequery: "SET TIME ZONE 'UTC'",
		Query:    "SELECT * FROM (VALUES (1, 'Alice', 10.0), (2, NULL, 11.5)) AS t(id, name, score)",
	}
	res, err := Extract(ctx, zerolog.Nop(), conn, store, spec, DefaultConfig())
	require.NoError(t, err)
	require.True(t, res.UsedCopy)
	require.Equal(t, int64(2), res.Rows)
	require.Equal(
		t,
		"id,name,score\n\"1\",\"Alice\",\"10.0\"\n\"2\",,\"11.5\"\n",
		readFile(t, filepath.Join(dir, "unizin_pg_people.csv")),
	)
}

func TestExtractMySQLLive(t *testing.T) {
	ctx := context.Background()
	conn, err := dbconn.ConnectMySQL(ctx, "mysql", testutils.MySQLConnStr())
	if err != nil {
		t.Skipf("mysql not available: %v", err)
	}
	defer func() { _ = conn.Close(ctx) }()
	store, dir := newStore(t)

	spec := registry.TableSpec{
		Name:     "mysql_people",
		Index:    "id",
		Prequery: "SET @bonus = 5",
		Query:    "SELECT 1 AS id, 'Alice' AS name, 10 + @bonus AS score",
	}
	res, err := Extract(ctx, zerolog.Nop(), conn, store, spec, DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Rows)
	require.Equal(t, "id,name,score\n1,Alice,15\n", readFile(t, filepath.Join(dir, "unizin_mysql_people.csv")))
}
