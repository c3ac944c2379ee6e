package dbconn

import (
	"context"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
)

type ID string

// Conn is a connection to a database tables are extracted from.
type Conn interface {
	ID() ID
	// Close closes the connection.
	Close(ctx context.Context) error
	// Clone creates a new Conn with the same underlying connections arguments.
	Clone(ctx context.Context) (Conn, error)
	ConnStr() string
	Dialect() string
}

// Connect opens a connection to connStr, which is either a postgres URL or a
// MySQL URL / DSN.
func Connect(ctx context.Context, preferredID ID, connStr string) (Conn, error) {
	id := preferredID
	if len(connStr) == 0 {
		return nil, errors.Newf("empty connection string")
	}

	before := strings.SplitN(connStr, "://", 2)

	switch {
	case strings.Contains(before[0], "postgres"):
		u, err := url.Parse(connStr)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to parse url")
		}
		if id == "" {
			id = ID(u.Hostname() + ":" + u.Port())
		}
		return ConnectPG(ctx, id, connStr)
	case strings.Contains(before[0], "mysql"):
		return ConnectMySQL(ctx, id, connStr)
	case len(before) == 1:
		// Key/value postgres connection strings, e.g. "host=x dbname=y".
		if strings.Contains(connStr, "=") && !strings.Contains(connStr, "@") {
			return ConnectPG(ctx, id, connStr)
		}
		return ConnectMySQL(ctx, id, connStr)
	}
	return nil, errors.Newf("unrecognised scheme %s", before[0])
}
