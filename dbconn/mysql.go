package dbconn

import (
	"context"
	"database/sql"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-sql-driver/mysql"
)

type MySQLConn struct {
	id      ID
	connStr string
	*sql.DB
	database string
}

var _ Conn = (*MySQLConn)(nil)

func ConnectMySQL(ctx context.Context, id ID, connStr string) (*MySQLConn, error) {
	cfg, err := ParseMySQL(connStr)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "error connecting to mysql")
	}
	return NewMySQLConn(id, db, connStr, cfg.DBName), nil
}

func NewMySQLConn(id ID, db *sql.DB, connStr string, database string) *MySQLConn {
	return &MySQLConn{id: id, connStr: connStr, DB: db, database: database}
}

// ParseMySQL accepts either a go-sql-driver DSN (optionally prefixed with a
// scheme) or a mysql:// URL.
func ParseMySQL(connStr string) (*mysql.Config, error) {
	byProtocol := strings.SplitN(connStr, "://", 2)
	if cfg, err := mysql.ParseDSN(byProtocol[len(byProtocol)-1]); err == nil {
		return cfg, nil
	}
	u, err := url.Parse(connStr)
	if err != nil {
		return nil, errors.Wrapf(err, "error parsing mysql connection string")
	}
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	cfg.User = u.User.Username()
	cfg.Passwd, _ = u.User.Password()
	cfg.DBName = strings.TrimPrefix(u.EscapedPath(), "/")
	if len(u.Query()) > 0 {
		cfg.Params = make(map[string]string, len(u.Query()))
		for k := range u.Query() {
			cfg.Params[k] = u.Query().Get(k)
		}
	}
	// Reparse with the driver to normalise the remaining fields.
	return mysql.ParseDSN(cfg.FormatDSN())
}

func (c *MySQLConn) ID() ID {
	return c.id
}

func (c *MySQLConn) Close(ctx context.Context) error {
	return c.DB.Close()
}

func (c *MySQLConn) Clone(ctx context.Context) (Conn, error) {
	return ConnectMySQL(ctx, c.id, c.connStr)
}

func (c *MySQLConn) Database() string {
	return c.database
}

func (c *MySQLConn) ConnStr() string {
	return c.connStr
}

func (c *MySQLConn) Dialect() string {
	return "MySQL"
}
