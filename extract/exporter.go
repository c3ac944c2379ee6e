package extract

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/ucdmtools/recon/dbconn"
	"github.com/ucdmtools/recon/registry"
	"golang.org/x/time/rate"
)

type exporter interface {
	export(ctx context.Context, w io.Writer, spec registry.TableSpec, limiter *rate.Limiter) (rows int64, usedCopy bool, err error)
}

func copyToQuery(query string) string {
	return fmt.Sprintf("COPY (%s) TO STDOUT WITH CSV HEADER FORCE QUOTE *", query)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

type pgExporter struct {
	conn   *dbconn.PGConn
	logger zerolog.Logger
}

func (p *pgExporter) export(
	ctx context.Context, w io.Writer, spec registry.TableSpec, limiter *rate.Limiter,
) (int64, bool, error) {
	if spec.Prequery != "" {
		if _, err := p.conn.Exec(ctx, spec.Prequery); err != nil {
			return 0, false, errors.Wrap(err, "error running prequery")
		}
	}
	cw := &countingWriter{w: w}
	tag, err := p.conn.PgConn().CopyTo(ctx, cw, copyToQuery(spec.Query))
	if err == nil {
		return tag.RowsAffected(), true, nil
	}
	// Older servers cannot COPY from a query. Only fall back if nothing has
	// been written yet.
	if cw.n > 0 || ctx.Err() != nil {
		return 0, true, errors.Wrap(err, "error copying query results")
	}
	p.logger.Warn().Err(err).Str("table", spec.Name).Msgf("copy query failed, trying regular query")

	rows, err := p.conn.Query(ctx, spec.Query, pgx.QueryExecModeSimpleProtocol)
	if err != nil {
		return 0, false, errors.Wrap(err, "error running query")
	}
	defer rows.Close()
	header := make([]string, len(rows.FieldDescriptions()))
	for i, fd := range rows.FieldDescriptions() {
		header[i] = fd.Name
	}
	cr := csv.NewWriter(w)
	if err := cr.Write(header); err != nil {
		return 0, false, err
	}
	record := make([]string, len(header))
	var n int64
	for rows.Next() {
		if err := limiter.Wait(ctx); err != nil {
			return n, false, err
		}
		// The simple protocol returns every value in text format.
		for i, v := range rows.RawValues() {
			record[i] = string(v)
		}
		if err := cr.Write(record); err != nil {
			return n, false, err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, false, errors.Wrap(err, "error reading query results")
	}
	cr.Flush()
	return n, false, cr.Error()
}

type mysqlExporter struct {
	conn *dbconn.MySQLConn
}

func (m *mysqlExporter) export(
	ctx context.Context, w io.Writer, spec registry.TableSpec, limiter *rate.Limiter,
) (int64, bool, error) {
	// The prequery may set session state, so both statements need the same
	// connection.
	conn, err := m.conn.Conn(ctx)
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = conn.Close() }()
	if spec.Prequery != "" {
		if _, err := conn.ExecContext(ctx, spec.Prequery); err != nil {
			return 0, false, errors.Wrap(err, "error running prequery")
		}
	}
	rows, err := conn.QueryContext(ctx, spec.Query)
	if err != nil {
		return 0, false, errors.Wrap(err, "error running query")
	}
	defer func() { _ = rows.Close() }()
	header, err := rows.Columns()
	if err != nil {
		return 0, false, err
	}
	cr := csv.NewWriter(w)
	if err := cr.Write(header); err != nil {
		return 0, false, err
	}
	vals := make([]sql.RawBytes, len(header))
	dest := make([]interface{}, len(header))
	for i := range vals {
		dest[i] = &vals[i]
	}
	record := make([]string, len(header))
	var n int64
	for rows.Next() {
		if err := limiter.Wait(ctx); err != nil {
			return n, false, err
		}
		if err := rows.Scan(dest...); err != nil {
			return n, false, errors.Wrapf(err, "error scanning row %d", n+1)
		}
		for i, v := range vals {
			record[i] = string(v)
		}
		if err := cr.Write(record); err != nil {
			return n, false, err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, false, errors.Wrap(err, "error reading query results")
	}
	cr.Flush()
	return n, false, cr.Error()
}
