// Package extract runs the registry queries against the replicated store and
// writes each result as a CSV file with a header row.
package extract

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/ucdmtools/recon/datablobstorage"
	"github.com/ucdmtools/recon/dbconn"
	"github.com/ucdmtools/recon/registry"
	"github.com/ucdmtools/recon/retry"
	"golang.org/x/time/rate"
)

// ExtractionError is returned for a table which could not be extracted.
// Other tables are still extracted.
type ExtractionError struct {
	Table string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("error extracting table %s: %s", e.Table, e.Err.Error())
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

type Config struct {
	// ReplicatedPattern names the output file, see registry.DefaultReplicatedPattern.
	ReplicatedPattern string
	// RowsPerSecond limits rows read through a regular query. Zero is unlimited.
	RowsPerSecond float64
	ConnectRetry  retry.Settings
}

func DefaultConfig() Config {
	return Config{
		ReplicatedPattern: registry.DefaultReplicatedPattern,
		ConnectRetry: retry.Settings{
			InitialBackoff: time.Second,
			Multiplier:     2,
			MaxBackoff:     10 * time.Second,
			MaxAttempts:    3,
		},
	}
}

func (c Config) rateLimit() rate.Limit {
	if c.RowsPerSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(c.RowsPerSecond)
}

type Result struct {
	Table    string
	Resource datablobstorage.Resource
	Rows     int64
	// UsedCopy is false when the regular query path produced the file.
	UsedCopy bool
}

var (
	rowsExtractedMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "recon",
		Subsystem: "extract",
		Name:      "rows_extracted",
		Help:      "Number of rows written to extract files.",
	})
	tableStatusMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recon",
		Subsystem: "extract",
		Name:      "table_status",
		Help:      "Status of table extractions.",
	}, []string{"status"})
)

func init() {
	for _, s := range []string{"success", "failure"} {
		tableStatusMetric.WithLabelValues(s)
	}
}

// Extract runs spec's prequery and query on conn and writes the result to
// store.
func Extract(
	ctx context.Context,
	logger zerolog.Logger,
	conn dbconn.Conn,
	store datablobstorage.Store,
	spec registry.TableSpec,
	cfg Config,
) (Result, error) {
	ret := Result{Table: spec.Name}
	if spec.Query == "" {
		return ret, &ExtractionError{Table: spec.Name, Err: errors.Newf("no query defined")}
	}
	var exp exporter
	switch conn := conn.(type) {
	case *dbconn.PGConn:
		exp = &pgExporter{conn: conn, logger: logger}
	case *dbconn.MySQLConn:
		exp = &mysqlExporter{conn: conn}
	default:
		return ret, &ExtractionError{
			Table: spec.Name,
			Err:   errors.AssertionFailedf("extraction not supported for %s", conn.Dialect()),
		}
	}

	key := spec.ReplicatedFileName(cfg.ReplicatedPattern)
	logger = logger.With().Str("table", spec.Name).Str("file", store.URL(key)).Logger()
	logger.Info().Msgf("extracting table")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pr, pw := io.Pipe()
	type exportResult struct {
		rows     int64
		usedCopy bool
		err      error
	}
	exportCh := make(chan exportResult, 1)
	go func() {
		rows, usedCopy, err := exp.export(ctx, pw, spec, rate.NewLimiter(cfg.rateLimit(), 1))
		_ = pw.CloseWithError(err)
		exportCh <- exportResult{rows: rows, usedCopy: usedCopy, err: err}
	}()

	resource, storeErr := store.CreateFromReader(ctx, pr, key)
	if storeErr != nil {
		cancel()
		_ = pr.CloseWithError(storeErr)
	}
	res := <-exportCh
	if err := errors.CombineErrors(res.err, storeErr); err != nil {
		tableStatusMetric.WithLabelValues("failure").Inc()
		return ret, &ExtractionError{Table: spec.Name, Err: err}
	}
	tableStatusMetric.WithLabelValues("success").Inc()
	rowsExtractedMetric.Add(float64(res.rows))

	ret.Resource = resource
	ret.Rows = res.rows
	ret.UsedCopy = res.usedCopy
	logger.Info().Int64("rows", ret.Rows).Bool("copy", ret.UsedCopy).Msgf("extracted table")
	return ret, nil
}

// ConnectFunc opens a connection for a registry DSN name.
type ConnectFunc func(ctx context.Context, dsn string) (dbconn.Conn, error)

// EnvConnector resolves DSN names through DSN_<name> variables read with
// lookup.
func EnvConnector(lookup func(key string) string) ConnectFunc {
	return func(ctx context.Context, dsn string) (dbconn.Conn, error) {
		connStr := lookup("DSN_" + dsn)
		if connStr == "" {
			return nil, errors.Newf("environment variable DSN_%s is not set", dsn)
		}
		return dbconn.Connect(ctx, dbconn.ID(dsn), connStr)
	}
}

// ExtractAll extracts every table in order. Connections are shared between
// tables with the same DSN and closed before returning. A failing table is
// logged and returned as an ExtractionError in its result slot.
func ExtractAll(
	ctx context.Context,
	logger zerolog.Logger,
	connect ConnectFunc,
	store datablobstorage.Store,
	specs []registry.TableSpec,
	cfg Config,
) ([]Result, []error) {
	conns := make(map[string]dbconn.Conn)
	defer func() {
		for dsn, conn := range conns {
			if err := conn.Close(ctx); err != nil {
				logger.Err(err).Str("dsn", dsn).Msgf("error closing connection")
			}
		}
	}()

	results := make([]Result, len(specs))
	errs := make([]error, len(specs))
	for i, spec := range specs {
		results[i] = Result{Table: spec.Name}
		if err := ctx.Err(); err != nil {
			errs[i] = &ExtractionError{Table: spec.Name, Err: err}
			continue
		}
		conn, ok := conns[spec.DSN]
		if !ok {
			if err := cfg.ConnectRetry.Do(ctx, func(ctx context.Context) error {
				var err error
				conn, err = connect(ctx, spec.DSN)
				if err != nil {
					logger.Warn().Err(err).Str("dsn", spec.DSN).Msgf("error connecting")
				}
				return err
			}); err != nil {
				errs[i] = &ExtractionError{Table: spec.Name, Err: err}
				tableStatusMetric.WithLabelValues("failure").Inc()
				logger.Err(errs[i]).Msgf("skipping table")
				continue
			}
			conns[spec.DSN] = conn
		}
		results[i], errs[i] = Extract(ctx, logger, conn, store, spec, cfg)
		if errs[i] != nil {
			logger.Err(errs[i]).Msgf("skipping table")
		}
	}
	return results, errs
}
