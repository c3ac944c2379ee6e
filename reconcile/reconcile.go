package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/ucdmtools/recon/dataset"
	"github.com/ucdmtools/recon/reconcile/fieldcmp"
	"github.com/ucdmtools/recon/reconcile/inconsistency"
	"golang.org/x/sync/errgroup"
)

// NullIndexPolicy decides what happens to canonical rows without a usable
// index value.
type NullIndexPolicy int

const (
	// SkipNullIndex counts such rows but reports nothing.
	SkipNullIndex NullIndexPolicy = iota
	// ReportNullIndex writes an UnverifiableRow entry for each of them.
	ReportNullIndex
)

func ParseNullIndexPolicy(s string) (NullIndexPolicy, error) {
	switch strings.ToLower(s) {
	case "skip", "":
		return SkipNullIndex, nil
	case "report":
		return ReportNullIndex, nil
	}
	return SkipNullIndex, errors.Newf("unknown null index policy %q", s)
}

// Table is one pair of datasets to reconcile.
type Table struct {
	Name           string
	Index          string
	CanonicalFile  string
	ReplicatedFile string
}

// TableResult summarises the reconciliation of one table.
type TableResult struct {
	Table string
	Stats Stats
	// Compared is false when the table was skipped, either because it failed
	// or because one of its datasets was empty.
	Compared bool
	Err      error
}

type Opt func(*opts)

type opts struct {
	comparator      fieldcmp.Comparator
	nullIndex       NullIndexPolicy
	duplicatePolicy dataset.DuplicatePolicy
	concurrency     int
	progress        ProgressFunc
}

func makeOpts(inOpts []Opt) opts {
	o := opts{
		comparator:  fieldcmp.DefaultComparator(),
		concurrency: 1,
	}
	for _, applyOpt := range inOpts {
		applyOpt(&o)
	}
	return o
}

func WithComparator(c fieldcmp.Comparator) Opt {
	return func(o *opts) {
		o.comparator = c
	}
}

func WithNullIndexPolicy(p NullIndexPolicy) Opt {
	return func(o *opts) {
		o.nullIndex = p
	}
}

func WithDuplicatePolicy(p dataset.DuplicatePolicy) Opt {
	return func(o *opts) {
		o.duplicatePolicy = p
	}
}

// WithConcurrency sets how many tables are compared at once. Rows of a table
// are always compared in order by a single goroutine.
func WithConcurrency(c int) Opt {
	return func(o *opts) {
		o.concurrency = c
	}
}

func WithProgress(f ProgressFunc) Opt {
	return func(o *opts) {
		o.progress = f
	}
}

var tablesRunning = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "recon",
	Subsystem: "reconcile",
	Name:      "tables_running",
	Help:      "Number of tables currently being compared.",
})

// Reconcile compares every table in order. A failure on one table is
// reported and logged, and never stops the remaining tables. The only error
// returned is the context's, in which case the results cover the tables
// processed so far.
func Reconcile(
	ctx context.Context,
	src dataset.Source,
	tables []Table,
	reporter inconsistency.Reporter,
	logger zerolog.Logger,
	inOpts ...Opt,
) ([]TableResult, error) {
	opts := makeOpts(inOpts)

	if opts.concurrency <= 1 {
		results := make([]TableResult, 0, len(tables))
		for _, tbl := range tables {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			results = append(results, reconcileTable(ctx, src, tbl, reporter, logger, opts))
		}
		return results, nil
	}

	logger.Debug().Int("concurrency", opts.concurrency).Msgf("comparing tables concurrently")
	shared := inconsistency.NewSyncReporter(reporter)
	results := make([]TableResult, len(tables))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency)
	for i, tbl := range tables {
		i, tbl := i, tbl
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				results[i] = TableResult{Table: tbl.Name, Err: err}
				return err
			}
			var buf inconsistency.BufferedReporter
			results[i] = reconcileTable(gCtx, src, tbl, &buf, logger, opts)
			shared.ReportAll(&buf)
			return nil
		})
	}
	err := g.Wait()
	return results, err
}

func reconcileTable(
	ctx context.Context,
	src dataset.Source,
	tbl Table,
	reporter inconsistency.Reporter,
	logger zerolog.Logger,
	opts opts,
) (res TableResult) {
	tablesRunning.Inc()
	defer tablesRunning.Dec()

	res.Table = tbl.Name
	logger = logger.With().Str("table", tbl.Name).Logger()
	defer func() {
		if r := recover(); r != nil {
			res.Compared = false
			res.Err = errors.Newf("unexpected failure comparing table %s: %v", tbl.Name, r)
			logger.Error().Err(res.Err).Msgf("error comparing table")
			reporter.Report(inconsistency.StatusReport{
				Info: fmt.Sprintf("failed to compare %s", tbl.Name),
			})
		}
	}()

	reporter.Report(inconsistency.TableStart{Table: tbl.Name})
	logger.Debug().
		Str("canonical_file", tbl.CanonicalFile).
		Str("replicated_file", tbl.ReplicatedFile).
		Str("index", tbl.Index).
		Msgf("loading datasets")

	var datasets [2]*dataset.Dataset
	for i, name := range []string{tbl.CanonicalFile, tbl.ReplicatedFile} {
		ds, err := dataset.LoadFrom(ctx, src, name, tbl.Index, dataset.WithDuplicatePolicy(opts.duplicatePolicy))
		if err != nil {
			logger.Err(err).Msgf("skipping table")
			reporter.Report(inconsistency.LoadFailure{Table: tbl.Name, Err: err})
			res.Err = err
			return res
		}
		datasets[i] = ds
	}

	res.Stats, res.Compared = CompareDatasets(
		tbl.Name,
		datasets[0],
		datasets[1],
		reporter,
		WithComparator(opts.comparator),
		WithNullIndexPolicy(opts.nullIndex),
		WithProgress(opts.progress),
	)
	return res
}
