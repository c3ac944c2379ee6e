package reconcile

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/ucdmtools/recon/dataset"
	"github.com/ucdmtools/recon/reconcile/inconsistency"
)

type RowEventListener interface {
	OnRowScan()
	OnMissingRow(idx dataset.Key)
	OnUnverifiableRow(row inconsistency.UnverifiableRow)
	OnMismatchingField(field inconsistency.MismatchingField)
	OnComparisonError(cmpErr inconsistency.ComparisonError)
	OnMatch()
	OnMismatch()
}

// Stats counts what happened to the canonical rows of one table.
type Stats struct {
	RowsScanned     int
	Matched         int
	Mismatched      int
	Missing         int
	NullIndex       int
	FieldMismatches int
	FieldErrors     int
}

func (s Stats) String() string {
	return fmt.Sprintf(
		"canonical rows seen: %d, success: %d, mismatch: %d, missing: %d, no index: %d, field mismatches: %d, field errors: %d",
		s.RowsScanned,
		s.Matched,
		s.Mismatched,
		s.Missing,
		s.NullIndex,
		s.FieldMismatches,
		s.FieldErrors,
	)
}

var (
	rowStatusMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recon",
		Subsystem: "reconcile",
		Name:      "row_status",
		Help:      "Status of canonical rows that have been compared.",
	}, []string{"status"})
	rowsReadMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "recon",
		Subsystem: "reconcile",
		Name:      "rows_read",
		Help:      "Number of canonical rows read.",
	})
	fieldStatusMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recon",
		Subsystem: "reconcile",
		Name:      "field_status",
		Help:      "Number of fields which did not match or could not be compared.",
	}, []string{"status"})
)

func init() {
	// Initialise each metric by default.
	for _, s := range []string{"success", "mismatching", "missing", "no_index"} {
		rowStatusMetric.WithLabelValues(s)
	}
	for _, s := range []string{"mismatching", "error"} {
		fieldStatusMetric.WithLabelValues(s)
	}
}

// ProgressTracker is notified once per canonical row.
type ProgressTracker interface {
	Increment()
	Finish()
}

// ProgressFunc creates a tracker for a table with total canonical rows.
type ProgressFunc func(table string, total int) ProgressTracker

type noopProgress struct{}

func (noopProgress) Increment() {}
func (noopProgress) Finish()    {}

type defaultRowEventListener struct {
	reporter  inconsistency.Reporter
	table     string
	nullIndex NullIndexPolicy
	progress  ProgressTracker
	stats     Stats
}

func (n *defaultRowEventListener) OnRowScan() {
	if n.stats.RowsScanned%10000 == 0 && n.stats.RowsScanned > 0 {
		n.reporter.Report(inconsistency.StatusReport{
			Info: fmt.Sprintf("progress on %s: %s", n.table, n.stats.String()),
		})
	}
	rowsReadMetric.Inc()
	n.progress.Increment()
	n.stats.RowsScanned++
}

func (n *defaultRowEventListener) OnMissingRow(idx dataset.Key) {
	n.stats.Missing++
	rowStatusMetric.WithLabelValues("missing").Inc()
}

func (n *defaultRowEventListener) OnUnverifiableRow(row inconsistency.UnverifiableRow) {
	n.stats.NullIndex++
	rowStatusMetric.WithLabelValues("no_index").Inc()
	if n.nullIndex == ReportNullIndex {
		n.reporter.Report(row)
	}
}

func (n *defaultRowEventListener) OnMismatchingField(field inconsistency.MismatchingField) {
	n.stats.FieldMismatches++
	fieldStatusMetric.WithLabelValues("mismatching").Inc()
	n.reporter.Report(field)
}

func (n *defaultRowEventListener) OnComparisonError(cmpErr inconsistency.ComparisonError) {
	n.stats.FieldErrors++
	fieldStatusMetric.WithLabelValues("error").Inc()
	n.reporter.Report(cmpErr)
}

func (n *defaultRowEventListener) OnMatch() {
	n.stats.Matched++
	rowStatusMetric.WithLabelValues("success").Inc()
}

func (n *defaultRowEventListener) OnMismatch() {
	n.stats.Mismatched++
	rowStatusMetric.WithLabelValues("mismatching").Inc()
}
