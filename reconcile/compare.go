package reconcile

import (
	"fmt"

	"github.com/ucdmtools/recon/dataset"
	"github.com/ucdmtools/recon/reconcile/fieldcmp"
	"github.com/ucdmtools/recon/reconcile/inconsistency"
)

// CompareDatasets reconciles two loaded datasets for one table, streaming
// every entry to reporter. Problems with individual rows or fields are
// reported and counted in the returned Stats. The bool is false when either
// dataset is empty and no rows were compared.
func CompareDatasets(
	table string,
	canonical *dataset.Dataset,
	replicated *dataset.Dataset,
	reporter inconsistency.Reporter,
	inOpts ...Opt,
) (Stats, bool) {
	opts := makeOpts(inOpts)

	reporter.Report(inconsistency.RowCountSummary{
		Table:      table,
		Canonical:  canonical.Len(),
		Replicated: replicated.Len(),
	})
	if canonical.Len() == 0 || replicated.Len() == 0 {
		reporter.Report(inconsistency.EmptyTable{Table: table})
		return Stats{}, false
	}
	if canonical.Len() != replicated.Len() {
		reporter.Report(inconsistency.RowCountDifference{
			Table:      table,
			Canonical:  canonical.Len(),
			Replicated: replicated.Len(),
		})
	}
	for _, side := range []struct {
		side inconsistency.Side
		ds   *dataset.Dataset
	}{
		{side: inconsistency.Canonical, ds: canonical},
		{side: inconsistency.Replicated, ds: replicated},
	} {
		for _, k := range side.ds.Duplicates {
			reporter.Report(inconsistency.DuplicateIndex{
				Table:  table,
				Side:   side.side,
				Index:  k,
				Policy: side.ds.Policy,
			})
		}
	}

	var progress ProgressTracker = noopProgress{}
	if opts.progress != nil {
		progress = opts.progress(table, canonical.Len())
	}
	defer progress.Finish()

	evl := &defaultRowEventListener{
		reporter:  reporter,
		table:     table,
		nullIndex: opts.nullIndex,
		progress:  progress,
	}
	compareRows(table, canonical, replicated, opts.comparator, evl)
	reporter.Report(inconsistency.StatusReport{
		Info: fmt.Sprintf("finished comparing %s: %s", table, evl.stats.String()),
	})
	return evl.stats, true
}

// compareRows aligns every canonical row with the replicated row holding the
// same index and compares the fields of the replicated header.
func compareRows(
	table string,
	canonical *dataset.Dataset,
	replicated *dataset.Dataset,
	cmp fieldcmp.Comparator,
	evl RowEventListener,
) {
	for _, canonicalRow := range canonical.Records {
		evl.OnRowScan()
		if !canonicalRow.HasIndex() {
			evl.OnUnverifiableRow(inconsistency.UnverifiableRow{Table: table, Line: canonicalRow.Line})
			continue
		}
		replicatedRow, ok := replicated.Lookup(canonicalRow.Index)
		if !ok {
			evl.OnMissingRow(canonicalRow.Index)
			continue
		}

		mismatch := false
		for _, field := range replicated.Header {
			r := cmp.CompareField(field, canonicalRow, replicatedRow)
			switch r.Outcome {
			case fieldcmp.Match:
			case fieldcmp.Mismatch:
				mismatch = true
				cv, _ := canonicalRow.Get(field)
				rv, _ := replicatedRow.Get(field)
				evl.OnMismatchingField(inconsistency.MismatchingField{
					Table:           table,
					Index:           canonicalRow.Index,
					Field:           field,
					CanonicalValue:  cv,
					ReplicatedValue: rv,
				})
			case fieldcmp.Error:
				evl.OnComparisonError(inconsistency.ComparisonError{
					Table: table,
					Index: canonicalRow.Index,
					Field: field,
					Err:   r.Err,
				})
			}
		}
		if mismatch {
			evl.OnMismatch()
		} else {
			evl.OnMatch()
		}
	}
}
