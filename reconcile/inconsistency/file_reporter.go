package inconsistency

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
)

// FileReporter writes the results sink and the errors sink as plain text, one
// entry per line. Every entry is written to the underlying writer as soon as
// it is reported.
type FileReporter struct {
	mu      sync.Mutex
	results io.Writer
	errs    io.Writer
	closers []io.Closer
	err     error
}

func NewFileReporter(results io.Writer, errs io.Writer) *FileReporter {
	return &FileReporter{results: results, errs: errs}
}

// OpenFileReporter creates (or truncates) the results and errors files.
func OpenFileReporter(resultsPath string, errorsPath string) (*FileReporter, error) {
	results, err := os.Create(resultsPath)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening results file %s", resultsPath)
	}
	errs, err := os.Create(errorsPath)
	if err != nil {
		return nil, errors.CombineErrors(
			errors.Wrapf(err, "error opening errors file %s", errorsPath),
			results.Close(),
		)
	}
	r := NewFileReporter(results, errs)
	r.closers = []io.Closer{results, errs}
	return r, nil
}

func (r *FileReporter) Report(obj ReportableObject) {
	w, line, ok := r.format(obj)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := io.WriteString(w, line+"\n"); err != nil && r.err == nil {
		r.err = errors.Wrap(err, "error writing report")
	}
}

func (r *FileReporter) format(obj ReportableObject) (io.Writer, string, bool) {
	switch obj := obj.(type) {
	case TableStart:
		return r.results, fmt.Sprintf("Comparing on %s", obj.Table), true
	case RowCountSummary:
		return r.results, fmt.Sprintf("replicated rows: %d, canonical rows: %d", obj.Replicated, obj.Canonical), true
	case EmptyTable:
		return r.results, fmt.Sprintf("table %s has an empty dataset on at least one side, skipping", obj.Table), true
	case RowCountDifference:
		diff := obj.Diff()
		if diff > 0 {
			return r.results, fmt.Sprintf("canonical has %d more rows than replicated for this table", diff), true
		}
		return r.results, fmt.Sprintf("replicated has %d more rows than canonical for this table", -diff), true
	case DuplicateIndex:
		return r.results, fmt.Sprintf(
			"duplicate index %s in %s dataset for %s (%s)", obj.Index, obj.Side, obj.Table, obj.Policy,
		), true
	case MismatchingField:
		return r.results, fmt.Sprintf(
			"%s does not match for %s canonical: %s replicated: %s",
			obj.Field,
			obj.Index,
			obj.CanonicalValue,
			obj.ReplicatedValue,
		), true
	case ComparisonError:
		return r.errs, fmt.Sprintf("%s: index %s: field %s: %s", obj.Table, obj.Index, obj.Field, obj.Err), true
	case UnverifiableRow:
		return r.errs, fmt.Sprintf("%s: canonical row %d has no usable index value", obj.Table, obj.Line), true
	case LoadFailure:
		return r.errs, fmt.Sprintf("%s: failed to load datasets: %s", obj.Table, obj.Err), true
	}
	return nil, "", false
}

// Err returns the first write error seen, if any.
func (r *FileReporter) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *FileReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.err
	for _, c := range r.closers {
		err = errors.CombineErrors(err, c.Close())
	}
	r.closers = nil
	return err
}
