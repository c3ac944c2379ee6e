package inconsistency

import (
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

type Reporter interface {
	Report(obj ReportableObject)
	Close() error
}

type CombinedReporter struct {
	Reporters []Reporter
}

func (c CombinedReporter) Report(obj ReportableObject) {
	for _, r := range c.Reporters {
		r.Report(obj)
	}
}

func (c CombinedReporter) Close() error {
	var err error
	for _, r := range c.Reporters {
		err = errors.CombineErrors(err, r.Close())
	}
	return err
}

// LogReporter reports to `zerolog`.
type LogReporter struct {
	zerolog.Logger
}

func (l LogReporter) Report(obj ReportableObject) {
	switch obj := obj.(type) {
	case TableStart:
		l.Info().Str("table", obj.Table).Msgf("comparing table")
	case RowCountSummary:
		l.Info().
			Str("table", obj.Table).
			Int("canonical_rows", obj.Canonical).
			Int("replicated_rows", obj.Replicated).
			Msgf("row counts")
	case EmptyTable:
		l.Warn().Str("table", obj.Table).Msgf("empty dataset on at least one side, skipping row comparison")
	case RowCountDifference:
		l.Warn().
			Str("table", obj.Table).
			Int("canonical_rows", obj.Canonical).
			Int("replicated_rows", obj.Replicated).
			Int("difference", obj.Diff()).
			Msgf("row count mismatch")
	case DuplicateIndex:
		l.Warn().
			Str("table", obj.Table).
			Str("side", string(obj.Side)).
			Str("index", obj.Index.String()).
			Str("policy", obj.Policy.String()).
			Msgf("duplicate index value")
	case MismatchingField:
		l.Warn().
			Str("table", obj.Table).
			Str("index", obj.Index.String()).
			Str("field", obj.Field).
			Str("canonical_value", obj.CanonicalValue.String()).
			Str("replicated_value", obj.ReplicatedValue.String()).
			Msgf("mismatching field value")
	case ComparisonError:
		l.Error().
			Err(obj.Err).
			Str("table", obj.Table).
			Str("index", obj.Index.String()).
			Str("field", obj.Field).
			Msgf("field comparison error")
	case UnverifiableRow:
		l.Warn().
			Str("table", obj.Table).
			Int("line", obj.Line).
			Msgf("canonical row has no usable index value")
	case LoadFailure:
		l.Error().Err(obj.Err).Str("table", obj.Table).Msgf("failed to load datasets")
	case StatusReport:
		l.Info().Msg(obj.Info)
	default:
		l.Error().
			Str("type", fmt.Sprintf("%T", obj)).
			Msgf("unknown object type")
	}
}

func (l LogReporter) Close() error {
	return nil
}

// BufferedReporter holds report objects until Flush is called. It lets
// tables compared concurrently write their entries to a shared reporter as
// one contiguous block.
type BufferedReporter struct {
	mu   sync.Mutex
	objs []ReportableObject
}

func (b *BufferedReporter) Report(obj ReportableObject) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objs = append(b.objs, obj)
}

func (b *BufferedReporter) Close() error {
	return nil
}

// Flush sends all buffered objects to r in the order they were reported.
func (b *BufferedReporter) Flush(r Reporter) {
	b.mu.Lock()
	objs := b.objs
	b.objs = nil
	b.mu.Unlock()
	for _, obj := range objs {
		r.Report(obj)
	}
}

// SyncReporter serialises calls to an underlying reporter.
type SyncReporter struct {
	mu sync.Mutex
	r  Reporter
}

func NewSyncReporter(r Reporter) *SyncReporter {
	return &SyncReporter{r: r}
}

func (s *SyncReporter) Report(obj ReportableObject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.r.Report(obj)
}

// ReportAll flushes b while holding the lock, so no other report can be
// interleaved.
func (s *SyncReporter) ReportAll(b *BufferedReporter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.Flush(s.r)
}

func (s *SyncReporter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Close()
}
