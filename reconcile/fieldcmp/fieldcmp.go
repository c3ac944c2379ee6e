// Package fieldcmp compares individual field values of two aligned records.
//
// Every comparison produces a Result instead of failing: a field that cannot
// be compared yields an Error outcome and never aborts the row.
package fieldcmp

import (
	"fmt"
	"math"

	"github.com/ucdmtools/recon/dataset"
)

const (
	DefaultRelTol = 1e-5
	DefaultAbsTol = 1e-8
)

type Outcome int

const (
	Match Outcome = iota
	Mismatch
	Error
)

func (o Outcome) String() string {
	switch o {
	case Match:
		return "match"
	case Mismatch:
		return "mismatch"
	}
	return "error"
}

// Result is the outcome of comparing one field. Err is set iff Outcome is
// Error.
type Result struct {
	Outcome Outcome
	Err     error
}

// FieldComparisonError describes why a field could not be compared.
type FieldComparisonError struct {
	Field  string
	Reason string
}

func (e *FieldComparisonError) Error() string {
	return fmt.Sprintf("cannot compare field %q: %s", e.Field, e.Reason)
}

// Comparator compares values. Two numbers are equal when
// |a-b| <= AbsTol + RelTol*max(|a|, |b|).
type Comparator struct {
	RelTol float64
	AbsTol float64
}

func DefaultComparator() Comparator {
	return Comparator{RelTol: DefaultRelTol, AbsTol: DefaultAbsTol}
}

// CompareField compares a field of the canonical record against the same
// field of the replicated record.
func (c Comparator) CompareField(field string, canonical, replicated dataset.Record) Result {
	cv, ok := canonical.Get(field)
	if !ok {
		return errorResult(field, "field missing from canonical record")
	}
	rv, ok := replicated.Get(field)
	if !ok {
		return errorResult(field, "field missing from replicated record")
	}
	r := c.Compare(cv, rv)
	if r.Outcome == Error {
		if fe, ok := r.Err.(*FieldComparisonError); ok {
			fe.Field = field
		}
	}
	return r
}

// Compare compares a canonical value against a replicated value.
func (c Comparator) Compare(canonical, replicated dataset.Value) Result {
	if canonical.Kind() == dataset.KindInvalid || replicated.Kind() == dataset.KindInvalid {
		return errorResult(
			"",
			fmt.Sprintf("incomparable values (%s, %s)", canonical.Kind(), replicated.Kind()),
		)
	}
	if canonical.Kind() == dataset.KindNumeric && replicated.Kind() == dataset.KindNumeric {
		if c.numericEqual(canonical, replicated) {
			return Result{Outcome: Match}
		}
		return Result{Outcome: Mismatch}
	}
	if canonical.IsMissing() || replicated.IsMissing() {
		if canonical.IsMissing() && replicated.IsMissing() {
			return Result{Outcome: Match}
		}
		return Result{Outcome: Mismatch}
	}
	if canonical.Raw() == replicated.Raw() {
		return Result{Outcome: Match}
	}
	return Result{Outcome: Mismatch}
}

func (c Comparator) numericEqual(a, b dataset.Value) bool {
	if a.Decimal().Cmp(b.Decimal()) == 0 {
		return true
	}
	af, _ := a.Float()
	bf, _ := b.Float()
	return Close(af, bf, c.RelTol, c.AbsTol)
}

// Close reports whether a and b are within the given tolerances.
func Close(a, b, relTol, absTol float64) bool {
	if a == b {
		return true
	}
	if math.IsNaN(a) || math.IsNaN(b) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return false
	}
	return math.Abs(a-b) <= absTol+relTol*math.Max(math.Abs(a), math.Abs(b))
}

func errorResult(field, reason string) Result {
	return Result{Outcome: Error, Err: &FieldComparisonError{Field: field, Reason: reason}}
}
