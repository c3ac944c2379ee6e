package inconsistency

import "github.com/ucdmtools/recon/dataset"

type ReportableObject interface{}

// MismatchingField is a field present and comparable on both aligned rows
// but unequal.
type MismatchingField struct {
	Table           string
	Index           dataset.Key
	Field           string
	CanonicalValue  dataset.Value
	ReplicatedValue dataset.Value
}

// ComparisonError is a field which could not be compared at all.
type ComparisonError struct {
	Table string
	Index dataset.Key
	Field string
	Err   error
}

// UnverifiableRow is a canonical row without a usable index value.
type UnverifiableRow struct {
	Table string
	Line  int
}

// DuplicateIndex is an index value which appears more than once in one of
// the datasets.
type DuplicateIndex struct {
	Table  string
	Side   Side
	Index  dataset.Key
	Policy dataset.DuplicatePolicy
}

type Side string

const (
	Canonical  Side = "canonical"
	Replicated Side = "replicated"
)
