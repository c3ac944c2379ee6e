package inconsistency

// TableStart marks the beginning of a table comparison.
type TableStart struct {
	Table string
}

// RowCountSummary holds the number of rows on each side.
type RowCountSummary struct {
	Table      string
	Canonical  int
	Replicated int
}

// EmptyTable is reported instead of any row comparison when at least one
// side has no rows.
type EmptyTable struct {
	Table string
}

// RowCountDifference is reported when both sides have rows but not the same
// number of them.
type RowCountDifference struct {
	Table      string
	Canonical  int
	Replicated int
}

// Diff is the signed difference, positive when canonical has more rows.
func (d RowCountDifference) Diff() int {
	return d.Canonical - d.Replicated
}

// LoadFailure is reported when a table cannot be compared because one of its
// datasets failed to load.
type LoadFailure struct {
	Table string
	Err   error
}

type StatusReport struct {
	Info string
}
