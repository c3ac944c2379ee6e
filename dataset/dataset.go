package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrDuplicateIndex is returned (wrapped in a LoadError) when the Reject
// duplicate policy sees the same index twice.
var ErrDuplicateIndex = errors.New("duplicate index value")

// DuplicatePolicy decides which record Lookup returns for a repeated index.
type DuplicatePolicy int

const (
	LastWins DuplicatePolicy = iota
	FirstWins
	Reject
)

func (p DuplicatePolicy) String() string {
	switch p {
	case FirstWins:
		return "first"
	case Reject:
		return "reject"
	}
	return "last"
}

// ParseDuplicatePolicy maps "last", "first" and "reject" to a policy.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch strings.ToLower(s) {
	case "last", "":
		return LastWins, nil
	case "first":
		return FirstWins, nil
	case "reject":
		return Reject, nil
	}
	return LastWins, errors.Newf("unknown duplicate index policy %q", s)
}

// LoadError is returned when a dataset cannot be read or parsed.
type LoadError struct {
	Name string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("error loading dataset %s: %s", e.Name, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Record is one row of a dataset.
type Record struct {
	// Line is the 1-based data row number, not counting the header.
	Line     int
	Index    Key
	hasIndex bool
	values   map[string]Value
}

// NewRecord builds a record from already classified values. Field names are
// lowercased.
func NewRecord(line int, index Key, hasIndex bool, values map[string]Value) Record {
	lowered := make(map[string]Value, len(values))
	for k, v := range values {
		lowered[strings.ToLower(k)] = v
	}
	return Record{Line: line, Index: index, hasIndex: hasIndex, values: lowered}
}

func (r Record) HasIndex() bool {
	return r.hasIndex
}

// Get returns the value of a field, and whether the record has the field.
func (r Record) Get(field string) (Value, bool) {
	v, ok := r.values[strings.ToLower(field)]
	return v, ok
}

// Dataset is a CSV extract keyed by an index column.
type Dataset struct {
	Name       string
	IndexField string
	// Header holds the lowercased column names in file order.
	Header  []string
	Records []Record
	// Duplicates lists repeated index keys in the order they were first seen
	// repeated.
	Duplicates []Key
	Policy     DuplicatePolicy

	lookup map[Key]int
}

func (d *Dataset) Len() int {
	return len(d.Records)
}

// Lookup finds the record for an index key.
func (d *Dataset) Lookup(k Key) (Record, bool) {
	idx, ok := d.lookup[k]
	if !ok {
		return Record{}, false
	}
	return d.Records[idx], true
}

// HasField reports whether the header contains the given column.
func (d *Dataset) HasField(field string) bool {
	field = strings.ToLower(field)
	for _, h := range d.Header {
		if h == field {
			return true
		}
	}
	return false
}

type LoadOpt func(*loadOpts)

type loadOpts struct {
	name      string
	policy    DuplicatePolicy
	delimiter rune
	naValues  map[string]struct{}
}

// DefaultNAValues are the cell texts, besides the empty cell, that load as
// missing. They match the tokens pandas treats as NA by default.
var DefaultNAValues = []string{
	"#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None",
	"n/a", "nan", "null",
}

func naSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}

func (o loadOpts) parseCell(s string) Value {
	if _, ok := o.naValues[s]; ok {
		return Missing()
	}
	return ParseValue(s)
}

func WithName(name string) LoadOpt {
	return func(o *loadOpts) {
		o.name = name
	}
}

func WithDuplicatePolicy(p DuplicatePolicy) LoadOpt {
	return func(o *loadOpts) {
		o.policy = p
	}
}

// WithNAValues replaces DefaultNAValues. Matching is exact and case
// sensitive. With no tokens only empty cells are missing.
func WithNAValues(tokens ...string) LoadOpt {
	return func(o *loadOpts) {
		o.naValues = naSet(tokens)
	}
}

func WithDelimiter(r rune) LoadOpt {
	return func(o *loadOpts) {
		o.delimiter = r
	}
}

// Load parses a delimited file with a header row into a Dataset indexed by
// indexField.
func Load(r io.Reader, indexField string, inOpts ...LoadOpt) (*Dataset, error) {
	opts := loadOpts{
		name:      "<reader>",
		policy:    LastWins,
		delimiter: ',',
		naValues:  naSet(DefaultNAValues),
	}
	for _, applyOpt := range inOpts {
		applyOpt(&opts)
	}
	ds, err := load(r, indexField, opts)
	if err != nil {
		return nil, &LoadError{Name: opts.name, Err: err}
	}
	return ds, nil
}

func load(r io.Reader, indexField string, opts loadOpts) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.Comma = opts.delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.Newf("missing header row")
		}
		return nil, errors.Wrap(err, "error reading header")
	}
	seen := make(map[string]struct{}, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, ok := seen[h]; ok {
			return nil, errors.Newf("duplicate column %q in header", h)
		}
		seen[h] = struct{}{}
		header[i] = h
	}
	indexField = strings.ToLower(indexField)
	indexCol := -1
	for i, h := range header {
		if h == indexField {
			indexCol = i
			break
		}
	}
	if indexCol == -1 {
		return nil, errors.Newf("index column %q not found in header", indexField)
	}

	ds := &Dataset{
		Name:       opts.name,
		IndexField: indexField,
		Header:     header,
		Policy:     opts.policy,
		lookup:     make(map[Key]int),
	}
	duplicated := make(map[Key]struct{})
	for line := 1; ; line++ {
		row, err := cr.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrapf(err, "error reading row %d", line)
		}
		if len(row) > len(header) {
			return nil, errors.Newf("row %d has %d fields, header has %d", line, len(row), len(header))
		}
		rec := Record{Line: line, values: make(map[string]Value, len(header))}
		for i, col := range header {
			if i < len(row) {
				rec.values[col] = opts.parseCell(row[i])
			} else {
				rec.values[col] = Missing()
			}
		}
		if indexCol < len(row) && !rec.values[header[indexCol]].IsMissing() {
			rec.Index, rec.hasIndex = CoerceKey(row[indexCol])
		}
		pos := len(ds.Records)
		ds.Records = append(ds.Records, rec)
		if !rec.hasIndex {
			continue
		}
		if _, ok := ds.lookup[rec.Index]; ok {
			if opts.policy == Reject {
				return nil, errors.Wrapf(ErrDuplicateIndex, "%s=%s on row %d", indexField, rec.Index, line)
			}
			if _, ok := duplicated[rec.Index]; !ok {
				duplicated[rec.Index] = struct{}{}
				ds.Duplicates = append(ds.Duplicates, rec.Index)
			}
			if opts.policy == FirstWins {
				continue
			}
		}
		ds.lookup[rec.Index] = pos
	}
	return ds, nil
}

// Source is anything datasets can be read from by name.
type Source interface {
	Reader(ctx context.Context, key string) (io.ReadCloser, error)
}

// LoadFrom loads the named dataset from src.
func LoadFrom(
	ctx context.Context, src Source, name string, indexField string, inOpts ...LoadOpt,
) (*Dataset, error) {
	rc, err := src.Reader(ctx, name)
	if err != nil {
		return nil, &LoadError{Name: name, Err: err}
	}
	ds, err := Load(rc, indexField, append([]LoadOpt{WithName(name)}, inOpts...)...)
	if closeErr := rc.Close(); err == nil && closeErr != nil {
		return nil, &LoadError{Name: name, Err: closeErr}
	}
	return ds, err
}
