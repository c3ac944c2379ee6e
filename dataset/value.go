package dataset

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// NoData is how the missing sentinel is rendered in reports.
const NoData = "NoData"

type Kind uint8

const (
	// KindInvalid is the zero Kind. Values of this kind cannot be compared.
	KindInvalid Kind = iota
	KindMissing
	KindNumeric
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindNumeric:
		return "numeric"
	case KindText:
		return "text"
	}
	return "invalid"
}

// Value is a single field value, classified once at load time.
type Value struct {
	kind Kind
	raw  string
	dec  *apd.Decimal
	num  float64
}

// Missing returns the no-data sentinel.
func Missing() Value {
	return Value{kind: KindMissing}
}

// Text returns a value which is compared as an exact string.
func Text(s string) Value {
	return Value{kind: KindText, raw: s}
}

// ParseValue classifies a raw CSV cell. Empty cells are missing, finite
// decimal numbers (surrounding whitespace allowed) are numeric and
// everything else is text.
func ParseValue(s string) Value {
	if s == "" {
		return Missing()
	}
	if d, ok := parseDecimal(s); ok {
		f, err := d.Float64()
		if err == nil {
			return Value{kind: KindNumeric, raw: s, dec: d, num: f}
		}
	}
	return Text(s)
}

func parseDecimal(s string) (*apd.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	d, _, err := apd.NewFromString(s)
	if err != nil || d.Form != apd.Finite {
		return nil, false
	}
	return d, true
}

func (v Value) Kind() Kind {
	return v.kind
}

// Raw returns the text the value was parsed from.
func (v Value) Raw() string {
	return v.raw
}

// Decimal returns the exact decimal of a numeric value, or nil.
func (v Value) Decimal() *apd.Decimal {
	return v.dec
}

// Float returns the float64 of a numeric value and whether it is numeric.
func (v Value) Float() (float64, bool) {
	return v.num, v.kind == KindNumeric
}

func (v Value) IsMissing() bool {
	return v.kind == KindMissing
}

// String renders the value for reports. Text that reads as the missing
// sentinel is quoted so the two stay distinguishable.
func (v Value) String() string {
	switch v.kind {
	case KindMissing:
		return NoData
	case KindInvalid:
		return "<invalid>"
	case KindText:
		if v.raw == NoData {
			return strconv.Quote(v.raw)
		}
	}
	return v.raw
}
