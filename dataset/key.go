package dataset

import "github.com/cockroachdb/apd/v3"

// Key is a normalised index value. Numerically equal indexes ("1", "1.0",
// "1e0") share a key.
type Key string

// CoerceKey converts a raw index cell into a Key. It returns false when the
// cell is empty or not a finite number.
func CoerceKey(raw string) (Key, bool) {
	d, ok := parseDecimal(raw)
	if !ok {
		return "", false
	}
	if d.IsZero() {
		return "0", true
	}
	var reduced apd.Decimal
	reduced.Reduce(d)
	return Key(reduced.Text('f')), true
}

func (k Key) String() string {
	return string(k)
}
