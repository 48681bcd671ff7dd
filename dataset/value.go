package dataset

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Value is one numeric cell of a record. A missing value is distinct from
// zero: arithmetic stages decide how to resolve it.
type Value struct {
	v  float64
	ok bool
}

// Num returns a present value. NaN is treated as missing.
func Num(f float64) Value {
	if math.IsNaN(f) {
		return Value{}
	}
	return Value{v: f, ok: true}
}

// Missing returns the missing value.
func Missing() Value {
	return Value{}
}

// Float returns the number and whether it is present.
func (v Value) Float() (float64, bool) {
	return v.v, v.ok
}

// OrZero returns the number, or 0 when missing.
func (v Value) OrZero() float64 {
	if !v.ok {
		return 0
	}
	return v.v
}

// IsMissing reports whether the value is missing.
func (v Value) IsMissing() bool {
	return !v.ok
}

func (v Value) String() string {
	if !v.ok {
		return "NaN"
	}
	return strconv.FormatFloat(v.v, 'g', -1, 64)
}

// MarshalJSON writes a number, or the string "NaN" for a missing value.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.ok {
		return []byte(`"NaN"`), nil
	}
	return json.Marshal(v.v)
}

// UnmarshalJSON accepts a number, a boolean (as 0/1), null or "NaN".
// Any other string yields an *NonNumericError.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = Missing()
		return nil
	case bytes.Equal(data, []byte("true")):
		*v = Num(1)
		return nil
	case bytes.Equal(data, []byte("false")):
		*v = Num(0)
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "NaN" || s == "nan" || s == "" {
			*v = Missing()
			return nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			*v = Num(f)
			return nil
		}
		return &NonNumericError{Raw: s}
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Num(f)
	return nil
}

// NonNumericError reports a cell holding text, such as email_address.
type NonNumericError struct {
	Raw string
}

func (e *NonNumericError) Error() string {
	return "non-numeric value " + strconv.Quote(e.Raw)
}
