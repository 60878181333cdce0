package models

import (
	"encoding/json"
	"math"
)

// WholeNumber is an integer field sent by browser clients, which may carry a
// fraction (120.5). It is truncated toward zero and clamped to int64.
type WholeNumber int64

func (n *WholeNumber) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	switch {
	case f >= math.MaxInt64:
		*n = math.MaxInt64
	case f <= math.MinInt64:
		*n = math.MinInt64
	default:
		*n = WholeNumber(math.Trunc(f))
	}
	return nil
}

// Int64 returns nil for nil.
func (n *WholeNumber) Int64() *int64 {
	if n == nil {
		return nil
	}
	v := int64(*n)
	return &v
}
