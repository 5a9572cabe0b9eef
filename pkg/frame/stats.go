package frame

import (
	"time"

	"github.com/ajitpratap0/quasar/pkg/columnar"
	"github.com/ajitpratap0/quasar/pkg/errors"
)

// Sum adds the valid rows of a numeric column. Int columns sum in integer
// arithmetic before converting.
func Sum(h columnar.Handle) (float64, error) {
	switch c := h.(type) {
	case *columnar.Column[int64]:
		var total int64
		for i := 0; i < c.Len(); i++ {
			if v, ok := c.Get(i); ok {
				total += v
			}
		}
		return float64(total), nil
	case *columnar.Column[float64]:
		var total float64
		for i := 0; i < c.Len(); i++ {
			if v, ok := c.Get(i); ok {
				total += v
			}
		}
		return total, nil
	default:
		return 0, errors.Newf(errors.ErrorTypeUnsupported, "sum over %v column", h.DType())
	}
}

// Mean averages the valid rows of a numeric column. The second result is
// false when the column has no valid rows.
func Mean(h columnar.Handle) (float64, bool, error) {
	valid := h.Len() - h.NullCount()
	if valid == 0 {
		return 0, false, nil
	}
	total, err := Sum(h)
	if err != nil {
		return 0, false, err
	}
	return total / float64(valid), true, nil
}

// MinMax returns the smallest and largest valid values of an ordered
// column (int, float, timestamp, or categorical by string order). The
// third result is false when the column has no valid rows.
func MinMax(h columnar.Handle) (any, any, bool, error) {
	switch c := h.(type) {
	case *columnar.Column[int64]:
		return minMaxOrdered(c)
	case *columnar.Column[float64]:
		return minMaxOrdered(c)
	case *columnar.CategoricalColumn:
		var lo, hi string
		found := false
		for i := 0; i < c.Len(); i++ {
			v, ok := c.Get(i)
			if !ok {
				continue
			}
			if !found {
				lo, hi = v, v
				found = true
				continue
			}
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		if !found {
			return nil, nil, false, nil
		}
		return lo, hi, true, nil
	case *columnar.Column[time.Time]:
		var lo, hi time.Time
		found := false
		for i := 0; i < c.Len(); i++ {
			v, ok := c.Get(i)
			if !ok {
				continue
			}
			if !found {
				lo, hi = v, v
				found = true
				continue
			}
			if v.Before(lo) {
				lo = v
			}
			if v.After(hi) {
				hi = v
			}
		}
		if !found {
			return nil, nil, false, nil
		}
		return lo, hi, true, nil
	default:
		return nil, nil, false, errors.Newf(errors.ErrorTypeUnsupported,
			"min/max over %v column", h.DType())
	}
}

func minMaxOrdered[T int64 | float64](c *columnar.Column[T]) (any, any, bool, error) {
	var lo, hi T
	found := false
	for i := 0; i < c.Len(); i++ {
		v, ok := c.Get(i)
		if !ok {
			continue
		}
		if !found {
			lo, hi = v, v
			found = true
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if !found {
		return nil, nil, false, nil
	}
	return lo, hi, true, nil
}
