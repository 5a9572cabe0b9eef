package columnar

import (
	"github.com/ajitpratap0/quasar/pkg/errors"
)

// DType identifies the semantic type of a column. The set is closed:
// adding a type means adding a column variant, never subclassing.
type DType uint8

const (
	DTypeInt DType = iota
	DTypeFloat
	DTypeBool
	DTypeTimestamp
	DTypeCategorical
)

// String returns the lowercase name used in schemas, configs, and errors.
func (t DType) String() string {
	switch t {
	case DTypeInt:
		return "int"
	case DTypeFloat:
		return "float"
	case DTypeBool:
		return "bool"
	case DTypeTimestamp:
		return "timestamp"
	case DTypeCategorical:
		return "categorical"
	default:
		return "unknown"
	}
}

// ParseDType parses the string form produced by String.
// "string" is accepted as an alias for categorical.
func ParseDType(s string) (DType, error) {
	switch s {
	case "int":
		return DTypeInt, nil
	case "float":
		return DTypeFloat, nil
	case "bool":
		return DTypeBool, nil
	case "timestamp":
		return DTypeTimestamp, nil
	case "categorical", "string":
		return DTypeCategorical, nil
	default:
		return 0, errors.Newf(errors.ErrorTypeConfig, "unknown dtype %q", s)
	}
}
