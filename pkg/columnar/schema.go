package columnar

import (
	"github.com/ajitpratap0/quasar/pkg/errors"
	stringpool "github.com/ajitpratap0/quasar/pkg/strings"
)

// Field names one column and fixes its dtype.
type Field struct {
	Name  string
	DType DType
}

// Schema is an ordered, immutable set of uniquely named fields. Tables and
// batches agree on column identity through it.
type Schema struct {
	fields []Field
	byName map[string]int
}

// NewSchema builds a schema from fields, rejecting empty and duplicate
// names.
func NewSchema(fields []Field) (*Schema, error) {
	s := &Schema{
		fields: make([]Field, len(fields)),
		byName: make(map[string]int, len(fields)),
	}
	copy(s.fields, fields)
	for i, f := range s.fields {
		if f.Name == "" {
			return nil, errors.Newf(errors.ErrorTypeSchemaMismatch,
				"field %d has an empty name", i)
		}
		if prev, dup := s.byName[f.Name]; dup {
			return nil, errors.Newf(errors.ErrorTypeSchemaMismatch,
				"duplicate column %q at fields %d and %d", f.Name, prev, i)
		}
		s.byName[f.Name] = i
	}
	return s, nil
}

// MustSchema builds a schema from name/dtype pairs, panicking on invalid
// input. Intended for tests and fixed literals.
func MustSchema(fields ...Field) *Schema {
	s, err := NewSchema(fields)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of fields.
func (s *Schema) Len() int { return len(s.fields) }

// Fields returns the fields in declaration order. The slice is shared:
// treat it as read-only.
func (s *Schema) Fields() []Field { return s.fields }

// Field returns the field at position i.
func (s *Schema) Field(i int) Field { return s.fields[i] }

// Index returns the position of the named field.
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.byName[name]
	return i, ok
}

// Lookup returns the named field.
func (s *Schema) Lookup(name string) (Field, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Has reports whether the schema contains the named field.
func (s *Schema) Has(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// Names returns the field names in declaration order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Project returns a new schema holding the named fields in the order
// given, failing with UnknownColumn for names the schema lacks. Duplicate
// names in the projection are rejected the same way NewSchema rejects
// them.
func (s *Schema) Project(names []string) (*Schema, error) {
	fields := make([]Field, 0, len(names))
	for _, name := range names {
		f, ok := s.Lookup(name)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeUnknownColumn,
				"no column named %q", name)
		}
		fields = append(fields, f)
	}
	return NewSchema(fields)
}

// Equal reports whether both schemas hold the same fields in the same
// order.
func (s *Schema) Equal(other *Schema) bool {
	if other == nil || len(s.fields) != len(other.fields) {
		return false
	}
	for i, f := range s.fields {
		if other.fields[i] != f {
			return false
		}
	}
	return true
}

// String renders the schema as "name:dtype, ..." for logs and errors.
func (s *Schema) String() string {
	b := stringpool.GetBuilder(stringpool.Small)
	defer stringpool.PutBuilder(b, stringpool.Small)
	for i, f := range s.fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Name)
		b.WriteString(":")
		b.WriteString(f.DType.String())
	}
	// The builder returns to the pool, so the result must own its bytes.
	return stringpool.Clone(b.String())
}
