package fields

import (
	"fmt"

	"github.com/mitjajez/nodewatcher/errors"
)

// Schema is the ordered set of fields a descriptor declares for its domain
// object. Fields are added once, at schema-definition time; adding assigns
// the field its name. The schema preserves declaration order so a monitoring
// pass always walks fields the same way.
//
// Schema is not safe for concurrent mutation; declare it fully before
// handing it to descriptors.
type Schema struct {
	order  []string
	byName map[string]Field
}

// NewSchema creates an empty schema.
func NewSchema() *Schema {
	return &Schema{byName: make(map[string]Field)}
}

// Add declares a field under the given name. The name is assigned to the
// field exactly once; re-adding a field that already carries a name, or
// reusing a name within the schema, is a configuration error.
func (s *Schema) Add(name string, field Field) error {
	if name == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "fields", "Add", "field name cannot be empty")
	}
	if field == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "fields", "Add",
			fmt.Sprintf("field %q cannot be nil", name))
	}
	if _, exists := s.byName[name]; exists {
		return errors.WrapInvalid(errors.ErrInvalidData, "fields", "Add",
			fmt.Sprintf("field %q already declared", name))
	}
	if err := field.setName(name); err != nil {
		return err
	}
	s.order = append(s.order, name)
	s.byName[name] = field
	return nil
}

// MustAdd is Add for static schema declarations; it panics on a declaration
// error, which can only be a programming mistake.
func (s *Schema) MustAdd(name string, field Field) *Schema {
	if err := s.Add(name, field); err != nil {
		panic(err)
	}
	return s
}

// Field returns the field declared under name.
func (s *Schema) Field(name string) (Field, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// Names returns the declared field names in declaration order.
func (s *Schema) Names() []string {
	return append([]string(nil), s.order...)
}

// Len returns the number of declared fields.
func (s *Schema) Len() int {
	return len(s.order)
}

// Walk calls fn for every field in declaration order, stopping at the first
// error.
func (s *Schema) Walk(fn func(name string, field Field) error) error {
	for _, name := range s.order {
		if err := fn(name, s.byName[name]); err != nil {
			return err
		}
	}
	return nil
}
