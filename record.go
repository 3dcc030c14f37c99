// Copyright (c) 2024 Neomantra Corp

package pkt

import "fmt"

// Typed is an optional interface a Record implementation can satisfy to
// report which Schema it was built from. The Encoder and Size Oracle use it
// to select the correct alternative when a ChildSlot declares more than one
// candidate sub-schema; Go has no dynamic-type registry for declared
// schemas the way a class hierarchy would, so the record must self-report.
// MapRecord implements this automatically.
type Typed interface {
	SchemaName() string
}

// MapRecord is a generic Record backed by a map[string]any -- the nearest
// Go idiom to a dynamically-constructed dataclass instance. It is what
// Decode hands back by default, and what callers may use directly instead
// of hand-writing a named struct per schema.
type MapRecord struct {
	schema string
	values map[string]any
}

// NewMapRecord builds a MapRecord tagged with the given schema name.
func NewMapRecord(schemaName string, values map[string]any) *MapRecord {
	if values == nil {
		values = make(map[string]any)
	}
	return &MapRecord{schema: schemaName, values: values}
}

func (r *MapRecord) Field(name string) (any, error) {
	v, ok := r.values[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return v, nil
}

func (r *MapRecord) SchemaName() string { return r.schema }

// Values returns the backing map. Callers must not mutate it concurrently
// with an in-flight Encode/CalcSize call.
func (r *MapRecord) Values() map[string]any { return r.values }

// MapConstructor is a Constructor that builds a MapRecord tagged with
// schemaName. Most declarative (non-hand-written) schemas use this as
// their Constructor.
func MapConstructor(schemaName string) Constructor {
	return func(values map[string]any) (Record, error) {
		return NewMapRecord(schemaName, values), nil
	}
}

// asRecordSlice adapts a ChildSlot list attribute's value to []Record. List
// attributes must be declared as []pkt.Record (or []*pkt.MapRecord, which
// satisfies the same requirement through a thin conversion helper) since Go
// has no covariant slice type to accept arbitrary concrete element types.
func asRecordSlice(v any) ([]Record, error) {
	switch items := v.(type) {
	case []Record:
		return items, nil
	case []*MapRecord:
		out := make([]Record, len(items))
		for i, it := range items {
			out[i] = it
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: child attribute must be []pkt.Record or []*pkt.MapRecord", ErrUnknownField)
	}
}

// selectAlternativeByValue picks the alternative Schema matching item's
// dynamic type, per the ChildSlot's declared alternatives.
func (c *childSlot) selectAlternativeByValue(item Record) (*Schema, error) {
	if len(c.alternatives) == 1 {
		return c.alternatives[0], nil
	}
	t, ok := item.(Typed)
	if !ok {
		return nil, fmt.Errorf("%w: record does not implement pkt.Typed", ErrChildTypeNotInAlternatives)
	}
	for _, alt := range c.alternatives {
		if alt.Name() == t.SchemaName() {
			return alt, nil
		}
	}
	return nil, fmt.Errorf("%w: schema %q", ErrChildTypeNotInAlternatives, t.SchemaName())
}

// dispatchByPrefix selects the alternative Schema matching the bytes at
// buf[off:limit], without advancing past them.
func dispatchByPrefix(c *childSlot, buf []byte, off int, limit int) (*Schema, error) {
	if len(c.alternatives) == 1 {
		return c.alternatives[0], nil
	}
	for _, entry := range c.dispatch {
		end := off + len(entry.prefix)
		if end > limit || end > len(buf) {
			continue
		}
		if bytesEqual(buf[off:end], entry.prefix) {
			return entry.schema, nil
		}
	}
	return nil, ErrNoMatchingAlternative
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
