package value

import "strings"

// Field is a single key/value pair of a Doc, in insertion order.
type Field struct {
	Key   string
	Value Value
}

// Doc is an ordered mapping from string keys to Values: insertion order is
// preserved, keys are unique and case-sensitive (spec.md §3.1).
type Doc struct {
	fields []Field
	index  map[string]int
}

// NewDoc creates an empty ordered document.
func NewDoc() *Doc {
	return &Doc{index: make(map[string]int)}
}

// DocOf builds a Doc from key/value pairs supplied in order, for tests and
// literal construction.
func DocOf(pairs ...Field) (*Doc, error) {
	d := NewDoc()
	for _, p := range pairs {
		if err := d.Set(p.Key, p.Value); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Set inserts or replaces a field. Replacing an existing key keeps its
// original position. Rejects keys containing the NUL character, per the
// invariant in spec.md §3.1.
func (d *Doc) Set(key string, v Value) error {
	if strings.ContainsRune(key, 0) {
		return errInvalidNullCharInKey(key)
	}
	if i, ok := d.index[key]; ok {
		d.fields[i].Value = v
		return nil
	}
	d.index[key] = len(d.fields)
	d.fields = append(d.fields, Field{Key: key, Value: v})
	return nil
}

// Get looks up a field by key.
func (d *Doc) Get(key string) (Value, bool) {
	if d == nil {
		return NewNull(), false
	}
	i, ok := d.index[key]
	if !ok {
		return NewNull(), false
	}
	return d.fields[i].Value, true
}

// GetOrNull returns the field's value, or Null when absent — the scalar
// path-navigation semantics of spec.md §4.3.
func (d *Doc) GetOrNull(key string) Value {
	v, ok := d.Get(key)
	if !ok {
		return NewNull()
	}
	return v
}

// Len returns the number of fields.
func (d *Doc) Len() int {
	if d == nil {
		return 0
	}
	return len(d.fields)
}

// Fields returns the fields in insertion order. Callers must not mutate
// the returned slice's Values in place across goroutines; compiled
// expressions treat documents as read-only once constructed.
func (d *Doc) Fields() []Field {
	if d == nil {
		return nil
	}
	return d.fields
}

// Keys returns the field keys in insertion order.
func (d *Doc) Keys() []string {
	keys := make([]string, d.Len())
	for i, f := range d.Fields() {
		keys[i] = f.Key
	}
	return keys
}

// KeyAt returns the key of the i-th field, or false when i is out of
// range. Positional parameter references like @0 resolve through ValueAt.
func (d *Doc) KeyAt(i int) (string, bool) {
	if d == nil || i < 0 || i >= len(d.fields) {
		return "", false
	}
	return d.fields[i].Key, true
}

// ValueAt returns the value of the i-th field.
func (d *Doc) ValueAt(i int) (Value, bool) {
	if d == nil || i < 0 || i >= len(d.fields) {
		return NewNull(), false
	}
	return d.fields[i].Value, true
}
