package entity

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// registry maps a concrete entity type to its *Schema.
var registry sync.Map

// Schema is the field registry of one entity type. It builds records from raw
// data and derives their serialization views.
type Schema[T Record] struct {
	table  string
	newFn  func() T
	fields []Field[T]
	now    func() time.Time

	once  sync.Once
	names []string
}

// Register declares the fields of T and records the schema for Lookup.
// It is meant to run once per type at program start; registering a type twice
// panics, as does any invalid declaration (see Define).
func Register[T Record](table string, newFn func() T, fields ...Field[T]) *Schema[T] {
	s := Define(table, newFn, fields...)
	if _, loaded := registry.LoadOrStore(reflect.TypeOf((*T)(nil)).Elem(), s); loaded {
		panic(fmt.Sprintf("entity: %s registered twice", reflect.TypeOf((*T)(nil)).Elem()))
	}
	return s
}

// Lookup returns the schema registered for T.
func Lookup[T Record]() (*Schema[T], bool) {
	v, ok := registry.Load(reflect.TypeOf((*T)(nil)).Elem())
	if !ok {
		return nil, false
	}
	return v.(*Schema[T]), true
}

// Define builds a schema for T without registering it. It panics on an empty
// table name, a nil constructor, an empty, duplicate or system field name,
// or a field named "...Date" that does not hold a timestamp.
func Define[T Record](table string, newFn func() T, fields ...Field[T]) *Schema[T] {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if table == "" {
		panic(fmt.Sprintf("entity: %s has no table name", typ))
	}
	if newFn == nil {
		panic(fmt.Sprintf("entity: %s has no constructor", typ))
	}

	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		switch {
		case f.name == "" || f.set == nil:
			panic(fmt.Sprintf("entity: %s declares an empty field", typ))
		case isSystemField(f.name):
			panic(fmt.Sprintf("entity: %s redeclares system field %q", typ, f.name))
		case seen[f.name]:
			panic(fmt.Sprintf("entity: %s declares field %q twice", typ, f.name))
		case isDateField(f.name) && !f.date:
			panic(fmt.Sprintf("entity: %s field %q must hold a timestamp", typ, f.name))
		}
		seen[f.name] = true
	}

	return &Schema[T]{
		table:  table,
		newFn:  newFn,
		fields: slices.Clone(fields),
		now:    defaultClock,
	}
}

// WithClock returns a copy of the schema that reads the current time from now.
func (s *Schema[T]) WithClock(now func() time.Time) *Schema[T] {
	c := Define(s.table, s.newFn, s.fields...)
	c.now = func() time.Time { return now().UTC() }
	return c
}

// Table returns the store table the entity lives in.
func (s *Schema[T]) Table() string {
	return s.table
}

// Fields returns the visible field names: the system fields followed by the
// declared fields in order. The list is built on first use and cached.
func (s *Schema[T]) Fields() []string {
	s.once.Do(s.build)
	return slices.Clone(s.names)
}

func (s *Schema[T]) build() {
	names := make([]string, 0, len(systemFields)+len(s.fields))
	names = append(names, systemFields...)
	for _, f := range s.fields {
		names = append(names, f.name)
	}
	s.names = names
}

// New builds a record from data. Keys that are not visible fields are
// ignored. System fields missing from data get defaults: no id, and the
// current time for both dates. A present id must be positive.
func (s *Schema[T]) New(data Data) (T, error) {
	var zero T

	rec := s.newFn()
	data = preProcess(rec, data)

	var id *int64
	if raw, ok := data[FieldID]; ok && raw != nil {
		v, err := convert[int64](raw)
		if err == nil && v <= 0 {
			err = fmt.Errorf("%w: id must be positive, got %d", ErrFieldType, v)
		}
		if err != nil {
			return zero, &FieldError{Field: FieldID, Value: raw, Err: err}
		}
		id = &v
	}
	created, err := s.systemDate(data, FieldCreatedDate)
	if err != nil {
		return zero, err
	}
	modified, err := s.systemDate(data, FieldModifiedDate)
	if err != nil {
		return zero, err
	}

	b := rec.base()
	b.id = id
	b.createdDate = created
	b.modifiedDate = modified

	if err := s.assign(rec, data); err != nil {
		return zero, err
	}
	return rec, nil
}

// Set assigns data to rec in place and returns rec. System fields and
// unknown keys are ignored. On error, fields preceding the failing one keep
// their new values.
func (s *Schema[T]) Set(rec T, data Data) (T, error) {
	data = preProcess(rec, data)
	return rec, s.assign(rec, data)
}

func (s *Schema[T]) systemDate(data Data, name string) (time.Time, error) {
	raw, ok := data[name]
	if !ok || raw == nil {
		return s.now(), nil
	}
	t, ok, err := parseTime(raw)
	if err != nil {
		return time.Time{}, &FieldError{Field: name, Value: raw, Err: err}
	}
	if !ok {
		return s.now(), nil
	}
	return t, nil
}

func (s *Schema[T]) assign(rec T, data Data) error {
	for _, f := range s.fields {
		raw, ok := data[f.name]
		if !ok {
			continue
		}
		if err := f.set(rec, raw); err != nil {
			return &FieldError{Field: f.name, Value: raw, Err: err}
		}
	}
	return nil
}

func preProcess(rec any, data Data) Data {
	p, ok := rec.(PreProcessor)
	if !ok {
		return data
	}
	out := p.PreProcess(maps.Clone(data))
	if out == nil {
		return Data{}
	}
	return out
}

// ToMap returns every visible field with its typed value. id is nil for
// records that were never stored.
func (s *Schema[T]) ToMap(rec T) *Map {
	s.once.Do(s.build)

	b := rec.base()
	m := newMap(len(s.names))

	var id any
	if b.id != nil {
		id = *b.id
	}
	m.set(FieldID, id)
	m.set(FieldCreatedDate, b.createdDate)
	m.set(FieldModifiedDate, b.modifiedDate)
	for _, f := range s.fields {
		m.set(f.name, f.get(rec))
	}
	return m
}

// ToTransport returns the ToMap view with timestamps rendered in DateLayout
// and decimals rendered as text.
func (s *Schema[T]) ToTransport(rec T) *Map {
	return render(s.ToMap(rec))
}

// ToStoreWrite returns the view handed to the store write path: id is
// dropped, modifiedDate is set to the current time and values are rendered
// as in ToTransport. rec itself is left untouched.
func (s *Schema[T]) ToStoreWrite(rec T) *Map {
	m := s.ToMap(rec)
	m.delete(FieldID)
	if m.Has(FieldModifiedDate) {
		m.set(FieldModifiedDate, s.now())
	}
	return render(m)
}

func render(m *Map) *Map {
	out := newMap(m.Len())
	for _, k := range m.keys {
		out.set(k, renderValue(m.values[k]))
	}
	return out
}

func renderValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(DateLayout)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC().Format(DateLayout)
	case decimal.Decimal:
		return t.String()
	default:
		return v
	}
}
