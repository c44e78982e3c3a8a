// Package entity provides the record model shared by every domain entity.
//
// A concrete entity embeds Base and declares its fields once with Register.
// The resulting Schema builds records from raw field mappings (request
// payloads, stored rows, partial patches) and derives the three
// serialization views: the typed map, the transport map and the
// store-write map.
package entity

import (
	"strings"
	"time"
)

// DateLayout is the wire format of every timestamp. Timestamps are always UTC.
const DateLayout = "2006-01-02 15:04:05"

// System field names. They are part of every schema and cannot be mutated
// after construction.
const (
	FieldID           = "id"
	FieldCreatedDate  = "createdDate"
	FieldModifiedDate = "modifiedDate"
)

const dateSuffix = "Date"

var systemFields = []string{FieldID, FieldCreatedDate, FieldModifiedDate}

// Data is a raw field mapping keyed by field name.
type Data map[string]any

// Record is implemented by any type that embeds Base.
type Record interface {
	ID() int64
	HasID() bool
	CreatedDate() time.Time
	ModifiedDate() time.Time
	base() *Base
}

// PreProcessor is implemented by entities that reshape raw data before
// fields are assigned, e.g. to derive computed fields or fill defaults.
// It runs on both construction and mutation.
type PreProcessor interface {
	PreProcess(data Data) Data
}

// Base holds the system fields of a record.
type Base struct {
	id           *int64
	createdDate  time.Time
	modifiedDate time.Time
}

func (b *Base) base() *Base { return b }

// ID returns the identity assigned by the store, or 0 if the record was
// never stored.
func (b *Base) ID() int64 {
	if b.id == nil {
		return 0
	}
	return *b.id
}

// HasID reports whether the record carries a stored identity.
func (b *Base) HasID() bool {
	return b.id != nil
}

func (b *Base) CreatedDate() time.Time {
	return b.createdDate
}

func (b *Base) ModifiedDate() time.Time {
	return b.modifiedDate
}

func isDateField(name string) bool {
	return strings.HasSuffix(name, dateSuffix)
}

func isSystemField(name string) bool {
	for _, f := range systemFields {
		if f == name {
			return true
		}
	}
	return false
}

func defaultClock() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
