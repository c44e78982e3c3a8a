// Package engine is the embedded table store behind the record write path.
// Rows are flat field mappings addressed by table name and integer id.
package engine

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrTableNotFound is returned when a requested table does not exist.
	ErrTableNotFound = errors.New("table not found")
	// ErrRowNotFound is returned when a requested row does not exist within a table.
	ErrRowNotFound = errors.New("row not found")
	// ErrInvalidTable is returned for table names that are not lowercase identifiers.
	ErrInvalidTable = errors.New("invalid table name")
	// ErrInvalidID is returned for negative row ids.
	ErrInvalidID = errors.New("invalid row id")
)

// IDField is the key that carries the row id in rows returned by the store.
const IDField = "id"

var tableName = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

func checkTable(table string) error {
	if !tableName.MatchString(table) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	return nil
}

// Source is a store that can be enumerated and exported table by table.
type Source interface {
	Tables() ([]string, error)
	DumpTable(table string) (map[int64]map[string]any, error)
}

// Sink is a store that accepts rows at a given id.
type Sink interface {
	Save(table string, id int64, row map[string]any) (int64, error)
}
