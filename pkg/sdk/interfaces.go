package sdk

import "github.com/celerix-dev/celerix-web/pkg/engine"

// Errors shared with the embedded engine so callers can match either backend.
var (
	ErrTableNotFound = engine.ErrTableNotFound
	ErrRowNotFound   = engine.ErrRowNotFound
	ErrInvalidTable  = engine.ErrInvalidTable
	ErrInvalidID     = engine.ErrInvalidID
)

// --- Functional Interfaces (Interface Segregation) ---

// RowReader defines the basic read operations for the store.
type RowReader interface {
	Get(table string, id int64) (map[string]any, error)
	List(table string) ([]map[string]any, error)
}

// RowWriter is the insert-or-update write path. Save inserts when id is 0
// and returns the assigned id; otherwise it writes the row at id.
type RowWriter interface {
	Save(table string, id int64, row map[string]any) (int64, error)
	Delete(table string, id int64) error
}

// TableEnumeration allows discovering tables.
type TableEnumeration interface {
	Tables() ([]string, error)
}

// BatchExporter allows retrieving bulk data.
type BatchExporter interface {
	DumpTable(table string) (map[int64]map[string]any, error)
}

// Store is the primary interface for interacting with the data store.
// Both the local embedded engine and the remote network client implement this contract.
type Store interface {
	RowReader
	RowWriter
	TableEnumeration
	BatchExporter
}

var (
	_ Store = (*engine.MemStore)(nil)
	_ Store = (*Client)(nil)
)
