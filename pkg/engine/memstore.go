package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// MemStore is the thread-safe in-memory table store.
type MemStore struct {
	mu sync.RWMutex
	// Structure: [table][id]row
	data      map[string]map[int64]map[string]any
	seq       map[string]int64
	persister *Persistence
	wg        sync.WaitGroup

	// version counts the changes of each table; it is bumped under mu.
	version map[string]uint64
	// flushMu orders the background writes; flushed holds the version of
	// the snapshot last written per table.
	flushMu sync.Mutex
	flushed map[string]uint64
}

// NewMemStore initializes a store.
// It accepts existing data (from LoadAll) and an optional persister.
func NewMemStore(initialData map[string]map[int64]map[string]any, p *Persistence) *MemStore {
	if initialData == nil {
		initialData = make(map[string]map[int64]map[string]any)
	}
	seq := make(map[string]int64, len(initialData))
	for table, rows := range initialData {
		for id := range rows {
			if id > seq[table] {
				seq[table] = id
			}
		}
	}
	return &MemStore{
		data:      initialData,
		seq:       seq,
		persister: p,
		version:   make(map[string]uint64),
		flushed:   make(map[string]uint64),
	}
}

// Wait waits for all background persistence tasks to complete.
func (m *MemStore) Wait() {
	m.wg.Wait()
}

// Get returns a copy of the row, including its id.
func (m *MemStore) Get(table string, id int64) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, ok := m.data[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	row, ok := rows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%d", ErrRowNotFound, table, id)
	}
	return withID(row, id), nil
}

// List returns every row of the table ordered by id. A missing table is empty.
func (m *MemStore) List(table string) ([]map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := m.data[table]
	ids := sortedIDs(rows)
	list := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		list = append(list, withID(rows[id], id))
	}
	return list, nil
}

// Save inserts the row when id is 0 and returns the assigned id. Any other id
// writes the row at that id, creating it if needed. An id key in row is ignored.
func (m *MemStore) Save(table string, id int64, row map[string]any) (int64, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	if id < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidID, id)
	}

	stored := make(map[string]any, len(row))
	for k, v := range row {
		if k != IDField {
			stored[k] = v
		}
	}

	m.mu.Lock()
	if m.data[table] == nil {
		m.data[table] = make(map[int64]map[string]any)
	}
	if id == 0 {
		id = m.seq[table] + 1
	}
	if id > m.seq[table] {
		m.seq[table] = id
	}
	m.data[table][id] = stored

	// Deep copy the table's state to save safely in background
	m.version[table]++
	version := m.version[table]
	current := m.copyTable(table)
	m.mu.Unlock()

	m.persist(table, version, current)
	return id, nil
}

// Delete removes a row.
func (m *MemStore) Delete(table string, id int64) error {
	m.mu.Lock()
	rows, ok := m.data[table]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	if _, ok := rows[id]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s/%d", ErrRowNotFound, table, id)
	}
	delete(rows, id)
	m.version[table]++
	version := m.version[table]
	current := m.copyTable(table)
	m.mu.Unlock()

	m.persist(table, version, current)
	return nil
}

// Tables returns the table names in lexical order.
func (m *MemStore) Tables() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]string, 0, len(m.data))
	for table := range m.data {
		list = append(list, table)
	}
	sort.Strings(list)
	return list, nil
}

// DumpTable returns a copy of every row of the table keyed by id.
func (m *MemStore) DumpTable(table string) (map[int64]map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.data[table]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return m.copyTable(table), nil
}

// persist writes the snapshot in the background. A snapshot older than the
// one already on disk is dropped, so the file always ends at the latest
// version once Wait returns.
func (m *MemStore) persist(table string, version uint64, rows map[int64]map[string]any) {
	if m.persister == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		m.flushMu.Lock()
		defer m.flushMu.Unlock()
		if version <= m.flushed[table] {
			return
		}
		if err := m.persister.SaveTable(table, rows); err != nil {
			slog.Error("engine.persist_failed", "table", table, "error", err)
			return
		}
		m.flushed[table] = version
	}()
}

// copyTable creates a deep copy of a table's rows.
// It MUST be called while holding m.mu.Lock or m.mu.RLock.
func (m *MemStore) copyTable(table string) map[int64]map[string]any {
	original := m.data[table]
	tableCopy := make(map[int64]map[string]any, len(original))
	for id, row := range original {
		rowCopy := make(map[string]any, len(row))
		for k, v := range row {
			rowCopy[k] = v
		}
		tableCopy[id] = rowCopy
	}
	return tableCopy
}

func withID(row map[string]any, id int64) map[string]any {
	out := make(map[string]any, len(row)+1)
	for k, v := range row {
		out[k] = v
	}
	out[IDField] = id
	return out
}

func sortedIDs(rows map[int64]map[string]any) []int64 {
	ids := make([]int64, 0, len(rows))
	for id := range rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
