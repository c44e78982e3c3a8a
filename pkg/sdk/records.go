package sdk

import (
	"github.com/celerix-dev/celerix-web/pkg/entity"
)

// --- Generics Support ---

// Find loads the record with the given id from the schema's table.
func Find[T entity.Record](s RowReader, schema *entity.Schema[T], id int64) (T, error) {
	var zero T
	row, err := s.Get(schema.Table(), id)
	if err != nil {
		return zero, err
	}
	return schema.New(row)
}

// All loads every record of the schema's table, ordered by id.
func All[T entity.Record](s RowReader, schema *entity.Schema[T]) ([]T, error) {
	rows, err := s.List(schema.Table())
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		rec, err := schema.New(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Save hands the store-write view of rec to the store and returns the record
// rebuilt from what was written, carrying the id assigned by the store.
func Save[T entity.Record](s RowWriter, schema *entity.Schema[T], rec T) (T, error) {
	var zero T
	row := schema.ToStoreWrite(rec).AsMap()
	id, err := s.Save(schema.Table(), rec.ID(), row)
	if err != nil {
		return zero, err
	}
	row[entity.FieldID] = id
	return schema.New(row)
}

// Remove deletes the record with the given id from the schema's table.
func Remove[T entity.Record](s RowWriter, schema *entity.Schema[T], id int64) error {
	return s.Delete(schema.Table(), id)
}
