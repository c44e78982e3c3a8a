package engine

import "fmt"

// Migrate copies every row of every table from src to dst, keeping row ids.
// This works for:
// - Embedded -> Remote (The "Upgrade")
// - Remote -> Embedded (The "Backup/Offline")
func Migrate(src Source, dst Sink) error {
	tables, err := src.Tables()
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}

	for _, table := range tables {
		rows, err := src.DumpTable(table)
		if err != nil {
			return fmt.Errorf("failed to dump table %s: %w", table, err)
		}

		for _, id := range sortedIDs(rows) {
			if _, err := dst.Save(table, id, rows[id]); err != nil {
				return fmt.Errorf("failed to save row %s/%d in destination: %w", table, id, err)
			}
		}
	}

	return nil
}
