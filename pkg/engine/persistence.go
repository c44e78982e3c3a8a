package engine

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

// Persistence handles the disk I/O for the MemStore. Each table lives in its
// own <table>.json file mapping row ids to rows.
type Persistence struct {
	DataDir string
	mu      sync.Mutex // Protects concurrent writes to the filesystem
}

// NewPersistence initializes a persistence handler.
func NewPersistence(dir string) (*Persistence, error) {
	// Ensure the data directory exists
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Persistence{DataDir: dir}, nil
}

// SaveTable writes a single table to a JSON file atomically.
func (p *Persistence) SaveTable(table string, rows map[int64]map[string]any) error {
	if err := checkTable(table); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	filePath := filepath.Join(p.DataDir, table+".json")
	tempPath := filePath + ".tmp"

	byID := make(map[string]map[string]any, len(rows))
	for id, row := range rows {
		byID[strconv.FormatInt(id, 10)] = row
	}

	data, err := json.MarshalIndent(byID, "", "  ")
	if err != nil {
		return fmt.Errorf("encode table %s: %w", table, err)
	}

	// Write to a temporary file first, then swap it in. A crash leaves
	// either the old file or the new one, never a partial write.
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tempPath, filePath)
}

// LoadAll returns all tables found in the data directory. Unreadable files
// and rows with malformed ids are skipped with a warning.
func (p *Persistence) LoadAll() (map[string]map[int64]map[string]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	allData := make(map[string]map[int64]map[string]any)

	files, err := os.ReadDir(p.DataDir)
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		table := strings.TrimSuffix(file.Name(), ".json")
		if checkTable(table) != nil {
			continue
		}

		content, err := os.ReadFile(filepath.Join(p.DataDir, file.Name()))
		if err != nil {
			slog.Warn("engine.load_skipped", "file", file.Name(), "error", err)
			continue
		}

		var byID map[string]map[string]any
		dec := json.NewDecoder(bytes.NewReader(content))
		dec.UseNumber()
		if err := dec.Decode(&byID); err != nil {
			slog.Warn("engine.load_skipped", "file", file.Name(), "error", err)
			continue
		}

		rows := make(map[int64]map[string]any, len(byID))
		for key, row := range byID {
			id, err := strconv.ParseInt(key, 10, 64)
			if err != nil || id <= 0 {
				slog.Warn("engine.row_skipped", "table", table, "id", key)
				continue
			}
			if row == nil {
				row = make(map[string]any)
			}
			rows[id] = row
		}
		allData[table] = rows
	}
	return allData, nil
}
