package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStore_SaveGetDelete(t *testing.T) {
	ms := NewMemStore(nil, nil)

	id, err := ms.Save("posts", 0, map[string]any{"title": "first", "id": 99})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	row, err := ms.Get("posts", id)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": int64(1), "title": "first"}, row)

	// Updating keeps the id
	got, err := ms.Save("posts", id, map[string]any{"title": "second"})
	require.NoError(t, err)
	assert.Equal(t, id, got)

	row, err = ms.Get("posts", id)
	require.NoError(t, err)
	assert.Equal(t, "second", row["title"])

	_, err = ms.Get("posts", 42)
	assert.ErrorIs(t, err, ErrRowNotFound)
	_, err = ms.Get("missing", 1)
	assert.ErrorIs(t, err, ErrTableNotFound)

	require.NoError(t, ms.Delete("posts", id))
	_, err = ms.Get("posts", id)
	assert.ErrorIs(t, err, ErrRowNotFound)
	assert.ErrorIs(t, ms.Delete("posts", id), ErrRowNotFound)
}

func TestMemStore_ReturnedRowsAreCopies(t *testing.T) {
	ms := NewMemStore(nil, nil)
	input := map[string]any{"title": "original"}
	id, err := ms.Save("posts", 0, input)
	require.NoError(t, err)

	input["title"] = "changed"
	row, err := ms.Get("posts", id)
	require.NoError(t, err)
	row["title"] = "changed again"

	row, err = ms.Get("posts", id)
	require.NoError(t, err)
	assert.Equal(t, "original", row["title"])
}

func TestMemStore_SaveWithExplicitID(t *testing.T) {
	ms := NewMemStore(nil, nil)

	id, err := ms.Save("posts", 10, map[string]any{"title": "restored"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), id)

	next, err := ms.Save("posts", 0, map[string]any{"title": "new"})
	require.NoError(t, err)
	assert.Equal(t, int64(11), next)

	_, err = ms.Save("posts", -1, nil)
	assert.ErrorIs(t, err, ErrInvalidID)
	_, err = ms.Save("Bad Table", 0, nil)
	assert.ErrorIs(t, err, ErrInvalidTable)
}

func TestMemStore_ListTables(t *testing.T) {
	ms := NewMemStore(nil, nil)

	for i := 0; i < 3; i++ {
		_, err := ms.Save("posts", 0, map[string]any{"n": i})
		require.NoError(t, err)
	}
	_, err := ms.Save("authors", 0, map[string]any{"name": "ada"})
	require.NoError(t, err)

	tables, err := ms.Tables()
	require.NoError(t, err)
	assert.Equal(t, []string{"authors", "posts"}, tables)

	list, err := ms.List("posts")
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, row := range list {
		assert.Equal(t, int64(i+1), row["id"])
		assert.Equal(t, i, row["n"])
	}

	empty, err := ms.List("nothing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemStore_SequenceFromInitialData(t *testing.T) {
	ms := NewMemStore(map[string]map[int64]map[string]any{
		"posts": {4: {"title": "a"}, 7: {"title": "b"}},
	}, nil)

	id, err := ms.Save("posts", 0, map[string]any{"title": "c"})
	require.NoError(t, err)
	assert.Equal(t, int64(8), id)
}

func TestPersistence(t *testing.T) {
	p, err := NewPersistence(t.TempDir())
	require.NoError(t, err)

	rows := map[int64]map[string]any{
		1: {"title": "val1", "views": 3},
	}
	require.NoError(t, p.SaveTable("posts", rows))

	_, err = os.Stat(filepath.Join(p.DataDir, "posts.json"))
	require.NoError(t, err, "table file was not created")

	allData, err := p.LoadAll()
	require.NoError(t, err)
	require.Len(t, allData, 1)
	assert.Equal(t, "val1", allData["posts"][1]["title"])
	assert.Equal(t, json.Number("3"), allData["posts"][1]["views"])
}

func TestPersistence_SkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPersistence(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "posts.json"), []byte(`{"x": {}, "2": {"title": "ok"}}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	allData, err := p.LoadAll()
	require.NoError(t, err)
	assert.NotContains(t, allData, "broken")
	assert.Equal(t, map[int64]map[string]any{2: {"title": "ok"}}, allData["posts"])
}

func TestMemStore_Persistence(t *testing.T) {
	p, err := NewPersistence(t.TempDir())
	require.NoError(t, err)
	ms := NewMemStore(nil, p)

	id, err := ms.Save("posts", 0, map[string]any{"title": "v1"})
	require.NoError(t, err)

	ms.Wait() // Wait for background persistence

	// Create new MemStore and load data
	allData, err := p.LoadAll()
	require.NoError(t, err)
	ms2 := NewMemStore(allData, p)

	row, err := ms2.Get("posts", id)
	require.NoError(t, err)
	assert.Equal(t, "v1", row["title"])

	next, err := ms2.Save("posts", 0, map[string]any{"title": "v2"})
	require.NoError(t, err)
	assert.Equal(t, id+1, next)
}

func TestMemStore_PersistenceKeepsLatestSnapshot(t *testing.T) {
	for run := 0; run < 20; run++ {
		p, err := NewPersistence(t.TempDir())
		require.NoError(t, err)
		ms := NewMemStore(nil, p)

		const saves = 200
		for i := 0; i < saves; i++ {
			_, err := ms.Save("posts", 0, map[string]any{"n": i})
			require.NoError(t, err)
		}
		require.NoError(t, ms.Delete("posts", 1))
		ms.Wait()

		allData, err := p.LoadAll()
		require.NoError(t, err)
		require.Len(t, allData["posts"], saves-1, "run %d", run)
		assert.NotContains(t, allData["posts"], int64(1))
		assert.Contains(t, allData["posts"], int64(saves))
	}
}

func TestMemStore_ConcurrentPersistence(t *testing.T) {
	p, err := NewPersistence(t.TempDir())
	require.NoError(t, err)
	ms := NewMemStore(nil, p)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, err := ms.Save("posts", 0, map[string]any{"n": j})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
	ms.Wait()

	allData, err := p.LoadAll()
	require.NoError(t, err)
	assert.Len(t, allData["posts"], 200)
}

func TestMemStore_Concurrent(t *testing.T) {
	ms := NewMemStore(nil, nil)
	const (
		numGoroutines = 10
		numOps        = 100
	)
	var wg sync.WaitGroup

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < numOps; j++ {
				title := fmt.Sprintf("post-%d-%d", n, j)
				id, err := ms.Save("posts", 0, map[string]any{"title": title})
				if !assert.NoError(t, err) {
					return
				}
				row, err := ms.Get("posts", id)
				if assert.NoError(t, err) {
					assert.Equal(t, title, row["title"])
				}
			}
		}(i)
	}
	wg.Wait()

	list, err := ms.List("posts")
	require.NoError(t, err)
	assert.Len(t, list, numGoroutines*numOps)
}

func TestMigrate(t *testing.T) {
	src := NewMemStore(nil, nil)
	_, err := src.Save("posts", 3, map[string]any{"title": "three"})
	require.NoError(t, err)
	_, err = src.Save("sponsors", 0, map[string]any{"name": "acme"})
	require.NoError(t, err)

	dst := NewMemStore(nil, nil)
	require.NoError(t, Migrate(src, dst))

	row, err := dst.Get("posts", 3)
	require.NoError(t, err)
	assert.Equal(t, "three", row["title"])

	tables, err := dst.Tables()
	require.NoError(t, err)
	assert.Equal(t, []string{"posts", "sponsors"}, tables)
}

func TestDumpTable(t *testing.T) {
	ms := NewMemStore(nil, nil)
	_, err := ms.Save("posts", 0, map[string]any{"title": "a"})
	require.NoError(t, err)

	dump, err := ms.DumpTable("posts")
	require.NoError(t, err)
	assert.Equal(t, map[int64]map[string]any{1: {"title": "a"}}, dump)

	_, err = ms.DumpTable("missing")
	assert.ErrorIs(t, err, ErrTableNotFound)
}
