package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeAgedFile drops a journal-named file whose mtime is daysOld days back
func writeAgedFile(t *testing.T, dir, name string, daysOld int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("entry data"), 0600))
	mod := time.Now().AddDate(0, 0, -daysOld)
	require.NoError(t, os.Chtimes(path, mod, mod))
	return path
}

func TestCleanup(t *testing.T) {
	tests := []struct {
		name      string
		fileAges  map[string]int
		retention int
		remaining int
	}{
		{
			name:      "empty directory",
			retention: 30,
			remaining: 0,
		},
		{
			name: "fresh files kept",
			fileAges: map[string]int{
				"cloudfu-20250810-120000-000000001.journal": 1,
				"cloudfu-20250815-120000-000000050.journal": 5,
			},
			retention: 30,
			remaining: 2,
		},
		{
			name: "expired files removed",
			fileAges: map[string]int{
				"cloudfu-20250101-120000-000000001.journal": 60,
			},
			retention: 30,
			remaining: 0,
		},
		{
			name: "mixed ages",
			fileAges: map[string]int{
				"cloudfu-20250101-120000-000000001.journal": 60,
				"cloudfu-20250301-120000-000000040.journal": 45,
				"cloudfu-20250810-120000-000000090.journal": 10,
			},
			retention: 30,
			remaining: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, age := range tt.fileAges {
				writeAgedFile(t, dir, name, age)
			}

			config := DefaultConfig()
			config.RetentionDays = tt.retention
			require.NoError(t, Cleanup(dir, config))

			assert.Len(t, findAllJournalFiles(dir, config.FilePrefix), tt.remaining)
		})
	}
}

func TestCleanup_RemovesOnlyExpired(t *testing.T) {
	dir := t.TempDir()
	expired := writeAgedFile(t, dir, "cloudfu-20250101-120000-000000001.journal", 60)
	recent := writeAgedFile(t, dir, "cloudfu-20250810-120000-000000009.journal", 10)

	config := DefaultConfig()
	config.RetentionDays = 30
	require.NoError(t, Cleanup(dir, config))

	assert.NoFileExists(t, expired)
	assert.FileExists(t, recent)
}

func TestCleanup_IgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	foreign := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(foreign, []byte("keep me"), 0600))
	old := time.Now().AddDate(0, 0, -90)
	require.NoError(t, os.Chtimes(foreign, old, old))

	require.NoError(t, Cleanup(dir, DefaultConfig()))

	assert.FileExists(t, foreign)
}

func TestCleanupWithStats(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("cloudfu-2025010%d-120000-00000000%d.journal", i+1, i+1)
		writeAgedFile(t, dir, name, 60+i)
	}

	stats, err := CleanupWithStats(dir, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.FilesRemoved)
	assert.Equal(t, int64(3*len("entry data")), stats.BytesFreed)
	assert.False(t, stats.OldestRemoved.IsZero())
	assert.False(t, stats.NewestRemoved.Before(stats.OldestRemoved))
}

func TestCleanupWithStats_NothingExpired(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, j.Append(EntryApplied, "cloud.profiles.d/web.conf", 1, nil))
	require.NoError(t, j.Close())

	stats, err := CleanupWithStats(dir, DefaultConfig())
	require.NoError(t, err)

	assert.Zero(t, stats.FilesRemoved)
	assert.Zero(t, stats.BytesFreed)
	assert.Len(t, findAllJournalFiles(dir, DefaultConfig().FilePrefix), 1)
}
