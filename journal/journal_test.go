package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudfu/cloudfu/applier"
)

// readEntries drains every entry from the journal files under dir
func readEntries(t *testing.T, dir string) []*Entry {
	t.Helper()

	var entries []*Entry
	for _, file := range findAllJournalFiles(dir, DefaultConfig().FilePrefix) {
		reader, err := NewReader(file)
		require.NoError(t, err)

		for {
			entry, err := reader.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			require.NoError(t, err)
			entries = append(entries, entry)
		}
		require.NoError(t, reader.Close())
	}
	return entries
}

func TestJournal_AppendAndRead(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(dir)
	require.NoError(t, err)

	change := applier.FileChange{
		Path:   "cloud.providers.d/p1.conf",
		Status: applier.StatusCreated,
		Bytes:  120,
		Digest: "abc123",
	}

	require.NoError(t, j.Append(EntryPlanned, change.Path, 1, change))
	require.NoError(t, j.Append(EntryApplied, change.Path, 2, change))
	require.NoError(t, j.Append(EntrySkipped, change.Path, 3, change))
	require.NoError(t, j.Close())

	entries := readEntries(t, dir)
	require.Len(t, entries, 3)

	wantTypes := []EntryType{EntryPlanned, EntryApplied, EntrySkipped}
	for i, entry := range entries {
		assert.Equal(t, wantTypes[i], entry.Type)
		assert.Equal(t, change.Path, entry.Path)
		assert.Equal(t, int64(i+1), entry.Sequence)
		assert.Equal(t, int64(i+1), entry.Revision)
	}
}

func TestJournal_AppendError(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(dir)
	require.NoError(t, err)

	change := applier.FileChange{Path: "cloud.maps/test", Status: applier.StatusUpdated}
	writeErr := fmt.Errorf("permission denied")

	require.NoError(t, j.AppendError(EntryFailed, change.Path, 1, change, writeErr))
	require.NoError(t, j.Close())

	entries := readEntries(t, dir)
	require.Len(t, entries, 1)

	assert.Equal(t, EntryFailed, entries[0].Type)
	assert.Equal(t, "permission denied", entries[0].Error)
}

func TestJournal_Replay(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, j.Append(EntryApplied, "old.conf", 1, nil))

	time.Sleep(10 * time.Millisecond)
	cutoff := time.Now()
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, j.Append(EntryApplied, "new-1.conf", 2, nil))
	require.NoError(t, j.Append(EntryApplied, "new-2.conf", 2, nil))
	require.NoError(t, j.Close())

	var replayed []string
	err = Replay(dir, cutoff, func(entry *Entry) error {
		replayed = append(replayed, entry.Path)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"new-1.conf", "new-2.conf"}, replayed)
}

func TestJournal_DataIntegrity(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(dir)
	require.NoError(t, err)

	change := applier.FileChange{
		Path:   "cloud.profiles.d/test with \"quotes\".conf",
		Status: applier.StatusCreated,
		Bytes:  42,
		Digest: "deadbeef",
	}

	require.NoError(t, j.Append(EntryApplied, change.Path, 7, change))
	require.NoError(t, j.Close())

	entries := readEntries(t, dir)
	require.Len(t, entries, 1)

	var recovered applier.FileChange
	require.NoError(t, json.Unmarshal(entries[0].Data, &recovered))

	assert.Equal(t, change.Path, recovered.Path)
	assert.Equal(t, change.Digest, recovered.Digest)
	assert.Equal(t, change.Status, recovered.Status)
}
