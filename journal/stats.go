package journal

import (
	"errors"
	"os"
	"path/filepath"
	"time"
)

// Stats summarizes the files and sequence span of a journal directory
type Stats struct {
	TotalFiles      int
	TotalSizeBytes  int64
	OldestFile      time.Time
	NewestFile      time.Time
	CurrentFileSize int64

	EntryCount    int64
	FirstSequence int64
	LastSequence  int64

	EntriesPerFile map[string]int
}

// GetStats returns statistics for the open journal
func (j *Journal) GetStats() Stats {
	j.mu.Lock()
	defer j.mu.Unlock()

	stats := statFiles(j.listJournalFiles())
	stats.LastSequence = j.sequence
	if stats.TotalFiles > 0 {
		stats.CurrentFileSize = j.currentFileSize()
	}
	fillEntryCount(&stats)
	return stats
}

// GetStatsFromDir summarizes a journal directory without opening it
func GetStatsFromDir(dir string, config Config) Stats {
	files := findAllJournalFiles(dir, config.FilePrefix)

	stats := statFiles(files)
	for _, file := range files {
		if last := maxSequenceInFile(file); last > stats.LastSequence {
			stats.LastSequence = last
		}
	}
	fillEntryCount(&stats)
	return stats
}

// statFiles fills everything derivable from the files alone: counts,
// sizes, modification time range, first sequence, per-file entry counts
func statFiles(files []string) Stats {
	stats := Stats{TotalFiles: len(files)}
	if len(files) == 0 {
		return stats
	}

	stats.EntriesPerFile = make(map[string]int, len(files))
	for _, file := range files {
		stats.EntriesPerFile[filepath.Base(file)] = countEntriesInFile(file)

		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		stats.TotalSizeBytes += info.Size()
		mod := info.ModTime()
		if stats.OldestFile.IsZero() || mod.Before(stats.OldestFile) {
			stats.OldestFile = mod
		}
		if mod.After(stats.NewestFile) {
			stats.NewestFile = mod
		}
	}

	// files are sorted, so the first entry of the first file opens the span
	stats.FirstSequence = firstSequence(files[0])
	return stats
}

func fillEntryCount(stats *Stats) {
	if stats.TotalFiles > 0 && stats.LastSequence >= stats.FirstSequence {
		stats.EntryCount = stats.LastSequence - stats.FirstSequence + 1
	}
}

// currentFileSize returns the size of the active journal file
func (j *Journal) currentFileSize() int64 {
	if j.file == nil {
		return 0
	}
	info, err := j.file.Stat()
	if err != nil {
		return 0
	}
	return info.Size()
}

// firstSequence reads the opening entry of a journal file
func firstSequence(path string) int64 {
	reader, err := NewReader(path)
	if err != nil {
		return 0
	}
	defer func() { _ = reader.Close() }()

	entry, err := reader.Next()
	if err != nil {
		return 0
	}
	return entry.Sequence
}

// maxSequenceInFile scans one file for its highest sequence, skipping
// corrupt entries
func maxSequenceInFile(path string) int64 {
	reader, err := NewReader(path)
	if err != nil {
		return 0
	}
	defer func() { _ = reader.Close() }()

	maxSeq := int64(0)
	for {
		entry, err := reader.Next()
		if errors.Is(err, ErrCorruptEntry) {
			continue
		}
		if err != nil {
			// EOF or a failed read; either way the file is done
			break
		}
		if entry.Sequence > maxSeq {
			maxSeq = entry.Sequence
		}
	}
	return maxSeq
}

// countEntriesInFile tallies readable entries, skipping corrupt lines
func countEntriesInFile(path string) int {
	reader, err := NewReader(path)
	if err != nil {
		return 0
	}
	defer func() { _ = reader.Close() }()

	count := 0
	for {
		_, err := reader.Next()
		if errors.Is(err, ErrCorruptEntry) {
			continue
		}
		if err != nil {
			break
		}
		count++
	}
	return count
}

// oldestModTime returns the earliest modification time among files
func oldestModTime(files []string) time.Time {
	var oldest time.Time
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if oldest.IsZero() || info.ModTime().Before(oldest) {
			oldest = info.ModTime()
		}
	}
	return oldest
}

// HealthStatus is the journal's self-check result
type HealthStatus struct {
	Healthy          bool
	DiskUsagePercent float64
	OldestFileAge    time.Duration
	NeedsRotation    bool
	NeedsCleanup     bool
	Issues           []string
}

// GetHealth checks the open journal against its rotation and retention
// settings
func (j *Journal) GetHealth() HealthStatus {
	j.mu.Lock()
	defer j.mu.Unlock()

	health := HealthStatus{Issues: []string{}}

	size := j.currentFileSize()
	health.DiskUsagePercent = float64(size) / float64(j.config.MaxFileSize) * 100
	if health.DiskUsagePercent > 90 {
		health.Issues = append(health.Issues, "active file above 90% of its size limit")
	}

	if oldest := oldestModTime(j.listJournalFiles()); !oldest.IsZero() {
		health.OldestFileAge = time.Since(oldest)
		retention := time.Duration(j.config.RetentionDays) * 24 * time.Hour
		if health.OldestFileAge > retention {
			health.NeedsCleanup = true
			health.Issues = append(health.Issues, "old files exceed retention period")
		}
	}

	if j.shouldRotate() {
		health.NeedsRotation = true
		health.Issues = append(health.Issues, "rotation pending")
	}

	health.Healthy = len(health.Issues) == 0
	return health
}
