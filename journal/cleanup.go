package journal

import (
	"fmt"
	"os"
	"time"
)

// CleanupStats reports what a cleanup pass removed
type CleanupStats struct {
	FilesRemoved  int
	BytesFreed    int64
	OldestRemoved time.Time
	NewestRemoved time.Time
}

// Cleanup removes journal files that have outlived the retention period
func Cleanup(dir string, config Config) error {
	_, err := CleanupWithStats(dir, config)
	return err
}

// CleanupWithStats removes expired journal files and reports what went
// away. Files are stat'ed and removed in a single pass, so the reported
// sizes are the bytes actually freed.
func CleanupWithStats(dir string, config Config) (CleanupStats, error) {
	cutoff := time.Now().AddDate(0, 0, -config.RetentionDays)

	var stats CleanupStats
	for _, path := range findAllJournalFiles(dir, config.FilePrefix) {
		info, err := os.Stat(path)
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			return stats, fmt.Errorf("failed to remove %s: %w", path, err)
		}

		stats.FilesRemoved++
		stats.BytesFreed += info.Size()
		mod := info.ModTime()
		if stats.OldestRemoved.IsZero() || mod.Before(stats.OldestRemoved) {
			stats.OldestRemoved = mod
		}
		if mod.After(stats.NewestRemoved) {
			stats.NewestRemoved = mod
		}
	}
	return stats, nil
}
