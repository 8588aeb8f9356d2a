package journal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const fileExt = ".journal"

// Config controls journal file rotation and retention
type Config struct {
	MaxFileSize   int64
	RetentionDays int
	FilePrefix    string
}

// DefaultConfig returns the rotation settings used when none are given
func DefaultConfig() Config {
	return Config{
		MaxFileSize:   10 * 1024 * 1024,
		RetentionDays: 30,
		FilePrefix:    "cloudfu",
	}
}

// shouldRotate reports whether the current file has reached its size limit
func (j *Journal) shouldRotate() bool {
	if j.file == nil {
		return false
	}
	info, err := j.file.Stat()
	if err != nil {
		return false
	}
	return info.Size() >= j.config.MaxFileSize
}

// rotate closes the current file and starts a fresh one. The entry being
// written already carries the current sequence, so it names the new file.
func (j *Journal) rotate() error {
	if err := j.writer.Flush(); err != nil {
		return err
	}
	if err := j.file.Close(); err != nil {
		return err
	}
	return j.openFile(j.sequence)
}

// openFile opens a journal file for appending, named after the first
// sequence that will land in it
func (j *Journal) openFile(firstSeq int64) error {
	path := j.filePath(firstSeq)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644) // #nosec G302 G304 -- shared audit log under the configured state dir
	if err != nil {
		return fmt.Errorf("failed to open journal file: %w", err)
	}

	j.file = file
	j.writer = bufio.NewWriter(file)
	return nil
}

// filePath names files so that lexical order matches write order: the
// timestamp orders across runs, the starting sequence orders rotations that
// land within the same second
func (j *Journal) filePath(firstSeq int64) string {
	name := fmt.Sprintf("%s-%s-%09d%s",
		j.config.FilePrefix,
		time.Now().UTC().Format("20060102-150405"),
		firstSeq,
		fileExt,
	)
	return filepath.Join(j.dir, name)
}

// listJournalFiles returns this journal's files in lexical order
func (j *Journal) listJournalFiles() []string {
	return findAllJournalFiles(j.dir, j.config.FilePrefix)
}

// findAllJournalFiles returns all journal files in a directory
func findAllJournalFiles(dir, prefix string) []string {
	pattern := filepath.Join(dir, prefix+"-*"+fileExt)
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil
	}
	return files
}
