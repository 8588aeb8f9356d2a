// Package journal keeps an append-only record of run outcomes, one JSON
// line per rendered file, for audit and replay.
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrCorruptEntry marks a line that is not a valid entry. The reader
// has moved past it, so callers may keep reading.
var ErrCorruptEntry = errors.New("corrupt journal entry")

// EntryType defines the type of journal entry
type EntryType string

const (
	EntryPlanned EntryType = "planned"
	EntryApplied EntryType = "applied"
	EntrySkipped EntryType = "skipped"
	EntryFailed  EntryType = "failed"
)

// Entry represents a single journal entry
type Entry struct {
	Timestamp time.Time       `json:"timestamp"`
	Sequence  int64           `json:"sequence"`
	Type      EntryType       `json:"type"`
	Path      string          `json:"path,omitempty"`
	Revision  int64           `json:"revision,omitempty"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error,omitempty"`
}

// Journal is the append-only run log
type Journal struct {
	mu       sync.Mutex
	file     *os.File
	writer   *bufio.Writer
	sequence int64
	dir      string
	config   Config
}

// Open creates or opens a journal in the specified directory
func Open(dir string) (*Journal, error) {
	return OpenWithConfig(dir, DefaultConfig())
}

// OpenWithConfig creates or opens a journal with explicit rotation settings
func OpenWithConfig(dir string, config Config) (*Journal, error) {
	// Same mode as the state dir the journal lives under
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	j := &Journal{
		dir:    dir,
		config: config,
	}

	// Continue the sequence from whatever earlier files left behind
	j.loadSequence()

	if err := j.openFile(j.sequence + 1); err != nil {
		return nil, err
	}

	return j, nil
}

// Close flushes and closes the journal
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.writer.Flush(); err != nil {
		return err
	}
	return j.file.Close()
}

// Append adds an entry for a rendered file to the journal
func (j *Journal) Append(entryType EntryType, path string, revision int64, data interface{}) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	j.sequence++
	return j.writeEntry(Entry{
		Timestamp: time.Now().UTC(),
		Sequence:  j.sequence,
		Type:      entryType,
		Path:      path,
		Revision:  revision,
		Data:      jsonData,
	})
}

// AppendError adds a failed entry with its cause to the journal
func (j *Journal) AppendError(entryType EntryType, path string, revision int64, data interface{}, cause error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	j.sequence++
	return j.writeEntry(Entry{
		Timestamp: time.Now().UTC(),
		Sequence:  j.sequence,
		Type:      entryType,
		Path:      path,
		Revision:  revision,
		Data:      jsonData,
		Error:     cause.Error(),
	})
}

// writeEntry writes a single entry, rotating the file first when it is full
func (j *Journal) writeEntry(entry Entry) error {
	if j.shouldRotate() {
		if err := j.rotate(); err != nil {
			return fmt.Errorf("failed to rotate journal: %w", err)
		}
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	if _, err := j.writer.Write(line); err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}
	if _, err := j.writer.WriteString("\n"); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	// Flush and sync per entry; a crash loses at most the line in flight
	if err := j.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return j.file.Sync()
}

// loadSequence finds the highest sequence across existing journal files
func (j *Journal) loadSequence() {
	for _, file := range j.listJournalFiles() {
		if last := maxSequenceInFile(file); last > j.sequence {
			j.sequence = last
		}
	}
}

// Reader provides journal replay functionality
type Reader struct {
	scanner *bufio.Scanner
	file    *os.File
}

// NewReader creates a journal reader for the specified file
func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path) // #nosec G304 -- path comes from the journal directory listing
	if err != nil {
		return nil, fmt.Errorf("failed to open journal file: %w", err)
	}

	return &Reader{
		scanner: bufio.NewScanner(file),
		file:    file,
	}, nil
}

// Next reads the next entry from the journal
func (r *Reader) Next() (*Entry, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	var entry Entry
	if err := json.Unmarshal(r.scanner.Bytes(), &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}

	return &entry, nil
}

// Close releases the underlying file
func (r *Reader) Close() error {
	return r.file.Close()
}

// Replay replays journal entries newer than the given time, oldest first
func Replay(dir string, since time.Time, handler func(*Entry) error) error {
	files, err := filepath.Glob(filepath.Join(dir, DefaultConfig().FilePrefix+"-*"+fileExt))
	if err != nil {
		return fmt.Errorf("failed to list journal files: %w", err)
	}

	for _, file := range files {
		if err := replayFile(file, since, handler); err != nil {
			return err
		}
	}
	return nil
}

func replayFile(path string, since time.Time, handler func(*Entry) error) error {
	reader, err := NewReader(path)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	for {
		entry, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if entry.Timestamp.After(since) {
			if err := handler(entry); err != nil {
				return err
			}
		}
	}
}
