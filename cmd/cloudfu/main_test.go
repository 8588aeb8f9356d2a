package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cloudfu/cloudfu/applier"
	"github.com/cloudfu/cloudfu/journal"
	"github.com/cloudfu/cloudfu/storage"
	"github.com/cloudfu/cloudfu/types"
)

func TestFormatWarning(t *testing.T) {
	tests := []struct {
		name    string
		warning types.Warning
		want    string
	}{
		{
			name: "full scope",
			warning: types.Warning{
				Severity:    types.SeverityWarning,
				Stage:       "role",
				Provider:    "p1",
				Environment: "test",
				Role:        "web",
				Message:     "missing image",
			},
			want: "[role] p1/test/web: missing image",
		},
		{
			name: "provider only",
			warning: types.Warning{
				Severity: types.SeverityError,
				Stage:    "provider",
				Provider: "p2",
				Message:  "default_servers unset",
			},
			want: "[provider] p2: default_servers unset",
		},
		{
			name: "no scope",
			warning: types.Warning{
				Stage:   "policy",
				Message: "engine unavailable",
			},
			want: "[policy] engine unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatWarning(tt.warning))
		})
	}
}

func TestFormatChange(t *testing.T) {
	created := applier.FileChange{Path: "conf/p1.conf", Status: applier.StatusCreated, Bytes: 120}
	assert.Equal(t, "+ conf/p1.conf (120 bytes)", formatChange(created))

	updated := applier.FileChange{Path: "conf/test.conf", Status: applier.StatusUpdated, Bytes: 64}
	assert.Equal(t, "~ conf/test.conf (64 bytes)", formatChange(updated))

	unchanged := applier.FileChange{Path: "conf/test", Status: applier.StatusUnchanged, Bytes: 10}
	assert.Equal(t, "= conf/test (10 bytes)", formatChange(unchanged))
}

func TestFormatRun(t *testing.T) {
	run := storage.Run{
		Revision:  7,
		StartedAt: time.Date(2025, 3, 1, 12, 30, 0, 0, time.Local),
		Command:   "apply",
		DryRun:    true,
		Created:   2,
		Updated:   1,
		Unchanged: 3,
		Warnings:  1,
	}

	line := formatRun(run)
	assert.Contains(t, line, "7")
	assert.Contains(t, line, "2025-03-01 12:30:00")
	assert.Contains(t, line, "apply")
	assert.Contains(t, line, "yes")
}

func TestFormatJournalEntry(t *testing.T) {
	e := &journal.Entry{
		Timestamp: time.Date(2025, 3, 1, 12, 30, 0, 0, time.Local),
		Sequence:  42,
		Type:      journal.EntryApplied,
		Path:      "conf/p1.conf",
		Revision:  7,
	}
	line := formatJournalEntry(e)
	assert.Contains(t, line, "#42")
	assert.Contains(t, line, "rev 7")
	assert.Contains(t, line, "applied")
	assert.Contains(t, line, "conf/p1.conf")

	e.Error = "disk full"
	assert.Contains(t, formatJournalEntry(e), "error: disk full")
}
