// Package applier writes the expanded config trees under the salt
// style configuration directory: one file per provider under
// cloud.providers.d, one per environment under cloud.profiles.d and
// cloud.maps. Writes are idempotent; a file whose rendered content
// already matches is left alone and reported unchanged.
package applier

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/rs/zerolog"

	"github.com/cloudfu/cloudfu/types"
)

// FileStatus is the outcome for one output file
type FileStatus string

const (
	StatusCreated   FileStatus = "created"
	StatusUpdated   FileStatus = "updated"
	StatusUnchanged FileStatus = "unchanged"
)

// FileChange describes what happened (or would happen) to one file
type FileChange struct {
	Path   string     `json:"path"`
	Status FileStatus `json:"status"`
	Bytes  int        `json:"bytes"`
	Digest string     `json:"digest"`
}

// Summary aggregates one apply pass
type Summary struct {
	Changes   []FileChange `json:"changes"`
	Created   int          `json:"created"`
	Updated   int          `json:"updated"`
	Unchanged int          `json:"unchanged"`
	DryRun    bool         `json:"dry_run"`
}

// Changed reports whether the pass wrote (or would write) anything
func (s *Summary) Changed() bool {
	return s.Created+s.Updated > 0
}

func (s *Summary) add(change FileChange) {
	s.Changes = append(s.Changes, change)
	switch change.Status {
	case StatusCreated:
		s.Created++
	case StatusUpdated:
		s.Updated++
	case StatusUnchanged:
		s.Unchanged++
	}
}

// Options configure an Applier
type Options struct {
	ConfDir  string
	FileMode os.FileMode
	DirMode  os.FileMode
	// Owner and Group are applied only when non-empty
	Owner string
	Group string
	// DryRun plans the change set without touching the filesystem
	DryRun bool
}

// Applier renders and writes the three output trees
type Applier struct {
	opts   Options
	logger zerolog.Logger
}

// New creates an Applier
func New(opts Options, logger zerolog.Logger) *Applier {
	return &Applier{opts: opts, logger: logger}
}

// Apply writes every output file of the result and returns the
// per-file change set. The first filesystem failure aborts the pass.
func (a *Applier) Apply(res *types.Result) (*Summary, error) {
	summary := &Summary{DryRun: a.opts.DryRun}

	providerDir := filepath.Join(a.opts.ConfDir, "cloud.providers.d")
	profileDir := filepath.Join(a.opts.ConfDir, "cloud.profiles.d")
	mapDir := filepath.Join(a.opts.ConfDir, "cloud.maps")
	for _, dir := range []string{providerDir, profileDir, mapDir} {
		if err := a.ensureDir(dir); err != nil {
			return summary, err
		}
	}

	// provider files carry the provider name as their single top key,
	// the shape the provisioning tool expects
	for _, name := range slices.Sorted(maps.Keys(res.Providers)) {
		wrapped := map[string]types.ProviderConfig{name: res.Providers[name]}
		if err := a.applyFile(summary, filepath.Join(providerDir, name+".conf"), wrapped); err != nil {
			return summary, err
		}
	}

	for _, env := range slices.Sorted(maps.Keys(res.Profiles)) {
		if err := a.applyFile(summary, filepath.Join(profileDir, env+".conf"), res.Profiles[env]); err != nil {
			return summary, err
		}
	}

	for _, env := range slices.Sorted(maps.Keys(res.Maps)) {
		if err := a.applyFile(summary, filepath.Join(mapDir, env), res.Maps[env]); err != nil {
			return summary, err
		}
	}

	a.logger.Info().
		Int("created", summary.Created).
		Int("updated", summary.Updated).
		Int("unchanged", summary.Unchanged).
		Bool("dry_run", summary.DryRun).
		Msg("apply pass finished")
	return summary, nil
}

func (a *Applier) applyFile(summary *Summary, path string, tree any) error {
	rendered, err := renderYAML(tree)
	if err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}

	change := FileChange{
		Path:   path,
		Bytes:  len(rendered),
		Digest: digest(rendered),
	}

	existing, err := os.ReadFile(path) // #nosec G304 -- path is built from configured conf_dir
	switch {
	case err == nil && bytes.Equal(existing, rendered):
		change.Status = StatusUnchanged
	case err == nil:
		change.Status = StatusUpdated
	case os.IsNotExist(err):
		change.Status = StatusCreated
	default:
		return fmt.Errorf("read %s: %w", path, err)
	}

	if change.Status != StatusUnchanged && !a.opts.DryRun {
		if err := a.writeFile(path, rendered); err != nil {
			return err
		}
	}

	a.logger.Debug().Str("path", path).Str("status", string(change.Status)).Msg("output file")
	summary.add(change)
	return nil
}

func (a *Applier) writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, a.opts.FileMode); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	// WriteFile honors umask on create and keeps the old bits on
	// update, so enforce the configured mode explicitly
	if err := os.Chmod(path, a.opts.FileMode); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	return a.chown(path)
}

func (a *Applier) ensureDir(dir string) error {
	if a.opts.DryRun {
		return nil
	}
	if err := os.MkdirAll(dir, a.opts.DirMode); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	if err := os.Chmod(dir, a.opts.DirMode); err != nil {
		return fmt.Errorf("chmod dir %s: %w", dir, err)
	}
	return a.chown(dir)
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
