package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudfu/cloudfu/config"
	"github.com/cloudfu/cloudfu/journal"
	"github.com/cloudfu/cloudfu/telemetry"
	"github.com/cloudfu/cloudfu/types"
)

const defaultsYAML = `providers:
  default_servers: 2
  rename_on_destroy: true
  ssh_interface: private_ips
  ssh_username: ec2-user
profiles:
  del_root_vol_on_destroy: true
  sync_after_install: all
mappings:
  minion:
    master: salt.example.com
`

const providersYAML = `p1:
  id: AKIAEXAMPLE
  key: verysecret
  keyname: deploy
  driver: ec2
  location: eu-west-1
  subnets:
    test:
      - az: A
        subnet: subnet-1a
  images:
    web: ami-123
  sizes:
    web: t2.medium
  security_groups:
    common: sg-common
    web:
      - sg-web
`

const serversYAML = `p1:
  test:
    - web
`

// brokenDefaultsYAML carries no default_servers, a structural error
// for any provider that does not set its own
const brokenDefaultsYAML = `mappings:
  minion:
    master: salt.example.com
`

func writeInputs(t *testing.T, dir, defaults, providers, servers string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "defaults.yaml"), []byte(defaults), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "providers.yaml"), []byte(providers), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "servers.yaml"), []byte(servers), 0600))
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	dataDir := filepath.Join(base, "data")
	writeInputs(t, dataDir, defaultsYAML, providersYAML, serversYAML)
	return &config.Config{
		DataDir:  dataDir,
		ConfDir:  filepath.Join(base, "conf"),
		Domain:   "example.com",
		FileMode: "0600",
		DirMode:  "0700",
		StateDir: filepath.Join(base, "state"),
		Output:   "yaml",
	}
}

func newTestRunner(t *testing.T, cfg *config.Config) *Runner {
	t.Helper()
	r, err := New(context.Background(), cfg, telemetry.NewLogger("runner-test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func replayAll(t *testing.T, dir string) []*journal.Entry {
	t.Helper()
	var entries []*journal.Entry
	err := journal.Replay(dir, time.Time{}, func(e *journal.Entry) error {
		entries = append(entries, e)
		return nil
	})
	require.NoError(t, err)
	return entries
}

func TestExpand(t *testing.T) {
	cfg := newTestConfig(t)

	res, err := Expand(cfg)
	require.NoError(t, err)

	assert.Contains(t, res.Providers, "p1")
	require.Contains(t, res.Profiles, "test")
	require.Contains(t, res.Profiles["test"], "web_test_p1A")
	assert.Equal(t, "t2.medium", res.Profiles["test"]["web_test_p1A"].Size)
	assert.Len(t, res.Maps["test"]["web_test_p1A"], 2)
	assert.Empty(t, res.Warnings)
}

func TestRunner_RunOnceApplies(t *testing.T) {
	cfg := newTestConfig(t)
	r := newTestRunner(t, cfg)

	out, err := r.RunOnce(context.Background(), Options{Command: "apply"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), out.Revision)
	assert.Equal(t, 3, out.Summary.Created)
	assert.FileExists(t, filepath.Join(cfg.ConfDir, "cloud.providers.d", "p1.conf"))
	assert.FileExists(t, filepath.Join(cfg.ConfDir, "cloud.profiles.d", "test.conf"))
	assert.FileExists(t, filepath.Join(cfg.ConfDir, "cloud.maps", "test"))

	run, err := r.Store().LastRun()
	require.NoError(t, err)
	assert.Equal(t, "apply", run.Command)
	assert.Equal(t, 3, run.Created)
	assert.False(t, run.DryRun)

	entries := replayAll(t, JournalDir(cfg))
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, journal.EntryApplied, e.Type)
		assert.Equal(t, int64(1), e.Revision)
	}
}

func TestRunner_SecondPassUnchanged(t *testing.T) {
	cfg := newTestConfig(t)
	r := newTestRunner(t, cfg)
	ctx := context.Background()

	_, err := r.RunOnce(ctx, Options{Command: "apply"})
	require.NoError(t, err)

	out, err := r.RunOnce(ctx, Options{Command: "apply"})
	require.NoError(t, err)

	assert.Equal(t, int64(2), out.Revision)
	assert.Equal(t, 0, out.Summary.Created)
	assert.Equal(t, 3, out.Summary.Unchanged)
	assert.False(t, out.Summary.Changed())
}

func TestRunner_DryRunWritesNothing(t *testing.T) {
	cfg := newTestConfig(t)
	r := newTestRunner(t, cfg)

	out, err := r.RunOnce(context.Background(), Options{Command: "apply", DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, int64(1), out.Revision)
	assert.Equal(t, 3, out.Summary.Created)
	assert.NoDirExists(t, cfg.ConfDir)

	run, err := r.Store().GetRun(1)
	require.NoError(t, err)
	assert.True(t, run.DryRun)

	for _, e := range replayAll(t, JournalDir(cfg)) {
		assert.Equal(t, journal.EntryPlanned, e.Type)
	}
}

func TestRunner_StrictRefusesOnErrors(t *testing.T) {
	cfg := newTestConfig(t)
	writeInputs(t, cfg.DataDir, brokenDefaultsYAML, providersYAML, serversYAML)
	r := newTestRunner(t, cfg)

	out, err := r.RunOnce(context.Background(), Options{Command: "apply", Strict: true})
	require.Error(t, err)

	require.NotNil(t, out)
	assert.True(t, out.Result.Warnings.HasErrors())
	assert.NoDirExists(t, cfg.ConfDir)
	assert.Equal(t, int64(0), r.Store().CurrentRevision())

	entries := replayAll(t, JournalDir(cfg))
	require.Len(t, entries, 1)
	assert.Equal(t, journal.EntryFailed, entries[0].Type)
	assert.NotEmpty(t, entries[0].Error)
}

func TestRunner_NonStrictAppliesDespiteErrors(t *testing.T) {
	cfg := newTestConfig(t)
	writeInputs(t, cfg.DataDir, brokenDefaultsYAML, providersYAML, serversYAML)
	r := newTestRunner(t, cfg)

	out, err := r.RunOnce(context.Background(), Options{Command: "apply"})
	require.NoError(t, err)

	// the failed provider emitted nothing, but the pass still records
	assert.Equal(t, int64(1), out.Revision)
	assert.Equal(t, 0, out.Summary.Created)

	run, err := r.Store().GetRun(1)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Errors)
}

func TestRunner_PolicyGate(t *testing.T) {
	cfg := newTestConfig(t)
	policyDir := filepath.Join(filepath.Dir(cfg.DataDir), "policies")
	require.NoError(t, os.MkdirAll(policyDir, 0755))
	deny := `package cloudfu

import rego.v1

decision := "deny" if {
	input.profile.size == "t2.medium"
}

reason := "size blocked" if {
	decision == "deny"
}`
	require.NoError(t, os.WriteFile(filepath.Join(policyDir, "sizes.rego"), []byte(deny), 0600))
	cfg.PolicyDir = policyDir
	r := newTestRunner(t, cfg)
	ctx := context.Background()

	out, err := r.RunOnce(ctx, Options{Command: "apply"})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Result.Warnings.Count(types.SeverityError))

	run, err := r.Store().GetRun(out.Revision)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Errors)

	_, err = r.RunOnce(ctx, Options{Command: "apply", Strict: true})
	require.Error(t, err)
}

func TestRunner_MissingDataDirFails(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.DataDir = filepath.Join(cfg.DataDir, "nope")
	r := newTestRunner(t, cfg)

	_, err := r.RunOnce(context.Background(), Options{Command: "apply"})
	require.Error(t, err)
}
