package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_TransformsInitialAndChangedUnits(t *testing.T) {
	units := t.TempDir()
	out := t.TempDir()
	writeUnit(t, units, "counter.yaml")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewWatchCommand(&RootOptions{Format: "text"})
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs([]string{units, "-o", out, "--debounce", "20ms"})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	// The directory is watched before the initial pass writes anything.
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(out, "counter.kt.txt"))
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	writeUnit(t, units, "registry.yaml")
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(out, "registry.kt.txt"))
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	// Files that are not units are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(units, "notes.txt"), []byte("x"), 0644))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}

	assert.Contains(t, stdout.String(), "✓ counter.kt")
	assert.Contains(t, stdout.String(), "✓ registry.kt")
	assert.NotContains(t, stdout.String(), "notes")
	assert.Contains(t, stderr.String(), "Watching "+units)
}

func TestWatch_FailedUnitKeepsWatching(t *testing.T) {
	units := t.TempDir()
	out := t.TempDir()
	writeUnit(t, units, "alias.yaml")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stdout := &bytes.Buffer{}
	cmd := NewWatchCommand(&RootOptions{Format: "text"})
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{units, "-o", out, "--debounce", "20ms"})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	// The initial pass fails alias; the new unit is still picked up, by
	// the watcher or by the initial pass if it has not run yet.
	writeUnit(t, units, "counter.yaml")
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(out, "counter.kt.txt"))
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Contains(t, stdout.String(), "Error [E301]")
	assert.NoFileExists(t, filepath.Join(out, "alias.kt.txt"))
}

func TestWatch_NotADirectory(t *testing.T) {
	cmd := NewWatchCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"testdata/units/counter.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "not a directory")
}

func TestIsWatchedUnit(t *testing.T) {
	assert.True(t, isWatchedUnit("units/counter.yaml"))
	assert.True(t, isWatchedUnit("units/counter.cue"))
	assert.False(t, isWatchedUnit("units/atomicfu.yaml"))
	assert.False(t, isWatchedUnit("units/notes.txt"))
}
