package workdir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenInitializesRootfsOnce(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "work")
	w, err := Open(dir)
	require.NoError(t, err)

	require.DirExists(t, w.Rootfs())
	require.FileExists(t, w.InitFlag())
	require.DirExists(t, w.NetDir())

	// Reopening must not fail or attempt to recreate rootfs.
	w2, err := Open(dir)
	require.NoError(t, err)
	require.Equal(t, w.Rootfs(), w2.Rootfs())
}

func TestOpenResetsNetDirEachTime(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "work")
	w, err := Open(dir)
	require.NoError(t, err)

	stale := filepath.Join(w.NetDir(), "stale-uuid")
	require.NoError(t, os.MkdirAll(stale, 0o700))

	_, err = Open(dir)
	require.NoError(t, err)
	require.NoDirExists(t, stale)
}

func TestDefaultPathHonorsEnvOverride(t *testing.T) {
	t.Setenv(EnvOverride, "/tmp/custom-mactux")
	p, err := DefaultPath()
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom-mactux", p)
}
