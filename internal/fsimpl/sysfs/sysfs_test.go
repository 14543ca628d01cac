package sysfs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sisungo/mactux-server/internal/abi"
)

func TestEmptyMountHasNoEntries(t *testing.T) {
	m := New()
	names, err := m.ReadDir("")
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestOpenAnythingFails(t *testing.T) {
	m := New()
	_, err := m.Open("anything", abi.ORdOnly)
	require.Error(t, err)
}
