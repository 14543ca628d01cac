package device

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := []struct{ major, minor uint32 }{
		{0, 0},
		{1, 3},
		{5, 1},
		{0xabcde, 0x123},
		{0xfffff, 0xffffff},
	}
	for _, c := range cases {
		n := New(c.major, c.minor)
		require.Equal(t, c.major, n.Major(), "major for %v", c)
		require.Equal(t, c.minor, n.Minor(), "minor for %v", c)
	}
}

func TestWellKnown(t *testing.T) {
	require.Equal(t, "1:3", New(1, 3).String())
}
