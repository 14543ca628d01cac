package task

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sisungo/mactux-server/internal/lxerror"
	"github.com/sisungo/mactux-server/internal/vfs"
)

func TestCustomUtsSeededFromParent(t *testing.T) {
	init := InitUts{}
	hostName := init.Nodename()
	custom := NewCustomUts(init)
	require.Equal(t, init.Nodename(), custom.Nodename())

	require.NoError(t, custom.SetNodename([]byte("guest-host")))
	require.Equal(t, []byte("guest-host"), custom.Nodename())
	require.Equal(t, hostName, init.Nodename(), "InitUts itself never mutates")
}

func TestInitUtsRejectsMutation(t *testing.T) {
	init := InitUts{}
	require.Error(t, init.SetNodename([]byte("x")))
	require.Error(t, init.SetDomainname([]byte("x")))
}

func TestRenumberingPidNamespaceAssignsSequentially(t *testing.T) {
	ns := NewRenumberingPidNamespace()
	g1, err := ns.HostToGuest(4242)
	require.NoError(t, err)
	require.Equal(t, int32(1), g1)

	g2, err := ns.HostToGuest(5555)
	require.NoError(t, err)
	require.Equal(t, int32(2), g2)

	g1Again, err := ns.HostToGuest(4242)
	require.NoError(t, err)
	require.Equal(t, g1, g1Again)

	host, err := ns.GuestToHost(2)
	require.NoError(t, err)
	require.Equal(t, int32(5555), host)

	_, err = ns.GuestToHost(99)
	require.ErrorIs(t, err, lxerror.ESRCH)
}

func TestIdentityPidNamespacePassesThrough(t *testing.T) {
	ns := IdentityPidNamespace{}
	g, err := ns.HostToGuest(777)
	require.NoError(t, err)
	require.Equal(t, int32(777), g)
}

func TestPidMapperDefaultsToFail(t *testing.T) {
	err := WithPidMapper(func(m PidMapper) error {
		_, err := m.AppleToLinux(1)
		return err
	})
	require.ErrorIs(t, err, lxerror.EOPNOTSUPP)
}

func TestSetPidMapperSwitchesToIdentity(t *testing.T) {
	SetPidMapper(IdentityMapper{})
	defer SetPidMapper(FailMapper{})

	var v int32
	err := WithPidMapper(func(m PidMapper) (err error) {
		v, err = m.AppleToLinux(42)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, int32(42), v)
}

func TestProcessChildSharesNamespacesForksVfd(t *testing.T) {
	root := NewRootProcess(vfs.New(), nil)
	child := root.Child()
	require.Same(t, root.Mnt, child.Mnt)
	require.Same(t, root.Uts, child.Uts)
	require.NotSame(t, root.Vfd, child.Vfd)
}

func TestRegistryAfterForkAndAfterExec(t *testing.T) {
	reg := NewRegistry()
	root := NewRootProcess(vfs.New(), nil)
	reg.Register(100, root)

	require.NoError(t, reg.AfterFork(100, 200))
	child, ok := reg.Lookup(200)
	require.True(t, ok)
	require.Same(t, root.Mnt, child.Mnt)

	require.NoError(t, reg.AfterExec(200))

	require.ErrorIs(t, reg.AfterFork(999, 300), lxerror.ESRCH)
}
