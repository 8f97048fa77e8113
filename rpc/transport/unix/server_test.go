package unix

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenReplacesStaleSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memkv.sock")

	// leave a socket file behind without unlinking it
	first, err := net.Listen("unix", path)
	require.NoError(t, err)
	first.(*net.UnixListener).SetUnlinkOnClose(false)
	require.NoError(t, first.Close())
	_, err = os.Lstat(path)
	require.NoError(t, err)

	listener, err := (&serverConnector{}).Listen(path)
	require.NoError(t, err)
	assert.NoError(t, listener.Close())
}

func TestListenKeepsRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	_, err := (&serverConnector{}).Listen(path)
	assert.ErrorContains(t, err, "is not a socket")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}
