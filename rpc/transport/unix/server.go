package unix

import (
	"net"
	"os"

	"github.com/ValentinKolb/memKV/rpc/transport/base"
	"github.com/pkg/errors"
)

const (
	defaultBufferSize        = 64 * 1024 // 64 KB
	defaultMaxWorkersPerConn = 16
)

// serverConnector implements the IServerConnector interface for Unix sockets
type serverConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return "unix"
}

func (c *serverConnector) Listen(socketPath string) (net.Listener, error) {
	if err := removeStaleSocket(socketPath); err != nil {
		return nil, err
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on unix socket %s", socketPath)
	}
	return listener, nil
}

// removeStaleSocket deletes a socket file left behind by a previous run.
// Any other kind of file at that path is left alone and reported.
func removeStaleSocket(socketPath string) error {
	info, err := os.Lstat(socketPath)
	switch {
	case os.IsNotExist(err):
		return nil
	case err != nil:
		return errors.Wrapf(err, "stat %s", socketPath)
	case info.Mode()&os.ModeSocket == 0:
		return errors.Errorf("%s exists and is not a socket", socketPath)
	}
	if err := os.Remove(socketPath); err != nil {
		return errors.Wrapf(err, "remove stale socket %s", socketPath)
	}
	return nil
}

// --------------------------------------------------------------------------
// Server Transport Factory Method
// --------------------------------------------------------------------------

// NewUnixDefaultServerTransport creates a new Unix server transport with default buffer size
func NewUnixDefaultServerTransport() *base.ServerTransport {
	return NewUnixServerTransport(defaultBufferSize, defaultMaxWorkersPerConn)
}

// NewUnixServerTransport creates a new Unix server transport with specified buffer size
// and number of concurrent requests per connection
func NewUnixServerTransport(bufferSize int, maxWorkersPerConn int) *base.ServerTransport {
	return base.NewBaseServerTransport(&serverConnector{}, bufferSize, maxWorkersPerConn)
}
