package base

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/memKV/rpc/common"
	"github.com/ValentinKolb/memKV/rpc/transport"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener for the endpoint and returns it
	Listen(endpoint string) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}

// -----------------------------------------------------------
// Server Transport
// -----------------------------------------------------------

// ServerTransport implements the core server transport functionality
// independent of the specific transport medium (unix, tcp, etc.)
type ServerTransport struct {
	connector         IServerConnector
	handler           transport.ServerHandleFunc
	bufferPool        *sync.Pool
	maxWorkersPerConn int

	mu       sync.Mutex
	listener net.Listener
	timeout  time.Duration

	closing atomic.Bool
	conns   *xsync.MapOf[net.Conn, struct{}]
	active  sync.WaitGroup
}

var _ transport.IRPCServerTransport = (*ServerTransport)(nil)

// NewBaseServerTransport creates a new base server transport with a per-connection
// worker pool. bufferSize is the initial size of pooled read buffers.
func NewBaseServerTransport(connector IServerConnector, bufferSize int, maxWorkersPerConn int) *ServerTransport {
	// minimum one worker per connection
	maxWorkersPerConn = max(maxWorkersPerConn, 1)

	return &ServerTransport{
		connector:         connector,
		maxWorkersPerConn: maxWorkersPerConn,
		conns:             xsync.NewMapOf[net.Conn, struct{}](),
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, bufferSize)
				return &buf
			},
		},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *ServerTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

// RegisterMetrics is a no-op, metrics are only served by the http transport
func (t *ServerTransport) RegisterMetrics(transport.MetricsWriteFunc) {
	Logger.Debugf("%s transport does not serve metrics", t.connector.GetName())
}

func (t *ServerTransport) Listen(config common.ServerConfig) error {
	if t.handler == nil {
		return errors.New("no handler registered")
	}

	// Create listener using the connector
	listener, err := t.connector.Listen(config.Endpoint)
	if err != nil {
		return errors.Wrap(err, "failed to create listener")
	}

	t.mu.Lock()
	t.listener = listener
	t.timeout = config.Timeout()
	t.mu.Unlock()

	Logger.Infof("Starting %s server on %s with %d workers per connection",
		t.connector.GetName(), listener.Addr(), t.maxWorkersPerConn)

	// Accept connections
	for {
		conn, err := listener.Accept()
		if err != nil {
			if t.closing.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			Logger.Errorf("Accept error: %v", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}

		// Handle the connection in a goroutine
		t.conns.Store(conn, struct{}{})
		t.active.Add(1)
		go t.handleConnection(conn)
	}
}

func (t *ServerTransport) Shutdown(ctx context.Context) error {
	t.closing.Store(true)

	t.mu.Lock()
	listener := t.listener
	t.mu.Unlock()
	if listener == nil {
		return nil
	}

	Logger.Infof("Shutting down %s server", t.connector.GetName())
	if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}

	// idle connections block in a read, closing them ends their loop
	// after the running requests are answered
	t.conns.Range(func(conn net.Conn, _ struct{}) bool {
		_ = conn.SetReadDeadline(time.Now())
		return true
	})

	done := make(chan struct{})
	go func() {
		t.active.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		t.conns.Range(func(conn net.Conn, _ struct{}) bool {
			_ = conn.Close()
			return true
		})
		return ctx.Err()
	}
}

// Addr returns the address the server listens on, nil before Listen
func (t *ServerTransport) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConnection handles incoming requests for one connection
func (t *ServerTransport) handleConnection(conn net.Conn) {
	defer t.active.Done()
	defer t.conns.Delete(conn)
	defer conn.Close()

	t.mu.Lock()
	timeout := t.timeout
	t.mu.Unlock()

	// The buffered channel acts as a counting semaphore limiting concurrent workers
	workerSemaphore := make(chan struct{}, t.maxWorkersPerConn)

	// Create a wait group to wait for all workers to finish
	var wg sync.WaitGroup

	// Create a mutex to protect writes to the connection
	var connMutex sync.Mutex

	// Handler function that processes requests in worker goroutines
	handleResponse := func(requestID uint64, data []byte) {
		start := time.Now()
		resp := t.handler(data)
		Logger.Debugf("Processed request %d took %s", requestID, time.Since(start))

		connMutex.Lock()
		defer connMutex.Unlock()

		if timeout > 0 {
			if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
				Logger.Errorf("Failed to set write deadline: %v", err)
				return
			}
		}

		// Write the response with the same requestID
		if err := writeFrame(conn, requestID, resp); err != nil {
			Logger.Errorf("Failed to write response: %v", err)
		}
	}

	// Handle requests in a loop
	for !t.closing.Load() {
		bufPtr := t.bufferPool.Get().(*[]byte)

		requestID, data, err := readFrame(conn, *bufPtr)
		if err != nil {
			t.bufferPool.Put(bufPtr)

			var netErr net.Error
			switch {
			case errors.Is(err, io.EOF):
				Logger.Debugf("Connection closed by client")
			case t.closing.Load() && errors.As(err, &netErr) && netErr.Timeout():
				// read deadline set by Shutdown
			default:
				Logger.Errorf("Error handling request: %v", err)
			}
			break
		}

		// Acquire a slot in the semaphore (blocks if maxWorkersPerConn is reached)
		workerSemaphore <- struct{}{}
		wg.Add(1)

		go func() {
			defer func() {
				t.bufferPool.Put(bufPtr)
				<-workerSemaphore
				wg.Done()
			}()
			handleResponse(requestID, data)
		}()
	}

	// Wait for all workers to finish before closing the connection
	wg.Wait()
}
