package base

import (
	"context"
	"math/rand"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/memKV/rpc/common"
	"github.com/ValentinKolb/memKV/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/rpc")

// initialBackoff is the pause before the first retry, it doubles with every attempt
const initialBackoff = 50 * time.Millisecond

var errConnectionClosed = errors.New("connection is closed")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(ctx context.Context, endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// responseResult contains the result of a request
type responseResult struct {
	data []byte
	err  error
}

// clientConnection is a connection to one endpoint. Broken connections are
// redialed on the next request.
type clientConnection struct {
	endpoint string
	parent   *clientTransport

	mu      sync.Mutex // Protects conn and writes to it
	conn    net.Conn
	pending *xsync.MapOf[uint64, chan responseResult]
}

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.)
type clientTransport struct {
	connector     IClientConnector
	config        common.ClientConfig
	connections   []*clientConnection
	connectionsMu sync.RWMutex
	nextConnIndex atomic.Uint64 // Round Robin counter
	nextRequestID atomic.Uint64 // Unique request IDs
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if len(config.Endpoints) == 0 {
		return errors.New("no endpoints provided")
	}

	// Close all existing connections
	t.closeConnections()

	connections := make([]*clientConnection, 0, len(config.Endpoints))
	connected := 0
	for _, endpoint := range config.Endpoints {
		c := &clientConnection{
			endpoint: strings.TrimPrefix(endpoint, t.connector.GetName()+"://"),
			parent:   t,
			pending:  xsync.NewMapOf[uint64, chan responseResult](),
		}
		connections = append(connections, c)

		// unreachable endpoints are kept and redialed on use
		if _, err := c.get(context.Background()); err != nil {
			Logger.Warningf("Failed to connect to %s: %v", c.endpoint, err)
			continue
		}
		connected++
	}

	t.connectionsMu.Lock()
	t.config = config
	t.connections = connections
	t.connectionsMu.Unlock()

	// Check if we have at least one connection
	if connected == 0 {
		t.closeConnections()
		return errors.New("failed to connect to any endpoint")
	}

	Logger.Infof("Connected to %d out of %d endpoints using %s transport",
		connected, len(config.Endpoints), t.connector.GetName())
	return nil
}

func (t *clientTransport) Send(ctx context.Context, req []byte) ([]byte, error) {
	t.connectionsMu.RLock()
	attempts := t.config.Attempts()
	t.connectionsMu.RUnlock()

	var lastErr error
	backoff := initialBackoff
	for i := 0; i < attempts; i++ {
		conn := t.getNextConnection()
		if conn == nil {
			return nil, errors.New("transport is not connected")
		}

		data, err := conn.send(ctx, req)
		if err == nil {
			return data, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		lastErr = err
		Logger.Debugf("Request attempt %d/%d failed: %v", i+1, attempts, err)

		if i < attempts-1 {
			// Exponential backoff with a small random jitter (+-10%)
			jitter := time.Duration(float64(backoff) * (0.9 + 0.2*rand.Float64()))
			select {
			case <-time.After(jitter):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}
	}

	// All attempts failed
	return nil, errors.Wrapf(lastErr, "failed to send request after %d attempts", attempts)
}

func (t *clientTransport) Close() error {
	t.closeConnections()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// getNextConnection selects the next connection via Round Robin
func (t *clientTransport) getNextConnection() *clientConnection {
	t.connectionsMu.RLock()
	defer t.connectionsMu.RUnlock()

	if len(t.connections) == 0 {
		return nil
	}
	index := t.nextConnIndex.Add(1) % uint64(len(t.connections))
	return t.connections[index]
}

// closeConnections closes all active connections
func (t *clientTransport) closeConnections() {
	t.connectionsMu.Lock()
	connections := t.connections
	t.connections = nil
	t.connectionsMu.Unlock()

	for _, c := range connections {
		c.mu.Lock()
		if c.conn != nil {
			c.drop(c.conn, errConnectionClosed)
		}
		c.mu.Unlock()
	}
}

// timeout returns the configured request timeout
func (t *clientTransport) timeout() time.Duration {
	t.connectionsMu.RLock()
	defer t.connectionsMu.RUnlock()
	return time.Duration(t.config.TimeoutSecond) * time.Second
}

// get returns the current net connection, dialing a new one if necessary
func (c *clientConnection) get(ctx context.Context) (net.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return c.conn, nil
	}

	conn, err := c.parent.connector.Connect(ctx, c.endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", c.endpoint)
	}
	c.conn = conn
	go c.readResponses(conn)
	return conn, nil
}

// send writes a request frame and waits for the matching response
func (c *clientConnection) send(ctx context.Context, req []byte) ([]byte, error) {
	conn, err := c.get(ctx)
	if err != nil {
		return nil, err
	}

	requestID := c.parent.nextRequestID.Add(1)
	respCh := make(chan responseResult, 1)
	c.pending.Store(requestID, respCh)
	defer c.pending.Delete(requestID)

	timeout := c.parent.timeout()

	// Lock the connection only for writing
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return nil, errConnectionClosed
	}
	if timeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	err = writeFrame(conn, requestID, req)
	if err != nil {
		c.drop(conn, err)
	}
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	// Wait for response or timeout
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case result := <-respCh:
		return result.data, result.err
	case <-timeoutCh:
		return nil, errors.New("request timed out")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// readResponses reads responses in a loop and distributes them to waiting requests
// until the connection fails or is closed
func (c *clientConnection) readResponses(conn net.Conn) {
	for {
		requestID, data, err := readFrame(conn, nil)
		if err != nil {
			c.mu.Lock()
			if c.conn == conn {
				if !errors.Is(err, net.ErrClosed) {
					Logger.Warningf("Connection to %s failed: %v", c.endpoint, err)
				}
				c.drop(conn, err)
			}
			c.mu.Unlock()
			return
		}

		if respCh, found := c.pending.Load(requestID); found {
			respCh <- responseResult{data: data}
		} else {
			Logger.Warningf("Received response for unknown request ID %d", requestID)
		}
	}
}

// drop closes conn and fails all pending requests. c.mu must be held.
func (c *clientConnection) drop(conn net.Conn, cause error) {
	_ = conn.Close()
	if c.conn == conn {
		c.conn = nil
	}
	c.pending.Range(func(requestID uint64, respCh chan responseResult) bool {
		select {
		case respCh <- responseResult{err: errors.Wrap(cause, "error reading response")}:
		default:
		}
		return true
	})
}
