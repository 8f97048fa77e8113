package base

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/memKV/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loopbackConnector struct{}

func (loopbackConnector) GetName() string { return "tcp" }

func (loopbackConnector) Listen(endpoint string) (net.Listener, error) {
	return net.Listen("tcp", endpoint)
}

func (loopbackConnector) Connect(ctx context.Context, endpoint string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", endpoint)
}

// startEchoServer starts a server answering every request with "echo:" + request
func startEchoServer(t *testing.T, delay time.Duration) (*ServerTransport, string) {
	t.Helper()

	tr := NewBaseServerTransport(loopbackConnector{}, 1024, 4)
	tr.RegisterHandler(func(req []byte) []byte {
		time.Sleep(delay)
		return append([]byte("echo:"), req...)
	})

	done := make(chan error, 1)
	go func() { done <- tr.Listen(common.ServerConfig{Endpoint: "127.0.0.1:0", TimeoutSecond: 5}) }()
	require.Eventually(t, func() bool { return tr.Addr() != nil }, 2*time.Second, 5*time.Millisecond)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		assert.NoError(t, tr.Shutdown(ctx))
		assert.NoError(t, <-done)
	})
	return tr, tr.Addr().String()
}

func TestFrameRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	payload := bytes.Repeat([]byte("x"), 3000)
	go func() {
		_ = writeFrame(client, 42, payload)
		_ = writeFrame(client, 43, nil)
	}()

	// the buffer is too small for the payload and gets replaced
	id, data, err := readFrame(server, make([]byte, 16))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
	assert.Equal(t, payload, data)

	id, data, err = readFrame(server, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(43), id)
	assert.Empty(t, data)
}

func TestReadFrameRejectsOversizedPayload(t *testing.T) {
	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint64(header[:8], 1)
	binary.BigEndian.PutUint32(header[8:], maxFrameSize+1)

	_, _, err := readFrame(bytes.NewReader(header), nil)
	assert.Error(t, err)
}

func TestConcurrentRequests(t *testing.T) {
	_, endpoint := startEchoServer(t, 5*time.Millisecond)

	tr := NewBaseClientTransport(loopbackConnector{})
	require.NoError(t, tr.Connect(common.ClientConfig{Endpoints: []string{endpoint}, TimeoutSecond: 5}))
	defer tr.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := []byte(fmt.Sprintf("req-%d", i))
			resp, err := tr.Send(context.Background(), req)
			if assert.NoError(t, err) {
				// responses are matched to their request
				assert.Equal(t, "echo:"+string(req), string(resp))
			}
		}(i)
	}
	wg.Wait()
}

func TestReconnectAfterServerRestart(t *testing.T) {
	srv, endpoint := startEchoServer(t, 0)

	tr := NewBaseClientTransport(loopbackConnector{})
	require.NoError(t, tr.Connect(common.ClientConfig{Endpoints: []string{endpoint}, TimeoutSecond: 2, RetryCount: 3}))
	defer tr.Close()

	_, err := tr.Send(context.Background(), []byte("a"))
	require.NoError(t, err)

	// drop the server side of all connections
	srv.conns.Range(func(conn net.Conn, _ struct{}) bool {
		_ = conn.Close()
		return true
	})

	// the broken connection is redialed by a retry
	resp, err := tr.Send(context.Background(), []byte("b"))
	require.NoError(t, err)
	assert.Equal(t, "echo:b", string(resp))
}

func TestSendHonorsContext(t *testing.T) {
	_, endpoint := startEchoServer(t, 200*time.Millisecond)

	tr := NewBaseClientTransport(loopbackConnector{})
	require.NoError(t, tr.Connect(common.ClientConfig{Endpoints: []string{endpoint}, TimeoutSecond: 5, RetryCount: 2}))
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := tr.Send(ctx, []byte("slow"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConnectWithoutReachableEndpoint(t *testing.T) {
	tr := NewBaseClientTransport(loopbackConnector{})
	assert.Error(t, tr.Connect(common.ClientConfig{}))
	assert.Error(t, tr.Connect(common.ClientConfig{Endpoints: []string{"127.0.0.1:1"}, TimeoutSecond: 1}))

	_, err := tr.Send(context.Background(), []byte("x"))
	assert.Error(t, err)
}
