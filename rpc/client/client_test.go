package client_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/memKV/lib/store"
	storetesting "github.com/ValentinKolb/memKV/lib/store/testing"
	"github.com/ValentinKolb/memKV/rpc/client"
	"github.com/ValentinKolb/memKV/rpc/common"
	"github.com/ValentinKolb/memKV/rpc/serializer"
	"github.com/ValentinKolb/memKV/rpc/server"
	"github.com/ValentinKolb/memKV/rpc/transport"
	"github.com/ValentinKolb/memKV/rpc/transport/base"
	rpchttp "github.com/ValentinKolb/memKV/rpc/transport/http"
	"github.com/ValentinKolb/memKV/rpc/transport/tcp"
	"github.com/ValentinKolb/memKV/rpc/transport/unix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSerializers = map[string]func() serializer.IRPCSerializer{
	"JSON":   serializer.NewJSONSerializer,
	"GOB":    serializer.NewGOBSerializer,
	"Binary": serializer.NewBinarySerializer,
}

// startServer starts a server with a fresh store behind an httptest server
func startServer(t *testing.T, ser serializer.IRPCSerializer, exportDir string) string {
	t.Helper()

	tr := rpchttp.NewHttpServerTransport()
	srv := server.NewRPCServer(common.ServerConfig{
		TimeoutSecond:       5,
		SweepIntervalSecond: 1,
		ExportDir:           exportDir,
		Compression:         "gzip",
		LogLevel:            "warning",
	}, tr, ser)
	require.NoError(t, srv.Init())

	ts := httptest.NewServer(tr.Handler())
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Close(ctx); err != nil {
			t.Errorf("failed to close server: %v", err)
		}
	})
	return ts.URL
}

// startSocketServer starts a server listening with a socket transport on endpoint
// and returns the address it listens on
func startSocketServer(t *testing.T, tr *base.ServerTransport, endpoint string, ser serializer.IRPCSerializer, exportDir string) string {
	t.Helper()

	config := common.ServerConfig{
		Endpoint:            endpoint,
		TimeoutSecond:       5,
		SweepIntervalSecond: 1,
		ExportDir:           exportDir,
		LogLevel:            "warning",
	}
	srv := server.NewRPCServer(config, tr, ser)
	require.NoError(t, srv.Init())

	listenErr := make(chan error, 1)
	go func() { listenErr <- tr.Listen(config) }()
	require.Eventually(t, func() bool { return tr.Addr() != nil }, 2*time.Second, 5*time.Millisecond)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Close(ctx); err != nil {
			t.Errorf("failed to close server: %v", err)
		}
		if err := <-listenErr; err != nil {
			t.Errorf("listen failed: %v", err)
		}
	})
	return tr.Addr().String()
}

func newClient(t *testing.T, endpoint string, ser serializer.IRPCSerializer) store.IStore {
	return newClientWith(t, endpoint, rpchttp.NewHttpClientTransport(), ser)
}

func newClientWith(t *testing.T, endpoint string, tr transport.IRPCClientTransport, ser serializer.IRPCSerializer) store.IStore {
	t.Helper()

	s, err := client.NewRPCStore(common.ClientConfig{
		Endpoints:     []string{endpoint},
		TimeoutSecond: 5,
		RetryCount:    1,
	}, tr, ser)
	require.NoError(t, err)
	return s
}

func TestRPCStore(t *testing.T) {
	for name, factory := range testSerializers {
		storetesting.RunIStoreTests(t, "RPCStore("+name+")", func(exportDir string) store.IStore {
			ser := factory()
			return newClient(t, startServer(t, ser, exportDir), ser)
		})
	}
}

func TestRPCStoreTCP(t *testing.T) {
	ser := serializer.NewBinarySerializer()
	storetesting.RunIStoreTests(t, "RPCStore(tcp)", func(exportDir string) store.IStore {
		endpoint := startSocketServer(t, tcp.NewTCPDefaultServerTransport(), "127.0.0.1:0", ser, exportDir)
		return newClientWith(t, endpoint, tcp.NewTCPClientTransport(), ser)
	})
}

func TestRPCStoreUnix(t *testing.T) {
	ser := serializer.NewJSONSerializer()
	storetesting.RunIStoreTests(t, "RPCStore(unix)", func(exportDir string) store.IStore {
		socket := filepath.Join(t.TempDir(), "memkv.sock")
		endpoint := startSocketServer(t, unix.NewUnixDefaultServerTransport(), socket, ser, exportDir)
		return newClientWith(t, endpoint, unix.NewUnixClientTransport(), ser)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	ser := serializer.NewBinarySerializer()
	endpoint := startServer(t, ser, t.TempDir())
	s := newClient(t, endpoint, ser)
	defer s.Destroy()

	require.True(t, s.Store("k", "v", store.StoreOptions{}).Success)

	resp, err := http.Get(endpoint + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `memkv_operations_total{op="store",code="Success"} 1`)
	assert.Contains(t, string(body), "memkv_entries 1")
}

func TestUnreachableServer(t *testing.T) {
	ser := serializer.NewJSONSerializer()
	endpoint := startServer(t, ser, t.TempDir())

	// the second endpoint refuses connections, the retry reaches the first one
	s, err := client.NewRPCStore(common.ClientConfig{
		Endpoints:     []string{"127.0.0.1:1", endpoint},
		TimeoutSecond: 2,
		RetryCount:    1,
	}, rpchttp.NewHttpClientTransport(), ser)
	require.NoError(t, err)
	defer s.Destroy()

	for i := 0; i < 4; i++ {
		res := s.Store("k", i, store.StoreOptions{})
		assert.True(t, res.Success, res.Error)
	}

	// without a reachable endpoint the failure is reported in the result
	dead, err := client.NewRPCStore(common.ClientConfig{
		Endpoints:     []string{"127.0.0.1:1"},
		TimeoutSecond: 1,
	}, rpchttp.NewHttpClientTransport(), ser)
	require.NoError(t, err)
	defer dead.Destroy()

	res := dead.Retrieve("k", "")
	assert.False(t, res.Success)
	assert.Equal(t, store.RetCInternalError, res.Code)
	assert.Error(t, res.Err())
}

func TestConnectWithoutEndpoints(t *testing.T) {
	_, err := client.NewRPCStore(common.ClientConfig{}, rpchttp.NewHttpClientTransport(), serializer.NewJSONSerializer())
	assert.Error(t, err)
}
