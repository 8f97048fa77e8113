package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ValentinKolb/memKV/lib/store/lstore"
	"github.com/ValentinKolb/memKV/rpc/common"
	"github.com/ValentinKolb/memKV/rpc/serializer"
	"github.com/ValentinKolb/memKV/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
)

var Logger = logger.GetLogger("rpc")

// shutdownTimeout bounds how long Close waits for in-flight requests
const shutdownTimeout = 10 * time.Second

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		adapter:    NewIStoreServerAdapter(config.Timeout()),
	}
}

// RPCServer exposes a single local store over a transport.
//
// Thread-safety: Init, Serve and Close may be called from different goroutines,
// request handling is delegated to the store which is safe for concurrent use.
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	adapter    IRPCServerAdapter

	initOnce sync.Once
	initErr  error
	store    *lstore.LocalStore
}

// Init creates the store and registers the handlers at the transport.
// It is called by Serve, but can be called directly to use the transport
// without listening (e.g. in tests). Calling it more than once is a no-op.
func (s *RPCServer) Init() error {
	s.initOnce.Do(func() {
		s.initErr = s.init()
	})
	return s.initErr
}

// Serve initializes the server and blocks until the transport stops.
// SIGINT and SIGTERM shut the server down gracefully.
func (s *RPCServer) Serve() error {
	if err := s.Init(); err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case sig := <-sigs:
			Logger.Infof("received %s, shutting down", sig)
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := s.transport.Shutdown(ctx); err != nil {
				Logger.Warningf("failed to shut down transport: %v", err)
			}
		case <-done:
		}
	}()

	err := s.transport.Listen(s.config)
	if destroyErr := s.destroyStore(); err == nil {
		err = destroyErr
	}
	return err
}

// Close stops the transport and destroys the store
func (s *RPCServer) Close(ctx context.Context) error {
	if err := s.transport.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "failed to shut down transport")
	}
	return s.destroyStore()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *RPCServer) init() error {
	// Init logger
	if err := common.InitLoggers(s.config); err != nil {
		return errors.Wrap(err, "invalid logger configuration")
	}

	opts, err := s.config.StoreOptions()
	if err != nil {
		return errors.Wrap(err, "invalid store configuration")
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(s.config.String())

	s.store = lstore.NewLocalStore(opts)
	s.registerTransportHandler()
	s.transport.RegisterMetrics(s.store.WritePrometheus)

	Logger.Infof("memkv setup completed successfully")
	return nil
}

func (s *RPCServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(req []byte) []byte {
		var msg common.Message
		var respMsg *common.Message

		// Decode the request and let the adapter handle it
		if err := s.serializer.Deserialize(req, &msg); err != nil {
			respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
		} else {
			respMsg = s.adapter.Handle(&msg, s.store)
		}

		// Return result
		val, err := s.serializer.Serialize(*respMsg)
		if err != nil {
			Logger.Errorf("failed to serialize %s response: %v", respMsg.MsgType, err)
			val, _ = s.serializer.Serialize(*common.NewErrorResponse(
				fmt.Sprintf("failed to serialize response: %s", err),
			))
		}
		return val
	})
}

func (s *RPCServer) destroyStore() error {
	if s.store == nil {
		return nil
	}
	return s.store.Destroy()
}
