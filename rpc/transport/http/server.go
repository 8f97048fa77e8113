package http

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ValentinKolb/memKV/rpc/common"
	"github.com/ValentinKolb/memKV/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
)

var Logger = logger.GetLogger("transport/rpc")

// maxRequestBytes bounds the size of a single RPC request body
const maxRequestBytes = 64 << 20

// NewHttpServerTransport creates a server transport serving
// POST /rpc and GET /metrics
func NewHttpServerTransport() *ServerTransport {
	return &ServerTransport{}
}

// ServerTransport implements transport.IRPCServerTransport over HTTP
type ServerTransport struct {
	handler transport.ServerHandleFunc
	metrics transport.MetricsWriteFunc

	mu     sync.Mutex
	server *http.Server
}

var _ transport.IRPCServerTransport = (*ServerTransport)(nil)

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *ServerTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *ServerTransport) RegisterMetrics(writer transport.MetricsWriteFunc) {
	t.metrics = writer
}

func (t *ServerTransport) Listen(config common.ServerConfig) error {
	handler := t.Handler()
	if config.LogLevel == "debug" {
		handler = loggerMiddleware(handler)
	}

	srv := &http.Server{
		Addr:              config.Endpoint,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if timeout := config.Timeout(); timeout > 0 {
		srv.ReadTimeout = timeout
		srv.WriteTimeout = timeout
	}

	t.mu.Lock()
	t.server = srv
	t.mu.Unlock()

	Logger.Infof("Starting HTTP server on %s", config.Endpoint)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (t *ServerTransport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	srv := t.server
	t.mu.Unlock()

	if srv == nil {
		return nil
	}
	Logger.Infof("Shutting down HTTP server")
	return srv.Shutdown(ctx)
}

// Handler returns the HTTP handler of the transport without starting a server
func (t *ServerTransport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rpc", t.handleRequest)
	mux.HandleFunc("GET /metrics", t.handleMetrics)
	return mux
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleRequest handles incoming HTTP requests and writes the response to the writer
func (t *ServerTransport) handleRequest(w http.ResponseWriter, r *http.Request) {
	if t.handler == nil {
		http.Error(w, "No handler registered", http.StatusServiceUnavailable)
		return
	}

	// Read request body
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	defer r.Body.Close()

	// Check if body could be read
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	// Send the handler
	resp := t.handler(body)

	// Write response
	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err = w.Write(resp); err != nil {
		Logger.Warningf("Failed to write response: %v", err)
	}
}

// handleMetrics writes the registered metrics in Prometheus text format
func (t *ServerTransport) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	if t.metrics == nil {
		http.Error(w, "Metrics not available", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	t.metrics(w)
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create custom response writer to capture status code
		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		// Process request
		next.ServeHTTP(rw, r)

		// Log the request
		duration := time.Since(start)
		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, duration)
	})
}
