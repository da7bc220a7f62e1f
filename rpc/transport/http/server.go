package http

import (
	"bufio"
	"context"
	"errors"
	"github.com/ValentinKolb/memDB/rpc/common"
	"github.com/ValentinKolb/memDB/rpc/transport"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"
)

var Logger = logger.GetLogger("transport/http")

// NewHttpServerTransport creates a new HTTP server transport
func NewHttpServerTransport() transport.IRPCServerTransport {
	return &httpServerTransport{}
}

type httpServerTransport struct {
	handler       transport.ServerHandleFunc
	streamHandler transport.ServerStreamHandleFunc
	config        common.ServerConfig
	server        *http.Server
	serverMu      sync.Mutex
	closed        bool
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *httpServerTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *httpServerTransport) RegisterStreamHandler(handler transport.ServerStreamHandleFunc) {
	t.streamHandler = handler
}

func (t *httpServerTransport) Listen(config common.ServerConfig) error {
	t.config = config

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if t.config.LogLevel == "debug" {
		r.Use(loggerMiddleware)
	}
	r.Post("/{shardId}", t.handleRequest)
	r.Post("/{shardId}/stream", t.handleStream)

	t.serverMu.Lock()
	if t.closed {
		t.serverMu.Unlock()
		return nil
	}
	t.server = &http.Server{
		Addr:              t.config.Transport.Endpoint,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := t.server
	t.serverMu.Unlock()

	Logger.Infof("Starting HTTP server on %s", t.config.Transport.Endpoint)

	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (t *httpServerTransport) Shutdown() error {
	t.serverMu.Lock()
	defer t.serverMu.Unlock()

	t.closed = true
	if t.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.server.Shutdown(ctx); err != nil {
		// streams still running after the grace period are cut off
		return t.server.Close()
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// readRequest parses the shard id and reads the body, it writes the error response itself
func readRequest(w http.ResponseWriter, r *http.Request) (uint64, []byte, bool) {
	shardId, err := strconv.ParseUint(chi.URLParam(r, "shardId"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid shardId", http.StatusBadRequest)
		return 0, nil, false
	}

	body, err := io.ReadAll(r.Body)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusInternalServerError)
		return 0, nil, false
	}
	return shardId, body, true
}

// handleRequest handles unary requests and writes the response to the writer
func (t *httpServerTransport) handleRequest(w http.ResponseWriter, r *http.Request) {
	shardId, body, ok := readRequest(w, r)
	if !ok {
		return
	}

	resp := t.handler(shardId, body)

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := w.Write(resp); err != nil {
		Logger.Warningf("Failed to write response: %v", err)
	}
}

// handleStream runs the stream handler and writes every message as a chunk
func (t *httpServerTransport) handleStream(w http.ResponseWriter, r *http.Request) {
	shardId, body, ok := readRequest(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	bw := bufio.NewWriter(w)
	ctx := r.Context()

	flush := func() error {
		if err := bw.Flush(); err != nil {
			return err
		}
		return rc.Flush()
	}

	send := func(resp []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeChunk(bw, chunkItem, resp); err != nil {
			return err
		}
		return flush()
	}

	err := t.streamHandler(shardId, body, send)
	if ctx.Err() != nil {
		// the client is gone
		return
	}

	if err != nil {
		Logger.Warningf("Stream for shard %d failed: %v", shardId, err)
		err = writeChunk(bw, chunkError, []byte(err.Error()))
	} else {
		err = writeChunk(bw, chunkEnd, nil)
	}
	if err == nil {
		err = flush()
	}
	if err != nil {
		Logger.Warningf("Failed to finish stream for shard %d: %v", shardId, err)
	}
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// loggerMiddleware logs every request with its status and duration
func loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// chi's wrapper captures the status code and keeps http.Flusher available
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}
