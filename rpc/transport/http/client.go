package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/memDB/rpc/common"
	"github.com/ValentinKolb/memDB/rpc/transport"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// NewHttpClientTransport creates a new HTTP client transport
func NewHttpClientTransport() transport.IRPCClientTransport {
	return &httpClientTransport{}
}

type httpClientTransport struct {
	serverURLs []*url.URL
	client     *http.Client
	counter    uint32
	retryCount int
	timeout    time.Duration
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *httpClientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	// Parse each server URL, plain host:port endpoints default to http
	parsedURLs := make([]*url.URL, len(config.Transport.Endpoints))
	for i, server := range config.Transport.Endpoints {
		if !strings.Contains(server, "://") {
			server = "http://" + server
		}
		parsedURL, err := url.Parse(strings.TrimSuffix(server, "/"))
		if err != nil {
			return err
		}
		parsedURLs[i] = parsedURL
	}

	connsPerHost := max(config.Transport.ConnectionsPerEndpoint, 10)
	t.client = &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        connsPerHost * len(parsedURLs),
			MaxIdleConnsPerHost: connsPerHost,
			IdleConnTimeout:     90 * time.Second,
			WriteBufferSize:     config.Transport.WriteBufferSize,
			ReadBufferSize:      config.Transport.ReadBufferSize,
		},
	}

	t.serverURLs = parsedURLs
	t.counter = 0
	t.retryCount = max(config.Transport.RetryCount, 1)
	t.timeout = time.Duration(config.TimeoutSecond) * time.Second

	return nil
}

func (t *httpClientTransport) Send(shardId uint64, req []byte) ([]byte, error) {
	ctx, cancel := t.requestContext()
	defer cancel()

	httpResponse, err := t.post(ctx, fmt.Sprintf("%d", shardId), req)
	if err != nil {
		return nil, err
	}
	defer httpResponse.Body.Close()

	return io.ReadAll(httpResponse.Body)
}

func (t *httpClientTransport) Stream(shardId uint64, req []byte) (transport.IClientStream, error) {
	// the timeout applies to every single chunk, not to the whole stream
	ctx, cancel := context.WithCancel(context.Background())

	httpResponse, err := t.post(ctx, fmt.Sprintf("%d/stream", shardId), req)
	if err != nil {
		cancel()
		return nil, err
	}

	return &httpClientStream{
		body:    httpResponse.Body,
		cancel:  cancel,
		timeout: t.timeout,
	}, nil
}

func (t *httpClientTransport) Close() error {
	if t.client != nil {
		t.client.CloseIdleConnections()
	}

	t.client = nil
	t.serverURLs = nil

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (t *httpClientTransport) requestContext() (context.Context, context.CancelFunc) {
	if t.timeout > 0 {
		return context.WithTimeout(context.Background(), t.timeout)
	}
	return context.WithCancel(context.Background())
}

// post sends the request to the next server (round-robin). Only requests that could not
// be delivered (dial errors) are retried.
func (t *httpClientTransport) post(ctx context.Context, path string, req []byte) (*http.Response, error) {
	if t.client == nil {
		return nil, fmt.Errorf("http transport not initialized")
	}

	var lastErr error
	backoffMs := 50
	for i := 0; i < t.retryCount; i++ {
		idx := atomic.AddUint32(&t.counter, 1) % uint32(len(t.serverURLs))
		requestURL := t.serverURLs[idx].String() + "/" + path

		httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(req))
		if err != nil {
			return nil, err
		}
		httpRequest.Header.Set("Content-Type", "application/octet-stream")

		httpResponse, err := t.client.Do(httpRequest)
		if err == nil {
			if httpResponse.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(io.LimitReader(httpResponse.Body, 1024))
				httpResponse.Body.Close()
				return nil, fmt.Errorf("http error: %s: %s", httpResponse.Status, strings.TrimSpace(string(body)))
			}
			return httpResponse, nil
		}

		lastErr = err
		var opErr *net.OpError
		if !errors.As(err, &opErr) || opErr.Op != "dial" {
			return nil, err
		}

		Logger.Debugf("Request attempt %d/%d failed: %v", i+1, t.retryCount, err)
		if i < t.retryCount-1 {
			jitter := float64(backoffMs) * (0.9 + 0.2*rand.Float64())
			time.Sleep(time.Duration(jitter) * time.Millisecond)
			backoffMs *= 2
		}
	}

	return nil, fmt.Errorf("failed to send request after %d attempts: %w", t.retryCount, lastErr)
}

// --------------------------------------------------------------------------
// Client Stream
// --------------------------------------------------------------------------

// httpClientStream reads the chunks of a stream response, it is not safe for concurrent use
type httpClientStream struct {
	body      io.ReadCloser
	cancel    context.CancelFunc
	timeout   time.Duration
	err       error
	closeOnce sync.Once
}

func (s *httpClientStream) Recv() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}

	kind, data, err := s.readChunk()
	if err != nil {
		s.fail(fmt.Errorf("error reading stream: %w", err))
		return nil, s.err
	}

	switch kind {
	case chunkItem:
		return data, nil
	case chunkEnd:
		s.fail(io.EOF)
	default:
		s.fail(fmt.Errorf("stream failed on server: %s", data))
	}
	return nil, s.err
}

// readChunk reads the next chunk, a configured timeout aborts the whole stream
func (s *httpClientStream) readChunk() (byte, []byte, error) {
	if s.timeout <= 0 {
		return readChunk(s.body)
	}

	timer := time.AfterFunc(s.timeout, s.cancel)
	kind, data, err := readChunk(s.body)
	if !timer.Stop() {
		return 0, nil, fmt.Errorf("stream timed out")
	}
	return kind, data, err
}

func (s *httpClientStream) fail(err error) {
	s.err = err
	_ = s.Close()
}

func (s *httpClientStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.body.Close()
		if s.err == nil {
			s.err = io.EOF
		}
	})
	return err
}
