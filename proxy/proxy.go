// Package proxy provides a recording proxy for agent UI streams. It forwards
// every request to the upstream producer untouched and reconstructs each
// streamed turn with the same pipeline the chat client uses.
package proxy

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"

	"github.com/papercomputeco/streamflow/pkg/client"
	"github.com/papercomputeco/streamflow/pkg/logger"
	"github.com/papercomputeco/streamflow/pkg/session"
	"github.com/papercomputeco/streamflow/pkg/storage"
	"github.com/papercomputeco/streamflow/pkg/transcript"
	"github.com/papercomputeco/streamflow/proxy/header"
	"github.com/papercomputeco/streamflow/proxy/worker"
)

// Proxy is a transparent proxy between an agent UI and its stream producer.
// It forwards requests to the upstream and enqueues reconstructed turns for
// async storage via its worker pool.
type Proxy struct {
	config        Config
	driver        storage.Driver
	workerPool    *worker.Pool
	logger        *slog.Logger
	httpClient    *http.Client
	server        *fiber.App
	headerHandler *header.Handler
}

// New creates a new Proxy.
// The driver is injected to handle async persistence of recorded turns.
func New(config Config, driver storage.Driver, log *slog.Logger) (*Proxy, error) {
	log = logger.OrNop(log)

	if config.ResponseNode == "" {
		config.ResponseNode = transcript.DefaultResponseNode
	}
	if config.Timeout <= 0 {
		config.Timeout = client.DefaultTimeout
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Enable streaming
		StreamRequestBody: true,
	})

	// Add compression middleware to handle responses
	app.Use(compress.New())

	wp, err := worker.NewPool(&worker.Config{
		Driver:    driver,
		Publisher: config.Publisher,
		Upstream:  config.UpstreamURL,
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}

	p := &Proxy{
		config:        config,
		driver:        driver,
		workerPool:    wp,
		logger:        log,
		server:        app,
		headerHandler: header.NewHandler(),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}

	// Register transparent proxy route - forwards any path to upstream
	app.All("/*", p.handleProxy)

	return p, nil
}

// Run starts the proxy server on the given listening address
func (p *Proxy) Run() error {
	p.logger.Info("starting proxy server",
		"listen", p.config.ListenAddr,
		"upstream", p.config.UpstreamURL,
	)

	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the proxy server using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting proxy server",
		"listen", listener.Addr().String(),
		"upstream", p.config.UpstreamURL,
	)

	return p.server.Listener(listener)
}

// Close gracefully shuts down the proxy and waits for the worker pool to drain
func (p *Proxy) Close() error {
	err := p.server.Shutdown()
	p.workerPool.Close()
	return err
}

// handleProxy forwards the request to upstream. POST requests carrying a
// producer request body are recorded as turns.
func (p *Proxy) handleProxy(c *fiber.Ctx) error {
	startTime := time.Now()
	sessionID := p.headerHandler.SessionID(c)
	path := c.Path()
	method := c.Method()

	// Copy the body: fasthttp reuses it once the handler returns, but the
	// streaming goroutine outlives the handler.
	body := append([]byte(nil), c.Body()...)

	var rec *recording
	if method == fiber.MethodPost && len(body) > 0 {
		req, err := session.ParseRequest(body)
		switch {
		case err != nil:
			p.logger.Debug("not recording request", "path", path, "error", err)
		case len(req.Input.Messages) == 0:
			p.logger.Debug("not recording request without messages", "path", path)
		default:
			rec = p.newRecording(sessionID, path, req, startTime)
		}
	}

	upstreamURL := strings.TrimRight(p.config.UpstreamURL, "/") + path
	if q := c.Request().URI().QueryString(); len(q) > 0 {
		upstreamURL += "?" + string(q)
	}

	var reqBody io.Reader
	if len(body) > 0 {
		reqBody = bytes.NewReader(body)
	}

	// Use context.Background() instead of c.Context() because fasthttp recycles
	// its RequestCtx after the handler returns, but the streaming callback runs
	// asynchronously in a separate goroutine and needs the upstream connection
	// to remain open.
	httpReq, err := http.NewRequestWithContext(context.Background(), method, upstreamURL, reqBody)
	if err != nil {
		p.logger.Error("failed to create upstream request", "error", err)
		rec.fail(p, "internal error", fiber.StatusInternalServerError)
		return c.Status(fiber.StatusInternalServerError).JSON(client.ErrorResponse{Error: "internal error"})
	}

	p.headerHandler.SetUpstreamRequestHeaders(c, httpReq, sessionID)

	p.logger.Debug("forwarding request to upstream",
		"method", method,
		"url", upstreamURL,
		"session_id", sessionID,
	)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.Error("upstream request failed", "error", err)
		rec.fail(p, err.Error(), fiber.StatusBadGateway)
		c.Set(session.Header, sessionID)
		return c.Status(fiber.StatusBadGateway).JSON(client.ErrorResponse{Error: "upstream request failed"})
	}

	p.headerHandler.SetClientResponseHeaders(c, httpResp, sessionID)

	streaming := strings.HasPrefix(httpResp.Header.Get("Content-Type"), "text/event-stream")
	if !streaming || httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return p.handleBufferedResponse(c, httpResp, rec)
	}

	// Use io.Pipe + SetBodyStream instead of SetBodyStreamWriter.
	// SetBodyStreamWriter uses an internal PipeConns with a buffered channel
	// (capacity 4) and two bufio.Writers, which means Flush() in the callback
	// only pushes data into the pipe and not to the TCP socket. This causes all
	// chunks to buffer in memory before being sent to the client.
	//
	// With io.Pipe, pw.Write blocks until the reader consumes the data, and
	// the reader is fasthttp's writeBodyChunked which flushes to TCP after
	// every chunk. This gives direct backpressure and true per-chunk streaming.
	pr, pw := io.Pipe()
	go p.streamToPipeWriter(httpResp, pw, rec)

	// Set the pipe reader as the body stream with unknown size (-1),
	// which triggers chunked transfer encoding in fasthttp.
	c.Status(httpResp.StatusCode)
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// handleBufferedResponse relays a non-stream upstream response. Failed
// recorded requests are stored as failed turns.
func (p *Proxy) handleBufferedResponse(c *fiber.Ctx, httpResp *http.Response, rec *recording) error {
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		p.logger.Error("failed to read upstream response", "error", err)
		rec.fail(p, err.Error(), fiber.StatusBadGateway)
		return c.Status(fiber.StatusBadGateway).JSON(client.ErrorResponse{Error: "failed to read upstream response"})
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		p.logger.Error("upstream returned error",
			"status", httpResp.StatusCode,
			"body", string(respBody),
		)
		rec.fail(p, upstreamErrorMessage(httpResp.StatusCode, respBody), httpResp.StatusCode)
	}

	return c.Status(httpResp.StatusCode).Send(respBody)
}

// streamToPipeWriter tees the upstream SSE body to the client while the
// recording session reconstructs the turn, then enqueues it.
func (p *Proxy) streamToPipeWriter(httpResp *http.Response, pw *io.PipeWriter, rec *recording) {
	// Close the upstream response body once streaming is complete.
	defer httpResp.Body.Close()

	if rec == nil {
		if _, err := io.Copy(pw, httpResp.Body); err != nil {
			p.logger.Error("error relaying stream", "error", err)
			pw.CloseWithError(err)
			return
		}
		pw.Close()
		return
	}

	counter := &countingWriter{w: pw}
	err := rec.session.ConsumeTee(context.Background(), httpResp.Body, counter)
	if err != nil {
		p.logger.Error("error reading SSE stream", "error", err, "session_id", rec.session.ID())
		pw.CloseWithError(err)
	} else {
		pw.Close()
	}

	rec.finish(p, counter.n, httpResp.StatusCode, err)
}

// countingWriter counts the bytes relayed to the client.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(b []byte) (int, error) {
	n, err := cw.w.Write(b)
	cw.n += int64(n)
	return n, err
}
