// Package proxy provides a recording proxy for the QA backend. Streaming
// answers are relayed to the client byte for byte while a side decoder turns
// them into transcripts for storage.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"

	"github.com/papercomputeco/algoqa/pkg/decoder"
	"github.com/papercomputeco/algoqa/pkg/eventstream"
	"github.com/papercomputeco/algoqa/pkg/storage"
	"github.com/papercomputeco/algoqa/pkg/transcript"
	"github.com/papercomputeco/algoqa/pkg/worker"
	"github.com/papercomputeco/algoqa/proxy/header"
)

// maxErrorBody bounds how much of an upstream error body is kept on a
// failed transcript.
const maxErrorBody = 512

// errorResponse mirrors the backend's error envelope so clients read proxy
// failures the same way as backend ones.
type errorResponse struct {
	Message string `json:"message"`
}

// Proxy is a transparent QA proxy that records streamed answers.
// It forwards requests to the upstream backend and enqueues finished
// transcripts for async storage via its worker pool.
type Proxy struct {
	config        Config
	driver        storage.Driver
	workerPool    *worker.Pool
	logger        *slog.Logger
	httpClient    *http.Client
	server        *fiber.App
	headerHandler *header.Handler

	// streams tracks relays still decoding so Close can wait for their
	// transcripts before draining the pool.
	streams sync.WaitGroup
}

// New creates a new Proxy.
// The driver is injected to handle async persistence of transcripts.
func New(config Config, driver storage.Driver, logger *slog.Logger) (*Proxy, error) {
	if config.UpstreamURL == "" {
		return nil, errors.New("upstream URL is required")
	}
	config.UpstreamURL = strings.TrimRight(config.UpstreamURL, "/")
	if config.StreamPath == "" {
		config.StreamPath = DefaultStreamPath
	}
	if config.Policy == "" {
		config.Policy = decoder.PolicyDrop
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
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = config.ResponseHeaderTimeout

	p := &Proxy{
		config:        config,
		driver:        driver,
		workerPool:    wp,
		logger:        logger,
		server:        app,
		headerHandler: header.NewHandler(),
		httpClient:    &http.Client{Transport: transport},
	}

	app.Get("/healthz", p.handleHealth)

	// Register transparent proxy route - forwards any path to upstream
	app.All("/*", p.handleProxy)

	return p, nil
}

// Run starts the proxy server on the given listening address
func (p *Proxy) Run() error {
	p.logger.Info("starting proxy server",
		"listen", p.config.ListenAddr,
		"upstream", p.config.UpstreamURL,
		"stream_path", p.config.StreamPath,
	)

	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the proxy server using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting proxy server",
		"listen", listener.Addr().String(),
		"upstream", p.config.UpstreamURL,
		"stream_path", p.config.StreamPath,
	)

	return p.server.Listener(listener)
}

// Handler exposes the proxy as a net/http handler, for embedding it in an
// existing server or serving it from httptest.
func (p *Proxy) Handler() http.Handler {
	return adaptor.FiberApp(p.server)
}

// Close gracefully shuts down the proxy, waits for open relays to finish
// recording and for the worker pool to drain.
func (p *Proxy) Close() error {
	err := p.server.Shutdown()
	p.streams.Wait()
	p.workerPool.Close()
	return err
}

func (p *Proxy) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleProxy forwards every request upstream and records the streaming QA
// endpoint.
func (p *Proxy) handleProxy(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodPost && c.Path() == p.config.StreamPath {
		return p.handleStreamingProxy(c)
	}
	return p.handlePassthrough(c)
}

// handlePassthrough forwards a request and buffers the response.
func (p *Proxy) handlePassthrough(c *fiber.Ctx) error {
	upstreamURL := p.upstreamURL(c)

	var reqBody io.Reader
	if body := c.Body(); len(body) > 0 {
		reqBody = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(c.Context(), c.Method(), upstreamURL, reqBody)
	if err != nil {
		p.logger.Error("failed to create upstream request", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Message: "internal error"})
	}

	p.headerHandler.SetUpstreamRequestHeaders(c, httpReq)

	p.logger.Debug("forwarding request to upstream",
		"method", c.Method(),
		"url", upstreamURL,
	)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.Error("upstream request failed", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(errorResponse{Message: "upstream request failed"})
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		p.logger.Error("failed to read upstream response", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(errorResponse{Message: "failed to read upstream response"})
	}

	p.headerHandler.SetClientResponseHeaders(c, httpResp)
	return c.Status(httpResp.StatusCode).Send(respBody)
}

// handleStreamingProxy relays a streaming answer and records it.
func (p *Proxy) handleStreamingProxy(c *fiber.Ctx) error {
	startTime := time.Now()
	upstreamURL := p.upstreamURL(c)

	// The body is copied: fasthttp reuses its buffers after the handler returns.
	body := append([]byte(nil), c.Body()...)
	question := questionText(body)
	rec := transcript.NewRecorder(question)

	// Use context.Background() instead of c.Context() because fasthttp recycles
	// its RequestCtx after the handler returns, but the streaming callback runs
	// asynchronously in a separate goroutine and needs the upstream connection
	// to remain open.
	httpReq, err := http.NewRequestWithContext(context.Background(), http.MethodPost, upstreamURL, bytes.NewReader(body))
	if err != nil {
		p.logger.Error("failed to create upstream request", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Message: "internal error"})
	}

	p.headerHandler.SetUpstreamRequestHeaders(c, httpReq)

	p.logger.Debug("forwarding streaming request to upstream",
		"url", upstreamURL,
		"transcript_id", rec.Transcript().ID,
	)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.Error("upstream request failed", "error", err)
		rec.OnError(&decoder.ConnectionError{Err: err})
		p.enqueue(c.Path(), 0, rec, decoder.Stats{})
		return c.Status(fiber.StatusBadGateway).JSON(errorResponse{Message: "upstream request failed"})
	}

	p.logger.Debug("upstream responded",
		"status", httpResp.StatusCode,
		"transcript_id", rec.Transcript().ID,
		"header_latency", time.Since(startTime),
	)

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		respBody, _ := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		p.logger.Error("upstream returned error",
			"status", httpResp.StatusCode,
			"body", string(respBody),
		)

		excerpt := string(respBody)
		if len(excerpt) > maxErrorBody {
			excerpt = excerpt[:maxErrorBody]
		}
		rec.OnError(&decoder.ConnectionError{StatusCode: httpResp.StatusCode, Body: excerpt})
		p.enqueue(c.Path(), httpResp.StatusCode, rec, decoder.Stats{})

		p.headerHandler.SetClientResponseHeaders(c, httpResp)
		return c.Status(httpResp.StatusCode).Send(respBody)
	}

	p.headerHandler.SetClientResponseHeaders(c, httpResp)
	c.Set(header.TranscriptIDHeader, rec.Transcript().ID)

	// Each pw.Write blocks until fasthttp's chunked writer takes the bytes,
	// so answer fragments reach the client as the upstream sends them.
	pr, pw := io.Pipe()
	p.streams.Add(1)
	go p.relay(httpResp, pw, rec, c.Path())

	// Unknown size (-1) selects chunked transfer encoding.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// relay copies the upstream body to the client through the decoder. The
// decoder sees exactly the bytes the client receives. A client that goes
// away mid-stream fails the transcript with the pipe error.
func (p *Proxy) relay(httpResp *http.Response, pw *io.PipeWriter, rec *transcript.Recorder, path string) {
	defer p.streams.Done()
	defer httpResp.Body.Close()

	src := decoder.NewReaderSource(&clientTee{r: httpResp.Body, w: pw}, p.config.ReadBuffer)
	out := decoder.Decode(context.Background(), src, rec,
		decoder.WithLogger(p.logger.With("transcript_id", rec.Transcript().ID)),
		decoder.WithUnrecognizedPolicy(p.config.Policy),
	)

	if out.Err != nil {
		_ = pw.CloseWithError(out.Err)
	} else {
		_ = pw.Close()
	}

	p.enqueue(path, httpResp.StatusCode, rec, out.Stats)
}

// clientTee writes everything it reads to the client and remembers the first
// failed write, so the relay stops once the client is gone.
type clientTee struct {
	r   io.Reader
	w   io.Writer
	err error
}

func (t *clientTee) Read(b []byte) (int, error) {
	if t.err != nil {
		return 0, t.err
	}
	n, err := t.r.Read(b)
	if n > 0 {
		if _, werr := t.w.Write(b[:n]); werr != nil {
			t.err = fmt.Errorf("client went away: %w", werr)
			return n, t.err
		}
	}
	return n, err
}

func (p *Proxy) enqueue(path string, status int, rec *transcript.Recorder, stats decoder.Stats) {
	t := rec.Transcript()
	p.workerPool.Enqueue(worker.Job{
		Transcript: t,
		Source: eventstream.EventSource{
			Component: "proxy",
			Upstream:  p.config.UpstreamURL,
		},
		Request: eventstream.AnswerRequestMeta{
			Path:        path,
			StartedAt:   t.StartedAt,
			CompletedAt: t.CompletedAt,
			HTTPStatus:  status,
		},
		Decode: DecodeMeta(stats),
	})
}

func (p *Proxy) upstreamURL(c *fiber.Ctx) string {
	u := p.config.UpstreamURL + c.Path()
	if q := c.Request().URI().QueryString(); len(q) > 0 {
		u += "?" + string(q)
	}
	return u
}

// DecodeMeta converts decoder stats for the event stream.
func DecodeMeta(s decoder.Stats) eventstream.DecodeMeta {
	return eventstream.DecodeMeta{
		Bytes:           s.Bytes,
		Frames:          s.Frames,
		KeepAlives:      s.KeepAlives,
		TextEvents:      s.TextEvents,
		ReferenceEvents: s.ReferenceEvents,
		Unrecognized:    s.Unrecognized,
		Fallbacks:       s.Fallbacks,
	}
}

// questionText extracts the question from a request body, best effort.
func questionText(body []byte) string {
	var req struct {
		Question string `json:"question"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return ""
	}
	return req.Question
}
