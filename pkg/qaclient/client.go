// Package qaclient opens streaming answers from the QA backend and feeds them
// through the decoder.
package qaclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/papercomputeco/algoqa/pkg/answer"
	"github.com/papercomputeco/algoqa/pkg/decoder"
	"github.com/papercomputeco/algoqa/pkg/logger"
)

const (
	// StreamPath is appended to the base URL for streaming questions.
	StreamPath = "/qa/stream"

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 4 * 1024

	// maxErrorExcerpt bounds the excerpt kept on a ConnectionError.
	maxErrorExcerpt = 200
)

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, for example "http://localhost:8080/api".
	BaseURL string

	// Token is sent as a bearer token when set.
	Token string

	// Timeout bounds the wait for response headers. It never cuts off a
	// stream that is already flowing. Zero means no limit.
	Timeout time.Duration

	// ReadBuffer is the size of each read from the response body.
	ReadBuffer int

	// HTTPClient overrides the HTTP client. Timeout is ignored when set.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client asks questions against one backend. It is safe for concurrent use;
// every call runs an independent session.
type Client struct {
	streamURL  string
	token      string
	readBuffer int
	http       *http.Client
	logger     *slog.Logger
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("base URL is required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL must be http or https, got %q", base)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = cfg.Timeout
		httpClient = &http.Client{Transport: transport}
	}

	l := cfg.Logger
	if l == nil {
		l = logger.Nop()
	}

	return &Client{
		streamURL:  base + StreamPath,
		token:      cfg.Token,
		readBuffer: cfg.ReadBuffer,
		http:       httpClient,
		logger:     l,
	}, nil
}

// Ask streams the answer to q into c and returns the session outcome.
func (c *Client) Ask(ctx context.Context, q Question, consumer answer.Consumer, opts ...decoder.Option) decoder.Outcome {
	return decoder.Run(ctx, c.Opener(q, nil), consumer, opts...)
}

// Opener returns a decoder.Opener that posts q. When capture is non-nil every
// body byte is copied to it verbatim, after decompression, as it is read.
func (c *Client) Opener(q Question, capture io.Writer) decoder.Opener {
	return func(ctx context.Context) (decoder.Source, error) {
		body, err := c.open(ctx, q)
		if err != nil {
			return nil, err
		}
		if capture != nil {
			body = &decodedBody{Reader: io.TeeReader(body, capture), raw: body}
		}
		return decoder.NewReaderSource(body, c.readBuffer), nil
	}
}

func (c *Client) open(ctx context.Context, q Question) (io.ReadCloser, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(q.normalized())
	if err != nil {
		return nil, fmt.Errorf("encoding question: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.streamURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Accept-Encoding", acceptEncoding)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug("opening answer stream", "url", c.streamURL, "top_k", q.normalized().TopK)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &decoder.ConnectionError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		excerpt := errorExcerpt(resp)
		c.logger.Debug("backend refused stream", "status", resp.StatusCode, "body", excerpt)
		return nil, &decoder.ConnectionError{StatusCode: resp.StatusCode, Body: excerpt}
	}

	body, err := decodeBody(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		_ = resp.Body.Close()
		return nil, &decoder.ConnectionError{StatusCode: resp.StatusCode, Err: err}
	}

	return body, nil
}

// errorExcerpt returns the "message" field of a JSON error body, or a trimmed
// prefix of the body otherwise.
func errorExcerpt(resp *http.Response) string {
	body, err := decodeBody(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return ""
	}
	raw, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))

	var envelope struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Message != "" {
		return truncate(envelope.Message)
	}
	return truncate(strings.TrimSpace(string(raw)))
}

func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= maxErrorExcerpt {
		return s
	}
	return string(runes[:maxErrorExcerpt]) + "…"
}
