package qaclient

import (
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

// acceptEncoding is advertised on every request. Setting it by hand turns off
// net/http's transparent gzip handling, so both codings are decoded here.
const acceptEncoding = "br, gzip"

// decodedBody reads the decompressed stream and closes the raw body.
type decodedBody struct {
	io.Reader
	raw io.Closer
}

func (b *decodedBody) Close() error {
	return b.raw.Close()
}

// decodeBody wraps body according to its Content-Encoding header.
func decodeBody(contentEncoding string, body io.ReadCloser) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "", "identity":
		return body, nil
	case "br":
		return &decodedBody{Reader: brotli.NewReader(body), raw: body}, nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("reading gzip header: %w", err)
		}
		return &decodedBody{Reader: zr, raw: body}, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", contentEncoding)
	}
}
