package decoder

import (
	"context"
	"errors"
	"io"
	"sync"
)

const defaultReadBuffer = 4 * 1024

// Source is an asynchronous producer of raw byte chunks. Next blocks until a
// chunk is available and returns io.EOF once the stream has ended. Any other
// error is a transport failure. Returned slices are only valid until the next
// call.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
}

// Opener opens a Source. A failure here is a connection failure: the session
// ends before any decoding starts.
type Opener func(ctx context.Context) (Source, error)

// readerSource reads chunks from an io.Reader with a fixed buffer.
type readerSource struct {
	r     io.Reader
	buf   []byte
	close func()
	stop  func() bool
	once  sync.Once

	// pending holds an error returned alongside data, reported on the
	// following call.
	pending error
}

// NewReaderSource wraps r. When r is an io.Closer it is closed once the stream
// ends, and as soon as the context passed to Next is cancelled so a blocked
// Read returns. bufSize <= 0 uses a 4KiB buffer.
func NewReaderSource(r io.Reader, bufSize int) Source {
	if bufSize <= 0 {
		bufSize = defaultReadBuffer
	}
	s := &readerSource{r: r, buf: make([]byte, bufSize), close: func() {}}
	if c, ok := r.(io.Closer); ok {
		s.close = sync.OnceFunc(func() { _ = c.Close() })
	}
	return s
}

func (s *readerSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		s.release()
		return nil, err
	}

	s.once.Do(func() {
		s.stop = context.AfterFunc(ctx, s.close)
	})

	if err := s.pending; err != nil {
		s.pending = nil
		return nil, s.fail(ctx, err)
	}

	for {
		n, err := s.r.Read(s.buf)
		if n > 0 {
			// Surface the data first; the error is not guaranteed to repeat.
			if err != nil && !errors.Is(err, io.EOF) {
				s.pending = err
			}
			return s.buf[:n], nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.release()
				return nil, io.EOF
			}
			return nil, s.fail(ctx, err)
		}
	}
}

// fail ends the stream on a read error. A read that failed because we closed
// the body on cancellation is reported as the cancellation itself.
func (s *readerSource) fail(ctx context.Context, err error) error {
	s.release()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (s *readerSource) release() {
	if s.stop != nil {
		s.stop()
	}
	s.close()
}

// chunkSource replays a fixed list of chunks, optionally failing at the end.
type chunkSource struct {
	chunks [][]byte
	err    error
}

// NewChunkSource returns a Source that yields chunks in order and then io.EOF,
// or err when err is non-nil. It is handy for replaying captures with exact
// chunk boundaries.
func NewChunkSource(chunks [][]byte, err error) Source {
	return &chunkSource{chunks: chunks, err: err}
}

func (s *chunkSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.chunks) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

// SplitEvery cuts data into chunks of at most size bytes. size <= 0 returns
// data as a single chunk.
func SplitEvery(data []byte, size int) [][]byte {
	if size <= 0 || size >= len(data) {
		return [][]byte{data}
	}
	out := make([][]byte, 0, len(data)/size+1)
	for len(data) > 0 {
		n := min(size, len(data))
		out = append(out, data[:n])
		data = data[n:]
	}
	return out
}
