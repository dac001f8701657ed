package decoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/fsnotify/fsnotify"
)

// FollowSource tails a capture file that another process is still writing,
// such as one produced by "algoqa ask --capture". Reaching the end of the file
// waits for more writes. The stream ends once the file is removed or renamed
// and everything written before that has been read.
type FollowSource struct {
	path    string
	f       *os.File
	watcher *fsnotify.Watcher
	buf     []byte
	ended   bool
}

var _ Source = (*FollowSource)(nil)

// NewFollowSource opens path and starts watching it. Callers must Close it.
func NewFollowSource(path string, bufSize int) (*FollowSource, error) {
	if bufSize <= 0 {
		bufSize = defaultReadBuffer
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening capture: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Add(path); err != nil {
		_ = w.Close()
		_ = f.Close()
		return nil, fmt.Errorf("watching capture: %w", err)
	}

	return &FollowSource{path: path, f: f, watcher: w, buf: make([]byte, bufSize)}, nil
}

// Next returns the next chunk of the file, waiting for writes at EOF.
func (s *FollowSource) Next(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := s.f.Read(s.buf)
		if n > 0 {
			return s.buf[:n], nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		if s.ended {
			return nil, io.EOF
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev, ok := <-s.watcher.Events:
			if !ok || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) || s.gone() {
				// Drain what is left through the open handle, then stop.
				s.ended = true
			}
		case err, ok := <-s.watcher.Errors:
			if ok {
				return nil, fmt.Errorf("watching capture: %w", err)
			}
			s.ended = true
		}
	}
}

// gone reports whether the path no longer exists. Unlinking a file we still
// hold open only shows up as a chmod event, so removal is confirmed by stat.
func (s *FollowSource) gone() bool {
	_, err := os.Stat(s.path)
	return errors.Is(err, fs.ErrNotExist)
}

// Close stops watching and closes the file.
func (s *FollowSource) Close() error {
	return errors.Join(s.watcher.Close(), s.f.Close())
}
