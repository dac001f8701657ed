package inmemory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/papercomputeco/algoqa/pkg/storage"
	"github.com/papercomputeco/algoqa/pkg/transcript"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu is a read write sync mutex for locking the mapping of transcripts
	mu sync.RWMutex

	// transcripts is the in memory map of transcripts keyed by ID
	transcripts map[string]transcript.Transcript
}

var _ storage.Driver = (*Driver)(nil)

// NewDriver creates a new in-memory storer.
func NewDriver() *Driver {
	return &Driver{
		transcripts: make(map[string]transcript.Transcript),
	}
}

// Put stores a copy of t, replacing any transcript with the same ID.
func (s *Driver) Put(_ context.Context, t *transcript.Transcript) error {
	if t == nil {
		return storage.ErrNilTranscript
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.transcripts[t.ID] = clone(*t)
	return nil
}

// Get retrieves a transcript by ID.
func (s *Driver) Get(_ context.Context, id string) (*transcript.Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transcripts[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	c := clone(t)
	return &c, nil
}

// List returns transcripts newest first.
func (s *Driver) List(_ context.Context, opts storage.ListOptions) ([]*transcript.Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*transcript.Transcript, 0, len(s.transcripts))
	for _, t := range s.transcripts {
		if opts.Status != "" && t.Status != opts.Status {
			continue
		}
		c := clone(t)
		result = append(result, &c)
	}

	slices.SortFunc(result, func(a, b *transcript.Transcript) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	if limit := opts.EffectiveLimit(); len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Close is a no-op for the in-memory driver.
func (s *Driver) Close() error {
	return nil
}

func clone(t transcript.Transcript) transcript.Transcript {
	t.References = slices.Clone(t.References)
	return t
}
