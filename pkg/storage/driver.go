// Package storage defines where finished answer transcripts are kept.
package storage

import (
	"context"

	"github.com/papercomputeco/algoqa/pkg/transcript"
)

// DefaultListLimit caps List when ListOptions.Limit is zero.
const DefaultListLimit = 50

// Driver defines the interface for persisting and retrieving transcripts in a
// storage backend.
type Driver interface {
	// Put stores a transcript. Storing a transcript whose ID already exists
	// replaces it.
	Put(ctx context.Context, t *transcript.Transcript) error

	// Get retrieves a transcript by ID. A missing ID returns NotFoundError.
	Get(ctx context.Context, id string) (*transcript.Transcript, error)

	// List returns transcripts newest first.
	List(ctx context.Context, opts ListOptions) ([]*transcript.Transcript, error)

	// Close closes the store and releases any resources.
	Close() error
}

// ListOptions filters List.
type ListOptions struct {
	// Limit caps the number of results. Zero means DefaultListLimit.
	Limit int

	// Status keeps only transcripts in this state when set.
	Status transcript.Status
}

// EffectiveLimit resolves the zero value to DefaultListLimit.
func (o ListOptions) EffectiveLimit() int {
	if o.Limit <= 0 {
		return DefaultListLimit
	}
	return o.Limit
}
