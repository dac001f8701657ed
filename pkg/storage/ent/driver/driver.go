// Package entdriver implements storage.Driver on top of ent's SQL dialect
// driver. It is database-agnostic and is embedded by the sqlite and postgres
// drivers.
package entdriver

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/algoqa/pkg/answer"
	"github.com/papercomputeco/algoqa/pkg/storage"
	"github.com/papercomputeco/algoqa/pkg/storage/ent/migrate"
	"github.com/papercomputeco/algoqa/pkg/transcript"
)

// EntDriver provides storage operations using an ent SQL driver.
type EntDriver struct {
	Driver *entsql.Driver
}

var _ storage.Driver = (*EntDriver)(nil)

// New runs the schema migration and returns a ready driver.
func New(ctx context.Context, drv *entsql.Driver) (*EntDriver, error) {
	// Run the auto-migration to create/update the schema.
	// This handles append-only schema changes (new tables, columns, indexes)
	if err := migrate.Create(ctx, drv); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &EntDriver{Driver: drv}, nil
}

func (ed *EntDriver) builder() *entsql.DialectBuilder {
	return entsql.Dialect(ed.Driver.Dialect())
}

// Put stores a transcript, replacing any row with the same ID.
func (ed *EntDriver) Put(ctx context.Context, t *transcript.Transcript) error {
	if t == nil {
		return storage.ErrNilTranscript
	}

	refs, err := json.Marshal(t.References)
	if err != nil {
		return fmt.Errorf("failed to marshal references: %w", err)
	}

	var completedAt any
	if !t.CompletedAt.IsZero() {
		completedAt = t.CompletedAt.UTC()
	}

	query, args := ed.builder().Insert(migrate.TranscriptsTableName).
		Columns(migrate.Columns...).
		Values(
			t.ID,
			t.Question,
			t.Answer,
			string(refs),
			string(t.Status),
			t.Error,
			t.Latency.Nanoseconds(),
			t.StartedAt.UTC(),
			completedAt,
		).
		OnConflict(
			entsql.ConflictColumns(migrate.FieldID),
			entsql.ResolveWithNewValues(),
		).
		Query()

	if err := ed.Driver.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("failed to store transcript: %w", err)
	}
	return nil
}

// Get retrieves a transcript by ID.
func (ed *EntDriver) Get(ctx context.Context, id string) (*transcript.Transcript, error) {
	query, args := ed.builder().Select(migrate.Columns...).
		From(ed.builder().Table(migrate.TranscriptsTableName)).
		Where(entsql.EQ(migrate.FieldID, id)).
		Query()

	found, err := ed.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, storage.NotFoundError{ID: id}
	}
	return found[0], nil
}

// List returns transcripts newest first.
func (ed *EntDriver) List(ctx context.Context, opts storage.ListOptions) ([]*transcript.Transcript, error) {
	sel := ed.builder().Select(migrate.Columns...).
		From(ed.builder().Table(migrate.TranscriptsTableName))
	if opts.Status != "" {
		sel.Where(entsql.EQ(migrate.FieldStatus, string(opts.Status)))
	}
	query, args := sel.
		OrderBy(entsql.Desc(migrate.FieldStartedAt), entsql.Desc(migrate.FieldID)).
		Limit(opts.EffectiveLimit()).
		Query()

	return ed.query(ctx, query, args)
}

// Close closes the underlying database.
func (ed *EntDriver) Close() error {
	return ed.Driver.Close()
}

func (ed *EntDriver) query(ctx context.Context, query string, args []any) ([]*transcript.Transcript, error) {
	rows := &entsql.Rows{}
	if err := ed.Driver.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("failed to query transcripts: %w", err)
	}
	defer rows.Close()

	var out []*transcript.Transcript
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transcripts: %w", err)
	}
	return out, nil
}

func scanTranscript(rows *entsql.Rows) (*transcript.Transcript, error) {
	var (
		t           transcript.Transcript
		refs        []byte
		status      string
		latencyNS   int64
		completedAt stdsql.NullTime
	)
	err := rows.Scan(
		&t.ID,
		&t.Question,
		&t.Answer,
		&refs,
		&status,
		&t.Error,
		&latencyNS,
		&t.StartedAt,
		&completedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transcript: %w", err)
	}

	if len(refs) > 0 {
		if err := json.Unmarshal(refs, &t.References); err != nil {
			return nil, fmt.Errorf("failed to unmarshal references for %s: %w", t.ID, err)
		}
	}
	if t.References == nil {
		t.References = []answer.Reference{}
	}

	t.Status = transcript.Status(status)
	t.Latency = time.Duration(latencyNS)
	t.StartedAt = t.StartedAt.UTC()
	if completedAt.Valid {
		t.CompletedAt = completedAt.Time.UTC()
	}
	return &t, nil
}
