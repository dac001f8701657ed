// Package migrate holds the table definitions for the SQL storage drivers in
// the layout ent's schema migrator expects.
package migrate

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Column names of the transcripts table.
const (
	TranscriptsTableName = "transcripts"

	FieldID          = "id"
	FieldQuestion    = "question"
	FieldAnswer      = "answer"
	FieldReferences  = "references_json"
	FieldStatus      = "status"
	FieldError       = "error"
	FieldLatencyNS   = "latency_ns"
	FieldStartedAt   = "started_at"
	FieldCompletedAt = "completed_at"
)

// Columns lists every transcripts column in insert order.
var Columns = []string{
	FieldID,
	FieldQuestion,
	FieldAnswer,
	FieldReferences,
	FieldStatus,
	FieldError,
	FieldLatencyNS,
	FieldStartedAt,
	FieldCompletedAt,
}

var (
	// TranscriptsColumns holds the columns for the "transcripts" table.
	TranscriptsColumns = []*schema.Column{
		{Name: FieldID, Type: field.TypeString, Size: 64},
		{Name: FieldQuestion, Type: field.TypeString, Size: 2147483647},
		{Name: FieldAnswer, Type: field.TypeString, Size: 2147483647},
		{Name: FieldReferences, Type: field.TypeString, Size: 2147483647},
		{Name: FieldStatus, Type: field.TypeString, Size: 16},
		{Name: FieldError, Type: field.TypeString, Size: 2147483647, Default: ""},
		{Name: FieldLatencyNS, Type: field.TypeInt64, Default: 0},
		{Name: FieldStartedAt, Type: field.TypeTime},
		{Name: FieldCompletedAt, Type: field.TypeTime, Nullable: true},
	}

	// TranscriptsTable holds the schema information for the "transcripts" table.
	TranscriptsTable = &schema.Table{
		Name:       TranscriptsTableName,
		Columns:    TranscriptsColumns,
		PrimaryKey: []*schema.Column{TranscriptsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "transcript_started_at",
				Unique:  false,
				Columns: []*schema.Column{TranscriptsColumns[7]},
			},
			{
				Name:    "transcript_status",
				Unique:  false,
				Columns: []*schema.Column{TranscriptsColumns[4]},
			},
		},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		TranscriptsTable,
	}
)

// Create runs the append-only migration for all tables.
func Create(ctx context.Context, drv dialect.Driver) error {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	return m.Create(ctx, Tables...)
}
