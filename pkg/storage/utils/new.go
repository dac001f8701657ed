package storageutils

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/algoqa/pkg/logger"
	"github.com/papercomputeco/algoqa/pkg/storage"
	"github.com/papercomputeco/algoqa/pkg/storage/inmemory"
	"github.com/papercomputeco/algoqa/pkg/storage/postgres"
	"github.com/papercomputeco/algoqa/pkg/storage/sqlite"
)

type NewDriverOpts struct {
	// DriverType is one of "memory", "sqlite", or "postgres".
	DriverType  string
	SQLitePath  string
	PostgresDSN string
	Logger      *slog.Logger
}

func NewDriver(ctx context.Context, o *NewDriverOpts) (storage.Driver, error) {
	l := o.Logger
	if l == nil {
		l = logger.Nop()
	}

	switch o.DriverType {
	case "memory":
		l.Info("using in-memory storage")
		return inmemory.NewDriver(), nil

	case "sqlite", "":
		if o.SQLitePath == "" {
			return nil, errors.New("sqlite storage requires a database path")
		}
		d, err := sqlite.NewSQLiteDriver(ctx, o.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite storage: %w", err)
		}
		l.Info("using SQLite storage", "path", o.SQLitePath)
		return d, nil

	case "postgres":
		if o.PostgresDSN == "" {
			return nil, errors.New("postgres storage requires a connection string")
		}
		d, err := postgres.NewDriver(ctx, o.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres storage: %w", err)
		}
		l.Info("using PostgreSQL storage")
		return d, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", o.DriverType)
	}
}
