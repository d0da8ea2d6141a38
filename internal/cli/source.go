package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/pkg/adapters/file"
	loamAdapter "github.com/aretw0/arbor/pkg/adapters/loam"
	"github.com/aretw0/arbor/pkg/adapters/redis"
	"github.com/aretw0/arbor/pkg/adapters/sqlite"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/loam"
)

// ErrReadOnlySource is returned when a command needs to write to a source
// that cannot be written, such as a loam repository.
var ErrReadOnlySource = errors.New("graph source is read-only")

// Source is an opened graph backend.
type Source struct {
	Loader ports.GraphLoader
	// Store is nil for read-only sources.
	Store ports.GraphStore
	// Locker is set for sources that can coordinate replicas.
	Locker ports.DistributedLocker
	close  func() error
}

// Close releases the backend connection, if any.
func (s *Source) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Writable returns the store or ErrReadOnlySource.
func (s *Source) Writable() (ports.GraphStore, error) {
	if s.Store == nil {
		return nil, ErrReadOnlySource
	}
	return s.Store, nil
}

// OpenSource connects to the backend named by cfg.Source.
func OpenSource(cfg config.Config, logger *slog.Logger) (*Source, error) {
	logger.Debug("opening graph source", "source", cfg.Source, "dir", cfg.Dir)

	switch cfg.Source {
	case config.SourceFile:
		store := file.New(cfg.Dir)
		return &Source{Loader: store, Store: store}, nil

	case config.SourceLoam:
		absPath, err := filepath.Abs(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		// The runtime never modifies authored documents.
		repo, err := loam.Init(absPath, loam.WithReadOnly(true))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize loam: %w", err)
		}
		loader := loamAdapter.New(loam.NewTypedRepository[loamAdapter.NodeMetadata](repo))
		return &Source{Loader: loader}, nil

	case config.SourceRedis:
		store := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		src := &Source{Loader: store, Store: store, close: store.Close}
		if cfg.DistributedLocks {
			src.Locker = redis.NewLocker(store.Client(), redis.DefaultPrefix)
		}
		return src, nil

	case config.SourceSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Source{Loader: store, Store: store, close: store.Close}, nil
	}
	return nil, fmt.Errorf("unknown graph source %q", cfg.Source)
}
