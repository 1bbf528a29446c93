package cmd

import (
	"context"
	"fmt"

	"github.com/classmark/classmark/internal/config"
	"github.com/classmark/classmark/internal/ledger"
	"github.com/classmark/classmark/internal/session"
	"github.com/classmark/classmark/internal/storage"
	"github.com/classmark/classmark/internal/storage/jsonfile"
	"github.com/classmark/classmark/internal/storage/postgres"
)

// backends bundles the storage repositories a command needs, regardless of
// which backend serves them.
type backends struct {
	sessions  session.Repository
	marks     ledger.Repository
	encodings storage.EncodingRepository
	teachers  storage.TeacherRepository

	close func()
}

// openBackends selects the storage backend: PostgreSQL when DATABASE_URL is
// set (migrations run on open), the JSON file store otherwise. The file
// store is single-process; anything beyond one server on one machine needs
// PostgreSQL.
func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	if cfg.Database.URL != "" {
		fmt.Printf("Connecting to PostgreSQL database...\n")
		pool, err := postgres.NewPool(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		if err := pool.Migrate(ctx); err != nil {
			_ = pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return &backends{
			sessions:  postgres.NewSessionRepository(pool),
			marks:     postgres.NewMarkRepository(pool),
			encodings: postgres.NewEncodingRepository(pool),
			teachers:  postgres.NewTeacherRepository(pool),
			close:     func() { _ = pool.Close() },
		}, nil
	}

	dir := cfg.Storage.Dir
	if dir == "" {
		dir = "./data"
	}
	fmt.Printf("Using JSON file storage in %s\n", dir)
	store, err := jsonfile.New(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open file storage: %w", err)
	}
	return &backends{
		sessions:  store,
		marks:     store,
		encodings: store,
		teachers:  store,
		close:     func() {},
	}, nil
}
