package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.etcd.io/bbolt"

	"github.com/jmcleod/stopit/app"
	"github.com/jmcleod/stopit/auth"
	"github.com/jmcleod/stopit/internal/config"
	"github.com/jmcleod/stopit/storage"
	bboltstorage "github.com/jmcleod/stopit/storage/bbolt"
	"github.com/jmcleod/stopit/storage/memory"
	"github.com/jmcleod/stopit/storage/postgres"
	"github.com/jmcleod/stopit/storage/sqlite"
)

// store is an opened repository with the session marker that lives beside it.
type store struct {
	repo   storage.Repository
	marker auth.Marker
}

func openStore(ctx context.Context, c *config.Config) (*store, error) {
	if c.Backend == config.BackendBbolt || c.Backend == config.BackendSQLite {
		if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	switch c.Backend {
	case config.BackendBbolt:
		repo, err := bboltstorage.NewRepositoryFromFile(c.DatabasePath(), &bbolt.Options{Timeout: 2 * time.Second})
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		marker, err := auth.NewBoltMarker(repo.DB())
		if err != nil {
			_ = repo.Close()
			return nil, err
		}
		return &store{repo: repo, marker: marker}, nil
	case config.BackendSQLite:
		repo, err := sqlite.NewRepositoryFromFile(ctx, c.DatabasePath())
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		return &store{repo: repo, marker: repo.NewMarker("")}, nil
	case config.BackendPostgres:
		repo, err := postgres.NewRepositoryFromDSN(ctx, c.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		return &store{repo: repo, marker: postgres.NewMarker(repo.Pool(), "")}, nil
	case config.BackendMemory:
		return &store{repo: memory.NewRepository(), marker: auth.NewMemoryMarker()}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", c.Backend)
	}
}

func (s *store) Close() error {
	return s.repo.Close()
}

// newApp builds an App over s from the loaded configuration.
func newApp(s *store) (*app.App, error) {
	ttl, err := cfg.GetSessionTTL()
	if err != nil {
		return nil, err
	}
	return app.New(s.repo,
		app.WithLogger(logger),
		app.WithMarker(s.marker),
		app.WithMarkerTTL(ttl),
		app.WithParams(cfg.Params()),
	), nil
}

// withApp opens the store, logs in and runs fn.
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	a, err := newApp(s)
	if err != nil {
		return err
	}
	user := username
	if user == "" {
		var ok bool
		if user, ok = a.Auth().SessionUsername(ctx); !ok {
			return fmt.Errorf("no recent session: pass --user")
		}
	}
	password, err := readPassword(fmt.Sprintf("Password for %s: ", user))
	if err != nil {
		return err
	}
	if err := a.Login(ctx, user, password); err != nil {
		return err
	}
	// The marker is kept so the next command knows whom to ask for; only the
	// key is destroyed.
	defer func() {
		a.State().Clear()
		if sess, err := a.Auth().Session(); err == nil {
			sess.Close()
		}
	}()
	return fn(a)
}
