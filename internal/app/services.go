package app

import (
	"context"

	"github.com/dokzlo13/kyval/internal/config"
	"github.com/dokzlo13/kyval/internal/db"
	"github.com/dokzlo13/kyval/internal/kv"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB    *db.DB
	Store *kv.Store

	// Background services
	Sweeper *kv.Sweeper // nil when no schedule is configured
	Health  *HealthService
}

// NewServices opens the database and wires every service on top of it.
func NewServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	database, err := db.Open(ctx, db.Options{
		Target:    cfg.Database.Target,
		TableName: cfg.Database.Table,
		AuthToken: cfg.Database.AuthToken,
	})
	if err != nil {
		return nil, err
	}
	s.DB = database

	s.Store = kv.New(database, kv.WithPurgeOnRead(cfg.Database.PurgeOnRead))

	if cfg.Sweeper.Enabled() {
		s.Sweeper, err = kv.NewSweeper(s.Store, cfg.Sweeper.Schedule)
		if err != nil {
			s.Close()
			return nil, err
		}
	}

	s.Health = NewHealthService(cfg, s.Store)

	return s, nil
}

// Start starts all background services.
func (s *Services) Start(ctx context.Context) error {
	if s.Sweeper != nil {
		s.Sweeper.Start(ctx)
	}
	s.Health.Start(ctx)
	return nil
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Sweeper != nil {
		s.Sweeper.Stop()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
