package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/transportal/internal/formatter"
	"github.com/desertthunder/transportal/internal/models"
	"github.com/desertthunder/transportal/internal/repositories"
	"github.com/desertthunder/transportal/internal/shared"
	"github.com/urfave/cli/v3"
)

// openDatabase opens the audit database and applies pending migrations.
func (r *Runner) openDatabase() (*sql.DB, error) {
	path := r.config.Database.Path
	if path == "" {
		return nil, fmt.Errorf("%w: database.path is empty, the audit log is disabled", shared.ErrInvalidConfig)
	}

	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, err
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// Audit prints recent audit log entries.
func (r *Runner) Audit(ctx context.Context, cmd *cli.Command) error {
	if err := r.configure(cmd); err != nil {
		return err
	}
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewAuditRepository(db)
	limit := int(cmd.Int("limit"))
	if limit <= 0 {
		return fmt.Errorf("%w: --limit must be positive", shared.ErrInvalidArgument)
	}

	var entries []models.AuditEntry
	if user := cmd.String("user"); user != "" {
		entries, err = repo.ByUser(ctx, user, limit)
	} else {
		entries, err = repo.Recent(ctx, limit)
	}
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(entries, true)
	}
	if len(entries) == 0 {
		return r.writePlain("No audit entries\n")
	}

	data, err := formatter.AuditToText(entries)
	if err != nil {
		return err
	}
	_, err = r.output.Write(data)
	return err
}

// AuditPrune deletes entries older than --older-than.
func (r *Runner) AuditPrune(ctx context.Context, cmd *cli.Command) error {
	if err := r.configure(cmd); err != nil {
		return err
	}
	age := cmd.Duration("older-than")
	if age <= 0 {
		return fmt.Errorf("%w: --older-than must be positive", shared.ErrInvalidArgument)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	removed, err := repositories.NewAuditRepository(db).Prune(ctx, time.Now().UTC().Add(-age))
	if err != nil {
		return err
	}
	r.logger.Info("pruned audit log", "removed", removed, "older_than", age)
	return r.writePlain("✓ Removed %d entries\n", removed)
}

// AuditMigrate applies pending migrations, or rolls back the latest with --rollback.
func (r *Runner) AuditMigrate(ctx context.Context, cmd *cli.Command) error {
	if err := r.configure(cmd); err != nil {
		return err
	}
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	if !cmd.Bool("rollback") {
		r.logger.Infof("migrations up to date for database: %v", r.config.Database.Path)
		return nil
	}

	if err := shared.RollbackMigration(db); err != nil {
		return err
	}
	r.logger.Info("rolled back latest migration", "path", r.config.Database.Path)
	return nil
}
