package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dvloznov/budget-etl/internal/config"
	"github.com/dvloznov/budget-etl/internal/infra/sqlite"
	"github.com/dvloznov/budget-etl/internal/logger"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	var (
		database  = fs.String("db", "", "Path of the SQLite database (default from config)")
		appliedBy = fs.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
		status    = fs.Bool("status", false, "Only list migrations and whether they are applied")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	if *database == "" {
		*database = cfg.Paths.Database
	}

	log := logger.NewWithOptions(logger.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Out: os.Stderr})
	ctx = logger.WithContext(ctx, log)

	store, err := sqlite.Open(ctx, *database)
	if err != nil {
		return err
	}
	defer store.Close()

	migrations, err := sqlite.Migrations()
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Database: %s\n", store.Path())
	fmt.Fprintf(stdout, "Found %d migration files\n", len(migrations))

	applied, err := store.AppliedMigrations(ctx)
	if err != nil {
		return err
	}
	appliedVersions := make(map[int]sqlite.AppliedMigration, len(applied))
	for _, am := range applied {
		appliedVersions[am.Version] = am
	}

	if *status {
		for _, m := range migrations {
			if am, ok := appliedVersions[m.Version]; ok {
				fmt.Fprintf(stdout, "  [APPLIED] %04d_%s (%s by %s)\n", m.Version, m.Name, am.AppliedAt.Format(time.RFC3339), am.AppliedBy)
				continue
			}
			fmt.Fprintf(stdout, "  [PENDING] %04d_%s\n", m.Version, m.Name)
		}
		return nil
	}

	for _, m := range migrations {
		if _, ok := appliedVersions[m.Version]; ok {
			fmt.Fprintf(stdout, "  [SKIP] %04d_%s (already applied)\n", m.Version, m.Name)
		} else {
			fmt.Fprintf(stdout, "  [RUN]  %04d_%s\n", m.Version, m.Name)
		}
	}

	done, err := store.Migrate(ctx, *appliedBy)
	for _, m := range done {
		fmt.Fprintf(stdout, "  [OK]   %04d_%s\n", m.Version, m.Name)
	}
	if err != nil {
		return err
	}

	if len(done) == 0 {
		fmt.Fprintln(stdout, "No new migrations to apply. Database is up to date.")
	} else {
		fmt.Fprintf(stdout, "Successfully applied %d migration(s)\n", len(done))
	}
	return nil
}
