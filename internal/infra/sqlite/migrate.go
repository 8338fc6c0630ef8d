package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/dvloznov/budget-etl/internal/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migration represents a single migration file
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration represents a migration that has already been applied
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// Pattern to match migration files: 0001_name.sql
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// Migrations returns the embedded migrations sorted by version.
func Migrations() ([]Migration, error) {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("Migrations: %w", err)
	}
	return ReadMigrations(sub)
}

// ReadMigrations reads every NNNN_name.sql file at the root of fsys.
// Files with another name are skipped.
func ReadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("ReadMigrations: reading directory: %w", err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		matches := migrationPattern.FindStringSubmatch(e.Name())
		if matches == nil {
			continue
		}
		version, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("ReadMigrations: version %04d used by %s and %s", version, prev, e.Name())
		}
		seen[version] = e.Name()

		content, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("ReadMigrations: reading file %s: %w", e.Name(), err)
		}

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     matches[2],
			Filename: e.Name(),
			SQL:      string(content),
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Migrate applies pending migrations in version order and returns the ones
// it applied. An applied migration whose file changed is an error.
func (s *Store) Migrate(ctx context.Context, appliedBy string) ([]Migration, error) {
	migrations, err := Migrations()
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, migrations, appliedBy)
}

func (s *Store) apply(ctx context.Context, migrations []Migration, appliedBy string) ([]Migration, error) {
	log := logger.FromContext(ctx)

	applied, err := s.AppliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("Migrate: %w", err)
	}
	byVersion := make(map[int]AppliedMigration, len(applied))
	for _, am := range applied {
		byVersion[am.Version] = am
	}

	var done []Migration
	for _, m := range migrations {
		if am, ok := byVersion[m.Version]; ok {
			if am.Checksum != "" && am.Checksum != m.Checksum {
				return done, fmt.Errorf("Migrate: %s changed after being applied", m.Filename)
			}
			log.Debug().Str("migration", m.Filename).Msg("Migration already applied")
			continue
		}

		if err := s.executeMigration(ctx, m, appliedBy); err != nil {
			return done, fmt.Errorf("Migrate: %s: %w", m.Filename, err)
		}
		log.Info().Str("migration", m.Filename).Msg("Migration applied")
		done = append(done, m)
	}
	return done, nil
}

func (s *Store) ensureSchemaMigrationsTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER NOT NULL PRIMARY KEY,
			name       TEXT    NOT NULL,
			applied_at TEXT    NOT NULL,
			checksum   TEXT,
			applied_by TEXT
		)`)
	return err
}

// AppliedMigrations lists the rows of schema_migrations by version. A new
// database has none.
func (s *Store) AppliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	if err := s.ensureSchemaMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT version, name, applied_at, checksum, applied_by
		FROM schema_migrations
		ORDER BY version ASC`)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			am        AppliedMigration
			appliedAt string
			checksum  sql.NullString
			by        sql.NullString
		)
		if err := rows.Scan(&am.Version, &am.Name, &appliedAt, &checksum, &by); err != nil {
			return nil, fmt.Errorf("scanning applied migration: %w", err)
		}
		am.AppliedAt = parseTime(appliedAt)
		am.Checksum = checksum.String
		am.AppliedBy = by.String
		applied = append(applied, am)
	}
	return applied, rows.Err()
}

// executeMigration runs the migration and records it in one transaction.
func (s *Store) executeMigration(ctx context.Context, m Migration, appliedBy string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("executing: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO schema_migrations (version, name, applied_at, checksum, applied_by)
		VALUES (?, ?, ?, ?, ?)`,
		m.Version, m.Name, formatTime(s.now()), m.Checksum, appliedBy,
	); err != nil {
		return fmt.Errorf("recording: %w", err)
	}
	return tx.Commit()
}
