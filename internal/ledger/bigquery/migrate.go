package bigquery

import (
	"context"
	"crypto/sha256"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migrations returns the schema migrations shipped with the binary.
func Migrations() fs.FS {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Migration is a single versioned SQL file, e.g. 0001_create_expenses.sql.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// ParseMigrations reads the migration files at the root of fsys, substitutes the
// {{KEY}} placeholders from vars and returns them ordered by version. The
// checksum is taken over the file before substitution.
func ParseMigrations(fsys fs.FS, vars map[string]string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("ParseMigrations: reading directory: %w", err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := migrationPattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}

		version, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if prev, ok := seen[version]; ok {
			return nil, fmt.Errorf("ParseMigrations: version %04d used by %s and %s", version, prev, entry.Name())
		}
		seen[version] = entry.Name()

		content, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("ParseMigrations: reading %s: %w", entry.Name(), err)
		}

		sql := string(content)
		for key, value := range vars {
			sql = strings.ReplaceAll(sql, "{{"+key+"}}", value)
		}

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     m[2],
			Filename: entry.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Pending returns the migrations whose version has not been applied yet.
func Pending(all []Migration, applied []AppliedMigration) []Migration {
	done := make(map[int]bool, len(applied))
	for _, am := range applied {
		done[am.Version] = true
	}

	var pending []Migration
	for _, m := range all {
		if !done[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending
}

// Migrator applies migrations to a dataset and records them in schema_migrations.
type Migrator struct {
	client    *bigquery.Client
	opts      Options
	appliedBy string
	log       zerolog.Logger
}

// NewMigrator creates a migrator using the repository's client.
func (r *Repository) NewMigrator(appliedBy string) *Migrator {
	return &Migrator{client: r.client, opts: r.opts, appliedBy: appliedBy, log: r.log}
}

// Vars returns the placeholder values for the migration files.
func (o Options) Vars() map[string]string {
	return map[string]string{
		"PROJECT_ID":       o.ProjectID,
		"DATASET_ID":       o.Dataset,
		"EXPENSES_TABLE":   o.ExpensesTable,
		"CATEGORIES_TABLE": o.CategoriesTable,
	}
}

// Run applies every pending migration in fsys and returns how many were applied.
func (m *Migrator) Run(ctx context.Context, fsys fs.FS) (int, error) {
	if err := m.exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, m.migrationsTable()), nil); err != nil {
		return 0, fmt.Errorf("Run: ensuring schema_migrations: %w", err)
	}

	all, err := ParseMigrations(fsys, m.opts.Vars())
	if err != nil {
		return 0, fmt.Errorf("Run: %w", err)
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return 0, fmt.Errorf("Run: %w", err)
	}

	pending := Pending(all, applied)
	for _, mig := range pending {
		m.log.Info().Int("version", mig.Version).Str("name", mig.Name).Msg("Applying migration")

		if err := m.exec(ctx, mig.SQL, nil); err != nil {
			return 0, fmt.Errorf("Run: executing %s: %w", mig.Filename, err)
		}

		err := m.exec(ctx, fmt.Sprintf(`
			INSERT INTO %s
			(version, name, applied_at, checksum, applied_by)
			VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
		`, m.migrationsTable()), []bigquery.QueryParameter{
			{Name: "version", Value: mig.Version},
			{Name: "name", Value: mig.Name},
			{Name: "checksum", Value: mig.Checksum},
			{Name: "applied_by", Value: m.appliedBy},
		})
		if err != nil {
			return 0, fmt.Errorf("Run: recording %s: %w", mig.Filename, err)
		}
	}

	return len(pending), nil
}

func (m *Migrator) applied(ctx context.Context) ([]AppliedMigration, error) {
	q := m.client.Query(fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM %s
		ORDER BY version ASC
	`, m.migrationsTable()))

	it, err := q.Read(ctx)
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time `bigquery:"applied_at"`
			Checksum  bigquery.NullString
			AppliedBy bigquery.NullString `bigquery:"applied_by"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating applied migrations: %w", err)
		}

		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}
	return applied, nil
}

func (m *Migrator) exec(ctx context.Context, sql string, params []bigquery.QueryParameter) error {
	q := m.client.Query(sql)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

func (m *Migrator) migrationsTable() string {
	return fmt.Sprintf("`%s.%s.schema_migrations`", m.opts.ProjectID, m.opts.Dataset)
}
