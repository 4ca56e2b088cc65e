package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/fiscal-pilot/internal/config"
	"github.com/dvloznov/fiscal-pilot/internal/logger"
)

// Migration is one versioned schema file.
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

var (
	configPath    = flag.String("config", "", "Path to config YAML (project and dataset defaults)")
	projectID     = flag.String("project", "", "GCP project ID")
	datasetID     = flag.String("dataset", "", "BigQuery dataset ID")
	appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir = flag.String("migrations", "migrations/bigquery", "Path to migrations directory")
	dryRun        = flag.Bool("dry-run", false, "List pending migrations without applying them")
)

func main() {
	flag.Parse()
	log := logger.New()
	ctx := logger.WithContext(context.Background(), log)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *projectID == "" {
		*projectID = cfg.Store.ProjectID
	}
	if *datasetID == "" {
		*datasetID = cfg.Store.DatasetID
	}
	if *projectID == "" {
		log.Fatal().Msg("A GCP project is required: pass -project or set store.project_id")
	}

	dir, err := findMigrationsDir(*migrationsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to locate migrations")
	}
	migrations, err := readMigrations(dir, *projectID, *datasetID, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}
	log.Info().Int("count", len(migrations)).Str("dir", dir).Msg("Found migration files")

	client, err := bigquery.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	log.Info().Str("project", *projectID).Str("dataset", *datasetID).Msg("Connected to BigQuery")

	if !*dryRun {
		if err := ensureSchemaMigrationsTable(ctx, client); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure schema_migrations table")
		}
	}

	applied, err := getAppliedMigrations(ctx, client)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get applied migrations")
	}
	log.Info().Int("count", len(applied)).Msg("Found already applied migrations")

	todo, drifted := pending(migrations, applied)
	for _, m := range drifted {
		log.Warn().Int("version", m.Version).Str("name", m.Name).Msg("Applied migration file changed since it was applied")
	}

	for _, m := range todo {
		mlog := log.With().Str("migration", fmt.Sprintf("%04d_%s", m.Version, m.Name)).Logger()
		if *dryRun {
			mlog.Info().Msg("Pending")
			continue
		}
		mlog.Info().Msg("Applying")
		if err := runStatement(ctx, client, m.SQL, nil); err != nil {
			mlog.Fatal().Err(err).Msg("Failed to execute migration")
		}
		if err := recordMigration(ctx, client, m); err != nil {
			mlog.Fatal().Err(err).Msg("Failed to record migration")
		}
		mlog.Info().Msg("Applied")
	}

	if len(todo) == 0 {
		log.Info().Msg("No new migrations to apply. Database is up to date.")
	} else if !*dryRun {
		log.Info().Int("count", len(todo)).Msg("Successfully applied migrations")
	}
}

// findMigrationsDir also tries the path relative to the repo root when run
// from cmd/migrate.
func findMigrationsDir(dir string) (string, error) {
	if _, err := os.Stat(dir); err == nil {
		return dir, nil
	}
	alt := filepath.Join("..", "..", dir)
	if _, err := os.Stat(alt); err == nil {
		return alt, nil
	}
	return "", fmt.Errorf("migrations directory not found: %s", dir)
}

// readMigrations loads NNNN_name.sql files sorted by version. The checksum is
// taken before placeholder substitution so it tracks the logical migration,
// not the project it is applied to.
func readMigrations(dir, project, dataset string, log zerolog.Logger) ([]Migration, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		version, name, ok := parseFilename(file.Name())
		if !ok {
			log.Warn().Str("file", file.Name()).Msg("Skipping file with invalid name")
			continue
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %04d: %s and %s", version, prev, file.Name())
		}
		seen[version] = file.Name()

		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", file.Name(), err)
		}

		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", project)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", dataset)

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     name,
			Filename: file.Name(),
			SQL:      sql,
			Checksum: checksum(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func parseFilename(filename string) (int, string, bool) {
	m := migrationPattern.FindStringSubmatch(filename)
	if m == nil {
		return 0, "", false
	}
	version, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return version, m[2], true
}

func checksum(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}

// pending returns migrations not yet applied, and applied ones whose file
// checksum no longer matches the recorded one.
func pending(all []Migration, applied []AppliedMigration) (todo, drifted []Migration) {
	done := make(map[int]AppliedMigration, len(applied))
	for _, am := range applied {
		done[am.Version] = am
	}
	for _, m := range all {
		am, ok := done[m.Version]
		if !ok {
			todo = append(todo, m)
			continue
		}
		if am.Checksum != "" && am.Checksum != m.Checksum {
			drifted = append(drifted, m)
		}
	}
	return todo, drifted
}

func migrationsTable() string {
	return fmt.Sprintf("`%s.%s.schema_migrations`", *projectID, *datasetID)
}

func ensureSchemaMigrationsTable(ctx context.Context, client *bigquery.Client) error {
	return runStatement(ctx, client, `
		CREATE TABLE IF NOT EXISTS `+migrationsTable()+` (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, nil)
}

func getAppliedMigrations(ctx context.Context, client *bigquery.Client) ([]AppliedMigration, error) {
	query := client.Query(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM ` + migrationsTable() + `
		ORDER BY version ASC
	`)
	it, err := query.Read(ctx)
	if err != nil {
		// the table does not exist yet on a dry run against a fresh dataset
		if strings.Contains(err.Error(), "Not found") {
			return []AppliedMigration{}, nil
		}
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time
			Checksum  bigquery.NullString
			AppliedBy bigquery.NullString
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
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

func recordMigration(ctx context.Context, client *bigquery.Client, m Migration) error {
	return runStatement(ctx, client, `
		INSERT INTO `+migrationsTable()+`
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, []bigquery.QueryParameter{
		{Name: "version", Value: m.Version},
		{Name: "name", Value: m.Name},
		{Name: "checksum", Value: m.Checksum},
		{Name: "applied_by", Value: *appliedBy},
	})
}

func runStatement(ctx context.Context, client *bigquery.Client, sql string, params []bigquery.QueryParameter) error {
	query := client.Query(sql)
	query.Parameters = params
	job, err := query.Run(ctx)
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
