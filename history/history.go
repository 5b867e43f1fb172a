// Package history persists per-scenario run metadata and cost
// decomposition across solves, grounded on scheduler/mpc_persistence.go's
// delete-then-insert transactional pattern. The default backend is an
// embedded SQLite database at <output_root>/runs.db; when a database URL
// is configured the store targets PostgreSQL instead, exercising the
// exact dependency (lib/pq) the teacher already carries for this concern.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// RunRecord is one solved scenario's headline result, mirroring
// solver.CostBreakdown plus the run-level metadata solver.RunMetadata
// carries, flattened for storage.
type RunRecord struct {
	RunID          string
	Scenario       string
	Timestamp      time.Time
	Status         string
	Objective      float64
	GasCosts       float64
	PowerCosts     float64
	HydrogenCosts  float64
	HeatRevenue    float64
	NetTotal       float64
	Discrepancy    float64
	NodesExplored  int
	SolveSeconds   float64
}

// Store wraps the underlying *sql.DB with the dialect-specific SQL this
// package needs (SQLite's "?" placeholders vs Postgres's "$n").
type Store struct {
	db      *sql.DB
	dialect string
	logger  *log.Logger
}

// Open connects to the configured backend and applies pending migrations.
// An empty databaseURL selects the default embedded SQLite file under
// outputRoot; any other value is treated as a PostgreSQL DSN.
func Open(databaseURL, outputRoot string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Default()
	}

	driverName, dsn, dialect := "sqlite3", filepath.Join(outputRoot, "runs.db"), "sqlite3"
	if databaseURL != "" {
		driverName, dsn, dialect = "postgres", databaseURL, "postgres"
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", driverName, err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("history: ping %s: %w", driverName, err)
	}

	if err := applyMigrations(db, dialect); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, dialect: dialect, logger: logger}, nil
}

func applyMigrations(db *sql.DB, dialect string) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("history: load migration source: %w", err)
	}

	var dbDriver migrate.Driver
	switch dialect {
	case "postgres":
		dbDriver, err = postgres.WithInstance(db, &postgres.Config{})
	default:
		dbDriver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	}
	if err != nil {
		return fmt.Errorf("history: migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, dialect, dbDriver)
	if err != nil {
		return fmt.Errorf("history: build migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("history: apply migrations: %w", err)
	}
	return nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// ph returns the i-th (1-based) placeholder in this store's dialect.
func (s *Store) ph(i int) string {
	if s.dialect == "postgres" {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

// SaveRun deletes any prior record for the scenario and inserts rec,
// mirroring scheduler/mpc_persistence.go's delete-then-insert transaction
// shape. rec.RunID is generated if empty.
func (s *Store) SaveRun(ctx context.Context, rec RunRecord) error {
	if rec.RunID == "" {
		rec.RunID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM runs WHERE scenario = %s", s.ph(1)), rec.Scenario,
	); err != nil {
		return fmt.Errorf("history: delete prior run for %q: %w", rec.Scenario, err)
	}

	cols := []string{
		"run_id", "scenario", "timestamp", "status", "objective",
		"gas_costs", "power_costs", "hydrogen_costs", "heat_revenue",
		"net_total", "discrepancy", "nodes_explored", "solve_seconds",
	}
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = s.ph(i + 1)
	}
	insert := fmt.Sprintf("INSERT INTO runs (%s) VALUES (%s)",
		strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	if _, err := tx.ExecContext(ctx, insert,
		rec.RunID, rec.Scenario, rec.Timestamp.UTC().Format(time.RFC3339), rec.Status, rec.Objective,
		rec.GasCosts, rec.PowerCosts, rec.HydrogenCosts, rec.HeatRevenue,
		rec.NetTotal, rec.Discrepancy, rec.NodesExplored, rec.SolveSeconds,
	); err != nil {
		return fmt.Errorf("history: insert run %q: %w", rec.RunID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: commit: %w", err)
	}
	s.logger.Printf("history: saved run %s for scenario %q", rec.RunID, rec.Scenario)
	return nil
}

// RecentRuns returns up to limit most recent runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT run_id, scenario, timestamp, status, objective, gas_costs,
		       power_costs, hydrogen_costs, heat_revenue, net_total,
		       discrepancy, nodes_explored, solve_seconds
		FROM runs ORDER BY timestamp DESC LIMIT %s`, s.ph(1)), limit)
	if err != nil {
		return nil, fmt.Errorf("history: query recent runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var ts string
		if err := rows.Scan(&rec.RunID, &rec.Scenario, &ts, &rec.Status, &rec.Objective,
			&rec.GasCosts, &rec.PowerCosts, &rec.HydrogenCosts, &rec.HeatRevenue,
			&rec.NetTotal, &rec.Discrepancy, &rec.NodesExplored, &rec.SolveSeconds); err != nil {
			return nil, fmt.Errorf("history: scan run row: %w", err)
		}
		rec.Timestamp, _ = time.Parse(time.RFC3339, ts)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RunByScenario returns the most recent stored run for scenario, if any.
func (s *Store) RunByScenario(ctx context.Context, scenario string) (RunRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT run_id, scenario, timestamp, status, objective, gas_costs,
		       power_costs, hydrogen_costs, heat_revenue, net_total,
		       discrepancy, nodes_explored, solve_seconds
		FROM runs WHERE scenario = %s ORDER BY timestamp DESC LIMIT 1`, s.ph(1)), scenario)

	var rec RunRecord
	var ts string
	err := row.Scan(&rec.RunID, &rec.Scenario, &ts, &rec.Status, &rec.Objective,
		&rec.GasCosts, &rec.PowerCosts, &rec.HydrogenCosts, &rec.HeatRevenue,
		&rec.NetTotal, &rec.Discrepancy, &rec.NodesExplored, &rec.SolveSeconds)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, false, nil
	}
	if err != nil {
		return RunRecord{}, false, fmt.Errorf("history: query run for %q: %w", scenario, err)
	}
	rec.Timestamp, _ = time.Parse(time.RFC3339, ts)
	return rec, true, nil
}
