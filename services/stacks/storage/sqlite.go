package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/iulianpascalau/devstats-stacks/services/stacks/common"
	_ "github.com/mattn/go-sqlite3"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("storage")

// compositeKeySeparator joins the visible columns into a deterministic row id. The ASCII unit
// separator can not occur in scraped identifiers, so distinct field tuples can not collide.
const compositeKeySeparator = "\x1f"

// sqliteStorage is the sqlite implementation of the durable mirror. The mirror is written through on
// every cache and registry mutation but is never the source of truth for read paths (except the
// one-shot stack seeding at process start).
type sqliteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates the database and its schema
func NewSQLiteStorage(dbPath string) (*sqliteStorage, error) {
	err := prepareDirectories(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create initial empty DB file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = createSchema(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &sqliteStorage{
		db: db,
	}, nil
}

func prepareDirectories(dbPath string) error {
	return os.MkdirAll(filepath.Dir(dbPath), os.ModePerm)
}

func createSchema(db *sql.DB) error {

	schema := `
	CREATE TABLE IF NOT EXISTS components (
		short TEXT NOT NULL PRIMARY KEY,
		name  TEXT NOT NULL,
		href  TEXT NOT NULL,
		svg   TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS companies (
		name TEXT NOT NULL PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS component_stacks (
		id     TEXT NOT NULL PRIMARY KEY,
		parent TEXT NOT NULL,
		name   TEXT NOT NULL,
		child  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS company_stacks (
		id     TEXT NOT NULL PRIMARY KEY,
		parent TEXT NOT NULL,
		name   TEXT NOT NULL,
		child  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS components_cache (
		id        TEXT NOT NULL PRIMARY KEY,
		component TEXT NOT NULL,
		metrics   TEXT NOT NULL,
		company   TEXT NOT NULL,
		period    TEXT NOT NULL,
		value     REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_component_stacks_parent ON component_stacks(parent);
	CREATE INDEX IF NOT EXISTS idx_company_stacks_parent ON company_stacks(parent);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

func compositeKey(parts ...string) string {
	return strings.Join(parts, compositeKeySeparator)
}

// UpsertCacheRows bulk-writes the change-set emitted by the metrics cache. The row id is derived
// from every field except the value, so replaying the same tuples is idempotent and the last write
// wins for overlapping ids.
func (s *sqliteStorage) UpsertCacheRows(ctx context.Context, rows []common.CacheRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO components_cache (id, component, metrics, company, period, value)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET value=excluded.value
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare cache upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, row := range rows {
		id := compositeKey(row.Component, row.Metric, row.Company, row.Period)
		_, err = stmt.ExecContext(ctx, id, row.Component, row.Metric, row.Company, row.Period, row.Value)
		if err != nil {
			return fmt.Errorf("failed to upsert cache row: %w", err)
		}
	}

	return tx.Commit()
}

// UpsertComponents mirrors the scraped component directory
func (s *sqliteStorage) UpsertComponents(ctx context.Context, components []common.Component) error {
	if len(components) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, comp := range components {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO components (short, name, href, svg)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(short) DO UPDATE SET
				name=excluded.name,
				href=excluded.href,
				svg=excluded.svg
		`, comp.Short, comp.Name, comp.Href, comp.SVG)
		if err != nil {
			return fmt.Errorf("failed to upsert component: %w", err)
		}
	}

	return tx.Commit()
}

// UpsertCompanies mirrors newly seen company names
func (s *sqliteStorage) UpsertCompanies(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, name := range names {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO companies (name)
			VALUES (?)
			ON CONFLICT(name) DO NOTHING
		`, name)
		if err != nil {
			return fmt.Errorf("failed to upsert company: %w", err)
		}
	}

	return tx.Commit()
}

// UpsertComponentStackMembers mirrors one membership row per member, keyed by (parent, child)
func (s *sqliteStorage) UpsertComponentStackMembers(ctx context.Context, stackShort string, stackName string, members []string) error {
	return s.upsertStackMembers(ctx, "component_stacks", stackShort, stackName, members, false)
}

// UpsertCompanyStackMembers mirrors one membership row per member; the id also carries the stack
// name, distinguishing same-named company groupings
func (s *sqliteStorage) UpsertCompanyStackMembers(ctx context.Context, stackShort string, stackName string, members []string) error {
	return s.upsertStackMembers(ctx, "company_stacks", stackShort, stackName, members, true)
}

func (s *sqliteStorage) upsertStackMembers(
	ctx context.Context,
	table string,
	stackShort string,
	stackName string,
	members []string,
	keyWithName bool,
) error {
	if len(members) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`
		INSERT INTO %s (id, parent, name, child)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			parent=excluded.parent,
			name=excluded.name,
			child=excluded.child
	`, table)

	for _, member := range members {
		id := compositeKey(stackShort, member)
		if keyWithName {
			id = compositeKey(stackShort, stackName, member)
		}

		_, err = tx.ExecContext(ctx, query, id, stackShort, stackName, member)
		if err != nil {
			return fmt.Errorf("failed to upsert stack member: %w", err)
		}
	}

	return tx.Commit()
}

// DeleteComponentStackMembers removes every membership row mirrored for the provided stack
func (s *sqliteStorage) DeleteComponentStackMembers(ctx context.Context, stackShort string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM component_stacks WHERE parent = ?", stackShort)
	return err
}

// LoadComponentStacks reads the mirrored stack definitions back, used once at process start to seed
// the in-memory registry
func (s *sqliteStorage) LoadComponentStacks(ctx context.Context) ([]common.Stack, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT parent, name, child FROM component_stacks ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	stacksByShort := make(map[string]*common.Stack)
	var order []string

	for rows.Next() {
		var parent, name, child string
		err = rows.Scan(&parent, &name, &child)
		if err != nil {
			return nil, err
		}

		stack, found := stacksByShort[parent]
		if !found {
			stack = &common.Stack{
				Short: parent,
				Name:  name,
			}
			stacksByShort[parent] = stack
			order = append(order, parent)
		}
		stack.Components = append(stack.Components, child)
	}

	out := make([]common.Stack, 0, len(order))
	for _, short := range order {
		out = append(out, *stacksByShort[short])
	}

	return out, rows.Err()
}

// Close closes the database
func (s *sqliteStorage) Close() error {
	return s.db.Close()
}

// IsInterfaceNil returns true if the value under the interface is nil
func (s *sqliteStorage) IsInterfaceNil() bool {
	return s == nil
}
