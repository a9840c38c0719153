package engine

import (
	"database/sql"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nimbusnet/rugengine/errors"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS global_debug (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	enabled INTEGER NOT NULL,
	reason TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS tenant_debug (
	tenant_id TEXT PRIMARY KEY,
	reason TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS router_debug (
	router_id TEXT PRIMARY KEY,
	reason TEXT NOT NULL DEFAULT ''
);
`

// SQLiteDebugStore persists debug flags in a small embedded database, as
// permitted by the store's black-box interface.
type SQLiteDebugStore struct {
	db *sql.DB
}

// NewSQLiteDebugStore opens (creating if necessary) a SQLite database at
// path and ensures its schema exists.
func NewSQLiteDebugStore(path string) (*SQLiteDebugStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open debug store at %s", path)
	}
	return newSQLiteDebugStoreFromDB(db)
}

// newSQLiteDebugStoreFromDB wraps an already-open *sql.DB, letting tests
// substitute a mocked driver to exercise error paths sqlite itself rarely
// produces (e.g. a wedged connection rejecting schema creation).
func newSQLiteDebugStoreFromDB(db *sql.DB) (*SQLiteDebugStore, error) {
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize debug store schema")
	}
	return &SQLiteDebugStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteDebugStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteDebugStore) GlobalDebug() (bool, string, error) {
	var enabled int
	var reason string
	err := s.db.QueryRow(`SELECT enabled, reason FROM global_debug WHERE id = 1`).Scan(&enabled, &reason)
	if err == sql.ErrNoRows {
		return false, "", nil
	}
	if err != nil {
		return false, "", errors.Wrap(err, "failed to query global debug flag")
	}
	return enabled != 0, reason, nil
}

func (s *SQLiteDebugStore) TenantInDebug(tenantID uuid.UUID) (bool, string, error) {
	var reason string
	err := s.db.QueryRow(`SELECT reason FROM tenant_debug WHERE tenant_id = ?`, tenantID.String()).Scan(&reason)
	if err == sql.ErrNoRows {
		return false, "", nil
	}
	if err != nil {
		return false, "", errors.Wrap(err, "failed to query tenant debug flag")
	}
	return true, reason, nil
}

func (s *SQLiteDebugStore) RouterInDebug(routerID uuid.UUID) (bool, string, error) {
	var reason string
	err := s.db.QueryRow(`SELECT reason FROM router_debug WHERE router_id = ?`, routerID.String()).Scan(&reason)
	if err == sql.ErrNoRows {
		return false, "", nil
	}
	if err != nil {
		return false, "", errors.Wrap(err, "failed to query router debug flag")
	}
	return true, reason, nil
}

func (s *SQLiteDebugStore) TenantsInDebug() ([]DebugEntry, error) {
	rows, err := s.db.Query(`SELECT tenant_id, reason FROM tenant_debug`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tenants in debug")
	}
	defer rows.Close()
	return scanDebugEntries(rows)
}

func (s *SQLiteDebugStore) RoutersInDebug() ([]DebugEntry, error) {
	rows, err := s.db.Query(`SELECT router_id, reason FROM router_debug`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list routers in debug")
	}
	defer rows.Close()
	return scanDebugEntries(rows)
}

func scanDebugEntries(rows *sql.Rows) ([]DebugEntry, error) {
	var entries []DebugEntry
	for rows.Next() {
		var idStr, reason string
		if err := rows.Scan(&idStr, &reason); err != nil {
			return nil, errors.Wrap(err, "failed to scan debug entry")
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		entries = append(entries, DebugEntry{ID: id, Reason: reason})
	}
	return entries, rows.Err()
}

func (s *SQLiteDebugStore) EnableGlobalDebug(reason string) error {
	_, err := s.db.Exec(`
		INSERT INTO global_debug (id, enabled, reason) VALUES (1, 1, ?)
		ON CONFLICT(id) DO UPDATE SET enabled = 1, reason = excluded.reason`, reason)
	return errors.Wrap(err, "failed to enable global debug")
}

func (s *SQLiteDebugStore) DisableGlobalDebug() error {
	_, err := s.db.Exec(`
		INSERT INTO global_debug (id, enabled, reason) VALUES (1, 0, '')
		ON CONFLICT(id) DO UPDATE SET enabled = 0, reason = ''`)
	return errors.Wrap(err, "failed to disable global debug")
}

func (s *SQLiteDebugStore) EnableTenantDebug(tenantID uuid.UUID, reason string) error {
	_, err := s.db.Exec(`
		INSERT INTO tenant_debug (tenant_id, reason) VALUES (?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET reason = excluded.reason`, tenantID.String(), reason)
	return errors.Wrap(err, "failed to enable tenant debug")
}

func (s *SQLiteDebugStore) DisableTenantDebug(tenantID uuid.UUID) error {
	_, err := s.db.Exec(`DELETE FROM tenant_debug WHERE tenant_id = ?`, tenantID.String())
	return errors.Wrap(err, "failed to disable tenant debug")
}

func (s *SQLiteDebugStore) EnableRouterDebug(routerID uuid.UUID, reason string) error {
	_, err := s.db.Exec(`
		INSERT INTO router_debug (router_id, reason) VALUES (?, ?)
		ON CONFLICT(router_id) DO UPDATE SET reason = excluded.reason`, routerID.String(), reason)
	return errors.Wrap(err, "failed to enable router debug")
}

func (s *SQLiteDebugStore) DisableRouterDebug(routerID uuid.UUID) error {
	_, err := s.db.Exec(`DELETE FROM router_debug WHERE router_id = ?`, routerID.String())
	return errors.Wrap(err, "failed to disable router debug")
}
