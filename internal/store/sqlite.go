package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/reconcile-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS staging_records (
	id                   TEXT PRIMARY KEY,
	entity_id            TEXT NOT NULL UNIQUE,
	content              TEXT NOT NULL DEFAULT '{}',
	locked_fields        TEXT NOT NULL DEFAULT '{}',
	completeness_percent INTEGER NOT NULL DEFAULT 0,
	version_number       INTEGER NOT NULL DEFAULT 0,
	status               TEXT NOT NULL DEFAULT 'draft',
	created_by           TEXT,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS production_snapshots (
	id                   TEXT PRIMARY KEY,
	entity_id            TEXT NOT NULL,
	content              TEXT NOT NULL,
	completeness_percent INTEGER NOT NULL DEFAULT 0,
	version_number       INTEGER NOT NULL DEFAULT 0,
	created_by           TEXT,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_staging_entity ON staging_records(entity_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_entity_created ON production_snapshots(entity_id, created_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetStaging(ctx context.Context, entityID string) (*model.EntityRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, entity_id, content, locked_fields, completeness_percent, version_number, status, created_by, created_at, updated_at
		 FROM staging_records WHERE entity_id = ?`,
		entityID,
	)
	rec, err := scanStaging(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// UpsertStaging writes the staging row. On an existing row locked_fields is
// left alone; only SetLock mutates that column, so a lock set while a run is
// in flight survives the write.
func (s *SQLiteStore) UpsertStaging(ctx context.Context, rec *model.EntityRecord) (*model.EntityRecord, error) {
	out, err := prepareStagingWrite(rec)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO staging_records (id, entity_id, content, locked_fields, completeness_percent, version_number, status, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(entity_id) DO UPDATE SET
			content = excluded.content,
			completeness_percent = excluded.completeness_percent,
			version_number = excluded.version_number,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		out.id, out.rec.EntityID, out.contentJSON, out.locksJSON,
		out.rec.CompletenessPercent, out.rec.VersionNumber, string(out.rec.Status),
		nullable(out.rec.CreatedBy), out.rec.CreatedAt, out.rec.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert staging %s", rec.EntityID)
	}
	return s.GetStaging(ctx, rec.EntityID)
}

func (s *SQLiteStore) PublishSnapshot(ctx context.Context, rec *model.EntityRecord) (*model.ProductionSnapshot, error) {
	contentJSON, err := json.Marshal(rec.Content)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal snapshot content")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin publish tx")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE staging_records SET status = ?, updated_at = ? WHERE entity_id = ?`,
		string(model.EntityStatusPublished), now, rec.EntityID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: mark staging published %s", rec.EntityID)
	}
	if err := checkRowsAffected(res, "staging record", rec.EntityID); err != nil {
		return nil, err
	}

	snap := &model.ProductionSnapshot{
		ID:                  uuid.New().String(),
		EntityID:            rec.EntityID,
		Content:             rec.Content,
		CompletenessPercent: rec.CompletenessPercent,
		VersionNumber:       rec.VersionNumber,
		CreatedBy:           rec.CreatedBy,
		CreatedAt:           now,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO production_snapshots (id, entity_id, content, completeness_percent, version_number, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.EntityID, string(contentJSON), snap.CompletenessPercent,
		snap.VersionNumber, nullable(snap.CreatedBy), snap.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert snapshot %s", rec.EntityID)
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit publish tx")
	}
	return snap, nil
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context, entityID string) (*model.ProductionSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, entity_id, content, completeness_percent, version_number, created_by, created_at
		 FROM production_snapshots WHERE entity_id = ?
		 ORDER BY created_at DESC, version_number DESC LIMIT 1`,
		entityID,
	)
	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return snap, err
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context, entityID string, limit int) ([]model.ProductionSnapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity_id, content, completeness_percent, version_number, created_by, created_at
		 FROM production_snapshots WHERE entity_id = ?
		 ORDER BY created_at DESC, version_number DESC LIMIT ?`,
		entityID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list snapshots")
	}
	defer rows.Close()

	var snaps []model.ProductionSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, *snap)
	}
	return snaps, eris.Wrap(rows.Err(), "sqlite: list snapshots iterate")
}

func (s *SQLiteStore) GetLocks(ctx context.Context, entityID string) (map[string]bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT locked_fields FROM staging_records WHERE entity_id = ?`,
		entityID,
	)
	var locksJSON string
	err := row.Scan(&locksJSON)
	if err == sql.ErrNoRows {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get locks")
	}
	return unmarshalLocks(locksJSON)
}

func (s *SQLiteStore) SetLock(ctx context.Context, entityID, fieldID string, locked bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin lock tx")
	}
	defer tx.Rollback()

	var locksJSON string
	now := time.Now().UTC()
	err = tx.QueryRowContext(ctx,
		`SELECT locked_fields FROM staging_records WHERE entity_id = ?`, entityID,
	).Scan(&locksJSON)

	switch {
	case err == sql.ErrNoRows:
		// A lock may be set before the first pipeline run. Bootstrap a
		// minimal staging row so it survives until the run arrives.
		locks := map[string]bool{}
		if locked {
			locks[fieldID] = true
		}
		data, merr := json.Marshal(locks)
		if merr != nil {
			return eris.Wrap(merr, "sqlite: marshal locks")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO staging_records (id, entity_id, content, locked_fields, created_at, updated_at)
			 VALUES (?, ?, '{}', ?, ?, ?)`,
			uuid.New().String(), entityID, string(data), now, now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: bootstrap staging for lock %s", entityID)
		}
	case err != nil:
		return eris.Wrap(err, "sqlite: read locks")
	default:
		locks, uerr := unmarshalLocks(locksJSON)
		if uerr != nil {
			return uerr
		}
		if locked {
			locks[fieldID] = true
		} else {
			delete(locks, fieldID)
		}
		data, merr := json.Marshal(locks)
		if merr != nil {
			return eris.Wrap(merr, "sqlite: marshal locks")
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE staging_records SET locked_fields = ?, updated_at = ? WHERE entity_id = ?`,
			string(data), now, entityID,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: update locks %s", entityID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit lock tx")
}

// helpers

type stagingWrite struct {
	id          string
	rec         *model.EntityRecord
	contentJSON string
	locksJSON   string
}

// prepareStagingWrite fills identifiers and timestamps and marshals the JSON
// columns. Shared by both backends.
func prepareStagingWrite(rec *model.EntityRecord) (*stagingWrite, error) {
	now := time.Now().UTC()
	out := *rec
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = now
	}
	out.UpdatedAt = now
	if out.Status == "" {
		out.Status = model.EntityStatusDraft
	}
	if out.Content == nil {
		out.Content = map[string]model.FieldRecord{}
	}
	if out.LockedFields == nil {
		out.LockedFields = map[string]bool{}
	}

	contentJSON, err := json.Marshal(out.Content)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal staging content")
	}
	locksJSON, err := json.Marshal(out.LockedFields)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal locked fields")
	}
	return &stagingWrite{
		id:          out.ID,
		rec:         &out,
		contentJSON: string(contentJSON),
		locksJSON:   string(locksJSON),
	}, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func unmarshalLocks(locksJSON string) (map[string]bool, error) {
	locks := map[string]bool{}
	if locksJSON == "" {
		return locks, nil
	}
	if err := json.Unmarshal([]byte(locksJSON), &locks); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal locked fields")
	}
	return locks, nil
}

// unmarshalContent decodes a content column through the legacy-tolerant
// coercion path so pre-rich-format rows still load.
func unmarshalContent(contentJSON string) (map[string]model.FieldRecord, error) {
	if contentJSON == "" {
		return map[string]model.FieldRecord{}, nil
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(contentJSON), &raw); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal content")
	}
	return model.CoerceContent(raw), nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanStaging(row scannable) (*model.EntityRecord, error) {
	var rec model.EntityRecord
	var contentJSON, locksJSON string
	var createdBy sql.NullString
	// Legacy imports stored the percentage with loose typing; parse whatever
	// the column holds.
	var completeness any

	err := row.Scan(&rec.ID, &rec.EntityID, &contentJSON, &locksJSON,
		&completeness, &rec.VersionNumber, &rec.Status, &createdBy,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, eris.Wrap(err, "store: scan staging record")
	}

	rec.CompletenessPercent = model.ParseCompleteness(completeness)
	rec.CreatedBy = createdBy.String
	if rec.Content, err = unmarshalContent(contentJSON); err != nil {
		return nil, err
	}
	if rec.LockedFields, err = unmarshalLocks(locksJSON); err != nil {
		return nil, err
	}
	return &rec, nil
}

func scanSnapshot(row scannable) (*model.ProductionSnapshot, error) {
	var snap model.ProductionSnapshot
	var contentJSON string
	var createdBy sql.NullString

	err := row.Scan(&snap.ID, &snap.EntityID, &contentJSON,
		&snap.CompletenessPercent, &snap.VersionNumber, &createdBy, &snap.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, eris.Wrap(err, "store: scan snapshot")
	}

	snap.CreatedBy = createdBy.String
	if snap.Content, err = unmarshalContent(contentJSON); err != nil {
		return nil, err
	}
	return &snap, nil
}
