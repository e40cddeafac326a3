package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/reconcile-cli/internal/db"
	"github.com/sells-group/reconcile-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for the
// hot staging read/write paths.
var preparedStatements = map[string]string{
	"get_staging": `SELECT id, entity_id, content, locked_fields, completeness_percent, version_number, status, created_by, created_at, updated_at FROM staging_records WHERE entity_id = $1`,
	"upsert_staging": `INSERT INTO staging_records (id, entity_id, content, locked_fields, completeness_percent, version_number, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (entity_id) DO UPDATE SET
			content = EXCLUDED.content,
			completeness_percent = EXCLUDED.completeness_percent,
			version_number = EXCLUDED.version_number,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`,
	"latest_snapshot": `SELECT id, entity_id, content, completeness_percent, version_number, created_by, created_at FROM production_snapshots WHERE entity_id = $1 ORDER BY created_at DESC, version_number DESC LIMIT 1`,
	"get_locks":       `SELECT locked_fields FROM staging_records WHERE entity_id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS staging_records (
	id                   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	entity_id            TEXT NOT NULL UNIQUE,
	content              JSONB NOT NULL DEFAULT '{}',
	locked_fields        JSONB NOT NULL DEFAULT '{}',
	completeness_percent INTEGER NOT NULL DEFAULT 0,
	version_number       INTEGER NOT NULL DEFAULT 0,
	status               TEXT NOT NULL DEFAULT 'draft',
	created_by           TEXT,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS production_snapshots (
	id                   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	entity_id            TEXT NOT NULL,
	content              JSONB NOT NULL,
	completeness_percent INTEGER NOT NULL DEFAULT 0,
	version_number       INTEGER NOT NULL DEFAULT 0,
	created_by           TEXT,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_staging_entity ON staging_records(entity_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_entity_created ON production_snapshots(entity_id, created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetStaging(ctx context.Context, entityID string) (*model.EntityRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, entity_id, content, locked_fields, completeness_percent, version_number, status, created_by, created_at, updated_at FROM staging_records WHERE entity_id = $1`,
		entityID,
	)
	rec, err := scanStagingPG(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// UpsertStaging writes the staging row. On an existing row locked_fields is
// left alone; only SetLock mutates that column, so a lock set while a run is
// in flight survives the write.
func (s *PostgresStore) UpsertStaging(ctx context.Context, rec *model.EntityRecord) (*model.EntityRecord, error) {
	out, err := prepareStagingWrite(rec)
	if err != nil {
		return nil, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO staging_records (id, entity_id, content, locked_fields, completeness_percent, version_number, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (entity_id) DO UPDATE SET
			content = EXCLUDED.content,
			completeness_percent = EXCLUDED.completeness_percent,
			version_number = EXCLUDED.version_number,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`,
		out.id, out.rec.EntityID, out.contentJSON, out.locksJSON,
		out.rec.CompletenessPercent, out.rec.VersionNumber, string(out.rec.Status),
		nullable(out.rec.CreatedBy), out.rec.CreatedAt, out.rec.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert staging %s", rec.EntityID)
	}
	return s.GetStaging(ctx, rec.EntityID)
}

func (s *PostgresStore) PublishSnapshot(ctx context.Context, rec *model.EntityRecord) (*model.ProductionSnapshot, error) {
	contentJSON, err := json.Marshal(rec.Content)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal snapshot content")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin publish tx")
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx,
		`UPDATE staging_records SET status = $1, updated_at = $2 WHERE entity_id = $3`,
		string(model.EntityStatusPublished), now, rec.EntityID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: mark staging published %s", rec.EntityID)
	}
	if tag.RowsAffected() == 0 {
		return nil, eris.Errorf("staging record not found: %s", rec.EntityID)
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
	_, err = tx.Exec(ctx,
		`INSERT INTO production_snapshots (id, entity_id, content, completeness_percent, version_number, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		snap.ID, snap.EntityID, string(contentJSON), snap.CompletenessPercent,
		snap.VersionNumber, nullable(snap.CreatedBy), snap.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert snapshot %s", rec.EntityID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit publish tx")
	}
	return snap, nil
}

func (s *PostgresStore) LatestSnapshot(ctx context.Context, entityID string) (*model.ProductionSnapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, entity_id, content, completeness_percent, version_number, created_by, created_at FROM production_snapshots WHERE entity_id = $1 ORDER BY created_at DESC, version_number DESC LIMIT 1`,
		entityID,
	)
	snap, err := scanSnapshotPG(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return snap, err
}

func (s *PostgresStore) ListSnapshots(ctx context.Context, entityID string, limit int) ([]model.ProductionSnapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, entity_id, content, completeness_percent, version_number, created_by, created_at FROM production_snapshots WHERE entity_id = $1 ORDER BY created_at DESC, version_number DESC LIMIT $2`,
		entityID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list snapshots")
	}
	defer rows.Close()

	var snaps []model.ProductionSnapshot
	for rows.Next() {
		snap, err := scanSnapshotPG(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, *snap)
	}
	return snaps, eris.Wrap(rows.Err(), "postgres: list snapshots iterate")
}

func (s *PostgresStore) GetLocks(ctx context.Context, entityID string) (map[string]bool, error) {
	var locksJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT locked_fields FROM staging_records WHERE entity_id = $1`,
		entityID,
	).Scan(&locksJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get locks")
	}
	return unmarshalLocks(string(locksJSON))
}

func (s *PostgresStore) SetLock(ctx context.Context, entityID, fieldID string, locked bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin lock tx")
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	var locksJSON []byte
	err = tx.QueryRow(ctx,
		`SELECT locked_fields FROM staging_records WHERE entity_id = $1 FOR UPDATE`,
		entityID,
	).Scan(&locksJSON)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		locks := map[string]bool{}
		if locked {
			locks[fieldID] = true
		}
		data, merr := json.Marshal(locks)
		if merr != nil {
			return eris.Wrap(merr, "postgres: marshal locks")
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO staging_records (id, entity_id, content, locked_fields, created_at, updated_at)
			VALUES ($1, $2, '{}', $3, $4, $5)`,
			uuid.New().String(), entityID, string(data), now, now,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: bootstrap staging for lock %s", entityID)
		}
	case err != nil:
		return eris.Wrap(err, "postgres: read locks")
	default:
		locks, uerr := unmarshalLocks(string(locksJSON))
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
			return eris.Wrap(merr, "postgres: marshal locks")
		}
		_, err = tx.Exec(ctx,
			`UPDATE staging_records SET locked_fields = $1, updated_at = $2 WHERE entity_id = $3`,
			string(data), now, entityID,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: update locks %s", entityID)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit lock tx")
}

// pg scan helpers (JSONB arrives as []byte)

func scanStagingPG(row pgx.Row) (*model.EntityRecord, error) {
	var rec model.EntityRecord
	var contentJSON, locksJSON []byte
	var createdBy *string

	err := row.Scan(&rec.ID, &rec.EntityID, &contentJSON, &locksJSON,
		&rec.CompletenessPercent, &rec.VersionNumber, &rec.Status, &createdBy,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan staging record")
	}

	if createdBy != nil {
		rec.CreatedBy = *createdBy
	}
	if rec.Content, err = unmarshalContent(string(contentJSON)); err != nil {
		return nil, err
	}
	if rec.LockedFields, err = unmarshalLocks(string(locksJSON)); err != nil {
		return nil, err
	}
	return &rec, nil
}

func scanSnapshotPG(row pgx.Row) (*model.ProductionSnapshot, error) {
	var snap model.ProductionSnapshot
	var contentJSON []byte
	var createdBy *string

	err := row.Scan(&snap.ID, &snap.EntityID, &contentJSON,
		&snap.CompletenessPercent, &snap.VersionNumber, &createdBy, &snap.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan snapshot")
	}

	if createdBy != nil {
		snap.CreatedBy = *createdBy
	}
	if snap.Content, err = unmarshalContent(string(contentJSON)); err != nil {
		return nil, err
	}
	return &snap, nil
}
