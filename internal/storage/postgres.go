package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chemvis/pkg/contracts/domain"
)

const (
	// historyLockKey serialises insert+evict across every server instance
	historyLockKey int64 = 0x63686D76 // "chmv"

	connectTimeout = 10 * time.Second
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS dataset_summaries (
	id                BIGSERIAL PRIMARY KEY,
	label             TEXT NOT NULL UNIQUE,
	filename          TEXT NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL,
	total_count       INTEGER NOT NULL,
	avg_flowrate      DOUBLE PRECISION NOT NULL,
	avg_pressure      DOUBLE PRECISION NOT NULL,
	avg_temperature   DOUBLE PRECISION NOT NULL,
	type_distribution JSONB NOT NULL DEFAULT '{}'::jsonb
);
CREATE INDEX IF NOT EXISTS dataset_summaries_history_idx
	ON dataset_summaries (created_at, id);
CREATE TABLE IF NOT EXISTS dataset_equipment (
	dataset_id  BIGINT NOT NULL REFERENCES dataset_summaries (id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	name        TEXT NOT NULL,
	type        TEXT NOT NULL,
	flowrate    DOUBLE PRECISION NOT NULL,
	pressure    DOUBLE PRECISION NOT NULL,
	temperature DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (dataset_id, position)
);
`

var equipmentColumns = []string{"dataset_id", "position", "name", "type", "flowrate", "pressure", "temperature"}

const selectColumns = `id, label, filename, created_at, total_count,
	avg_flowrate, avg_pressure, avg_temperature, type_distribution`

// PostgresStore keeps the history in a PostgreSQL table
type PostgresStore struct {
	pool      *pgxpool.Pool
	capacity  int
	now       func() time.Time
	closeOnce sync.Once
}

// OpenPostgresStore connects, pings and migrates the schema
func OpenPostgresStore(ctx context.Context, dsn string, capacity int, maxConns int32) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: invalid postgres configuration: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}
	poolConfig.ConnConfig.ConnectTimeout = connectTimeout

	ctxTimeout, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctxTimeout, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("storage: create postgres pool: %w", err)
	}
	if err := pool.Ping(ctxTimeout); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: postgres ping failed: %w", err)
	}

	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &PostgresStore{pool: pool, capacity: capacity, now: defaultClock}
	if err := s.migrate(ctxTimeout); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("storage: migrate schema: %w", err)
	}
	return nil
}

// Insert writes the summary and its rows and evicts the oldest summaries
// beyond capacity in one transaction holding an advisory lock. Evicted rows
// go with their summary through the cascading foreign key.
func (s *PostgresStore) Insert(ctx context.Context, summary domain.DatasetSummary, records []domain.EquipmentRecord) (InsertResult, error) {
	var res InsertResult

	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, historyLockKey); err != nil {
			return fmt.Errorf("acquire history lock: %w", err)
		}

		id, err := s.reserveID(ctx, tx, summary.ID)
		if err != nil {
			return err
		}

		stored := stamp(summary.Clone(), id, s.now())
		dist, err := json.Marshal(distributionOrEmpty(stored.TypeDistribution))
		if err != nil {
			return fmt.Errorf("encode type distribution: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO dataset_summaries (`+selectColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			stored.ID, stored.Label, stored.Filename, stored.CreatedAt, stored.TotalCount,
			stored.AvgFlowrate, stored.AvgPressure, stored.AvgTemperature, string(dist))
		if err != nil {
			return fmt.Errorf("insert dataset: %w", err)
		}

		if len(records) > 0 {
			_, err = tx.CopyFrom(ctx, pgx.Identifier{"dataset_equipment"}, equipmentColumns,
				pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
					r := records[i]
					return []any{stored.ID, i, r.Name, r.Type, r.Flowrate, r.Pressure, r.Temperature}, nil
				}))
			if err != nil {
				return fmt.Errorf("insert equipment rows: %w", err)
			}
		}

		evicted, err := s.evict(ctx, tx)
		if err != nil {
			return err
		}

		res = InsertResult{Summary: stored, Evicted: evicted}
		return nil
	})
	if err != nil {
		return InsertResult{}, err
	}
	return res, nil
}

// reserveID draws the next sequence value or advances the sequence past a
// pre-assigned id. Callers hold the history lock.
func (s *PostgresStore) reserveID(ctx context.Context, tx pgx.Tx, requested int64) (int64, error) {
	if requested == 0 {
		var id int64
		err := tx.QueryRow(ctx, `SELECT nextval(pg_get_serial_sequence('dataset_summaries', 'id'))`).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("reserve dataset id: %w", err)
		}
		return id, nil
	}

	var last int64
	var called bool
	if err := tx.QueryRow(ctx, `SELECT last_value, is_called FROM dataset_summaries_id_seq`).Scan(&last, &called); err != nil {
		return 0, fmt.Errorf("read dataset id sequence: %w", err)
	}
	if requested < last || (called && requested == last) {
		return 0, domain.ErrDuplicateID
	}
	if _, err := tx.Exec(ctx, `SELECT setval(pg_get_serial_sequence('dataset_summaries', 'id'), $1, true)`, requested); err != nil {
		return 0, fmt.Errorf("advance dataset id sequence: %w", err)
	}
	return requested, nil
}

func (s *PostgresStore) evict(ctx context.Context, tx pgx.Tx) ([]int64, error) {
	rows, err := tx.Query(ctx, `
		DELETE FROM dataset_summaries
		WHERE id IN (
			SELECT id FROM dataset_summaries
			ORDER BY created_at, id
			LIMIT GREATEST((SELECT count(*) FROM dataset_summaries) - $1, 0)
		)
		RETURNING id`, s.capacity)
	if err != nil {
		return nil, fmt.Errorf("evict datasets: %w", err)
	}
	evicted, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("evict datasets: %w", err)
	}
	return evicted, nil
}

// List returns summaries newest first
func (s *PostgresStore) List(ctx context.Context, limit int) ([]domain.DatasetSummary, error) {
	query := `SELECT ` + selectColumns + ` FROM dataset_summaries ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	summaries, err := pgx.CollectRows(rows, scanSummary)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	return summaries, nil
}

// Get retrieves a summary by id
func (s *PostgresStore) Get(ctx context.Context, id int64) (domain.DatasetSummary, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+selectColumns+` FROM dataset_summaries WHERE id = $1`, id)
	if err != nil {
		return domain.DatasetSummary{}, fmt.Errorf("get dataset %d: %w", id, err)
	}
	summary, err := pgx.CollectExactlyOneRow(rows, scanSummary)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DatasetSummary{}, &domain.NotFoundError{ID: id}
	}
	if err != nil {
		return domain.DatasetSummary{}, fmt.Errorf("get dataset %d: %w", id, err)
	}
	return summary, nil
}

// Equipment returns the rows of a retained summary in upload order
func (s *PostgresStore) Equipment(ctx context.Context, id int64) ([]domain.EquipmentRecord, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM dataset_summaries WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("get equipment for dataset %d: %w", id, err)
	}
	if !exists {
		return nil, &domain.NotFoundError{ID: id}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT name, type, flowrate, pressure, temperature
		FROM dataset_equipment WHERE dataset_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("get equipment for dataset %d: %w", id, err)
	}
	records, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.EquipmentRecord])
	if err != nil {
		return nil, fmt.Errorf("get equipment for dataset %d: %w", id, err)
	}
	if records == nil {
		records = []domain.EquipmentRecord{}
	}
	return records, nil
}

// Count returns the number of retained summaries
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM dataset_summaries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count datasets: %w", err)
	}
	return n, nil
}

// Capacity returns the history bound
func (s *PostgresStore) Capacity() int {
	return s.capacity
}

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool
func (s *PostgresStore) Close() error {
	s.closeOnce.Do(s.pool.Close)
	return nil
}

func scanSummary(row pgx.CollectableRow) (domain.DatasetSummary, error) {
	var (
		d    domain.DatasetSummary
		dist []byte
	)
	err := row.Scan(&d.ID, &d.Label, &d.Filename, &d.CreatedAt, &d.TotalCount,
		&d.AvgFlowrate, &d.AvgPressure, &d.AvgTemperature, &dist)
	if err != nil {
		return d, err
	}
	d.CreatedAt = d.CreatedAt.UTC()
	if err := json.Unmarshal(dist, &d.TypeDistribution); err != nil {
		return d, fmt.Errorf("decode type distribution: %w", err)
	}
	return d, nil
}

func distributionOrEmpty(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}
