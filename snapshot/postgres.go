package snapshot

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"airnav/notamwatch/notam"
)

const snapshotColumns = `number, location, effective_start, effective_end,
	series, qualifier_code, issued_at, body_text, raw_detail, source, fetched_at`

// PostgresStore persists snapshots in the snapshot_records table, one row
// per (source, key). Commit runs inside a single transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, source string) (map[notam.Key]notam.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+snapshotColumns+` FROM snapshot_records WHERE source = $1`, source)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	out := make(map[notam.Key]notam.Record)
	for rows.Next() {
		var rec notam.Record
		if err := rows.Scan(
			&rec.Number, &rec.Location, &rec.EffectiveStart, &rec.EffectiveEnd,
			&rec.Series, &rec.QualifierCode, &rec.IssuedAt, &rec.BodyText,
			&rec.RawDetail, &rec.Source, &rec.FetchedAt,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		out[rec.Key()] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read snapshot rows: %w", err)
	}

	return out, nil
}

func (s *PostgresStore) Commit(ctx context.Context, source string, upserts []notam.Record, deletes []notam.Key) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin snapshot commit: %w", err)
	}
	defer tx.Rollback(ctx) // no-op once committed

	const deleteQuery = `
		DELETE FROM snapshot_records
		WHERE source = $1 AND number = $2 AND location = $3
		  AND effective_start = $4 AND effective_end = $5`

	for _, key := range deletes {
		if _, err := tx.Exec(ctx, deleteQuery,
			source, key.Number, key.Location, key.EffectiveStart, key.EffectiveEnd); err != nil {
			return fmt.Errorf("delete snapshot row %s: %w", key, err)
		}
	}

	const upsertQuery = `
		INSERT INTO snapshot_records
			(source, number, location, effective_start, effective_end,
			 series, qualifier_code, issued_at, body_text, raw_detail, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (source, number, location, effective_start, effective_end)
		DO UPDATE SET
			series = EXCLUDED.series,
			qualifier_code = EXCLUDED.qualifier_code,
			issued_at = EXCLUDED.issued_at,
			body_text = EXCLUDED.body_text,
			raw_detail = EXCLUDED.raw_detail,
			fetched_at = EXCLUDED.fetched_at`

	for _, rec := range upserts {
		if _, err := tx.Exec(ctx, upsertQuery,
			source, rec.Number, rec.Location, rec.EffectiveStart, rec.EffectiveEnd,
			rec.Series, rec.QualifierCode, rec.IssuedAt, rec.BodyText,
			rec.RawDetail, rec.FetchedAt); err != nil {
			return fmt.Errorf("upsert snapshot row %s: %w", rec.Key(), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}
