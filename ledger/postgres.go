package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"airnav/notamwatch/diff"
	"airnav/notamwatch/notam"
)

// PostgresLedger persists batches and change events via pgx. Record
// snapshots and field diffs are stored as JSONB so the audit trail keeps
// the full before/after payloads.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

func (l *PostgresLedger) StartBatch(ctx context.Context, source string) (Batch, error) {
	b := Batch{
		ID:        uuid.New(),
		Source:    source,
		StartedAt: time.Now().UTC(),
		Status:    StatusRunning,
	}

	_, err := l.pool.Exec(ctx, `
		INSERT INTO batches (batch_id, source, started_at, status)
		VALUES ($1, $2, $3, $4)`,
		b.ID, b.Source, b.StartedAt, string(b.Status))
	if err != nil {
		return Batch{}, fmt.Errorf("start batch: %w", err)
	}
	return b, nil
}

func (l *PostgresLedger) RecordChanges(ctx context.Context, batchID uuid.UUID, cs diff.ChangeSet) error {
	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin record changes: %w", err)
	}
	defer tx.Rollback(ctx) // no-op once committed

	const insertEvent = `
		INSERT INTO change_events
			(event_id, batch_id, number, location, effective_start, effective_end,
			 kind, before_record, after_record, field_diffs, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	now := time.Now().UTC()
	for _, c := range cs.Events() {
		beforeJSON, err := marshalRecord(c.Before)
		if err != nil {
			return fmt.Errorf("marshal before for %s: %w", c.Key, err)
		}
		afterJSON, err := marshalRecord(c.After)
		if err != nil {
			return fmt.Errorf("marshal after for %s: %w", c.Key, err)
		}
		diffJSON, err := marshalDiffs(c.FieldDiffs)
		if err != nil {
			return fmt.Errorf("marshal field diffs for %s: %w", c.Key, err)
		}

		if _, err := tx.Exec(ctx, insertEvent,
			uuid.New(), batchID,
			c.Key.Number, c.Key.Location, c.Key.EffectiveStart, c.Key.EffectiveEnd,
			string(c.Kind), beforeJSON, afterJSON, diffJSON, now); err != nil {
			return fmt.Errorf("insert change event for %s: %w", c.Key, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit change events: %w", err)
	}
	return nil
}

func (l *PostgresLedger) CompleteBatch(ctx context.Context, batchID uuid.UUID, stats Stats, status Status, errorDetail string) error {
	tag, err := l.pool.Exec(ctx, `
		UPDATE batches
		SET completed_at = $2, status = $3, records_fetched = $4,
			new_count = $5, updated_count = $6, deleted_count = $7,
			unchanged_count = $8, error_detail = $9
		WHERE batch_id = $1 AND status = $10`,
		batchID, time.Now().UTC(), string(status), stats.RecordsFetched,
		stats.New, stats.Updated, stats.Deleted, stats.Unchanged,
		errorDetail, string(StatusRunning))
	if err != nil {
		return fmt.Errorf("complete batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the id is unknown or the batch already reached a
		// terminal state; distinguish for the caller.
		var exists bool
		if qErr := l.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM batches WHERE batch_id = $1)`, batchID).Scan(&exists); qErr != nil {
			return fmt.Errorf("complete batch: %w", qErr)
		}
		if !exists {
			return fmt.Errorf("complete batch %s: %w", batchID, ErrBatchNotFound)
		}
		return fmt.Errorf("complete batch %s: %w", batchID, ErrBatchFinalized)
	}
	return nil
}

func (l *PostgresLedger) Events(ctx context.Context, filter EventFilter) ([]Event, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT event_id, batch_id, number, location, effective_start, effective_end,
		       kind, before_record, after_record, field_diffs, detected_at
		FROM change_events WHERE 1=1`)

	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Key != nil {
		query.WriteString(` AND number = ` + arg(filter.Key.Number))
		query.WriteString(` AND location = ` + arg(filter.Key.Location))
		query.WriteString(` AND effective_start = ` + arg(filter.Key.EffectiveStart))
		query.WriteString(` AND effective_end = ` + arg(filter.Key.EffectiveEnd))
	}
	if filter.Kind != "" {
		query.WriteString(` AND kind = ` + arg(string(filter.Kind)))
	}
	if filter.BatchID != nil {
		query.WriteString(` AND batch_id = ` + arg(*filter.BatchID))
	}
	if !filter.Since.IsZero() {
		query.WriteString(` AND detected_at >= ` + arg(filter.Since))
	}
	if !filter.Until.IsZero() {
		query.WriteString(` AND detected_at <= ` + arg(filter.Until))
	}

	query.WriteString(` ORDER BY detected_at DESC, number, location`)
	if filter.Limit > 0 {
		query.WriteString(` LIMIT ` + arg(filter.Limit))
	}

	rows, err := l.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e          Event
			kind       string
			beforeJSON []byte
			afterJSON  []byte
			diffJSON   []byte
		)
		if err := rows.Scan(&e.ID, &e.BatchID,
			&e.Key.Number, &e.Key.Location, &e.Key.EffectiveStart, &e.Key.EffectiveEnd,
			&kind, &beforeJSON, &afterJSON, &diffJSON, &e.DetectedAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		e.Kind = diff.Kind(kind)
		if e.Before, err = unmarshalRecord(beforeJSON); err != nil {
			return nil, fmt.Errorf("decode before record: %w", err)
		}
		if e.After, err = unmarshalRecord(afterJSON); err != nil {
			return nil, fmt.Errorf("decode after record: %w", err)
		}
		if e.FieldDiffs, err = unmarshalDiffs(diffJSON); err != nil {
			return nil, fmt.Errorf("decode field diffs: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read event rows: %w", err)
	}
	return out, nil
}

func (l *PostgresLedger) Batches(ctx context.Context, source string, limit int) ([]Batch, error) {
	query := `
		SELECT batch_id, source, started_at, completed_at, status,
		       records_fetched, new_count, updated_count, deleted_count,
		       unchanged_count, error_detail
		FROM batches`
	var args []any
	if source != "" {
		query += ` WHERE source = $1`
		args = append(args, source)
	}
	query += ` ORDER BY started_at DESC`
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var out []Batch
	for rows.Next() {
		var (
			b      Batch
			status string
			detail *string
		)
		if err := rows.Scan(&b.ID, &b.Source, &b.StartedAt, &b.CompletedAt, &status,
			&b.Stats.RecordsFetched, &b.Stats.New, &b.Stats.Updated,
			&b.Stats.Deleted, &b.Stats.Unchanged, &detail); err != nil {
			return nil, fmt.Errorf("scan batch row: %w", err)
		}
		b.Status = Status(status)
		if detail != nil {
			b.ErrorDetail = *detail
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read batch rows: %w", err)
	}
	return out, nil
}

func marshalRecord(rec *notam.Record) ([]byte, error) {
	if rec == nil {
		return nil, nil
	}
	return json.Marshal(rec)
}

func unmarshalRecord(raw []byte) (*notam.Record, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var rec notam.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func marshalDiffs(diffs map[string]notam.FieldDiff) ([]byte, error) {
	if len(diffs) == 0 {
		return nil, nil
	}
	return json.Marshal(diffs)
}

func unmarshalDiffs(raw []byte) (map[string]notam.FieldDiff, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var diffs map[string]notam.FieldDiff
	if err := json.Unmarshal(raw, &diffs); err != nil {
		return nil, err
	}
	return diffs, nil
}
