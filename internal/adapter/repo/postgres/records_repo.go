package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/valorize-app/valorize/internal/domain"
)

// RecordRepo persists and loads valuation records using a minimal pgx pool.
// Inputs and result are stored as JSONB documents.
type RecordRepo struct{ Pool PgxPool }

// NewRecordRepo constructs a RecordRepo with the given pool.
func NewRecordRepo(p PgxPool) *RecordRepo { return &RecordRepo{Pool: p} }

const recordColumns = `id, account_id, status, inputs, result, created_at, updated_at`

// Create stores a new record and returns its id (generates one if empty).
func (r *RecordRepo) Create(ctx domain.Context, rec domain.ValuationRecord) (string, error) {
	tracer := otel.Tracer("repo.records")
	ctx, span := tracer.Start(ctx, "records.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.sql.table", "valuation_records"),
	)
	id := rec.ID
	if id == "" {
		id = uuid.New().String()
	}
	inputs, err := json.Marshal(rec.Inputs)
	if err != nil {
		return "", fmt.Errorf("op=records.create: %w", err)
	}
	now := time.Now().UTC()
	q := `INSERT INTO valuation_records (id, account_id, status, inputs, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6)`
	if _, err := r.Pool.Exec(ctx, q, id, rec.AccountID, rec.Status, inputs, now, now); err != nil {
		return "", fmt.Errorf("op=records.create: %w", err)
	}
	return id, nil
}

// Get loads a record by id.
func (r *RecordRepo) Get(ctx domain.Context, id string) (domain.ValuationRecord, error) {
	tracer := otel.Tracer("repo.records")
	ctx, span := tracer.Start(ctx, "records.Get")
	defer span.End()
	q := `SELECT ` + recordColumns + ` FROM valuation_records WHERE id=$1`
	return r.scanOne(r.Pool.QueryRow(ctx, q, id), "records.get")
}

// GetOwned loads a record by id scoped to its owner account. A record owned
// by someone else is indistinguishable from a missing one.
func (r *RecordRepo) GetOwned(ctx domain.Context, id, accountID string) (domain.ValuationRecord, error) {
	tracer := otel.Tracer("repo.records")
	ctx, span := tracer.Start(ctx, "records.GetOwned")
	defer span.End()
	q := `SELECT ` + recordColumns + ` FROM valuation_records WHERE id=$1 AND account_id=$2`
	return r.scanOne(r.Pool.QueryRow(ctx, q, id, accountID), "records.get_owned")
}

// UpdateStatus updates a record's status. A non-nil errMsg is merged into
// the result document under the error key.
func (r *RecordRepo) UpdateStatus(ctx domain.Context, id string, status domain.RecordStatus, errMsg *string) error {
	tracer := otel.Tracer("repo.records")
	ctx, span := tracer.Start(ctx, "records.UpdateStatus")
	defer span.End()
	var err error
	if errMsg != nil {
		q := `UPDATE valuation_records SET status=$2, result=COALESCE(result,'{}'::jsonb) || jsonb_build_object('error', $3::text), updated_at=$4 WHERE id=$1`
		_, err = r.Pool.Exec(ctx, q, id, status, *errMsg, time.Now().UTC())
	} else {
		q := `UPDATE valuation_records SET status=$2, updated_at=$3 WHERE id=$1`
		_, err = r.Pool.Exec(ctx, q, id, status, time.Now().UTC())
	}
	if err != nil {
		return fmt.Errorf("op=records.update_status: %w", err)
	}
	return nil
}

// SetResult stores the full result document and the new status in one write.
func (r *RecordRepo) SetResult(ctx domain.Context, id string, res domain.Result, status domain.RecordStatus) error {
	tracer := otel.Tracer("repo.records")
	ctx, span := tracer.Start(ctx, "records.SetResult")
	defer span.End()
	doc, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("op=records.set_result: %w", err)
	}
	q := `UPDATE valuation_records SET result=$2, status=$3, updated_at=$4 WHERE id=$1`
	if _, err := r.Pool.Exec(ctx, q, id, doc, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("op=records.set_result: %w", err)
	}
	return nil
}

// CompletePresentation settles a pending presentation with its url. The
// WHERE clause is the authoritative duplicate-delivery guard: only the first
// settlement matches.
func (r *RecordRepo) CompletePresentation(ctx domain.Context, id, url string) (bool, error) {
	tracer := otel.Tracer("repo.records")
	ctx, span := tracer.Start(ctx, "records.CompletePresentation")
	defer span.End()
	q := `UPDATE valuation_records
		SET result = result || jsonb_build_object('gamma_status', 'completed', 'gamma_url', $2::text), updated_at=$3
		WHERE id=$1 AND result->>'gamma_status'='pending'`
	tag, err := r.Pool.Exec(ctx, q, id, url, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("op=records.complete_presentation: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// FailPresentation settles a pending presentation as failed.
func (r *RecordRepo) FailPresentation(ctx domain.Context, id string) (bool, error) {
	tracer := otel.Tracer("repo.records")
	ctx, span := tracer.Start(ctx, "records.FailPresentation")
	defer span.End()
	q := `UPDATE valuation_records
		SET result = result || jsonb_build_object('gamma_status', 'failed'), updated_at=$2
		WHERE id=$1 AND result->>'gamma_status'='pending'`
	tag, err := r.Pool.Exec(ctx, q, id, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("op=records.fail_presentation: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListProcessingBefore returns PROCESSING records last touched before cutoff,
// oldest first. Used by the stuck-record sweeper.
func (r *RecordRepo) ListProcessingBefore(ctx domain.Context, cutoff time.Time, limit int) ([]domain.ValuationRecord, error) {
	tracer := otel.Tracer("repo.records")
	ctx, span := tracer.Start(ctx, "records.ListProcessingBefore")
	defer span.End()
	q := `SELECT ` + recordColumns + ` FROM valuation_records WHERE status=$1 AND updated_at < $2 ORDER BY updated_at ASC LIMIT $3`
	rows, err := r.Pool.Query(ctx, q, domain.RecordProcessing, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("op=records.list_processing: %w", err)
	}
	defer rows.Close()
	var out []domain.ValuationRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("op=records.list_processing: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=records.list_processing: %w", err)
	}
	return out, nil
}

func (r *RecordRepo) scanOne(row pgx.Row, op string) (domain.ValuationRecord, error) {
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ValuationRecord{}, fmt.Errorf("op=%s: %w", op, domain.ErrNotFound)
		}
		return domain.ValuationRecord{}, fmt.Errorf("op=%s: %w", op, err)
	}
	return rec, nil
}

func scanRecord(row pgx.Row) (domain.ValuationRecord, error) {
	var rec domain.ValuationRecord
	var inputsRaw, resultRaw []byte
	if err := row.Scan(&rec.ID, &rec.AccountID, &rec.Status, &inputsRaw, &resultRaw, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return domain.ValuationRecord{}, err
	}
	if len(inputsRaw) > 0 {
		if err := json.Unmarshal(inputsRaw, &rec.Inputs); err != nil {
			return domain.ValuationRecord{}, err
		}
	}
	if len(resultRaw) > 0 {
		var res domain.Result
		if err := json.Unmarshal(resultRaw, &res); err != nil {
			return domain.ValuationRecord{}, err
		}
		rec.Result = &res
	}
	return rec, nil
}
