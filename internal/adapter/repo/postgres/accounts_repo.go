package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/valorize-app/valorize/internal/domain"
)

// AccountRepo reads accounts and tracks free-tier usage.
type AccountRepo struct{ Pool PgxPool }

// NewAccountRepo constructs an AccountRepo with the given pool.
func NewAccountRepo(p PgxPool) *AccountRepo { return &AccountRepo{Pool: p} }

// Get loads an account by id.
func (r *AccountRepo) Get(ctx domain.Context, id string) (domain.Account, error) {
	tracer := otel.Tracer("repo.accounts")
	ctx, span := tracer.Start(ctx, "accounts.Get")
	defer span.End()
	q := `SELECT id, email, company_name, usage_count, max_free_uses, unlimited, created_at FROM accounts WHERE id=$1`
	row := r.Pool.QueryRow(ctx, q, id)
	var a domain.Account
	if err := row.Scan(&a.ID, &a.Email, &a.CompanyName, &a.UsageCount, &a.MaxFreeUses, &a.Unlimited, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, fmt.Errorf("op=accounts.get: %w", domain.ErrNotFound)
		}
		return domain.Account{}, fmt.Errorf("op=accounts.get: %w", err)
	}
	return a, nil
}

// IncrementUsage bumps the usage counter by one.
func (r *AccountRepo) IncrementUsage(ctx domain.Context, id string) error {
	tracer := otel.Tracer("repo.accounts")
	ctx, span := tracer.Start(ctx, "accounts.IncrementUsage")
	defer span.End()
	q := `UPDATE accounts SET usage_count = usage_count + 1, updated_at=$2 WHERE id=$1`
	tag, err := r.Pool.Exec(ctx, q, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=accounts.increment_usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=accounts.increment_usage: %w", domain.ErrNotFound)
	}
	return nil
}
