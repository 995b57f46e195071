package payroll

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const upsertSQL = `
	INSERT INTO payroll_eligibility (employee_id, first_name, last_name, eligible, limit_per_pay_period)
	VALUES ($1, $2, $3, $4, $5::numeric)
	ON CONFLICT (employee_id) DO UPDATE
	SET first_name = EXCLUDED.first_name,
	    last_name = EXCLUDED.last_name,
	    eligible = EXCLUDED.eligible,
	    limit_per_pay_period = EXCLUDED.limit_per_pay_period,
	    updated_at = now()
`

type Executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Repository struct {
	db Executor
}

func NewRepository(db Executor) *Repository {
	return &Repository{db: db}
}

// Upsert inserts the record or overwrites the existing row for the same
// employee id.
func (r *Repository) Upsert(ctx context.Context, rec Record) error {
	_, err := r.db.Exec(ctx, upsertSQL,
		rec.EmployeeID,
		rec.FirstName,
		rec.LastName,
		rec.Eligible,
		rec.LimitPerPayPeriod.StringFixed(2),
	)
	if err != nil {
		return fmt.Errorf("upsert payroll eligibility %s: %w", rec.EmployeeID, err)
	}
	return nil
}
