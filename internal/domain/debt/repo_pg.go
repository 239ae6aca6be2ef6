package debt

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morgue/morgue/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

type financialRepoPG struct{ pool *pgxpool.Pool }

func NewFinancialRepoPG(pool *pgxpool.Pool) FinancialDebtRepository {
	return &financialRepoPG{pool: pool}
}

const financialCols = `id, case_id, status, amount_owed, amount_paid, amount_waived,
	registered_by, created_at, updated_at`

func (r *financialRepoPG) scan(row pgx.Row) (*FinancialDebt, error) {
	var d FinancialDebt
	err := row.Scan(&d.ID, &d.CaseID, &d.Status, &d.AmountOwed, &d.AmountPaid,
		&d.AmountWaived, &d.RegisteredBy, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDebtNotFound
	}
	return &d, err
}

func (r *financialRepoPG) Create(ctx context.Context, d *FinancialDebt) error {
	d.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO financial_debt (id, case_id, status, amount_owed, amount_paid, amount_waived, registered_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.CaseID, d.Status, d.AmountOwed, d.AmountPaid, d.AmountWaived, d.RegisteredBy)
	if isUniqueViolation(err) {
		return ErrDebtExists
	}
	return err
}

func (r *financialRepoPG) GetByCase(ctx context.Context, caseID uuid.UUID) (*FinancialDebt, error) {
	return r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+financialCols+` FROM financial_debt WHERE case_id = $1`, caseID))
}

func (r *financialRepoPG) Update(ctx context.Context, d *FinancialDebt) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE financial_debt
		SET status=$2, amount_owed=$3, amount_paid=$4, amount_waived=$5, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.Status, d.AmountOwed, d.AmountPaid, d.AmountWaived)
	return err
}

func (r *financialRepoPG) AddPayment(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO debt_payment (id, debt_id, receipt_number, amount, recorded_by, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.DebtID, p.ReceiptNumber, p.Amount, p.RecordedBy, p.RecordedAt)
	return err
}

func (r *financialRepoPG) ListPayments(ctx context.Context, debtID uuid.UUID) ([]*Payment, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, debt_id, receipt_number, amount, recorded_by, recorded_at
		FROM debt_payment WHERE debt_id = $1 ORDER BY recorded_at ASC`, debtID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.DebtID, &p.ReceiptNumber, &p.Amount, &p.RecordedBy, &p.RecordedAt); err != nil {
			return nil, err
		}
		items = append(items, &p)
	}
	return items, nil
}

type bloodRepoPG struct{ pool *pgxpool.Pool }

func NewBloodRepoPG(pool *pgxpool.Pool) BloodDebtRepository {
	return &bloodRepoPG{pool: pool}
}

const bloodCols = `id, case_id, status, units_owed, units_returned,
	override_physician_id, override_justification, overridden_at,
	registered_by, created_at, updated_at`

func (r *bloodRepoPG) scan(row pgx.Row) (*BloodDebt, error) {
	var d BloodDebt
	err := row.Scan(&d.ID, &d.CaseID, &d.Status, &d.UnitsOwed, &d.UnitsReturned,
		&d.OverridePhysicianID, &d.OverrideJustification, &d.OverriddenAt,
		&d.RegisteredBy, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDebtNotFound
	}
	return &d, err
}

func (r *bloodRepoPG) Create(ctx context.Context, d *BloodDebt) error {
	d.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO blood_debt (id, case_id, status, units_owed, units_returned, registered_by)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ID, d.CaseID, d.Status, d.UnitsOwed, d.UnitsReturned, d.RegisteredBy)
	if isUniqueViolation(err) {
		return ErrDebtExists
	}
	return err
}

func (r *bloodRepoPG) GetByCase(ctx context.Context, caseID uuid.UUID) (*BloodDebt, error) {
	return r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+bloodCols+` FROM blood_debt WHERE case_id = $1`, caseID))
}

func (r *bloodRepoPG) Update(ctx context.Context, d *BloodDebt) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE blood_debt
		SET status=$2, units_owed=$3, units_returned=$4,
			override_physician_id=$5, override_justification=$6, overridden_at=$7,
			updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.Status, d.UnitsOwed, d.UnitsReturned,
		d.OverridePhysicianID, d.OverrideJustification, d.OverriddenAt)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
