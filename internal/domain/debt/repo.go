package debt

import (
	"context"

	"github.com/google/uuid"
)

type FinancialDebtRepository interface {
	Create(ctx context.Context, d *FinancialDebt) error
	GetByCase(ctx context.Context, caseID uuid.UUID) (*FinancialDebt, error)
	Update(ctx context.Context, d *FinancialDebt) error
	AddPayment(ctx context.Context, p *Payment) error
	ListPayments(ctx context.Context, debtID uuid.UUID) ([]*Payment, error)
}

type BloodDebtRepository interface {
	Create(ctx context.Context, d *BloodDebt) error
	GetByCase(ctx context.Context, caseID uuid.UUID) (*BloodDebt, error)
	Update(ctx context.Context, d *BloodDebt) error
}
