package debt

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/morgue/morgue/internal/platform/clock"
)

type Service struct {
	financial FinancialDebtRepository
	blood     BloodDebtRepository
	clk       clock.Clock
}

func NewService(financial FinancialDebtRepository, blood BloodDebtRepository) *Service {
	return &Service{financial: financial, blood: blood, clk: clock.System}
}

// SetClock overrides the time source, for tests.
func (s *Service) SetClock(clk clock.Clock) { s.clk = clk }

func (s *Service) RegisterFinancialDebt(ctx context.Context, caseID uuid.UUID, amount int64, actorID string) (*FinancialDebt, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if _, err := s.financial.GetByCase(ctx, caseID); err == nil {
		return nil, ErrDebtExists
	} else if !errors.Is(err, ErrDebtNotFound) {
		return nil, err
	}
	d := &FinancialDebt{
		CaseID:       caseID,
		Status:       StatusPending,
		AmountOwed:   amount,
		RegisteredBy: actorID,
	}
	if err := s.financial.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// MarkNoFinancialDebt records that the cashier found nothing owed.
// Upserts so it can also clear a mistakenly registered debt.
func (s *Service) MarkNoFinancialDebt(ctx context.Context, caseID uuid.UUID, actorID string) (*FinancialDebt, error) {
	d, err := s.financial.GetByCase(ctx, caseID)
	if errors.Is(err, ErrDebtNotFound) {
		d = &FinancialDebt{CaseID: caseID, Status: StatusNone, RegisteredBy: actorID}
		if err := s.financial.Create(ctx, d); err != nil {
			return nil, err
		}
		return d, nil
	}
	if err != nil {
		return nil, err
	}
	d.Status = StatusNone
	d.AmountOwed = 0
	d.AmountPaid = 0
	d.AmountWaived = 0
	if err := s.financial.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) RecordPayment(ctx context.Context, caseID uuid.UUID, receiptNumber string, amount int64, actorID string) (*FinancialDebt, error) {
	if strings.TrimSpace(receiptNumber) == "" {
		return nil, ErrMissingReceipt
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	d, err := s.financial.GetByCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if d.Status != StatusPending {
		return nil, ErrAlreadySettled
	}
	d.AmountPaid += amount
	d.recomputeStatus(false)
	if err := s.financial.Update(ctx, d); err != nil {
		return nil, err
	}
	p := &Payment{
		DebtID:        d.ID,
		ReceiptNumber: receiptNumber,
		Amount:        amount,
		RecordedBy:    actorID,
		RecordedAt:    s.clk.Now().UTC(),
	}
	if err := s.financial.AddPayment(ctx, p); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) ApplyWaiver(ctx context.Context, caseID uuid.UUID, amount int64, justification, actorID string) (*FinancialDebt, error) {
	if strings.TrimSpace(justification) == "" {
		return nil, ErrMissingJustification
	}
	d, err := s.financial.GetByCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if d.Status != StatusPending {
		return nil, ErrAlreadySettled
	}
	if amount <= 0 || amount > d.AmountPending() {
		return nil, ErrInvalidAmount
	}
	d.AmountWaived += amount
	d.recomputeStatus(true)
	if err := s.financial.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) GetFinancialDebt(ctx context.Context, caseID uuid.UUID) (*FinancialDebt, error) {
	return s.financial.GetByCase(ctx, caseID)
}

func (s *Service) ListPayments(ctx context.Context, caseID uuid.UUID) ([]*Payment, error) {
	d, err := s.financial.GetByCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return s.financial.ListPayments(ctx, d.ID)
}

func (s *Service) RegisterBloodDebt(ctx context.Context, caseID uuid.UUID, units int, actorID string) (*BloodDebt, error) {
	if units <= 0 {
		return nil, ErrInvalidAmount
	}
	if _, err := s.blood.GetByCase(ctx, caseID); err == nil {
		return nil, ErrDebtExists
	} else if !errors.Is(err, ErrDebtNotFound) {
		return nil, err
	}
	d := &BloodDebt{
		CaseID:       caseID,
		Status:       StatusPending,
		UnitsOwed:    units,
		RegisteredBy: actorID,
	}
	if err := s.blood.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// SettleBloodDebt records returned units. The debt settles once every
// owed unit has come back.
func (s *Service) SettleBloodDebt(ctx context.Context, caseID uuid.UUID, units int, actorID string) (*BloodDebt, error) {
	if units <= 0 {
		return nil, ErrInvalidAmount
	}
	d, err := s.blood.GetByCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if d.Status != StatusPending {
		return nil, ErrAlreadySettled
	}
	if units > d.UnitsPending() {
		return nil, ErrInvalidAmount
	}
	d.UnitsReturned += units
	if d.UnitsPending() == 0 {
		d.Status = StatusSettled
	}
	if err := s.blood.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// OverridePhysician lets the attending physician waive an open blood
// debt. The justification goes on the record and must carry real text.
func (s *Service) OverridePhysician(ctx context.Context, caseID uuid.UUID, physicianID, justification string) (*BloodDebt, error) {
	just := strings.TrimSpace(justification)
	if just == "" {
		return nil, ErrMissingJustification
	}
	if utf8.RuneCountInString(just) < MinJustificationLen {
		return nil, ErrJustificationTooShort
	}
	d, err := s.blood.GetByCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if d.Status != StatusPending {
		return nil, ErrAlreadySettled
	}
	now := s.clk.Now().UTC()
	d.Status = StatusWaived
	d.OverridePhysicianID = &physicianID
	d.OverrideJustification = &just
	d.OverriddenAt = &now
	if err := s.blood.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// MarkNoBloodDebt records that the blood bank found no units owed.
// Upserts like its financial counterpart.
func (s *Service) MarkNoBloodDebt(ctx context.Context, caseID uuid.UUID, actorID string) (*BloodDebt, error) {
	d, err := s.blood.GetByCase(ctx, caseID)
	if errors.Is(err, ErrDebtNotFound) {
		d = &BloodDebt{CaseID: caseID, Status: StatusNone, RegisteredBy: actorID}
		if err := s.blood.Create(ctx, d); err != nil {
			return nil, err
		}
		return d, nil
	}
	if err != nil {
		return nil, err
	}
	d.Status = StatusNone
	d.UnitsOwed = 0
	d.UnitsReturned = 0
	if err := s.blood.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) GetBloodDebt(ctx context.Context, caseID uuid.UUID) (*BloodDebt, error) {
	return s.blood.GetByCase(ctx, caseID)
}

// BlocksRelease checks both ledgers. A case with no debt rows at all
// does not block.
func (s *Service) BlocksRelease(ctx context.Context, caseID uuid.UUID) (bool, error) {
	fd, err := s.financial.GetByCase(ctx, caseID)
	if err != nil && !errors.Is(err, ErrDebtNotFound) {
		return false, err
	}
	if fd != nil && fd.BlocksRelease() {
		return true, nil
	}
	bd, err := s.blood.GetByCase(ctx, caseID)
	if err != nil && !errors.Is(err, ErrDebtNotFound) {
		return false, err
	}
	if bd != nil && bd.BlocksRelease() {
		return true, nil
	}
	return false, nil
}
