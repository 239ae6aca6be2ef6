package debt

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Debt statuses, shared by the financial and blood ledgers.
const (
	StatusNone    = "none"
	StatusPending = "pending"
	StatusSettled = "settled"
	StatusWaived  = "waived"
)

// MinJustificationLen applies to physician overrides of blood debts.
const MinJustificationLen = 20

var (
	ErrDebtExists            = errors.New("debt already registered for case")
	ErrDebtNotFound          = errors.New("debt not found")
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrAlreadySettled        = errors.New("debt is already settled")
	ErrMissingReceipt        = errors.New("receipt number is required")
	ErrMissingJustification  = errors.New("justification is required")
	ErrJustificationTooShort = errors.New("justification is too short")
)

// FinancialDebt tracks what a case owes the hospital in money. One row
// per case. Amounts are in cents to avoid float arithmetic.
type FinancialDebt struct {
	ID           uuid.UUID `db:"id" json:"id"`
	CaseID       uuid.UUID `db:"case_id" json:"case_id"`
	Status       string    `db:"status" json:"status"`
	AmountOwed   int64     `db:"amount_owed" json:"amount_owed"`
	AmountPaid   int64     `db:"amount_paid" json:"amount_paid"`
	AmountWaived int64     `db:"amount_waived" json:"amount_waived"`
	RegisteredBy string    `db:"registered_by" json:"registered_by"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// AmountPending is the outstanding balance. Clamped at zero so an
// over-payment or generous waiver never reports a negative debt.
func (d *FinancialDebt) AmountPending() int64 {
	pending := d.AmountOwed - d.AmountPaid - d.AmountWaived
	if pending < 0 {
		return 0
	}
	return pending
}

// BlocksRelease reports whether the financial ledger stops the body
// from leaving: an open debt with money still outstanding.
func (d *FinancialDebt) BlocksRelease() bool {
	return d.Status == StatusPending && d.AmountPending() > 0
}

// recomputeStatus derives the status from the balance. A waiver that
// closes the debt marks it waived rather than settled.
func (d *FinancialDebt) recomputeStatus(byWaiver bool) {
	if d.Status != StatusPending {
		return
	}
	if d.AmountPending() == 0 {
		if byWaiver {
			d.Status = StatusWaived
		} else {
			d.Status = StatusSettled
		}
	}
}

// Payment is one receipt against a financial debt, kept for the audit
// trail.
type Payment struct {
	ID            uuid.UUID `db:"id" json:"id"`
	DebtID        uuid.UUID `db:"debt_id" json:"debt_id"`
	ReceiptNumber string    `db:"receipt_number" json:"receipt_number"`
	Amount        int64     `db:"amount" json:"amount"`
	RecordedBy    string    `db:"recorded_by" json:"recorded_by"`
	RecordedAt    time.Time `db:"recorded_at" json:"recorded_at"`
}

// BloodDebt tracks blood units owed to the blood bank. Settled by unit
// returns, or waived by a physician override with a justification.
type BloodDebt struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	CaseID                uuid.UUID  `db:"case_id" json:"case_id"`
	Status                string     `db:"status" json:"status"`
	UnitsOwed             int        `db:"units_owed" json:"units_owed"`
	UnitsReturned         int        `db:"units_returned" json:"units_returned"`
	OverridePhysicianID   *string    `db:"override_physician_id" json:"override_physician_id,omitempty"`
	OverrideJustification *string    `db:"override_justification" json:"override_justification,omitempty"`
	OverriddenAt          *time.Time `db:"overridden_at" json:"overridden_at,omitempty"`
	RegisteredBy          string     `db:"registered_by" json:"registered_by"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}

// UnitsPending is how many units are still owed.
func (d *BloodDebt) UnitsPending() int {
	pending := d.UnitsOwed - d.UnitsReturned
	if pending < 0 {
		return 0
	}
	return pending
}

// BlocksRelease reports whether the blood ledger stops the release.
func (d *BloodDebt) BlocksRelease() bool {
	return d.Status == StatusPending
}
