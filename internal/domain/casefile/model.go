package casefile

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Case statuses, in lifecycle order. released is terminal.
const (
	StatusDeclared             = "declared"
	StatusPendingPickup        = "pending-pickup"
	StatusInTransit            = "in-transit"
	StatusPendingVerification  = "pending-verification"
	StatusVerificationRejected = "verification-rejected"
	StatusPendingTray          = "pending-tray"
	StatusInStorage            = "in-storage"
	StatusPendingRelease       = "pending-release"
	StatusReleased             = "released"
)

// Case kinds. External deaths occurred outside the hospital and carry
// a legal case file; internal deaths need a retrieval authorization.
const (
	KindInternal = "internal"
	KindExternal = "external"
)

// TicketEscalation is how long a correction ticket may sit open before
// the escalation report picks it up.
const TicketEscalation = 2 * time.Hour

var (
	ErrCaseNotFound                  = errors.New("case not found")
	ErrInvalidTransition             = errors.New("invalid status transition")
	ErrInvalidKind                   = errors.New("invalid case kind")
	ErrMissingFullName               = errors.New("full name is required")
	ErrMissingPhysician              = errors.New("physician is required")
	ErrMissingDiscrepancy            = errors.New("discrepancy description is required")
	ErrMissingDetails                = errors.New("correction details are required")
	ErrDebtsOutstanding              = errors.New("debts block the release")
	ErrLegalAuthorizationIncomplete  = errors.New("legal file is not authorized")
	ErrRetrievalIncomplete           = errors.New("retrieval authorization is not fully signed")
	ErrNotPendingRelease             = errors.New("case is not pending release")
	ErrTicketNotFound                = errors.New("correction ticket not found")
)

// transitions is the exhaustive map of allowed status moves. Anything
// absent here is ErrInvalidTransition.
var transitions = map[string][]string{
	StatusDeclared:             {StatusPendingPickup},
	StatusPendingPickup:        {StatusInTransit},
	StatusInTransit:            {StatusPendingVerification},
	StatusPendingVerification:  {StatusPendingTray, StatusVerificationRejected},
	StatusVerificationRejected: {StatusPendingVerification},
	StatusPendingTray:          {StatusInStorage},
	StatusInStorage:            {StatusPendingRelease},
	StatusPendingRelease:       {StatusReleased},
	StatusReleased:             {},
}

// CanTransition reports whether from -> to is an allowed move.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Case is one deceased-patient record moving through the morgue
// workflow from declaration to release.
type Case struct {
	ID           uuid.UUID `db:"id" json:"id"`
	RecordNumber string    `db:"record_number" json:"record_number"`
	DocumentID   string    `db:"document_id" json:"document_id"`
	FullName     string    `db:"full_name" json:"full_name"`
	Service      string    `db:"service" json:"service"`
	PhysicianID  string    `db:"physician_id" json:"physician_id"`
	DeclaredAt   time.Time `db:"declared_at" json:"declared_at"`
	Kind         string    `db:"kind" json:"kind"`
	Status       string    `db:"status" json:"status"`

	TrayID                   *uuid.UUID `db:"tray_id" json:"tray_id,omitempty"`
	LegalFileID              *uuid.UUID `db:"legal_file_id" json:"legal_file_id,omitempty"`
	RetrievalAuthorizationID *uuid.UUID `db:"retrieval_authorization_id" json:"retrieval_authorization_id,omitempty"`
	ExitRecordID             *uuid.UUID `db:"exit_record_id" json:"exit_record_id,omitempty"`

	StoredAt *time.Time `db:"stored_at" json:"stored_at,omitempty"`
	Deleted  bool       `db:"deleted" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CorrectionTicket tracks a verification discrepancy sent back to the
// originating clinical unit.
type CorrectionTicket struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	CaseID     uuid.UUID  `db:"case_id" json:"case_id"`
	Unit       string     `db:"unit" json:"unit"`
	Details    string     `db:"details" json:"details"`
	Status     string     `db:"status" json:"status"`
	CreatedBy  string     `db:"created_by" json:"created_by"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ResolvedBy *string    `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

// Ticket statuses.
const (
	TicketOpen     = "open"
	TicketResolved = "resolved"
)
