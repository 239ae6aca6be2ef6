package exitlog

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Retriever kinds mirror the retrieval authorization kinds.
const (
	RetrieverFamily    = "family"
	RetrieverAuthority = "authority"
)

// StorageLimit is the storage duration after which an exit is flagged
// in reports. Nothing enforces it.
const StorageLimit = 48 * time.Hour

var (
	ErrExitNotFound          = errors.New("exit record not found")
	ErrExitExists            = errors.New("exit record already exists for case")
	ErrInconsistentReference = errors.New("exit reference does not match retriever kind")
	ErrMissingDescription    = errors.New("incident description is required")
	ErrMissingResponsible    = errors.New("responsible name and document are required")
)

// ExitRecord is the permanent log entry written when a body leaves the
// morgue. One per case, never updated except for incident notes.
type ExitRecord struct {
	ID                       uuid.UUID  `db:"id" json:"id"`
	CaseID                   uuid.UUID  `db:"case_id" json:"case_id"`
	RetrieverKind            string     `db:"retriever_kind" json:"retriever_kind"`
	RetrievalAuthorizationID *uuid.UUID `db:"retrieval_authorization_id" json:"retrieval_authorization_id,omitempty"`
	LegalFileID              *uuid.UUID `db:"legal_file_id" json:"legal_file_id,omitempty"`
	ResponsibleName          string     `db:"responsible_name" json:"responsible_name"`
	ResponsibleDocument      string     `db:"responsible_document" json:"responsible_document"`
	VehiclePlate             string     `db:"vehicle_plate" json:"vehicle_plate,omitempty"`
	Destination              string     `db:"destination" json:"destination,omitempty"`
	StorageHours             float64    `db:"storage_hours" json:"storage_hours"`
	IncidentFlag             bool       `db:"incident_flag" json:"incident_flag"`
	IncidentDescription      *string    `db:"incident_description" json:"incident_description,omitempty"`
	ExitAt                   time.Time  `db:"exit_at" json:"exit_at"`
	RecordedBy               string     `db:"recorded_by" json:"recorded_by"`
	CreatedAt                time.Time  `db:"created_at" json:"created_at"`
}

// ValidateReferenceConsistency checks the kind/reference pairing:
// family exits point at the retrieval authorization, authority exits at
// the legal file, and never both.
func (e *ExitRecord) ValidateReferenceConsistency() error {
	switch e.RetrieverKind {
	case RetrieverFamily:
		if e.RetrievalAuthorizationID == nil || e.LegalFileID != nil {
			return ErrInconsistentReference
		}
	case RetrieverAuthority:
		if e.LegalFileID == nil || e.RetrievalAuthorizationID != nil {
			return ErrInconsistentReference
		}
	default:
		return ErrInconsistentReference
	}
	return nil
}

// ComputeStorageHours measures the stay from tray entry to exit.
func ComputeStorageHours(entry, exit time.Time) float64 {
	h := exit.Sub(entry).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// ExceededLimit reports whether the body was stored beyond the limit.
func (e *ExitRecord) ExceededLimit() bool {
	return e.StorageHours > StorageLimit.Hours()
}
