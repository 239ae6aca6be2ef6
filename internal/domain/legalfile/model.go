package legalfile

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Legal file stages. A file moves registering -> pending-review ->
// approved -> authorized, with rejected looping back through
// resubmission.
const (
	StageRegistering   = "registering"
	StagePendingReview = "pending-review"
	StageApproved      = "approved"
	StageRejected      = "rejected"
	StageAuthorized    = "authorized"
)

// Document types a legal file can carry. The first three are required
// before the file may go to review.
const (
	DocAutopsyReport     = "autopsy-report"
	DocAuthorityReferral = "authority-referral"
	DocBodyRecovery      = "body-recovery"
)

// DocumentSLA is how long after opening a file its documents should be
// complete. Reporting only, nothing enforces it.
const DocumentSLA = 48 * time.Hour

var RequiredDocuments = []string{DocAutopsyReport, DocAuthorityReferral, DocBodyRecovery}

var (
	ErrFileNotFound        = errors.New("legal file not found")
	ErrFileExists          = errors.New("legal file already exists for case")
	ErrUnknownDocumentType = errors.New("unknown legal document type")
	ErrIncompleteDocuments = errors.New("required documents are missing")
	ErrInvalidStage        = errors.New("operation not valid in current stage")
	ErrNotYetValidated     = errors.New("file has not been approved by admissions")
	ErrMissingAuthority    = errors.New("authority name is required")
)

var knownDocumentTypes = map[string]bool{
	DocAutopsyReport:     true,
	DocAuthorityReferral: true,
	DocBodyRecovery:      true,
}

// LegalFile is the legal case file an external (out-of-hospital) death
// must carry before release. One per case.
type LegalFile struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	CaseID             uuid.UUID  `db:"case_id" json:"case_id"`
	Stage              string     `db:"stage" json:"stage"`
	ReviewedBy         *string    `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt         *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewNotes        *string    `db:"review_notes" json:"review_notes,omitempty"`
	AuthorizedBy       *string    `db:"authorized_by" json:"authorized_by,omitempty"`
	AuthorizedAt       *time.Time `db:"authorized_at" json:"authorized_at,omitempty"`
	AuthorizationNotes *string    `db:"authorization_notes" json:"authorization_notes,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`

	Documents   []*Document  `db:"-" json:"documents,omitempty"`
	Authorities []*Authority `db:"-" json:"authorities,omitempty"`
}

// Document links a required document type to its entry in the document
// store. Re-attaching the same type replaces the reference.
type Document struct {
	ID         uuid.UUID `db:"id" json:"id"`
	FileID     uuid.UUID `db:"file_id" json:"file_id"`
	DocType    string    `db:"doc_type" json:"doc_type"`
	Reference  string    `db:"reference" json:"reference"`
	AttachedBy string    `db:"attached_by" json:"attached_by"`
	AttachedAt time.Time `db:"attached_at" json:"attached_at"`
}

// Authority is one attending authority (prosecutor, police officer)
// recorded on the file.
type Authority struct {
	ID          uuid.UUID `db:"id" json:"id"`
	FileID      uuid.UUID `db:"file_id" json:"file_id"`
	Name        string    `db:"name" json:"name"`
	Institution string    `db:"institution" json:"institution"`
	BadgeNumber string    `db:"badge_number" json:"badge_number"`
	RecordedAt  time.Time `db:"recorded_at" json:"recorded_at"`
}

// HasDocument reports whether a document of the given type is attached.
func (f *LegalFile) HasDocument(docType string) bool {
	for _, d := range f.Documents {
		if d.DocType == docType {
			return true
		}
	}
	return false
}

// PendingDocumentTypes returns the required types not yet attached.
func (f *LegalFile) PendingDocumentTypes() []string {
	var pending []string
	for _, dt := range RequiredDocuments {
		if !f.HasDocument(dt) {
			pending = append(pending, dt)
		}
	}
	return pending
}

// DocumentsComplete reports whether every required document is present.
func (f *LegalFile) DocumentsComplete() bool {
	return len(f.PendingDocumentTypes()) == 0
}

// DocumentDeadline is when the file's documents fall overdue. Nil once
// the documents are complete or the file is authorized.
func (f *LegalFile) DocumentDeadline() *time.Time {
	if f.DocumentsComplete() || f.Stage == StageAuthorized {
		return nil
	}
	d := f.CreatedAt.Add(DocumentSLA)
	return &d
}

// Authorized reports whether the file reached its terminal stage.
func (f *LegalFile) Authorized() bool {
	return f.Stage == StageAuthorized
}
