package retrieval

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Authorization kinds. Family pickups and authority transfers carry
// different paperwork, so the record is a tagged union on Kind.
const (
	KindFamily    = "family"
	KindAuthority = "authority"
)

// Issue codes returned by ValidationIssues.
const (
	IssueMissingRelationship     = "missing-relationship"
	IssueMissingNextOfKin        = "missing-next-of-kin"
	IssueMissingKinDocument      = "missing-kin-document"
	IssueMissingDeathCertificate = "missing-death-certificate"
	IssueMissingReferralNumber   = "missing-referral-number"
	IssueMissingAuthorityType    = "missing-authority-type"
	IssueMissingInstitution      = "missing-institution"
)

var (
	ErrAuthorizationNotFound    = errors.New("retrieval authorization not found")
	ErrAuthorizationExists      = errors.New("retrieval authorization already exists for case")
	ErrInvalidKind              = errors.New("invalid retrieval kind")
	ErrKindFieldsMismatch       = errors.New("fields do not match retrieval kind")
	ErrIncompleteAuthorization  = errors.New("authorization is incomplete")
)

// Authorization is the retrieval paperwork for handing a body over.
// One per case. Exactly one kind's field group may be populated.
type Authorization struct {
	ID     uuid.UUID `db:"id" json:"id"`
	CaseID uuid.UUID `db:"case_id" json:"case_id"`
	Kind   string    `db:"kind" json:"kind"`

	// Family pickup.
	Relationship           string `db:"relationship" json:"relationship,omitempty"`
	NextOfKinName          string `db:"next_of_kin_name" json:"next_of_kin_name,omitempty"`
	NextOfKinDocument      string `db:"next_of_kin_document" json:"next_of_kin_document,omitempty"`
	DeathCertificateNumber string `db:"death_certificate_number" json:"death_certificate_number,omitempty"`

	// Authority transfer.
	ReferralNumber string `db:"referral_number" json:"referral_number,omitempty"`
	AuthorityType  string `db:"authority_type" json:"authority_type,omitempty"`
	Institution    string `db:"institution" json:"institution,omitempty"`

	RetrieverSignedAt  *time.Time `db:"retriever_signed_at" json:"retriever_signed_at,omitempty"`
	AdmissionsSignedAt *time.Time `db:"admissions_signed_at" json:"admissions_signed_at,omitempty"`
	SecuritySignedAt   *time.Time `db:"security_signed_at" json:"security_signed_at,omitempty"`

	ScannedBy *string    `db:"scanned_by" json:"scanned_by,omitempty"`
	ScannedAt *time.Time `db:"scanned_at" json:"scanned_at,omitempty"`

	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (a *Authorization) familyFieldsSet() bool {
	return a.Relationship != "" || a.NextOfKinName != "" ||
		a.NextOfKinDocument != "" || a.DeathCertificateNumber != ""
}

func (a *Authorization) authorityFieldsSet() bool {
	return a.ReferralNumber != "" || a.AuthorityType != "" || a.Institution != ""
}

// Validate enforces the tagged-union shape at construction: a record
// carries only the field group of its kind.
func (a *Authorization) Validate() error {
	switch a.Kind {
	case KindFamily:
		if a.authorityFieldsSet() {
			return ErrKindFieldsMismatch
		}
	case KindAuthority:
		if a.familyFieldsSet() {
			return ErrKindFieldsMismatch
		}
	default:
		return ErrInvalidKind
	}
	return nil
}

// ValidationIssues returns every blocking reason, not just the first.
// Empty means the record is complete for its kind.
func (a *Authorization) ValidationIssues() []string {
	var issues []string
	switch a.Kind {
	case KindFamily:
		if a.Relationship == "" {
			issues = append(issues, IssueMissingRelationship)
		}
		if a.NextOfKinName == "" {
			issues = append(issues, IssueMissingNextOfKin)
		}
		if a.NextOfKinDocument == "" {
			issues = append(issues, IssueMissingKinDocument)
		}
		if a.DeathCertificateNumber == "" {
			issues = append(issues, IssueMissingDeathCertificate)
		}
	case KindAuthority:
		if a.ReferralNumber == "" {
			issues = append(issues, IssueMissingReferralNumber)
		}
		if a.AuthorityType == "" {
			issues = append(issues, IssueMissingAuthorityType)
		}
		if a.Institution == "" {
			issues = append(issues, IssueMissingInstitution)
		}
	}
	return issues
}

// IsComplete reports whether the kind-specific fields are all present.
func (a *Authorization) IsComplete() bool {
	return len(a.ValidationIssues()) == 0
}

// FullySigned reports whether all three signatures are on the paper.
func (a *Authorization) FullySigned() bool {
	return a.RetrieverSignedAt != nil && a.AdmissionsSignedAt != nil && a.SecuritySignedAt != nil
}
