package legalfile

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type LegalFileRepository interface {
	Create(ctx context.Context, f *LegalFile) error
	// GetByID loads the file with its documents and authorities.
	GetByID(ctx context.Context, id uuid.UUID) (*LegalFile, error)
	GetByCase(ctx context.Context, caseID uuid.UUID) (*LegalFile, error)
	Update(ctx context.Context, f *LegalFile) error
	// UpsertDocument inserts the document or replaces the reference when
	// the type is already attached.
	UpsertDocument(ctx context.Context, d *Document) error
	AddAuthority(ctx context.Context, a *Authority) error
	List(ctx context.Context, params map[string]string, limit, offset int) ([]*LegalFile, int, error)
	// CreatedBefore lists unauthorized files opened before the cutoff,
	// documents loaded, for the overdue-documents report.
	CreatedBefore(ctx context.Context, cutoff time.Time) ([]*LegalFile, error)
}
