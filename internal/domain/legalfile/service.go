package legalfile

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/morgue/morgue/internal/platform/clock"
)

type Service struct {
	files LegalFileRepository
	clk   clock.Clock
}

func NewService(files LegalFileRepository) *Service {
	return &Service{files: files, clk: clock.System}
}

// SetClock overrides the time source, for tests.
func (s *Service) SetClock(clk clock.Clock) { s.clk = clk }

// OpenFile creates the legal file for an external case, in registering.
func (s *Service) OpenFile(ctx context.Context, caseID uuid.UUID) (*LegalFile, error) {
	f := &LegalFile{CaseID: caseID, Stage: StageRegistering}
	if err := s.files.Create(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Service) GetFile(ctx context.Context, id uuid.UUID) (*LegalFile, error) {
	return s.files.GetByID(ctx, id)
}

func (s *Service) GetFileByCase(ctx context.Context, caseID uuid.UUID) (*LegalFile, error) {
	return s.files.GetByCase(ctx, caseID)
}

func (s *Service) ListFiles(ctx context.Context, params map[string]string, limit, offset int) ([]*LegalFile, int, error) {
	return s.files.List(ctx, params, limit, offset)
}

// AttachDocument stores a document-store reference under one of the
// known types. Attaching the same type again replaces the reference.
func (s *Service) AttachDocument(ctx context.Context, fileID uuid.UUID, docType, reference, actorID string) (*LegalFile, error) {
	if !knownDocumentTypes[docType] {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDocumentType, docType)
	}
	f, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if f.Stage == StageAuthorized {
		return nil, ErrInvalidStage
	}
	d := &Document{
		FileID:     f.ID,
		DocType:    docType,
		Reference:  reference,
		AttachedBy: actorID,
		AttachedAt: s.clk.Now().UTC(),
	}
	if err := s.files.UpsertDocument(ctx, d); err != nil {
		return nil, err
	}
	return s.files.GetByID(ctx, fileID)
}

// SubmitForReview moves the file to pending-review once all required
// documents are attached. Valid from registering or after a rejection.
func (s *Service) SubmitForReview(ctx context.Context, fileID uuid.UUID, actorID string) (*LegalFile, error) {
	f, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if f.Stage != StageRegistering && f.Stage != StageRejected {
		return nil, ErrInvalidStage
	}
	if !f.DocumentsComplete() {
		return nil, fmt.Errorf("%w: %s", ErrIncompleteDocuments, strings.Join(f.PendingDocumentTypes(), ", "))
	}
	f.Stage = StagePendingReview
	if err := s.files.Update(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// ReviewByAdmissions approves or rejects the file. A rejected file goes
// back through SubmitForReview after corrections.
func (s *Service) ReviewByAdmissions(ctx context.Context, fileID uuid.UUID, approved bool, actorID, notes string) (*LegalFile, error) {
	f, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if f.Stage != StagePendingReview && f.Stage != StageRejected {
		return nil, ErrInvalidStage
	}
	now := s.clk.Now().UTC()
	if approved {
		f.Stage = StageApproved
	} else {
		f.Stage = StageRejected
	}
	f.ReviewedBy = &actorID
	f.ReviewedAt = &now
	f.ReviewNotes = &notes
	if err := s.files.Update(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// AuthorizeBySupervisor moves an approved file to its terminal stage.
func (s *Service) AuthorizeBySupervisor(ctx context.Context, fileID uuid.UUID, actorID, notes string) (*LegalFile, error) {
	f, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if f.Stage != StageApproved {
		return nil, ErrNotYetValidated
	}
	now := s.clk.Now().UTC()
	f.Stage = StageAuthorized
	f.AuthorizedBy = &actorID
	f.AuthorizedAt = &now
	f.AuthorizationNotes = &notes
	if err := s.files.Update(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Service) AddAuthority(ctx context.Context, fileID uuid.UUID, a *Authority) (*LegalFile, error) {
	if strings.TrimSpace(a.Name) == "" {
		return nil, ErrMissingAuthority
	}
	f, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	a.FileID = f.ID
	a.RecordedAt = s.clk.Now().UTC()
	if err := s.files.AddAuthority(ctx, a); err != nil {
		return nil, err
	}
	return s.files.GetByID(ctx, fileID)
}

// OverdueFiles lists unauthorized files that blew the document SLA.
func (s *Service) OverdueFiles(ctx context.Context) ([]*LegalFile, error) {
	cutoff := s.clk.Now().UTC().Add(-DocumentSLA)
	files, err := s.files.CreatedBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	var overdue []*LegalFile
	for _, f := range files {
		if !f.DocumentsComplete() {
			overdue = append(overdue, f)
		}
	}
	return overdue, nil
}
