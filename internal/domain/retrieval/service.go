package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/morgue/morgue/internal/platform/clock"
)

type Service struct {
	authz AuthorizationRepository
	clk   clock.Clock
}

func NewService(authz AuthorizationRepository) *Service {
	return &Service{authz: authz, clk: clock.System}
}

// SetClock overrides the time source, for tests.
func (s *Service) SetClock(clk clock.Clock) { s.clk = clk }

func (s *Service) CreateAuthorization(ctx context.Context, a *Authorization, actorID string) (*Authorization, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	a.CreatedBy = actorID
	if err := s.authz.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) GetAuthorization(ctx context.Context, id uuid.UUID) (*Authorization, error) {
	return s.authz.GetByID(ctx, id)
}

func (s *Service) GetByCase(ctx context.Context, caseID uuid.UUID) (*Authorization, error) {
	return s.authz.GetByCase(ctx, caseID)
}

func (s *Service) ListAuthorizations(ctx context.Context, params map[string]string, limit, offset int) ([]*Authorization, int, error) {
	return s.authz.List(ctx, params, limit, offset)
}

// UpdateFields amends the kind-specific paperwork before signing. The
// kind itself is fixed at creation.
func (s *Service) UpdateFields(ctx context.Context, id uuid.UUID, upd *Authorization) (*Authorization, error) {
	a, err := s.authz.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	upd.Kind = a.Kind
	if err := upd.Validate(); err != nil {
		return nil, err
	}
	switch a.Kind {
	case KindFamily:
		a.Relationship = upd.Relationship
		a.NextOfKinName = upd.NextOfKinName
		a.NextOfKinDocument = upd.NextOfKinDocument
		a.DeathCertificateNumber = upd.DeathCertificateNumber
	case KindAuthority:
		a.ReferralNumber = upd.ReferralNumber
		a.AuthorityType = upd.AuthorityType
		a.Institution = upd.Institution
	}
	if err := s.authz.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// MarkFullySigned stamps all three signatures and the scan upload in
// one step, after the signed paper form comes back.
func (s *Service) MarkFullySigned(ctx context.Context, id uuid.UUID, uploaderID string) (*Authorization, error) {
	if strings.TrimSpace(uploaderID) == "" {
		return nil, fmt.Errorf("uploader id is required")
	}
	a, err := s.authz.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.IsComplete() {
		return nil, fmt.Errorf("%w: %s", ErrIncompleteAuthorization, strings.Join(a.ValidationIssues(), ", "))
	}
	now := s.clk.Now().UTC()
	a.RetrieverSignedAt = &now
	a.AdmissionsSignedAt = &now
	a.SecuritySignedAt = &now
	a.ScannedBy = &uploaderID
	a.ScannedAt = &now
	if err := s.authz.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// FullySigned reports whether the case's authorization carries all
// three signatures. Used as the internal-case release gate.
func (s *Service) FullySigned(ctx context.Context, caseID uuid.UUID) (bool, error) {
	a, err := s.authz.GetByCase(ctx, caseID)
	if err != nil {
		return false, err
	}
	return a.FullySigned(), nil
}
