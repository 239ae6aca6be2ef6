package exitlog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/morgue/morgue/internal/platform/clock"
)

type Service struct {
	exits ExitRecordRepository
	clk   clock.Clock
}

func NewService(exits ExitRecordRepository) *Service {
	return &Service{exits: exits, clk: clock.System}
}

// SetClock overrides the time source, for tests.
func (s *Service) SetClock(clk clock.Clock) { s.clk = clk }

// CreateRecord validates and writes the exit record. entryAt is when
// the body went into storage, used to compute the stay length.
func (s *Service) CreateRecord(ctx context.Context, e *ExitRecord, entryAt *time.Time, actorID string) (*ExitRecord, error) {
	if err := e.ValidateReferenceConsistency(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(e.ResponsibleName) == "" || strings.TrimSpace(e.ResponsibleDocument) == "" {
		return nil, ErrMissingResponsible
	}
	now := s.clk.Now().UTC()
	if e.ExitAt.IsZero() {
		e.ExitAt = now
	}
	if entryAt != nil {
		e.StorageHours = ComputeStorageHours(*entryAt, e.ExitAt)
	}
	e.RecordedBy = actorID
	if e.IncidentDescription != nil && strings.TrimSpace(*e.IncidentDescription) != "" {
		e.IncidentFlag = true
	}
	if err := s.exits.Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) GetRecord(ctx context.Context, id uuid.UUID) (*ExitRecord, error) {
	return s.exits.GetByID(ctx, id)
}

func (s *Service) GetByCase(ctx context.Context, caseID uuid.UUID) (*ExitRecord, error) {
	return s.exits.GetByCase(ctx, caseID)
}

func (s *Service) ListRecords(ctx context.Context, params map[string]string, limit, offset int) ([]*ExitRecord, int, error) {
	return s.exits.List(ctx, params, limit, offset)
}

// RegisterIncident flags an anomaly observed during the handover,
// after the fact.
func (s *Service) RegisterIncident(ctx context.Context, id uuid.UUID, description string) (*ExitRecord, error) {
	if strings.TrimSpace(description) == "" {
		return nil, ErrMissingDescription
	}
	if err := s.exits.SetIncident(ctx, id, description); err != nil {
		return nil, err
	}
	return s.exits.GetByID(ctx, id)
}
