package tray

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/morgue/morgue/internal/platform/clock"
)

type Service struct {
	trays TrayRepository
	clk   clock.Clock
}

func NewService(trays TrayRepository) *Service {
	return &Service{trays: trays, clk: clock.System}
}

// SetClock overrides the time source, for tests.
func (s *Service) SetClock(clk clock.Clock) { s.clk = clk }

func (s *Service) CreateTray(ctx context.Context, t *Tray) error {
	if strings.TrimSpace(t.Code) == "" {
		return ErrMissingCode
	}
	if t.Status == "" {
		t.Status = StatusAvailable
	}
	if !validStatuses[t.Status] {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, t.Status)
	}
	return s.trays.Create(ctx, t)
}

func (s *Service) GetTray(ctx context.Context, id uuid.UUID) (*Tray, error) {
	return s.trays.GetByID(ctx, id)
}

func (s *Service) GetTrayByCase(ctx context.Context, caseID uuid.UUID) (*Tray, error) {
	return s.trays.GetByCase(ctx, caseID)
}

func (s *Service) ListTrays(ctx context.Context, params map[string]string, limit, offset int) ([]*Tray, int, error) {
	return s.trays.List(ctx, params, limit, offset)
}

// AssignTray places a case into an available tray. The repository's
// conditional update guarantees at most one concurrent assign wins.
func (s *Service) AssignTray(ctx context.Context, trayID, caseID uuid.UUID, actorID string) error {
	if caseID == uuid.Nil {
		return fmt.Errorf("case id is required")
	}
	return s.trays.Assign(ctx, trayID, caseID, actorID, s.clk.Now().UTC())
}

// ReleaseTray frees an occupied tray. Prior assignment metadata stays on
// the row for the occupancy history.
func (s *Service) ReleaseTray(ctx context.Context, trayID uuid.UUID, actorID string) error {
	return s.trays.Release(ctx, trayID, actorID, s.clk.Now().UTC())
}

func (s *Service) EnterMaintenance(ctx context.Context, trayID uuid.UUID, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ErrMissingReason
	}
	t, err := s.trays.GetByID(ctx, trayID)
	if err != nil {
		return err
	}
	if t.Status == StatusOccupied {
		return ErrTrayOccupied
	}
	t.Status = StatusMaintenance
	t.MaintenanceReason = &reason
	return s.trays.Update(ctx, t)
}

func (s *Service) ExitMaintenance(ctx context.Context, trayID uuid.UUID) error {
	t, err := s.trays.GetByID(ctx, trayID)
	if err != nil {
		return err
	}
	if t.Status != StatusMaintenance {
		return ErrTrayNotInMaintenance
	}
	t.Status = StatusAvailable
	t.MaintenanceReason = nil
	return s.trays.Update(ctx, t)
}

// OccupancyAlerts returns trays that have held a case longer than the
// threshold, for the 24h/48h operational reports.
func (s *Service) OccupancyAlerts(ctx context.Context, thresholdHours int) ([]*OccupancyAlert, error) {
	if thresholdHours <= 0 {
		return nil, fmt.Errorf("threshold must be positive, got %d", thresholdHours)
	}
	now := s.clk.Now().UTC()
	cutoff := now.Add(-time.Duration(thresholdHours) * time.Hour)
	trays, err := s.trays.OccupiedSince(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	alerts := make([]*OccupancyAlert, len(trays))
	for i, t := range trays {
		alerts[i] = &OccupancyAlert{
			Tray:          t,
			OccupiedHours: t.OccupiedFor(now).Hours(),
		}
	}
	return alerts, nil
}

func (s *Service) OccupiedCount(ctx context.Context) (int, error) {
	return s.trays.CountOccupied(ctx)
}
