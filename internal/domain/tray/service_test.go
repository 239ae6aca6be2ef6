package tray

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/morgue/morgue/internal/platform/clock"
)

type mockTrayRepo struct {
	trays map[uuid.UUID]*Tray
}

func newMockTrayRepo() *mockTrayRepo {
	return &mockTrayRepo{trays: make(map[uuid.UUID]*Tray)}
}

func (m *mockTrayRepo) Create(_ context.Context, t *Tray) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	cp := *t
	m.trays[t.ID] = &cp
	return nil
}

func (m *mockTrayRepo) GetByID(_ context.Context, id uuid.UUID) (*Tray, error) {
	t, ok := m.trays[id]
	if !ok {
		return nil, ErrTrayNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockTrayRepo) GetByCode(_ context.Context, code string) (*Tray, error) {
	for _, t := range m.trays {
		if t.Code == code {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrTrayNotFound
}

func (m *mockTrayRepo) GetByCase(_ context.Context, caseID uuid.UUID) (*Tray, error) {
	for _, t := range m.trays {
		if t.CaseID != nil && *t.CaseID == caseID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrTrayNotFound
}

func (m *mockTrayRepo) Update(_ context.Context, t *Tray) error {
	if _, ok := m.trays[t.ID]; !ok {
		return ErrTrayNotFound
	}
	cp := *t
	m.trays[t.ID] = &cp
	return nil
}

func (m *mockTrayRepo) List(_ context.Context, _ map[string]string, _, _ int) ([]*Tray, int, error) {
	var out []*Tray
	for _, t := range m.trays {
		cp := *t
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockTrayRepo) Assign(_ context.Context, trayID, caseID uuid.UUID, actorID string, at time.Time) error {
	t, ok := m.trays[trayID]
	if !ok || t.Status != StatusAvailable {
		return ErrTrayNotAvailable
	}
	t.Status = StatusOccupied
	t.CaseID = &caseID
	t.AssignedAt = &at
	t.AssignedBy = &actorID
	t.ReleasedAt = nil
	t.ReleasedBy = nil
	return nil
}

func (m *mockTrayRepo) Release(_ context.Context, trayID uuid.UUID, actorID string, at time.Time) error {
	t, ok := m.trays[trayID]
	if !ok || t.Status != StatusOccupied {
		return ErrTrayNotOccupied
	}
	t.Status = StatusAvailable
	t.CaseID = nil
	t.ReleasedAt = &at
	t.ReleasedBy = &actorID
	return nil
}

func (m *mockTrayRepo) OccupiedSince(_ context.Context, cutoff time.Time) ([]*Tray, error) {
	var out []*Tray
	for _, t := range m.trays {
		if t.Status == StatusOccupied && t.AssignedAt != nil && !t.AssignedAt.After(cutoff) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockTrayRepo) CountOccupied(_ context.Context) (int, error) {
	n := 0
	for _, t := range m.trays {
		if t.Status == StatusOccupied {
			n++
		}
	}
	return n, nil
}

func newTestService() (*Service, *mockTrayRepo) {
	repo := newMockTrayRepo()
	svc := NewService(repo)
	return svc, repo
}

func TestCreateTray(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	tr := &Tray{Code: "T-01"}
	if err := svc.CreateTray(ctx, tr); err != nil {
		t.Fatalf("CreateTray: %v", err)
	}
	if tr.Status != StatusAvailable {
		t.Errorf("status = %q, want %q", tr.Status, StatusAvailable)
	}

	if err := svc.CreateTray(ctx, &Tray{}); !errors.Is(err, ErrMissingCode) {
		t.Errorf("missing code: got %v, want ErrMissingCode", err)
	}
	if err := svc.CreateTray(ctx, &Tray{Code: "T-02", Status: "bogus"}); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("bad status: got %v, want ErrInvalidStatus", err)
	}
}

func TestAssignTray(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	tr := &Tray{Code: "T-01"}
	if err := svc.CreateTray(ctx, tr); err != nil {
		t.Fatal(err)
	}
	caseID := uuid.New()

	if err := svc.AssignTray(ctx, tr.ID, caseID, "user-1"); err != nil {
		t.Fatalf("AssignTray: %v", err)
	}
	got, err := svc.GetTray(ctx, tr.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusOccupied {
		t.Errorf("status = %q, want %q", got.Status, StatusOccupied)
	}
	if got.CaseID == nil || *got.CaseID != caseID {
		t.Errorf("case_id = %v, want %s", got.CaseID, caseID)
	}

	// Second assignment on an occupied tray must lose.
	if err := svc.AssignTray(ctx, tr.ID, uuid.New(), "user-2"); !errors.Is(err, ErrTrayNotAvailable) {
		t.Errorf("double assign: got %v, want ErrTrayNotAvailable", err)
	}

	if err := svc.AssignTray(ctx, tr.ID, uuid.Nil, "user-1"); err == nil {
		t.Error("nil case id accepted")
	}
}

func TestReleaseTray(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	tr := &Tray{Code: "T-01"}
	if err := svc.CreateTray(ctx, tr); err != nil {
		t.Fatal(err)
	}

	if err := svc.ReleaseTray(ctx, tr.ID, "user-1"); !errors.Is(err, ErrTrayNotOccupied) {
		t.Errorf("release available tray: got %v, want ErrTrayNotOccupied", err)
	}

	if err := svc.AssignTray(ctx, tr.ID, uuid.New(), "user-1"); err != nil {
		t.Fatal(err)
	}
	if err := svc.ReleaseTray(ctx, tr.ID, "user-1"); err != nil {
		t.Fatalf("ReleaseTray: %v", err)
	}
	got, _ := svc.GetTray(ctx, tr.ID)
	if got.Status != StatusAvailable {
		t.Errorf("status = %q, want %q", got.Status, StatusAvailable)
	}
	if got.CaseID != nil {
		t.Errorf("case_id not cleared: %v", got.CaseID)
	}
	if got.ReleasedBy == nil || *got.ReleasedBy != "user-1" {
		t.Errorf("released_by = %v", got.ReleasedBy)
	}
}

func TestMaintenance(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	tr := &Tray{Code: "T-01"}
	if err := svc.CreateTray(ctx, tr); err != nil {
		t.Fatal(err)
	}

	if err := svc.EnterMaintenance(ctx, tr.ID, ""); !errors.Is(err, ErrMissingReason) {
		t.Errorf("empty reason: got %v, want ErrMissingReason", err)
	}

	if err := svc.EnterMaintenance(ctx, tr.ID, "cooling failure"); err != nil {
		t.Fatalf("EnterMaintenance: %v", err)
	}
	got, _ := svc.GetTray(ctx, tr.ID)
	if got.Status != StatusMaintenance {
		t.Errorf("status = %q, want %q", got.Status, StatusMaintenance)
	}

	if err := svc.ExitMaintenance(ctx, tr.ID); err != nil {
		t.Fatalf("ExitMaintenance: %v", err)
	}
	got, _ = svc.GetTray(ctx, tr.ID)
	if got.Status != StatusAvailable {
		t.Errorf("status = %q, want %q", got.Status, StatusAvailable)
	}
	if got.MaintenanceReason != nil {
		t.Errorf("maintenance reason not cleared: %v", got.MaintenanceReason)
	}

	if err := svc.ExitMaintenance(ctx, tr.ID); !errors.Is(err, ErrTrayNotInMaintenance) {
		t.Errorf("exit non-maintenance: got %v, want ErrTrayNotInMaintenance", err)
	}
}

// Lookups and maintenance verbs on an unknown id surface the not-found
// sentinel, not a raw storage error.
func TestTrayNotFound(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	unknown := uuid.New()

	if _, err := svc.GetTray(ctx, unknown); !errors.Is(err, ErrTrayNotFound) {
		t.Errorf("GetTray: got %v, want ErrTrayNotFound", err)
	}
	if err := svc.EnterMaintenance(ctx, unknown, "cooling failure"); !errors.Is(err, ErrTrayNotFound) {
		t.Errorf("EnterMaintenance: got %v, want ErrTrayNotFound", err)
	}
	if err := svc.ExitMaintenance(ctx, unknown); !errors.Is(err, ErrTrayNotFound) {
		t.Errorf("ExitMaintenance: got %v, want ErrTrayNotFound", err)
	}
}

func TestEnterMaintenanceOccupied(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	tr := &Tray{Code: "T-01"}
	if err := svc.CreateTray(ctx, tr); err != nil {
		t.Fatal(err)
	}
	if err := svc.AssignTray(ctx, tr.ID, uuid.New(), "user-1"); err != nil {
		t.Fatal(err)
	}
	if err := svc.EnterMaintenance(ctx, tr.ID, "leak"); !errors.Is(err, ErrTrayOccupied) {
		t.Errorf("got %v, want ErrTrayOccupied", err)
	}
}

func TestOccupancyAlerts(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.SetClock(clock.Fixed(now.Add(-30 * time.Hour)))

	oldTray := &Tray{Code: "T-OLD"}
	if err := svc.CreateTray(ctx, oldTray); err != nil {
		t.Fatal(err)
	}
	if err := svc.AssignTray(ctx, oldTray.ID, uuid.New(), "user-1"); err != nil {
		t.Fatal(err)
	}

	svc.SetClock(clock.Fixed(now.Add(-2 * time.Hour)))
	newTray := &Tray{Code: "T-NEW"}
	if err := svc.CreateTray(ctx, newTray); err != nil {
		t.Fatal(err)
	}
	if err := svc.AssignTray(ctx, newTray.ID, uuid.New(), "user-1"); err != nil {
		t.Fatal(err)
	}

	svc.SetClock(clock.Fixed(now))
	alerts, err := svc.OccupancyAlerts(ctx, 24)
	if err != nil {
		t.Fatalf("OccupancyAlerts: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}
	if alerts[0].Tray.Code != "T-OLD" {
		t.Errorf("alert tray = %q, want T-OLD", alerts[0].Tray.Code)
	}
	if alerts[0].OccupiedHours < 29.9 || alerts[0].OccupiedHours > 30.1 {
		t.Errorf("occupied hours = %v, want ~30", alerts[0].OccupiedHours)
	}

	if _, err := svc.OccupancyAlerts(ctx, 0); err == nil {
		t.Error("zero threshold accepted")
	}
}
