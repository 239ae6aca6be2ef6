package exitlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/morgue/morgue/internal/platform/clock"
)

type mockExitRepo struct {
	byID map[uuid.UUID]*ExitRecord
}

func newMockExitRepo() *mockExitRepo {
	return &mockExitRepo{byID: make(map[uuid.UUID]*ExitRecord)}
}

func (m *mockExitRepo) Create(_ context.Context, e *ExitRecord) error {
	for _, existing := range m.byID {
		if existing.CaseID == e.CaseID {
			return ErrExitExists
		}
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	cp := *e
	m.byID[e.ID] = &cp
	return nil
}

func (m *mockExitRepo) GetByID(_ context.Context, id uuid.UUID) (*ExitRecord, error) {
	e, ok := m.byID[id]
	if !ok {
		return nil, ErrExitNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *mockExitRepo) GetByCase(_ context.Context, caseID uuid.UUID) (*ExitRecord, error) {
	for _, e := range m.byID {
		if e.CaseID == caseID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, ErrExitNotFound
}

func (m *mockExitRepo) SetIncident(_ context.Context, id uuid.UUID, description string) error {
	e, ok := m.byID[id]
	if !ok {
		return ErrExitNotFound
	}
	e.IncidentFlag = true
	e.IncidentDescription = &description
	return nil
}

func (m *mockExitRepo) List(_ context.Context, _ map[string]string, _, _ int) ([]*ExitRecord, int, error) {
	var out []*ExitRecord
	for _, e := range m.byID {
		cp := *e
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func familyExit(caseID uuid.UUID) *ExitRecord {
	authzID := uuid.New()
	return &ExitRecord{
		CaseID:                   caseID,
		RetrieverKind:            RetrieverFamily,
		RetrievalAuthorizationID: &authzID,
		ResponsibleName:          "Maria Perez",
		ResponsibleDocument:      "DNI-123456",
		VehiclePlate:             "ABC-123",
		Destination:              "Municipal cemetery",
	}
}

func TestReferenceConsistency(t *testing.T) {
	authzID := uuid.New()
	legalID := uuid.New()

	cases := []struct {
		name string
		rec  ExitRecord
		ok   bool
	}{
		{"family with authz", ExitRecord{RetrieverKind: RetrieverFamily, RetrievalAuthorizationID: &authzID}, true},
		{"family with legal file", ExitRecord{RetrieverKind: RetrieverFamily, LegalFileID: &legalID}, false},
		{"family with both", ExitRecord{RetrieverKind: RetrieverFamily, RetrievalAuthorizationID: &authzID, LegalFileID: &legalID}, false},
		{"family with neither", ExitRecord{RetrieverKind: RetrieverFamily}, false},
		{"authority with legal file", ExitRecord{RetrieverKind: RetrieverAuthority, LegalFileID: &legalID}, true},
		{"authority with authz", ExitRecord{RetrieverKind: RetrieverAuthority, RetrievalAuthorizationID: &authzID}, false},
		{"unknown kind", ExitRecord{RetrieverKind: "courier", LegalFileID: &legalID}, false},
	}
	for _, tc := range cases {
		err := tc.rec.ValidateReferenceConsistency()
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, ErrInconsistentReference) {
			t.Errorf("%s: got %v, want ErrInconsistentReference", tc.name, err)
		}
	}
}

func TestCreateRecord(t *testing.T) {
	svc := NewService(newMockExitRepo())
	ctx := context.Background()
	now := time.Date(2025, 7, 12, 18, 0, 0, 0, time.UTC)
	svc.SetClock(clock.Fixed(now))

	entry := now.Add(-30 * time.Hour)
	e, err := svc.CreateRecord(ctx, familyExit(uuid.New()), &entry, "sec-1")
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if !e.ExitAt.Equal(now) {
		t.Errorf("exit_at = %v, want %v", e.ExitAt, now)
	}
	if e.StorageHours < 29.9 || e.StorageHours > 30.1 {
		t.Errorf("storage_hours = %v, want ~30", e.StorageHours)
	}
	if e.ExceededLimit() {
		t.Error("30h stay flagged as exceeding the limit")
	}
	if e.RecordedBy != "sec-1" {
		t.Errorf("recorded_by = %q", e.RecordedBy)
	}

	// Second exit for the same case is refused.
	if _, err := svc.CreateRecord(ctx, familyExit(e.CaseID), &entry, "sec-1"); !errors.Is(err, ErrExitExists) {
		t.Errorf("duplicate exit: got %v, want ErrExitExists", err)
	}

	// Missing responsible party.
	bad := familyExit(uuid.New())
	bad.ResponsibleName = ""
	if _, err := svc.CreateRecord(ctx, bad, &entry, "sec-1"); !errors.Is(err, ErrMissingResponsible) {
		t.Errorf("missing responsible: got %v, want ErrMissingResponsible", err)
	}

	// Inconsistent reference is refused before anything is written.
	mixed := familyExit(uuid.New())
	legalID := uuid.New()
	mixed.LegalFileID = &legalID
	if _, err := svc.CreateRecord(ctx, mixed, &entry, "sec-1"); !errors.Is(err, ErrInconsistentReference) {
		t.Errorf("mixed reference: got %v, want ErrInconsistentReference", err)
	}
}

func TestStorageHoursAndLimit(t *testing.T) {
	entry := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)

	if h := ComputeStorageHours(entry, entry.Add(50*time.Hour)); h != 50 {
		t.Errorf("hours = %v, want 50", h)
	}
	// Exit before entry clamps to zero rather than going negative.
	if h := ComputeStorageHours(entry, entry.Add(-time.Hour)); h != 0 {
		t.Errorf("hours = %v, want 0", h)
	}

	over := &ExitRecord{StorageHours: 49}
	if !over.ExceededLimit() {
		t.Error("49h not flagged")
	}
	under := &ExitRecord{StorageHours: 48}
	if under.ExceededLimit() {
		t.Error("exactly 48h flagged")
	}
}

func TestRegisterIncident(t *testing.T) {
	svc := NewService(newMockExitRepo())
	ctx := context.Background()

	e, err := svc.CreateRecord(ctx, familyExit(uuid.New()), nil, "sec-1")
	if err != nil {
		t.Fatal(err)
	}
	if e.IncidentFlag {
		t.Error("fresh record has incident flag set")
	}

	if _, err := svc.RegisterIncident(ctx, e.ID, "  "); !errors.Is(err, ErrMissingDescription) {
		t.Errorf("blank description: got %v, want ErrMissingDescription", err)
	}

	e, err = svc.RegisterIncident(ctx, e.ID, "family dispute at the gate")
	if err != nil {
		t.Fatalf("RegisterIncident: %v", err)
	}
	if !e.IncidentFlag {
		t.Error("incident flag not set")
	}
	if e.IncidentDescription == nil || *e.IncidentDescription != "family dispute at the gate" {
		t.Errorf("description = %v", e.IncidentDescription)
	}

	if _, err := svc.RegisterIncident(ctx, uuid.New(), "x"); !errors.Is(err, ErrExitNotFound) {
		t.Errorf("unknown id: got %v, want ErrExitNotFound", err)
	}
}
