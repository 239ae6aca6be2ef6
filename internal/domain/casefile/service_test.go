package casefile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/morgue/morgue/internal/domain/exitlog"
	"github.com/morgue/morgue/internal/platform/clock"
)

type mockCaseRepo struct {
	byID map[uuid.UUID]*Case
}

func newMockCaseRepo() *mockCaseRepo {
	return &mockCaseRepo{byID: make(map[uuid.UUID]*Case)}
}

func (m *mockCaseRepo) Create(_ context.Context, c *Case) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	cp := *c
	m.byID[c.ID] = &cp
	return nil
}

func (m *mockCaseRepo) GetByID(_ context.Context, id uuid.UUID) (*Case, error) {
	c, ok := m.byID[id]
	if !ok || c.Deleted {
		return nil, ErrCaseNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockCaseRepo) Update(_ context.Context, c *Case) error {
	stored, ok := m.byID[c.ID]
	if !ok || stored.Deleted {
		return ErrCaseNotFound
	}
	cp := *c
	m.byID[c.ID] = &cp
	return nil
}

func (m *mockCaseRepo) SoftDelete(_ context.Context, id uuid.UUID) error {
	c, ok := m.byID[id]
	if !ok || c.Deleted {
		return ErrCaseNotFound
	}
	c.Deleted = true
	return nil
}

func (m *mockCaseRepo) List(_ context.Context, _ map[string]string, _, _ int) ([]*Case, int, error) {
	var out []*Case
	for _, c := range m.byID {
		if c.Deleted {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, len(out), nil
}

type mockTicketRepo struct {
	byID map[uuid.UUID]*CorrectionTicket
	now  func() time.Time
}

func newMockTicketRepo() *mockTicketRepo {
	return &mockTicketRepo{byID: make(map[uuid.UUID]*CorrectionTicket), now: func() time.Time { return time.Now().UTC() }}
}

func (m *mockTicketRepo) Create(_ context.Context, t *CorrectionTicket) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = m.now()
	}
	cp := *t
	m.byID[t.ID] = &cp
	return nil
}

func (m *mockTicketRepo) GetByID(_ context.Context, id uuid.UUID) (*CorrectionTicket, error) {
	t, ok := m.byID[id]
	if !ok {
		return nil, ErrTicketNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockTicketRepo) Update(_ context.Context, t *CorrectionTicket) error {
	if _, ok := m.byID[t.ID]; !ok {
		return ErrTicketNotFound
	}
	cp := *t
	m.byID[t.ID] = &cp
	return nil
}

func (m *mockTicketRepo) ListByCase(_ context.Context, caseID uuid.UUID) ([]*CorrectionTicket, error) {
	var out []*CorrectionTicket
	for _, t := range m.byID {
		if t.CaseID == caseID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockTicketRepo) OpenOlderThan(_ context.Context, cutoff time.Time) ([]*CorrectionTicket, error) {
	var out []*CorrectionTicket
	for _, t := range m.byID {
		if t.Status == TicketOpen && !t.CreatedAt.After(cutoff) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockTrays struct {
	assigned map[uuid.UUID]uuid.UUID // tray -> case
	failNext error
}

func newMockTrays() *mockTrays {
	return &mockTrays{assigned: make(map[uuid.UUID]uuid.UUID)}
}

func (m *mockTrays) AssignTray(_ context.Context, trayID, caseID uuid.UUID, _ string) error {
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	if _, taken := m.assigned[trayID]; taken {
		return errors.New("tray is not available")
	}
	m.assigned[trayID] = caseID
	return nil
}

func (m *mockTrays) ReleaseTray(_ context.Context, trayID uuid.UUID, _ string) error {
	if _, ok := m.assigned[trayID]; !ok {
		return errors.New("tray is not occupied")
	}
	delete(m.assigned, trayID)
	return nil
}

type mockDebts struct{ blocked bool }

func (m *mockDebts) BlocksRelease(_ context.Context, _ uuid.UUID) (bool, error) {
	return m.blocked, nil
}

type mockLegal struct {
	fileID     uuid.UUID
	authorized bool
	opened     int
}

func (m *mockLegal) Open(_ context.Context, _ uuid.UUID) (uuid.UUID, error) {
	m.opened++
	if m.fileID == uuid.Nil {
		m.fileID = uuid.New()
	}
	return m.fileID, nil
}

func (m *mockLegal) Authorized(_ context.Context, _ uuid.UUID) (uuid.UUID, bool, error) {
	return m.fileID, m.authorized, nil
}

type mockRetrieval struct {
	authzID uuid.UUID
	signed  bool
}

func (m *mockRetrieval) FullySigned(_ context.Context, _ uuid.UUID) (uuid.UUID, bool, error) {
	return m.authzID, m.signed, nil
}

type mockExits struct {
	created []*exitlog.ExitRecord
}

func (m *mockExits) CreateRecord(_ context.Context, e *exitlog.ExitRecord, entryAt *time.Time, actorID string) (*exitlog.ExitRecord, error) {
	for _, existing := range m.created {
		if existing.CaseID == e.CaseID {
			return nil, exitlog.ErrExitExists
		}
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if entryAt != nil {
		e.StorageHours = exitlog.ComputeStorageHours(*entryAt, time.Now().UTC())
	}
	e.RecordedBy = actorID
	cp := *e
	m.created = append(m.created, &cp)
	return &cp, nil
}

type fixture struct {
	svc     *Service
	cases   *mockCaseRepo
	tickets *mockTicketRepo
	trays   *mockTrays
	debts   *mockDebts
	legal   *mockLegal
	retr    *mockRetrieval
	exits   *mockExits
}

func newFixture() *fixture {
	f := &fixture{
		cases:   newMockCaseRepo(),
		tickets: newMockTicketRepo(),
		trays:   newMockTrays(),
		debts:   &mockDebts{},
		legal:   &mockLegal{},
		retr:    &mockRetrieval{authzID: uuid.New()},
		exits:   &mockExits{},
	}
	f.svc = NewService(f.cases, f.tickets, f.trays, f.debts, f.legal, f.retr, f.exits, nil)
	return f
}

func declare(t *testing.T, f *fixture, kind string) *Case {
	t.Helper()
	c, err := f.svc.DeclareCase(context.Background(), &Case{
		RecordNumber: "HC-2025-001",
		DocumentID:   "DNI-555",
		FullName:     "Juan Lopez",
		Service:      "internal-medicine",
		PhysicianID:  "md-1",
		Kind:         kind,
	}, "clin-1")
	if err != nil {
		t.Fatalf("DeclareCase: %v", err)
	}
	return c
}

// walk advances the case to the given status through the normal path.
func walk(t *testing.T, f *fixture, c *Case, target string) *Case {
	t.Helper()
	ctx := context.Background()
	steps := []struct {
		status string
		op     func() (*Case, error)
	}{
		{StatusPendingPickup, func() (*Case, error) { return f.svc.RequestPickup(ctx, c.ID, "clin-1") }},
		{StatusInTransit, func() (*Case, error) { return f.svc.StartTransit(ctx, c.ID, "sec-1") }},
		{StatusPendingVerification, func() (*Case, error) { return f.svc.ArriveForVerification(ctx, c.ID, "sec-1") }},
		{StatusPendingTray, func() (*Case, error) { return f.svc.VerifyArrival(ctx, c.ID, true, "", "mort-1") }},
		{StatusInStorage, func() (*Case, error) { return f.svc.AdvanceToStorage(ctx, c.ID, uuid.New(), "mort-1") }},
		{StatusPendingRelease, func() (*Case, error) { return f.svc.AuthorizeRelease(ctx, c.ID, "mort-1") }},
	}
	cur := c
	for _, step := range steps {
		var err error
		cur, err = step.op()
		if err != nil {
			t.Fatalf("advance to %s: %v", step.status, err)
		}
		if cur.Status != step.status {
			t.Fatalf("status = %q, want %q", cur.Status, step.status)
		}
		if cur.Status == target {
			return cur
		}
	}
	return cur
}

func familyExit() *exitlog.ExitRecord {
	return &exitlog.ExitRecord{
		ResponsibleName:     "Maria Lopez",
		ResponsibleDocument: "DNI-777",
		Destination:         "Municipal cemetery",
	}
}

func TestDeclareCase(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	c := declare(t, f, KindInternal)
	if c.Status != StatusDeclared {
		t.Errorf("status = %q, want declared", c.Status)
	}
	if c.LegalFileID != nil {
		t.Error("internal case got a legal file")
	}

	ext := declare(t, f, KindExternal)
	if ext.LegalFileID == nil {
		t.Error("external case has no legal file")
	}
	if f.legal.opened != 1 {
		t.Errorf("legal files opened = %d, want 1", f.legal.opened)
	}

	if _, err := f.svc.DeclareCase(ctx, &Case{FullName: "x", PhysicianID: "md-1", Kind: "unknown"}, "clin-1"); !errors.Is(err, ErrInvalidKind) {
		t.Errorf("bad kind: got %v, want ErrInvalidKind", err)
	}
	if _, err := f.svc.DeclareCase(ctx, &Case{PhysicianID: "md-1", Kind: KindInternal}, "clin-1"); !errors.Is(err, ErrMissingFullName) {
		t.Errorf("missing name: got %v, want ErrMissingFullName", err)
	}
	if _, err := f.svc.DeclareCase(ctx, &Case{FullName: "x", Kind: KindInternal}, "clin-1"); !errors.Is(err, ErrMissingPhysician) {
		t.Errorf("missing physician: got %v, want ErrMissingPhysician", err)
	}
}

func TestTransitionGuards(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := declare(t, f, KindInternal)

	// Skipping ahead is refused.
	if _, err := f.svc.StartTransit(ctx, c.ID, "sec-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("declared -> in-transit: got %v, want ErrInvalidTransition", err)
	}
	if _, err := f.svc.AuthorizeRelease(ctx, c.ID, "mort-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("declared -> pending-release: got %v, want ErrInvalidTransition", err)
	}

	c = walk(t, f, c, StatusPendingVerification)

	// Going backwards is refused.
	if _, err := f.svc.RequestPickup(ctx, c.ID, "clin-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("backwards move: got %v, want ErrInvalidTransition", err)
	}
}

func TestVerifyArrivalRejection(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := declare(t, f, KindInternal)
	c = walk(t, f, c, StatusPendingVerification)

	// Rejection needs a discrepancy description.
	if _, err := f.svc.VerifyArrival(ctx, c.ID, false, " ", "mort-1"); !errors.Is(err, ErrMissingDiscrepancy) {
		t.Errorf("blank discrepancy: got %v, want ErrMissingDiscrepancy", err)
	}

	c, err := f.svc.VerifyArrival(ctx, c.ID, false, "wristband does not match record", "mort-1")
	if err != nil {
		t.Fatalf("VerifyArrival: %v", err)
	}
	if c.Status != StatusVerificationRejected {
		t.Errorf("status = %q, want verification-rejected", c.Status)
	}

	tickets, err := f.svc.CaseTickets(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(tickets) != 1 {
		t.Fatalf("got %d tickets, want 1", len(tickets))
	}
	if tickets[0].Unit != "internal-medicine" {
		t.Errorf("ticket unit = %q, want the originating service", tickets[0].Unit)
	}
	if tickets[0].Status != TicketOpen {
		t.Errorf("ticket status = %q, want open", tickets[0].Status)
	}

	// Resubmission goes back to pending-verification and resolves
	// the open tickets.
	c, err = f.svc.ResubmitVerification(ctx, c.ID, "clin-1")
	if err != nil {
		t.Fatalf("ResubmitVerification: %v", err)
	}
	if c.Status != StatusPendingVerification {
		t.Errorf("status = %q, want pending-verification", c.Status)
	}
	tickets, _ = f.svc.CaseTickets(ctx, c.ID)
	if tickets[0].Status != TicketResolved {
		t.Errorf("ticket status = %q, want resolved", tickets[0].Status)
	}
}

func TestRequestCorrection(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := declare(t, f, KindInternal)
	c = walk(t, f, c, StatusPendingVerification)

	// Only valid from verification-rejected.
	if _, err := f.svc.RequestCorrection(ctx, c.ID, "missing bracelet", "mort-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("correction from pending-verification: got %v, want ErrInvalidTransition", err)
	}

	if _, err := f.svc.VerifyArrival(ctx, c.ID, false, "name mismatch", "mort-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.RequestCorrection(ctx, c.ID, "", "mort-1"); !errors.Is(err, ErrMissingDetails) {
		t.Errorf("blank details: got %v, want ErrMissingDetails", err)
	}
	tk, err := f.svc.RequestCorrection(ctx, c.ID, "also fix the record number", "mort-1")
	if err != nil {
		t.Fatalf("RequestCorrection: %v", err)
	}
	if tk.Status != TicketOpen {
		t.Errorf("ticket status = %q, want open", tk.Status)
	}
}

func TestEscalatedTickets(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := declare(t, f, KindInternal)
	c = walk(t, f, c, StatusPendingVerification)
	if _, err := f.svc.VerifyArrival(ctx, c.ID, false, "mismatch", "mort-1"); err != nil {
		t.Fatal(err)
	}

	// Fresh ticket: not escalated yet.
	esc, err := f.svc.EscalatedTickets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(esc) != 0 {
		t.Errorf("fresh ticket escalated: %d", len(esc))
	}

	// Three hours later it is.
	f.svc.SetClock(clock.Fixed(time.Now().UTC().Add(3 * time.Hour)))
	esc, err = f.svc.EscalatedTickets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(esc) != 1 {
		t.Errorf("got %d escalated tickets, want 1", len(esc))
	}
}

func TestAdvanceToStorage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := declare(t, f, KindInternal)
	c = walk(t, f, c, StatusPendingTray)

	trayID := uuid.New()
	c, err := f.svc.AdvanceToStorage(ctx, c.ID, trayID, "mort-1")
	if err != nil {
		t.Fatalf("AdvanceToStorage: %v", err)
	}
	if c.Status != StatusInStorage {
		t.Errorf("status = %q, want in-storage", c.Status)
	}
	if c.TrayID == nil || *c.TrayID != trayID {
		t.Errorf("tray_id = %v, want %s", c.TrayID, trayID)
	}
	if c.StoredAt == nil {
		t.Error("stored_at not set")
	}

	// A failed tray assignment leaves the case in pending-tray.
	c2 := declare(t, f, KindInternal)
	c2 = walk(t, f, c2, StatusPendingTray)
	f.trays.failNext = errors.New("tray is not available")
	if _, err := f.svc.AdvanceToStorage(ctx, c2.ID, uuid.New(), "mort-1"); err == nil {
		t.Fatal("assignment failure not propagated")
	}
	got, _ := f.svc.GetCase(ctx, c2.ID)
	if got.Status != StatusPendingTray {
		t.Errorf("status after failed assign = %q, want pending-tray", got.Status)
	}
	if got.TrayID != nil {
		t.Error("tray_id set after failed assign")
	}
}

func TestAuthorizeReleaseGates(t *testing.T) {
	ctx := context.Background()

	// Debts block every kind.
	f := newFixture()
	f.retr.signed = true
	c := walk(t, f, declare(t, f, KindInternal), StatusInStorage)
	f.debts.blocked = true
	if _, err := f.svc.AuthorizeRelease(ctx, c.ID, "mort-1"); !errors.Is(err, ErrDebtsOutstanding) {
		t.Errorf("debts: got %v, want ErrDebtsOutstanding", err)
	}
	f.debts.blocked = false

	// Internal case needs the retrieval authorization fully signed.
	f.retr.signed = false
	if _, err := f.svc.AuthorizeRelease(ctx, c.ID, "mort-1"); !errors.Is(err, ErrRetrievalIncomplete) {
		t.Errorf("unsigned retrieval: got %v, want ErrRetrievalIncomplete", err)
	}
	f.retr.signed = true
	c, err := f.svc.AuthorizeRelease(ctx, c.ID, "mort-1")
	if err != nil {
		t.Fatalf("AuthorizeRelease: %v", err)
	}
	if c.Status != StatusPendingRelease {
		t.Errorf("status = %q, want pending-release", c.Status)
	}
	if c.RetrievalAuthorizationID == nil {
		t.Error("retrieval authorization not linked")
	}

	// External case needs the legal file authorized.
	f2 := newFixture()
	ext := walk(t, f2, declare(t, f2, KindExternal), StatusInStorage)
	if _, err := f2.svc.AuthorizeRelease(ctx, ext.ID, "mort-1"); !errors.Is(err, ErrLegalAuthorizationIncomplete) {
		t.Errorf("unauthorized file: got %v, want ErrLegalAuthorizationIncomplete", err)
	}
	f2.legal.authorized = true
	ext, err = f2.svc.AuthorizeRelease(ctx, ext.ID, "mort-1")
	if err != nil {
		t.Fatalf("AuthorizeRelease external: %v", err)
	}
	if ext.LegalFileID == nil {
		t.Error("legal file not linked")
	}
}

func TestRecordExit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.retr.signed = true
	c := walk(t, f, declare(t, f, KindInternal), StatusPendingRelease)
	trayID := *c.TrayID

	c, err := f.svc.RecordExit(ctx, c.ID, familyExit(), "sec-1")
	if err != nil {
		t.Fatalf("RecordExit: %v", err)
	}
	if c.Status != StatusReleased {
		t.Errorf("status = %q, want released", c.Status)
	}
	if c.ExitRecordID == nil {
		t.Error("exit record not linked")
	}
	if _, occupied := f.trays.assigned[trayID]; occupied {
		t.Error("tray not released on exit")
	}
	if len(f.exits.created) != 1 {
		t.Fatalf("got %d exit records, want 1", len(f.exits.created))
	}
	rec := f.exits.created[0]
	if rec.RetrieverKind != exitlog.RetrieverFamily {
		t.Errorf("retriever kind = %q, want family", rec.RetrieverKind)
	}
	if rec.RetrievalAuthorizationID == nil || rec.LegalFileID != nil {
		t.Error("exit references do not match an internal case")
	}

	// released is terminal.
	if _, err := f.svc.RecordExit(ctx, c.ID, familyExit(), "sec-1"); !errors.Is(err, ErrNotPendingRelease) {
		t.Errorf("double exit: got %v, want ErrNotPendingRelease", err)
	}
}

func TestRecordExitRechecksGates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.retr.signed = true
	c := walk(t, f, declare(t, f, KindInternal), StatusPendingRelease)

	// A debt registered after authorization still blocks the exit.
	f.debts.blocked = true
	if _, err := f.svc.RecordExit(ctx, c.ID, familyExit(), "sec-1"); !errors.Is(err, ErrDebtsOutstanding) {
		t.Errorf("late debt: got %v, want ErrDebtsOutstanding", err)
	}
	got, _ := f.svc.GetCase(ctx, c.ID)
	if got.Status != StatusPendingRelease {
		t.Errorf("status = %q, want pending-release after blocked exit", got.Status)
	}
	if len(f.exits.created) != 0 {
		t.Error("exit record written despite blocked gates")
	}

	f.debts.blocked = false
	if _, err := f.svc.RecordExit(ctx, c.ID, familyExit(), "sec-1"); err != nil {
		t.Fatalf("RecordExit after unblock: %v", err)
	}
}

func TestRecordExitExternal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.legal.authorized = true
	c := walk(t, f, declare(t, f, KindExternal), StatusPendingRelease)

	c, err := f.svc.RecordExit(ctx, c.ID, familyExit(), "sec-1")
	if err != nil {
		t.Fatalf("RecordExit: %v", err)
	}
	rec := f.exits.created[0]
	if rec.RetrieverKind != exitlog.RetrieverAuthority {
		t.Errorf("retriever kind = %q, want authority", rec.RetrieverKind)
	}
	if rec.LegalFileID == nil || rec.RetrievalAuthorizationID != nil {
		t.Error("exit references do not match an external case")
	}
	_ = c
}

func TestSoftDelete(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := declare(t, f, KindInternal)

	if err := f.svc.DeleteCase(ctx, c.ID); err != nil {
		t.Fatalf("DeleteCase: %v", err)
	}
	if _, err := f.svc.GetCase(ctx, c.ID); !errors.Is(err, ErrCaseNotFound) {
		t.Errorf("deleted case still readable: %v", err)
	}
	items, total, err := f.svc.ListCases(ctx, nil, 20, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 || len(items) != 0 {
		t.Errorf("deleted case still listed: total=%d", total)
	}
	if err := f.svc.DeleteCase(ctx, c.ID); !errors.Is(err, ErrCaseNotFound) {
		t.Errorf("double delete: got %v, want ErrCaseNotFound", err)
	}
}

func TestCanTransitionTable(t *testing.T) {
	if !CanTransition(StatusDeclared, StatusPendingPickup) {
		t.Error("declared -> pending-pickup refused")
	}
	if CanTransition(StatusDeclared, StatusInStorage) {
		t.Error("declared -> in-storage allowed")
	}
	if CanTransition(StatusReleased, StatusPendingRelease) {
		t.Error("released is not terminal")
	}
	if !CanTransition(StatusVerificationRejected, StatusPendingVerification) {
		t.Error("rejection loop refused")
	}
}
