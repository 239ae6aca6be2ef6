package casefile

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/morgue/morgue/internal/domain/exitlog"
	"github.com/morgue/morgue/internal/platform/clock"
	"github.com/morgue/morgue/internal/platform/metrics"
)

// TrayAssigner is the slice of the tray service the lifecycle needs.
type TrayAssigner interface {
	AssignTray(ctx context.Context, trayID, caseID uuid.UUID, actorID string) error
	ReleaseTray(ctx context.Context, trayID uuid.UUID, actorID string) error
}

// DebtGate answers whether outstanding debts block a release.
type DebtGate interface {
	BlocksRelease(ctx context.Context, caseID uuid.UUID) (bool, error)
}

// LegalFileGate opens the legal file for external cases and reports
// its authorization state.
type LegalFileGate interface {
	Open(ctx context.Context, caseID uuid.UUID) (uuid.UUID, error)
	Authorized(ctx context.Context, caseID uuid.UUID) (uuid.UUID, bool, error)
}

// RetrievalGate reports whether the case's retrieval authorization is
// fully signed.
type RetrievalGate interface {
	FullySigned(ctx context.Context, caseID uuid.UUID) (uuid.UUID, bool, error)
}

// ExitWriter persists the exit record.
type ExitWriter interface {
	CreateRecord(ctx context.Context, e *exitlog.ExitRecord, entryAt *time.Time, actorID string) (*exitlog.ExitRecord, error)
}

type Service struct {
	cases   CaseRepository
	tickets TicketRepository
	trays   TrayAssigner
	debts   DebtGate
	legal   LegalFileGate
	retr    RetrievalGate
	exits   ExitWriter
	metrics *metrics.Metrics
	clk     clock.Clock
}

func NewService(cases CaseRepository, tickets TicketRepository, trays TrayAssigner,
	debts DebtGate, legal LegalFileGate, retr RetrievalGate, exits ExitWriter,
	m *metrics.Metrics) *Service {
	return &Service{
		cases:   cases,
		tickets: tickets,
		trays:   trays,
		debts:   debts,
		legal:   legal,
		retr:    retr,
		exits:   exits,
		metrics: m,
		clk:     clock.System,
	}
}

// SetClock overrides the time source, for tests.
func (s *Service) SetClock(clk clock.Clock) { s.clk = clk }

// DeclareCase opens a new case in declared. External cases get their
// legal file opened immediately so document collection can start.
func (s *Service) DeclareCase(ctx context.Context, c *Case, actorID string) (*Case, error) {
	if strings.TrimSpace(c.FullName) == "" {
		return nil, ErrMissingFullName
	}
	if strings.TrimSpace(c.PhysicianID) == "" {
		return nil, ErrMissingPhysician
	}
	if c.Kind != KindInternal && c.Kind != KindExternal {
		return nil, ErrInvalidKind
	}
	now := s.clk.Now().UTC()
	if c.DeclaredAt.IsZero() {
		c.DeclaredAt = now
	}
	c.Status = StatusDeclared
	if err := s.cases.Create(ctx, c); err != nil {
		return nil, err
	}
	if c.Kind == KindExternal {
		fileID, err := s.legal.Open(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		c.LegalFileID = &fileID
		if err := s.cases.Update(ctx, c); err != nil {
			return nil, err
		}
	}
	if s.metrics != nil {
		s.metrics.CasesDeclared.Inc()
	}
	log.Info().Str("case_id", c.ID.String()).Str("kind", c.Kind).Msg("case declared")
	return c, nil
}

func (s *Service) GetCase(ctx context.Context, id uuid.UUID) (*Case, error) {
	return s.cases.GetByID(ctx, id)
}

func (s *Service) ListCases(ctx context.Context, params map[string]string, limit, offset int) ([]*Case, int, error) {
	return s.cases.List(ctx, params, limit, offset)
}

func (s *Service) DeleteCase(ctx context.Context, id uuid.UUID) error {
	return s.cases.SoftDelete(ctx, id)
}

// transition moves the case if the map allows it.
func (s *Service) transition(ctx context.Context, id uuid.UUID, to string) (*Case, error) {
	c, err := s.cases.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(c.Status, to) {
		return nil, ErrInvalidTransition
	}
	c.Status = to
	if err := s.cases.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) RequestPickup(ctx context.Context, id uuid.UUID, actorID string) (*Case, error) {
	return s.transition(ctx, id, StatusPendingPickup)
}

func (s *Service) StartTransit(ctx context.Context, id uuid.UUID, actorID string) (*Case, error) {
	return s.transition(ctx, id, StatusInTransit)
}

func (s *Service) ArriveForVerification(ctx context.Context, id uuid.UUID, actorID string) (*Case, error) {
	return s.transition(ctx, id, StatusPendingVerification)
}

// VerifyArrival confirms identity and paperwork at the morgue door. A
// failed check rejects the case and opens a correction ticket against
// the originating clinical unit.
func (s *Service) VerifyArrival(ctx context.Context, id uuid.UUID, ok bool, discrepancy, actorID string) (*Case, error) {
	if !ok && strings.TrimSpace(discrepancy) == "" {
		return nil, ErrMissingDiscrepancy
	}
	c, err := s.cases.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusPendingVerification {
		return nil, ErrInvalidTransition
	}
	if ok {
		c.Status = StatusPendingTray
		if err := s.cases.Update(ctx, c); err != nil {
			return nil, err
		}
		return c, nil
	}
	c.Status = StatusVerificationRejected
	if err := s.cases.Update(ctx, c); err != nil {
		return nil, err
	}
	t := &CorrectionTicket{
		CaseID:    c.ID,
		Unit:      c.Service,
		Details:   discrepancy,
		Status:    TicketOpen,
		CreatedBy: actorID,
	}
	if err := s.tickets.Create(ctx, t); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.CorrectionTicketsOpened.Inc()
	}
	log.Warn().Str("case_id", c.ID.String()).Str("unit", c.Service).Msg("arrival verification rejected")
	return c, nil
}

// RequestCorrection opens an additional ticket while the case sits in
// verification-rejected.
func (s *Service) RequestCorrection(ctx context.Context, id uuid.UUID, details, actorID string) (*CorrectionTicket, error) {
	if strings.TrimSpace(details) == "" {
		return nil, ErrMissingDetails
	}
	c, err := s.cases.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusVerificationRejected {
		return nil, ErrInvalidTransition
	}
	t := &CorrectionTicket{
		CaseID:    c.ID,
		Unit:      c.Service,
		Details:   details,
		Status:    TicketOpen,
		CreatedBy: actorID,
	}
	if err := s.tickets.Create(ctx, t); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.CorrectionTicketsOpened.Inc()
	}
	return t, nil
}

// ResubmitVerification sends a corrected case back through the door
// check and resolves its open tickets.
func (s *Service) ResubmitVerification(ctx context.Context, id uuid.UUID, actorID string) (*Case, error) {
	c, err := s.transition(ctx, id, StatusPendingVerification)
	if err != nil {
		return nil, err
	}
	tickets, err := s.tickets.ListByCase(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.clk.Now().UTC()
	for _, t := range tickets {
		if t.Status != TicketOpen {
			continue
		}
		t.Status = TicketResolved
		t.ResolvedBy = &actorID
		t.ResolvedAt = &now
		if err := s.tickets.Update(ctx, t); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// AdvanceToStorage assigns the tray and moves the case in. The tray
// side enforces that only one case wins an available tray.
func (s *Service) AdvanceToStorage(ctx context.Context, id, trayID uuid.UUID, actorID string) (*Case, error) {
	c, err := s.cases.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusPendingTray {
		return nil, ErrInvalidTransition
	}
	if err := s.trays.AssignTray(ctx, trayID, c.ID, actorID); err != nil {
		return nil, err
	}
	now := s.clk.Now().UTC()
	c.Status = StatusInStorage
	c.TrayID = &trayID
	c.StoredAt = &now
	if err := s.cases.Update(ctx, c); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.TraysOccupied.Inc()
	}
	return c, nil
}

// checkReleaseGates enforces the debt and authorization preconditions.
// Used by AuthorizeRelease and re-run by RecordExit.
func (s *Service) checkReleaseGates(ctx context.Context, c *Case) error {
	blocked, err := s.debts.BlocksRelease(ctx, c.ID)
	if err != nil {
		return err
	}
	if blocked {
		if s.metrics != nil {
			s.metrics.ReleaseBlocked.WithLabelValues("debts").Inc()
		}
		return ErrDebtsOutstanding
	}
	switch c.Kind {
	case KindExternal:
		fileID, ok, err := s.legal.Authorized(ctx, c.ID)
		if err != nil {
			return err
		}
		if !ok {
			if s.metrics != nil {
				s.metrics.ReleaseBlocked.WithLabelValues("legal_file").Inc()
			}
			return ErrLegalAuthorizationIncomplete
		}
		c.LegalFileID = &fileID
	case KindInternal:
		authzID, ok, err := s.retr.FullySigned(ctx, c.ID)
		if err != nil {
			return err
		}
		if !ok {
			if s.metrics != nil {
				s.metrics.ReleaseBlocked.WithLabelValues("retrieval").Inc()
			}
			return ErrRetrievalIncomplete
		}
		c.RetrievalAuthorizationID = &authzID
	}
	return nil
}

// AuthorizeRelease clears a stored case for handover once every gate
// passes.
func (s *Service) AuthorizeRelease(ctx context.Context, id uuid.UUID, actorID string) (*Case, error) {
	c, err := s.cases.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusInStorage {
		return nil, ErrInvalidTransition
	}
	if err := s.checkReleaseGates(ctx, c); err != nil {
		return nil, err
	}
	c.Status = StatusPendingRelease
	if err := s.cases.Update(ctx, c); err != nil {
		return nil, err
	}
	log.Info().Str("case_id", c.ID.String()).Msg("release authorized")
	return c, nil
}

// RecordExit closes the case: gates are re-checked at the moment of
// handover, the exit reference is validated against the case kind, the
// tray is freed and the exit record written.
func (s *Service) RecordExit(ctx context.Context, id uuid.UUID, exit *exitlog.ExitRecord, actorID string) (*Case, error) {
	c, err := s.cases.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusPendingRelease {
		return nil, ErrNotPendingRelease
	}
	if err := s.checkReleaseGates(ctx, c); err != nil {
		return nil, err
	}

	exit.CaseID = c.ID
	switch c.Kind {
	case KindInternal:
		exit.RetrieverKind = exitlog.RetrieverFamily
		exit.RetrievalAuthorizationID = c.RetrievalAuthorizationID
		exit.LegalFileID = nil
	case KindExternal:
		exit.RetrieverKind = exitlog.RetrieverAuthority
		exit.LegalFileID = c.LegalFileID
		exit.RetrievalAuthorizationID = nil
	}
	if err := exit.ValidateReferenceConsistency(); err != nil {
		return nil, err
	}

	created, err := s.exits.CreateRecord(ctx, exit, c.StoredAt, actorID)
	if err != nil {
		return nil, err
	}

	if c.TrayID != nil {
		if err := s.trays.ReleaseTray(ctx, *c.TrayID, actorID); err != nil {
			return nil, err
		}
		if s.metrics != nil {
			s.metrics.TraysOccupied.Dec()
		}
	}

	c.Status = StatusReleased
	c.ExitRecordID = &created.ID
	if err := s.cases.Update(ctx, c); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.CasesReleased.Inc()
	}
	log.Info().Str("case_id", c.ID.String()).Str("exit_id", created.ID.String()).Msg("case released")
	return c, nil
}

func (s *Service) CaseTickets(ctx context.Context, caseID uuid.UUID) ([]*CorrectionTicket, error) {
	return s.tickets.ListByCase(ctx, caseID)
}

// EscalatedTickets lists open correction tickets older than the
// escalation window.
func (s *Service) EscalatedTickets(ctx context.Context) ([]*CorrectionTicket, error) {
	cutoff := s.clk.Now().UTC().Add(-TicketEscalation)
	return s.tickets.OpenOlderThan(ctx, cutoff)
}
