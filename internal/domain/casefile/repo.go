package casefile

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type CaseRepository interface {
	Create(ctx context.Context, c *Case) error
	GetByID(ctx context.Context, id uuid.UUID) (*Case, error)
	Update(ctx context.Context, c *Case) error
	// SoftDelete flags the row; reads and lists skip deleted cases.
	SoftDelete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params map[string]string, limit, offset int) ([]*Case, int, error)
}

type TicketRepository interface {
	Create(ctx context.Context, t *CorrectionTicket) error
	GetByID(ctx context.Context, id uuid.UUID) (*CorrectionTicket, error)
	Update(ctx context.Context, t *CorrectionTicket) error
	ListByCase(ctx context.Context, caseID uuid.UUID) ([]*CorrectionTicket, error)
	// OpenOlderThan lists open tickets created before the cutoff, for
	// the escalation report.
	OpenOlderThan(ctx context.Context, cutoff time.Time) ([]*CorrectionTicket, error)
}
