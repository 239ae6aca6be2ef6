package tray

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TrayRepository interface {
	Create(ctx context.Context, t *Tray) error
	GetByID(ctx context.Context, id uuid.UUID) (*Tray, error)
	GetByCode(ctx context.Context, code string) (*Tray, error)
	GetByCase(ctx context.Context, caseID uuid.UUID) (*Tray, error)
	Update(ctx context.Context, t *Tray) error
	List(ctx context.Context, params map[string]string, limit, offset int) ([]*Tray, int, error)
	// Assign marks the tray occupied by caseID only if it is currently
	// available. Returns ErrTrayNotAvailable when the conditional update
	// matches no row, so concurrent assigns cannot both succeed.
	Assign(ctx context.Context, trayID, caseID uuid.UUID, actorID string, at time.Time) error
	// Release clears the occupying case only if the tray is occupied.
	Release(ctx context.Context, trayID uuid.UUID, actorID string, at time.Time) error
	OccupiedSince(ctx context.Context, cutoff time.Time) ([]*Tray, error)
	CountOccupied(ctx context.Context) (int, error)
}
