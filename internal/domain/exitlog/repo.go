package exitlog

import (
	"context"

	"github.com/google/uuid"
)

type ExitRecordRepository interface {
	Create(ctx context.Context, e *ExitRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*ExitRecord, error)
	GetByCase(ctx context.Context, caseID uuid.UUID) (*ExitRecord, error)
	// SetIncident writes the incident flag and description.
	SetIncident(ctx context.Context, id uuid.UUID, description string) error
	List(ctx context.Context, params map[string]string, limit, offset int) ([]*ExitRecord, int, error)
}
