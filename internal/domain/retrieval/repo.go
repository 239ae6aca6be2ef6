package retrieval

import (
	"context"

	"github.com/google/uuid"
)

type AuthorizationRepository interface {
	Create(ctx context.Context, a *Authorization) error
	GetByID(ctx context.Context, id uuid.UUID) (*Authorization, error)
	GetByCase(ctx context.Context, caseID uuid.UUID) (*Authorization, error)
	Update(ctx context.Context, a *Authorization) error
	List(ctx context.Context, params map[string]string, limit, offset int) ([]*Authorization, int, error)
}
