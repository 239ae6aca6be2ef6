package tray

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morgue/morgue/internal/platform/db"
	"github.com/morgue/morgue/internal/platform/query"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type trayRepoPG struct{ pool *pgxpool.Pool }

func NewTrayRepoPG(pool *pgxpool.Pool) TrayRepository {
	return &trayRepoPG{pool: pool}
}

func (r *trayRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const trayCols = `id, code, status, case_id, assigned_at, assigned_by,
	released_at, released_by, maintenance_reason, created_at, updated_at`

func (r *trayRepoPG) scan(row pgx.Row) (*Tray, error) {
	var t Tray
	err := row.Scan(&t.ID, &t.Code, &t.Status, &t.CaseID,
		&t.AssignedAt, &t.AssignedBy, &t.ReleasedAt, &t.ReleasedBy,
		&t.MaintenanceReason, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTrayNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *trayRepoPG) Create(ctx context.Context, t *Tray) error {
	t.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO storage_tray (id, code, status)
		VALUES ($1, $2, $3)`,
		t.ID, t.Code, t.Status)
	return err
}

func (r *trayRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Tray, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+trayCols+` FROM storage_tray WHERE id = $1`, id))
}

func (r *trayRepoPG) GetByCode(ctx context.Context, code string) (*Tray, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+trayCols+` FROM storage_tray WHERE code = $1`, code))
}

func (r *trayRepoPG) GetByCase(ctx context.Context, caseID uuid.UUID) (*Tray, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+trayCols+` FROM storage_tray WHERE case_id = $1`, caseID))
}

func (r *trayRepoPG) Update(ctx context.Context, t *Tray) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE storage_tray SET status=$2, maintenance_reason=$3, updated_at=NOW()
		WHERE id = $1`,
		t.ID, t.Status, t.MaintenanceReason)
	return err
}

var traySearchParams = map[string]query.ParamConfig{
	"status": {Type: query.ParamToken, Column: "status"},
	"code":   {Type: query.ParamString, Column: "code"},
}

func (r *trayRepoPG) List(ctx context.Context, params map[string]string, limit, offset int) ([]*Tray, int, error) {
	qb := query.NewBuilder("storage_tray", trayCols)
	qb.ApplyAll(params, traySearchParams)
	qb.OrderBy("code ASC")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Tray
	for rows.Next() {
		t, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, nil
}

// Assign flips an available tray to occupied in a single conditional
// UPDATE. Rows-affected zero means the tray was taken or unavailable.
func (r *trayRepoPG) Assign(ctx context.Context, trayID, caseID uuid.UUID, actorID string, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE storage_tray
		SET status=$3, case_id=$2, assigned_at=$4, assigned_by=$5,
			released_at=NULL, released_by=NULL, updated_at=NOW()
		WHERE id = $1 AND status = $6`,
		trayID, caseID, StatusOccupied, at, actorID, StatusAvailable)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTrayNotAvailable
	}
	return nil
}

func (r *trayRepoPG) Release(ctx context.Context, trayID uuid.UUID, actorID string, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE storage_tray
		SET status=$2, case_id=NULL, released_at=$3, released_by=$4, updated_at=NOW()
		WHERE id = $1 AND status = $5`,
		trayID, StatusAvailable, at, actorID, StatusOccupied)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTrayNotOccupied
	}
	return nil
}

func (r *trayRepoPG) OccupiedSince(ctx context.Context, cutoff time.Time) ([]*Tray, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+trayCols+` FROM storage_tray
		WHERE status = $1 AND assigned_at <= $2
		ORDER BY assigned_at ASC`, StatusOccupied, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Tray
	for rows.Next() {
		t, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, nil
}

func (r *trayRepoPG) CountOccupied(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM storage_tray WHERE status = $1`, StatusOccupied).Scan(&n)
	return n, err
}
