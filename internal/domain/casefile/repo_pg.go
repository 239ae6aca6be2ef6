package casefile

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

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

type caseRepoPG struct{ pool *pgxpool.Pool }

func NewCaseRepoPG(pool *pgxpool.Pool) CaseRepository {
	return &caseRepoPG{pool: pool}
}

const caseCols = `id, record_number, document_id, full_name, service, physician_id,
	declared_at, kind, status, tray_id, legal_file_id, retrieval_authorization_id,
	exit_record_id, stored_at, deleted, created_at, updated_at`

func (r *caseRepoPG) scan(row pgx.Row) (*Case, error) {
	var c Case
	err := row.Scan(&c.ID, &c.RecordNumber, &c.DocumentID, &c.FullName, &c.Service,
		&c.PhysicianID, &c.DeclaredAt, &c.Kind, &c.Status,
		&c.TrayID, &c.LegalFileID, &c.RetrievalAuthorizationID, &c.ExitRecordID,
		&c.StoredAt, &c.Deleted, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCaseNotFound
	}
	return &c, err
}

func (r *caseRepoPG) Create(ctx context.Context, c *Case) error {
	c.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO mortuary_case (id, record_number, document_id, full_name, service,
			physician_id, declared_at, kind, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.RecordNumber, c.DocumentID, c.FullName, c.Service,
		c.PhysicianID, c.DeclaredAt, c.Kind, c.Status)
	return err
}

func (r *caseRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Case, error) {
	return r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+caseCols+` FROM mortuary_case WHERE id = $1 AND NOT deleted`, id))
}

func (r *caseRepoPG) Update(ctx context.Context, c *Case) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE mortuary_case
		SET record_number=$2, document_id=$3, full_name=$4, service=$5, physician_id=$6,
			status=$7, tray_id=$8, legal_file_id=$9, retrieval_authorization_id=$10,
			exit_record_id=$11, stored_at=$12, updated_at=NOW()
		WHERE id = $1 AND NOT deleted`,
		c.ID, c.RecordNumber, c.DocumentID, c.FullName, c.Service, c.PhysicianID,
		c.Status, c.TrayID, c.LegalFileID, c.RetrievalAuthorizationID,
		c.ExitRecordID, c.StoredAt)
	return err
}

func (r *caseRepoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE mortuary_case SET deleted=TRUE, updated_at=NOW()
		WHERE id = $1 AND NOT deleted`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCaseNotFound
	}
	return nil
}

var caseSearchParams = map[string]query.ParamConfig{
	"status":        {Type: query.ParamToken, Column: "status"},
	"kind":          {Type: query.ParamToken, Column: "kind"},
	"service":       {Type: query.ParamToken, Column: "service"},
	"physician":     {Type: query.ParamToken, Column: "physician_id"},
	"record_number": {Type: query.ParamString, Column: "record_number"},
	"name":          {Type: query.ParamString, Column: "full_name"},
	"document":      {Type: query.ParamString, Column: "document_id"},
	"declared_at":   {Type: query.ParamDate, Column: "declared_at"},
}

func (r *caseRepoPG) List(ctx context.Context, params map[string]string, limit, offset int) ([]*Case, int, error) {
	qb := query.NewBuilder("mortuary_case", caseCols)
	qb.Where("NOT deleted")
	qb.ApplyAll(params, caseSearchParams)
	qb.OrderBy("declared_at DESC")

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := conn(ctx, r.pool).Query(ctx, qb.DataSQL(), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Case
	for rows.Next() {
		c, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, nil
}

type ticketRepoPG struct{ pool *pgxpool.Pool }

func NewTicketRepoPG(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepoPG{pool: pool}
}

const ticketCols = `id, case_id, unit, details, status, created_by, created_at,
	resolved_by, resolved_at`

func (r *ticketRepoPG) scan(row pgx.Row) (*CorrectionTicket, error) {
	var t CorrectionTicket
	err := row.Scan(&t.ID, &t.CaseID, &t.Unit, &t.Details, &t.Status,
		&t.CreatedBy, &t.CreatedAt, &t.ResolvedBy, &t.ResolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	return &t, err
}

func (r *ticketRepoPG) Create(ctx context.Context, t *CorrectionTicket) error {
	t.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO correction_ticket (id, case_id, unit, details, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.CaseID, t.Unit, t.Details, t.Status, t.CreatedBy)
	return err
}

func (r *ticketRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*CorrectionTicket, error) {
	return r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+ticketCols+` FROM correction_ticket WHERE id = $1`, id))
}

func (r *ticketRepoPG) Update(ctx context.Context, t *CorrectionTicket) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE correction_ticket SET status=$2, resolved_by=$3, resolved_at=$4
		WHERE id = $1`,
		t.ID, t.Status, t.ResolvedBy, t.ResolvedAt)
	return err
}

func (r *ticketRepoPG) ListByCase(ctx context.Context, caseID uuid.UUID) ([]*CorrectionTicket, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+ticketCols+` FROM correction_ticket
		WHERE case_id = $1 ORDER BY created_at ASC`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *ticketRepoPG) OpenOlderThan(ctx context.Context, cutoff time.Time) ([]*CorrectionTicket, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+ticketCols+` FROM correction_ticket
		WHERE status = $1 AND created_at <= $2
		ORDER BY created_at ASC`, TicketOpen, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *ticketRepoPG) collect(rows pgx.Rows) ([]*CorrectionTicket, error) {
	var items []*CorrectionTicket
	for rows.Next() {
		t, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, nil
}
