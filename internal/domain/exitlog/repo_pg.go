package exitlog

import (
	"context"
	"errors"

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

type exitRepoPG struct{ pool *pgxpool.Pool }

func NewExitRecordRepoPG(pool *pgxpool.Pool) ExitRecordRepository {
	return &exitRepoPG{pool: pool}
}

func (r *exitRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const exitCols = `id, case_id, retriever_kind, retrieval_authorization_id, legal_file_id,
	responsible_name, responsible_document, vehicle_plate, destination,
	storage_hours, incident_flag, incident_description, exit_at, recorded_by, created_at`

func (r *exitRepoPG) scan(row pgx.Row) (*ExitRecord, error) {
	var e ExitRecord
	err := row.Scan(&e.ID, &e.CaseID, &e.RetrieverKind,
		&e.RetrievalAuthorizationID, &e.LegalFileID,
		&e.ResponsibleName, &e.ResponsibleDocument, &e.VehiclePlate, &e.Destination,
		&e.StorageHours, &e.IncidentFlag, &e.IncidentDescription,
		&e.ExitAt, &e.RecordedBy, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrExitNotFound
	}
	return &e, err
}

func (r *exitRepoPG) Create(ctx context.Context, e *ExitRecord) error {
	e.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO exit_record (id, case_id, retriever_kind,
			retrieval_authorization_id, legal_file_id,
			responsible_name, responsible_document, vehicle_plate, destination,
			storage_hours, incident_flag, incident_description, exit_at, recorded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		e.ID, e.CaseID, e.RetrieverKind,
		e.RetrievalAuthorizationID, e.LegalFileID,
		e.ResponsibleName, e.ResponsibleDocument, e.VehiclePlate, e.Destination,
		e.StorageHours, e.IncidentFlag, e.IncidentDescription, e.ExitAt, e.RecordedBy)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrExitExists
	}
	return err
}

func (r *exitRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ExitRecord, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx,
		`SELECT `+exitCols+` FROM exit_record WHERE id = $1`, id))
}

func (r *exitRepoPG) GetByCase(ctx context.Context, caseID uuid.UUID) (*ExitRecord, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx,
		`SELECT `+exitCols+` FROM exit_record WHERE case_id = $1`, caseID))
}

func (r *exitRepoPG) SetIncident(ctx context.Context, id uuid.UUID, description string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE exit_record SET incident_flag=TRUE, incident_description=$2
		WHERE id = $1`, id, description)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrExitNotFound
	}
	return nil
}

var exitSearchParams = map[string]query.ParamConfig{
	"retriever_kind": {Type: query.ParamToken, Column: "retriever_kind"},
	"case_id":        {Type: query.ParamToken, Column: "case_id"},
	"incident":       {Type: query.ParamBool, Column: "incident_flag"},
	"exit_at":        {Type: query.ParamDate, Column: "exit_at"},
}

func (r *exitRepoPG) List(ctx context.Context, params map[string]string, limit, offset int) ([]*ExitRecord, int, error) {
	qb := query.NewBuilder("exit_record", exitCols)
	qb.ApplyAll(params, exitSearchParams)
	qb.OrderBy("exit_at DESC")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ExitRecord
	for rows.Next() {
		e, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, nil
}
