package legalfile

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

type legalFileRepoPG struct{ pool *pgxpool.Pool }

func NewLegalFileRepoPG(pool *pgxpool.Pool) LegalFileRepository {
	return &legalFileRepoPG{pool: pool}
}

func (r *legalFileRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const fileCols = `id, case_id, stage, reviewed_by, reviewed_at, review_notes,
	authorized_by, authorized_at, authorization_notes, created_at, updated_at`

func (r *legalFileRepoPG) scan(row pgx.Row) (*LegalFile, error) {
	var f LegalFile
	err := row.Scan(&f.ID, &f.CaseID, &f.Stage,
		&f.ReviewedBy, &f.ReviewedAt, &f.ReviewNotes,
		&f.AuthorizedBy, &f.AuthorizedAt, &f.AuthorizationNotes,
		&f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFileNotFound
	}
	return &f, err
}

func (r *legalFileRepoPG) Create(ctx context.Context, f *LegalFile) error {
	f.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO legal_case_file (id, case_id, stage)
		VALUES ($1, $2, $3)`,
		f.ID, f.CaseID, f.Stage)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrFileExists
	}
	return err
}

func (r *legalFileRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*LegalFile, error) {
	f, err := r.scan(r.conn(ctx).QueryRow(ctx,
		`SELECT `+fileCols+` FROM legal_case_file WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	return f, r.loadChildren(ctx, f)
}

func (r *legalFileRepoPG) GetByCase(ctx context.Context, caseID uuid.UUID) (*LegalFile, error) {
	f, err := r.scan(r.conn(ctx).QueryRow(ctx,
		`SELECT `+fileCols+` FROM legal_case_file WHERE case_id = $1`, caseID))
	if err != nil {
		return nil, err
	}
	return f, r.loadChildren(ctx, f)
}

func (r *legalFileRepoPG) loadChildren(ctx context.Context, f *LegalFile) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, file_id, doc_type, reference, attached_by, attached_at
		FROM legal_file_document WHERE file_id = $1 ORDER BY attached_at ASC`, f.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.FileID, &d.DocType, &d.Reference, &d.AttachedBy, &d.AttachedAt); err != nil {
			return err
		}
		f.Documents = append(f.Documents, &d)
	}

	arows, err := r.conn(ctx).Query(ctx, `
		SELECT id, file_id, name, institution, badge_number, recorded_at
		FROM legal_file_authority WHERE file_id = $1 ORDER BY recorded_at ASC`, f.ID)
	if err != nil {
		return err
	}
	defer arows.Close()
	for arows.Next() {
		var a Authority
		if err := arows.Scan(&a.ID, &a.FileID, &a.Name, &a.Institution, &a.BadgeNumber, &a.RecordedAt); err != nil {
			return err
		}
		f.Authorities = append(f.Authorities, &a)
	}
	return nil
}

func (r *legalFileRepoPG) Update(ctx context.Context, f *LegalFile) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE legal_case_file
		SET stage=$2, reviewed_by=$3, reviewed_at=$4, review_notes=$5,
			authorized_by=$6, authorized_at=$7, authorization_notes=$8,
			updated_at=NOW()
		WHERE id = $1`,
		f.ID, f.Stage, f.ReviewedBy, f.ReviewedAt, f.ReviewNotes,
		f.AuthorizedBy, f.AuthorizedAt, f.AuthorizationNotes)
	return err
}

func (r *legalFileRepoPG) UpsertDocument(ctx context.Context, d *Document) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO legal_file_document (id, file_id, doc_type, reference, attached_by, attached_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (file_id, doc_type)
		DO UPDATE SET reference=EXCLUDED.reference, attached_by=EXCLUDED.attached_by, attached_at=EXCLUDED.attached_at`,
		d.ID, d.FileID, d.DocType, d.Reference, d.AttachedBy, d.AttachedAt)
	return err
}

func (r *legalFileRepoPG) AddAuthority(ctx context.Context, a *Authority) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO legal_file_authority (id, file_id, name, institution, badge_number, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.FileID, a.Name, a.Institution, a.BadgeNumber, a.RecordedAt)
	return err
}

var fileSearchParams = map[string]query.ParamConfig{
	"stage":   {Type: query.ParamToken, Column: "stage"},
	"case_id": {Type: query.ParamToken, Column: "case_id"},
}

func (r *legalFileRepoPG) List(ctx context.Context, params map[string]string, limit, offset int) ([]*LegalFile, int, error) {
	qb := query.NewBuilder("legal_case_file", fileCols)
	qb.ApplyAll(params, fileSearchParams)
	qb.OrderBy("created_at DESC")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*LegalFile
	for rows.Next() {
		f, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, f)
	}
	return items, total, nil
}

func (r *legalFileRepoPG) CreatedBefore(ctx context.Context, cutoff time.Time) ([]*LegalFile, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+fileCols+` FROM legal_case_file
		WHERE created_at <= $1 AND stage <> $2
		ORDER BY created_at ASC`, cutoff, StageAuthorized)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*LegalFile
	for rows.Next() {
		f, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	for _, f := range items {
		if err := r.loadChildren(ctx, f); err != nil {
			return nil, err
		}
	}
	return items, nil
}
