package retrieval

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

type authzRepoPG struct{ pool *pgxpool.Pool }

func NewAuthorizationRepoPG(pool *pgxpool.Pool) AuthorizationRepository {
	return &authzRepoPG{pool: pool}
}

func (r *authzRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const authzCols = `id, case_id, kind,
	relationship, next_of_kin_name, next_of_kin_document, death_certificate_number,
	referral_number, authority_type, institution,
	retriever_signed_at, admissions_signed_at, security_signed_at,
	scanned_by, scanned_at, created_by, created_at, updated_at`

func (r *authzRepoPG) scan(row pgx.Row) (*Authorization, error) {
	var a Authorization
	err := row.Scan(&a.ID, &a.CaseID, &a.Kind,
		&a.Relationship, &a.NextOfKinName, &a.NextOfKinDocument, &a.DeathCertificateNumber,
		&a.ReferralNumber, &a.AuthorityType, &a.Institution,
		&a.RetrieverSignedAt, &a.AdmissionsSignedAt, &a.SecuritySignedAt,
		&a.ScannedBy, &a.ScannedAt, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAuthorizationNotFound
	}
	return &a, err
}

func (r *authzRepoPG) Create(ctx context.Context, a *Authorization) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO retrieval_authorization (id, case_id, kind,
			relationship, next_of_kin_name, next_of_kin_document, death_certificate_number,
			referral_number, authority_type, institution, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.CaseID, a.Kind,
		a.Relationship, a.NextOfKinName, a.NextOfKinDocument, a.DeathCertificateNumber,
		a.ReferralNumber, a.AuthorityType, a.Institution, a.CreatedBy)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAuthorizationExists
	}
	return err
}

func (r *authzRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Authorization, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx,
		`SELECT `+authzCols+` FROM retrieval_authorization WHERE id = $1`, id))
}

func (r *authzRepoPG) GetByCase(ctx context.Context, caseID uuid.UUID) (*Authorization, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx,
		`SELECT `+authzCols+` FROM retrieval_authorization WHERE case_id = $1`, caseID))
}

func (r *authzRepoPG) Update(ctx context.Context, a *Authorization) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE retrieval_authorization
		SET relationship=$2, next_of_kin_name=$3, next_of_kin_document=$4, death_certificate_number=$5,
			referral_number=$6, authority_type=$7, institution=$8,
			retriever_signed_at=$9, admissions_signed_at=$10, security_signed_at=$11,
			scanned_by=$12, scanned_at=$13, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.Relationship, a.NextOfKinName, a.NextOfKinDocument, a.DeathCertificateNumber,
		a.ReferralNumber, a.AuthorityType, a.Institution,
		a.RetrieverSignedAt, a.AdmissionsSignedAt, a.SecuritySignedAt,
		a.ScannedBy, a.ScannedAt)
	return err
}

var authzSearchParams = map[string]query.ParamConfig{
	"kind":    {Type: query.ParamToken, Column: "kind"},
	"case_id": {Type: query.ParamToken, Column: "case_id"},
}

func (r *authzRepoPG) List(ctx context.Context, params map[string]string, limit, offset int) ([]*Authorization, int, error) {
	qb := query.NewBuilder("retrieval_authorization", authzCols)
	qb.ApplyAll(params, authzSearchParams)
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
	var items []*Authorization
	for rows.Next() {
		a, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, nil
}
