package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/go-org-server/organisations"
	"github.com/jrsteele09/go-org-server/users"
)

var (
	_ users.Repo         = (*userRepo)(nil)
	_ organisations.Repo = (*orgRepo)(nil)
)

const (
	userColumns = `id, first_name, last_name, email, phone, password_hash, date_joined`
	orgColumns  = `o.id, o.owner_id, o.name, o.description, o.created_at`

	// relatedToUser matches organisations the bound user owns or belongs to.
	relatedToUser = `(o.owner_id = %[1]s OR EXISTS (
    SELECT 1 FROM organisation_members m WHERE m.org_id = o.id AND m.user_id = %[1]s))`
)

type userRepo struct {
	pool *pgxpool.Pool
}

func (r *userRepo) Get(ctx context.Context, id string) (*users.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "[postgres Users.Get] "+id)
	}
	return u, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, users.NormaliseEmail(email)))
	if err != nil {
		return nil, notFound(err, "[postgres Users.GetByEmail] "+email)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*users.User, error) {
	var u users.User
	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Phone, &u.PasswordHash, &u.DateJoined); err != nil {
		return nil, err
	}
	u.DateJoined = u.DateJoined.UTC()
	return &u, nil
}

type orgRepo struct {
	pool *pgxpool.Pool
}

func (r *orgRepo) Insert(ctx context.Context, org *organisations.Organisation) error {
	if err := insertOrganisation(ctx, r.pool, org); err != nil {
		return translate(err, "[postgres Organisations.Insert]")
	}
	return nil
}

func (r *orgRepo) Get(ctx context.Context, orgID string) (*organisations.Organisation, error) {
	o, err := scanOrganisation(r.pool.QueryRow(ctx, `SELECT `+orgColumns+` FROM organisations o WHERE o.id = $1`, orgID))
	if err != nil {
		return nil, notFound(err, "[postgres Organisations.Get] "+orgID)
	}
	return o, nil
}

func (r *orgRepo) ListByUser(ctx context.Context, userID string) ([]*organisations.Organisation, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orgColumns+` FROM organisations o
WHERE `+fmt.Sprintf(relatedToUser, "$1")+`
ORDER BY o.seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("[postgres Organisations.ListByUser] query: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*organisations.Organisation, error) {
		return scanOrganisation(row)
	})
	if err != nil {
		return nil, fmt.Errorf("[postgres Organisations.ListByUser] scan: %w", err)
	}
	return out, nil
}

// AddMember relies on the composite primary key for idempotency and on the
// foreign keys to report an unknown organisation or user.
func (r *orgRepo) AddMember(ctx context.Context, orgID, userID string) error {
	if _, err := r.pool.Exec(ctx, `
INSERT INTO organisation_members (org_id, user_id, added_at)
VALUES ($1, $2, now())
ON CONFLICT (org_id, user_id) DO NOTHING`, orgID, userID); err != nil {
		return translate(err, "[postgres Organisations.AddMember]")
	}
	return nil
}

func (r *orgRepo) IsMember(ctx context.Context, orgID, userID string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
    SELECT 1 FROM organisation_members WHERE org_id = $1 AND user_id = $2)`, orgID, userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("[postgres Organisations.IsMember]: %w", err)
	}
	return ok, nil
}

func (r *orgRepo) Members(ctx context.Context, orgID string) ([]string, error) {
	var found int
	if err := r.pool.QueryRow(ctx, `SELECT 1 FROM organisations WHERE id = $1`, orgID).Scan(&found); err != nil {
		return nil, notFound(err, "[postgres Organisations.Members] "+orgID)
	}

	rows, err := r.pool.Query(ctx, `SELECT user_id FROM organisation_members WHERE org_id = $1 ORDER BY seq`, orgID)
	if err != nil {
		return nil, fmt.Errorf("[postgres Organisations.Members] query: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("[postgres Organisations.Members] scan: %w", err)
	}
	return ids, nil
}

func (r *orgRepo) ShareOrganisation(ctx context.Context, userA, userB string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
    SELECT 1 FROM organisations o
    WHERE `+fmt.Sprintf(relatedToUser, "$1")+` AND `+fmt.Sprintf(relatedToUser, "$2")+`)`,
		userA, userB).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("[postgres Organisations.ShareOrganisation]: %w", err)
	}
	return ok, nil
}

func scanOrganisation(row pgx.Row) (*organisations.Organisation, error) {
	var o organisations.Organisation
	if err := row.Scan(&o.ID, &o.OwnerID, &o.Name, &o.Description, &o.CreatedAt); err != nil {
		return nil, err
	}
	o.CreatedAt = o.CreatedAt.UTC()
	return &o, nil
}
