package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/go-org-server/internal/errors"
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

type rowScanner interface {
	Scan(dest ...any) error
}

type userRepo struct {
	db *sql.DB
}

func (r *userRepo) Get(ctx context.Context, id string) (*users.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err, "[sqlite Users.Get] "+id)
	}
	return u, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, users.NormaliseEmail(email))
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err, "[sqlite Users.GetByEmail] "+email)
	}
	return u, nil
}

func scanUser(row rowScanner) (*users.User, error) {
	var (
		u          users.User
		phone      sql.NullString
		dateJoined int64
	)
	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &phone, &u.PasswordHash, &dateJoined); err != nil {
		return nil, err
	}
	if phone.Valid {
		u.Phone = &phone.String
	}
	u.DateJoined = fromMillis(dateJoined)
	return &u, nil
}

type orgRepo struct {
	db *sql.DB
}

func (r *orgRepo) Insert(ctx context.Context, org *organisations.Organisation) error {
	if err := insertOrganisation(ctx, r.db, org); err != nil {
		return translate(err, "[sqlite Organisations.Insert]")
	}
	return nil
}

func (r *orgRepo) Get(ctx context.Context, orgID string) (*organisations.Organisation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orgColumns+` FROM organisations o WHERE o.id = ?`, orgID)
	o, err := scanOrganisation(row)
	if err != nil {
		return nil, notFound(err, "[sqlite Organisations.Get] "+orgID)
	}
	return o, nil
}

func (r *orgRepo) ListByUser(ctx context.Context, userID string) ([]*organisations.Organisation, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+orgColumns+` FROM organisations o
WHERE `+fmt.Sprintf(relatedToUser, "?1")+`
ORDER BY o.created_at, o.rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("[sqlite Organisations.ListByUser] query: %w", err)
	}
	defer rows.Close()

	out := make([]*organisations.Organisation, 0)
	for rows.Next() {
		o, err := scanOrganisation(rows)
		if err != nil {
			return nil, fmt.Errorf("[sqlite Organisations.ListByUser] scan: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("[sqlite Organisations.ListByUser] rows: %w", err)
	}
	return out, nil
}

// AddMember checks both ids and inserts inside one write transaction; the
// composite primary key makes a repeated add a no-op.
func (r *orgRepo) AddMember(ctx context.Context, orgID, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("[sqlite Organisations.AddMember] begin: %w", err)
	}
	defer tx.Rollback()

	var found int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM organisations WHERE id = ?`, orgID).Scan(&found); err != nil {
		return notFound(err, "[sqlite Organisations.AddMember] organisation "+orgID)
	}
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, userID).Scan(&found); err != nil {
		return notFound(err, "[sqlite Organisations.AddMember] user "+userID)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO organisation_members (org_id, user_id, added_at)
VALUES (?, ?, ?)
ON CONFLICT (org_id, user_id) DO NOTHING`, orgID, userID, toMillis(time.Now())); err != nil {
		return translate(err, "[sqlite Organisations.AddMember] insert")
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("[sqlite Organisations.AddMember] commit: %w", err)
	}
	return nil
}

func (r *orgRepo) IsMember(ctx context.Context, orgID, userID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (
    SELECT 1 FROM organisation_members WHERE org_id = ? AND user_id = ?)`, orgID, userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("[sqlite Organisations.IsMember]: %w", err)
	}
	return ok, nil
}

func (r *orgRepo) Members(ctx context.Context, orgID string) ([]string, error) {
	var found int
	if err := r.db.QueryRowContext(ctx, `SELECT 1 FROM organisations WHERE id = ?`, orgID).Scan(&found); err != nil {
		return nil, notFound(err, "[sqlite Organisations.Members] "+orgID)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM organisation_members
WHERE org_id = ? ORDER BY added_at, rowid`, orgID)
	if err != nil {
		return nil, fmt.Errorf("[sqlite Organisations.Members] query: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("[sqlite Organisations.Members] scan: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *orgRepo) ShareOrganisation(ctx context.Context, userA, userB string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (
    SELECT 1 FROM organisations o
    WHERE `+fmt.Sprintf(relatedToUser, "?1")+` AND `+fmt.Sprintf(relatedToUser, "?2")+`)`,
		userA, userB).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("[sqlite Organisations.ShareOrganisation]: %w", err)
	}
	return ok, nil
}

func scanOrganisation(row rowScanner) (*organisations.Organisation, error) {
	var (
		o         organisations.Organisation
		createdAt int64
	)
	if err := row.Scan(&o.ID, &o.OwnerID, &o.Name, &o.Description, &createdAt); err != nil {
		return nil, err
	}
	o.CreatedAt = fromMillis(createdAt)
	return &o, nil
}

// notFound maps sql.ErrNoRows to errors.ErrNotFound and wraps anything else.
func notFound(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", msg, apperrors.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
