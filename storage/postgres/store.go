package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/go-org-server/auth"
	apperrors "github.com/jrsteele09/go-org-server/internal/errors"
	"github.com/jrsteele09/go-org-server/organisations"
	"github.com/jrsteele09/go-org-server/storage"
	"github.com/jrsteele09/go-org-server/storage/postgres/migrations"
	"github.com/jrsteele09/go-org-server/users"
)

var _ auth.AccountRepo = (*Store)(nil)

const (
	migrationTable = "schema_migrations"

	// migrationLockID serialises migrations across replicas starting together.
	migrationLockID = 7241937

	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Store implements user and organisation persistence over a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL and applies the embedded migrations.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("[postgres Open] database url is required")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(connectCtx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("[postgres Open] create pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("[postgres Open] ping: %w", err)
	}

	store := &Store{pool: pool}
	if err := store.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("[postgres Open] run migrations: %w", err)
	}
	return store, nil
}

func (s *Store) Users() users.Repo {
	return &userRepo{pool: s.pool}
}

func (s *Store) Organisations() organisations.Repo {
	return &orgRepo{pool: s.pool}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// CreateAccount inserts the user and their default organisation in one
// transaction. The UNIQUE constraint on users.email decides duplicate races.
func (s *Store) CreateAccount(ctx context.Context, user *users.User, org *organisations.Organisation) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
INSERT INTO users (id, first_name, last_name, email, phone, password_hash, date_joined)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			user.ID, user.FirstName, user.LastName, users.NormaliseEmail(user.Email),
			nullString(user.Phone), user.PasswordHash, user.DateJoined.UTC(),
		); err != nil {
			return translate(err, "[postgres CreateAccount] insert user")
		}

		if err := insertOrganisation(ctx, tx, org); err != nil {
			return translate(err, "[postgres CreateAccount] insert organisation")
		}
		return nil
	})
}

func (s *Store) runMigrations(ctx context.Context) error {
	scripts, err := storage.Migrations(migrations.FS)
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockID); err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		if _, err := tx.Exec(ctx, `
CREATE TABLE IF NOT EXISTS `+migrationTable+` (
    name TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
			return fmt.Errorf("ensure migration table: %w", err)
		}

		for _, m := range scripts {
			var applied bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM `+migrationTable+` WHERE name = $1)`, m.Name,
			).Scan(&applied); err != nil {
				return fmt.Errorf("check migration %s: %w", m.Name, err)
			}
			if applied {
				continue
			}
			if _, err := tx.Exec(ctx, m.Up); err != nil {
				return fmt.Errorf("exec migration %s: %w", m.Name, err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO `+migrationTable+` (name) VALUES ($1)`, m.Name,
			); err != nil {
				return fmt.Errorf("record migration %s: %w", m.Name, err)
			}
		}
		return nil
	})
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func insertOrganisation(ctx context.Context, db execer, org *organisations.Organisation) error {
	_, err := db.Exec(ctx, `
INSERT INTO organisations (id, owner_id, name, description, created_at)
VALUES ($1, $2, $3, $4, $5)`,
		org.ID, org.OwnerID, org.Name, org.Description, org.CreatedAt.UTC(),
	)
	return err
}

// translate maps Postgres constraint violations onto the shared error kinds.
func translate(err error, msg string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w: %v", msg, apperrors.ErrAlreadyExists, err)
		case codeForeignKeyViolation:
			return fmt.Errorf("%s: %w: %v", msg, apperrors.ErrNotFound, err)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// notFound maps pgx.ErrNoRows to errors.ErrNotFound and wraps anything else.
func notFound(err error, msg string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", msg, apperrors.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func nullString(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	return v
}
