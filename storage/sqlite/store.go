package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jrsteele09/go-org-server/auth"
	apperrors "github.com/jrsteele09/go-org-server/internal/errors"
	"github.com/jrsteele09/go-org-server/organisations"
	"github.com/jrsteele09/go-org-server/storage"
	"github.com/jrsteele09/go-org-server/storage/sqlite/migrations"
	"github.com/jrsteele09/go-org-server/users"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var _ auth.AccountRepo = (*Store)(nil)

const migrationTable = "schema_migrations"

// Store implements user and organisation persistence over a single SQLite file.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and applies the
// embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("[sqlite Open] storage path is required")
	}

	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("[sqlite Open] create dir: %w", err)
		}
	}

	dsn := cleanPath +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("[sqlite Open] open db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("[sqlite Open] ping db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := store.runMigrations(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("[sqlite Open] run migrations: %w", err)
	}
	return store, nil
}

func (s *Store) Users() users.Repo {
	return &userRepo{db: s.sqlDB}
}

func (s *Store) Organisations() organisations.Repo {
	return &orgRepo{db: s.sqlDB}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// Close releases the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreateAccount inserts the user and their default organisation in one
// transaction. The UNIQUE constraint on users.email decides duplicate races.
func (s *Store) CreateAccount(ctx context.Context, user *users.User, org *organisations.Organisation) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("[sqlite CreateAccount] begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO users (id, first_name, last_name, email, phone, password_hash, date_joined)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.FirstName, user.LastName, users.NormaliseEmail(user.Email),
		nullString(user.Phone), user.PasswordHash, toMillis(user.DateJoined),
	); err != nil {
		return translate(err, "[sqlite CreateAccount] insert user")
	}

	if err := insertOrganisation(ctx, tx, org); err != nil {
		return translate(err, "[sqlite CreateAccount] insert organisation")
	}

	if err := tx.Commit(); err != nil {
		return translate(err, "[sqlite CreateAccount] commit")
	}
	return nil
}

// runMigrations applies each embedded migration at most once.
func (s *Store) runMigrations(ctx context.Context) error {
	if _, err := s.sqlDB.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS `+migrationTable+` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	scripts, err := storage.Migrations(migrations.FS)
	if err != nil {
		return err
	}

	for _, m := range scripts {
		var found int
		err := s.sqlDB.QueryRowContext(ctx, "SELECT 1 FROM "+migrationTable+" WHERE name = ?", m.Name).Scan(&found)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", m.Name, err)
		}

		tx, err := s.sqlDB.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.Name, err)
		}
		if _, err := tx.ExecContext(ctx, m.Up); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", m.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO "+migrationTable+" (name, applied_at) VALUES (?, ?)",
			m.Name, toMillis(time.Now()),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.Name, err)
		}
	}
	return nil
}

type execContexter interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertOrganisation(ctx context.Context, db execContexter, org *organisations.Organisation) error {
	_, err := db.ExecContext(ctx, `
INSERT INTO organisations (id, owner_id, name, description, created_at)
VALUES (?, ?, ?, ?, ?)`,
		org.ID, org.OwnerID, org.Name, org.Description, toMillis(org.CreatedAt),
	)
	return err
}

// translate maps driver errors onto the shared error kinds.
func translate(err error, msg string) error {
	switch {
	case isUniqueConstraintError(err):
		return fmt.Errorf("%s: %w: %v", msg, apperrors.ErrAlreadyExists, err)
	case isForeignKeyConstraintError(err):
		return fmt.Errorf("%s: %w: %v", msg, apperrors.ErrNotFound, err)
	default:
		return fmt.Errorf("%s: %w", msg, err)
	}
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return true
		}
	}
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func isForeignKeyConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
		return true
	}
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func nullString(v *string) sql.NullString {
	if v == nil || *v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
