package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	apperrors "github.com/jrsteele09/go-org-server/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestOpenRequiresURL(t *testing.T) {
	_, err := Open(context.Background(), " ")
	require.Error(t, err)
}

func TestCloseNilSafe(t *testing.T) {
	var store *Store
	require.NoError(t, store.Close())
}

func TestTranslate(t *testing.T) {
	unique := fmt.Errorf("exec: %w", &pgconn.PgError{Code: codeUniqueViolation})
	require.ErrorIs(t, translate(unique, "insert"), apperrors.ErrAlreadyExists)

	fk := &pgconn.PgError{Code: codeForeignKeyViolation}
	require.ErrorIs(t, translate(fk, "insert"), apperrors.ErrNotFound)

	other := errors.New("connection reset")
	err := translate(other, "insert")
	require.ErrorIs(t, err, other)
	require.False(t, errors.Is(err, apperrors.ErrAlreadyExists))
}

func TestNotFound(t *testing.T) {
	require.ErrorIs(t, notFound(pgx.ErrNoRows, "get"), apperrors.ErrNotFound)
	require.False(t, errors.Is(notFound(errors.New("boom"), "get"), apperrors.ErrNotFound))
}

func TestNullString(t *testing.T) {
	empty := ""
	phone := "+15550100"
	require.Nil(t, nullString(nil))
	require.Nil(t, nullString(&empty))
	require.Equal(t, &phone, nullString(&phone))
}
