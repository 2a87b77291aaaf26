package memory_test

import (
	"context"
	"testing"

	apperrors "github.com/jrsteele09/go-org-server/internal/errors"
	"github.com/jrsteele09/go-org-server/organisations"
	"github.com/jrsteele09/go-org-server/storage/memory"
	"github.com/jrsteele09/go-org-server/users"
	"github.com/stretchr/testify/require"
)

func TestCreateAccount(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	u := &users.User{ID: "u1", FirstName: "Ada", Email: "Ada@Example.com"}
	o := &organisations.Organisation{ID: "o1", OwnerID: "u1", Name: "Ada's Organisation"}
	require.NoError(t, store.CreateAccount(ctx, u, o))

	t.Run("email lookup is case insensitive", func(t *testing.T) {
		got, err := store.Users().GetByEmail(ctx, "ada@example.COM")
		require.NoError(t, err)
		require.Equal(t, "u1", got.ID)
		require.Equal(t, "ada@example.com", got.Email)
	})

	t.Run("returned records are copies", func(t *testing.T) {
		got, err := store.Users().Get(ctx, "u1")
		require.NoError(t, err)
		got.FirstName = "changed"

		again, err := store.Users().Get(ctx, "u1")
		require.NoError(t, err)
		require.Equal(t, "Ada", again.FirstName)

		u.FirstName = "changed too"
		again, err = store.Users().Get(ctx, "u1")
		require.NoError(t, err)
		require.Equal(t, "Ada", again.FirstName)
	})

	t.Run("duplicate email leaves nothing behind", func(t *testing.T) {
		dup := &users.User{ID: "u2", Email: "ada@example.com"}
		dupOrg := &organisations.Organisation{ID: "o2", OwnerID: "u2", Name: "x"}
		require.ErrorIs(t, store.CreateAccount(ctx, dup, dupOrg), apperrors.ErrAlreadyExists)

		_, err := store.Users().Get(ctx, "u2")
		require.ErrorIs(t, err, apperrors.ErrNotFound)
		_, err = store.Organisations().Get(ctx, "o2")
		require.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("ping and close", func(t *testing.T) {
		require.NoError(t, store.Ping(ctx))
		require.NoError(t, store.Close())
	})
}

func TestListByUserPreservesCreationOrder(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	repo := store.Organisations()

	require.NoError(t, store.CreateAccount(ctx,
		&users.User{ID: "u1", Email: "a@example.com"},
		&organisations.Organisation{ID: "o1", OwnerID: "u1", Name: "first"}))
	for _, id := range []string{"o2", "o3"} {
		require.NoError(t, repo.Insert(ctx, &organisations.Organisation{ID: id, OwnerID: "u1", Name: id}))
	}
	require.ErrorIs(t, repo.Insert(ctx, &organisations.Organisation{ID: "o3", OwnerID: "u1", Name: "again"}), apperrors.ErrAlreadyExists)

	orgs, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, orgs, 3)
	require.Equal(t, "o1", orgs[0].ID)
	require.Equal(t, "o2", orgs[1].ID)
	require.Equal(t, "o3", orgs[2].ID)
}
