package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/go-org-server/internal/errors"
	"github.com/jrsteele09/go-org-server/internal/utils"
	"github.com/jrsteele09/go-org-server/organisations"
	"github.com/jrsteele09/go-org-server/users"
	"github.com/stretchr/testify/require"
)

var joined = time.Date(2024, 7, 4, 12, 0, 0, 0, time.UTC)

func openTempStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "orgs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newAccount(name string) (*users.User, *organisations.Organisation) {
	u := &users.User{
		ID:           "user-" + name,
		FirstName:    name,
		LastName:     "Test",
		Email:        name + "@example.com",
		PasswordHash: "hash-" + name,
		DateJoined:   joined,
	}
	o := &organisations.Organisation{
		ID:          "org-" + name,
		OwnerID:     u.ID,
		Name:        u.DefaultOrganisationName(),
		Description: u.DefaultOrganisationDescription(),
		CreatedAt:   joined,
	}
	return u, o
}

func createAccount(t *testing.T, store *Store, name string) (*users.User, *organisations.Organisation) {
	t.Helper()
	u, o := newAccount(name)
	require.NoError(t, store.CreateAccount(context.Background(), u, o))
	return u, o
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func TestOpenTwiceKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "orgs.db")

	store, err := Open(path)
	require.NoError(t, err)
	u, o := newAccount("alice")
	require.NoError(t, store.CreateAccount(context.Background(), u, o))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Users().Get(context.Background(), u.ID)
	require.NoError(t, err)
	require.Equal(t, u.Email, got.Email)
}

func TestCloseNilSafe(t *testing.T) {
	var store *Store
	require.NoError(t, store.Close())
}

func TestCreateAccountRoundTrip(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	u, o := newAccount("alice")
	u.Email = "Alice@Example.com"
	u.Phone = utils.Ptr("+441234567890")
	require.NoError(t, store.CreateAccount(ctx, u, o))

	got, err := store.Users().GetByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", got.Email)
	require.Equal(t, "+441234567890", utils.Value(got.Phone))
	require.Equal(t, "hash-alice", got.PasswordHash)
	require.True(t, joined.Equal(got.DateJoined))

	org, err := store.Organisations().Get(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, u.ID, org.OwnerID)
	require.Equal(t, "alice's Organisation", org.Name)

	_, err = store.Users().Get(ctx, "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = store.Organisations().Get(ctx, "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCreateAccountDuplicateEmailIsAtomic(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	createAccount(t, store, "alice")

	u, o := newAccount("alice2")
	u.Email = "ALICE@example.com"
	err := store.CreateAccount(ctx, u, o)
	require.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	// Neither half of the failed account is visible.
	_, err = store.Users().Get(ctx, u.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = store.Organisations().Get(ctx, o.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCreateAccountConcurrentDuplicates(t *testing.T) {
	store := openTempStore(t)

	const attempts = 6
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := range attempts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, o := newAccount(fmt.Sprintf("racer%d", i))
			u.Email = "same@example.com"
			errs[i] = store.CreateAccount(context.Background(), u, o)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		require.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	}
	require.Equal(t, 1, successes)
}

func TestInsertOrganisationUnknownOwner(t *testing.T) {
	store := openTempStore(t)

	err := store.Organisations().Insert(context.Background(), &organisations.Organisation{
		ID: "org-x", OwnerID: "ghost", Name: "X", CreatedAt: joined,
	})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMembership(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	repo := store.Organisations()

	alice, aliceOrg := createAccount(t, store, "alice")
	bob, bobOrg := createAccount(t, store, "bob")
	carol, _ := createAccount(t, store, "carol")

	shared, err := repo.ShareOrganisation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.False(t, shared)

	require.NoError(t, repo.AddMember(ctx, aliceOrg.ID, bob.ID))
	require.NoError(t, repo.AddMember(ctx, aliceOrg.ID, bob.ID))
	require.NoError(t, repo.AddMember(ctx, aliceOrg.ID, carol.ID))
	require.NoError(t, repo.AddMember(ctx, bobOrg.ID, bob.ID))

	require.ErrorIs(t, repo.AddMember(ctx, "missing", bob.ID), apperrors.ErrNotFound)
	require.ErrorIs(t, repo.AddMember(ctx, aliceOrg.ID, "missing"), apperrors.ErrNotFound)

	members, err := repo.Members(ctx, aliceOrg.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{bob.ID, carol.ID}, members)

	_, err = repo.Members(ctx, "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	isMember, err := repo.IsMember(ctx, aliceOrg.ID, bob.ID)
	require.NoError(t, err)
	require.True(t, isMember)

	isMember, err = repo.IsMember(ctx, aliceOrg.ID, alice.ID)
	require.NoError(t, err)
	require.False(t, isMember)

	orgs, err := repo.ListByUser(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, orgs, 2)
	require.ElementsMatch(t, []string{aliceOrg.ID, bobOrg.ID}, []string{orgs[0].ID, orgs[1].ID})

	for _, pair := range [][2]string{{alice.ID, bob.ID}, {bob.ID, carol.ID}, {carol.ID, alice.ID}} {
		shared, err := repo.ShareOrganisation(ctx, pair[0], pair[1])
		require.NoError(t, err)
		require.True(t, shared, "%s and %s", pair[0], pair[1])
	}

	orgs, err = repo.ListByUser(ctx, "nobody")
	require.NoError(t, err)
	require.Empty(t, orgs)
}
