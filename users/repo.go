package users

import "context"

// Repo is the read side of user storage. Users are only ever created together
// with their default organisation, see auth.AccountRepo.
//
// Implementations return errors.ErrNotFound when no user matches.
type Repo interface {
	Get(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}
