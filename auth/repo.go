package auth

import (
	"context"

	"github.com/jrsteele09/go-org-server/organisations"
	"github.com/jrsteele09/go-org-server/users"
)

// AccountRepo persists a new user together with their default organisation.
// Both rows are written in one atomic unit: either both become visible or
// neither does. A duplicate email is reported as errors.ErrAlreadyExists and
// must be detected by the store itself (unique constraint), not by a prior read.
type AccountRepo interface {
	CreateAccount(ctx context.Context, user *users.User, org *organisations.Organisation) error
}
