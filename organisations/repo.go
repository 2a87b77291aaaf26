package organisations

import "context"

// Repo owns the organisation table and the membership relation. Membership is
// a set: AddMember is idempotent and safe to call concurrently.
//
// Implementations return errors.ErrNotFound when an organisation (or, for
// AddMember, the user) does not exist.
type Repo interface {
	Insert(ctx context.Context, org *Organisation) error
	Get(ctx context.Context, orgID string) (*Organisation, error)

	// ListByUser returns the organisations userID owns or is a member of,
	// without duplicates, oldest first.
	ListByUser(ctx context.Context, userID string) ([]*Organisation, error)

	AddMember(ctx context.Context, orgID, userID string) error
	IsMember(ctx context.Context, orgID, userID string) (bool, error)
	Members(ctx context.Context, orgID string) ([]string, error)

	// ShareOrganisation reports whether the two users are related through at
	// least one organisation, as owner or member on either side.
	ShareOrganisation(ctx context.Context, userA, userB string) (bool, error)
}
