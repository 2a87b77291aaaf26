package memory

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-org-server/auth"
	apperrors "github.com/jrsteele09/go-org-server/internal/errors"
	"github.com/jrsteele09/go-org-server/organisations"
	"github.com/jrsteele09/go-org-server/users"
)

var (
	_ users.Repo         = (*userRepo)(nil)
	_ organisations.Repo = (*orgRepo)(nil)
	_ auth.AccountRepo   = (*Store)(nil)
)

// Store keeps users, organisations and memberships in process memory. A single
// lock covers every map so account creation and membership updates are atomic.
type Store struct {
	lock     sync.RWMutex
	users    map[string]*users.User
	emails   map[string]string // normalised email -> user id
	orgs     map[string]*organisations.Organisation
	orgOrder []string
	members  map[string]map[string]struct{} // org id -> member ids
	memOrder map[string][]string             // org id -> member ids in insertion order
}

func New() *Store {
	return &Store{
		users:    make(map[string]*users.User),
		emails:   make(map[string]string),
		orgs:     make(map[string]*organisations.Organisation),
		members:  make(map[string]map[string]struct{}),
		memOrder: make(map[string][]string),
	}
}

func (s *Store) Users() users.Repo {
	return &userRepo{s}
}

func (s *Store) Organisations() organisations.Repo {
	return &orgRepo{s}
}

func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) CreateAccount(_ context.Context, user *users.User, org *organisations.Organisation) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	email := users.NormaliseEmail(user.Email)
	if _, ok := s.emails[email]; ok {
		return apperrors.Wrapf(apperrors.ErrAlreadyExists, "[memory CreateAccount] email %s", email)
	}
	if _, ok := s.users[user.ID]; ok {
		return apperrors.Wrapf(apperrors.ErrAlreadyExists, "[memory CreateAccount] user %s", user.ID)
	}
	if _, ok := s.orgs[org.ID]; ok {
		return apperrors.Wrapf(apperrors.ErrAlreadyExists, "[memory CreateAccount] organisation %s", org.ID)
	}

	u := *user
	u.Email = email
	s.users[u.ID] = &u
	s.emails[email] = u.ID
	s.insertOrg(org)
	return nil
}

// related reports whether userID owns or belongs to orgID. Caller holds the lock.
func (s *Store) related(orgID, userID string) bool {
	if o, ok := s.orgs[orgID]; ok && o.OwnerID == userID {
		return true
	}
	_, ok := s.members[orgID][userID]
	return ok
}

// insertOrg stores a copy of org. Caller holds the write lock.
func (s *Store) insertOrg(org *organisations.Organisation) {
	o := *org
	s.orgs[o.ID] = &o
	s.orgOrder = append(s.orgOrder, o.ID)
	s.members[o.ID] = make(map[string]struct{})
}

type userRepo struct {
	s *Store
}

func (r *userRepo) Get(_ context.Context, id string) (*users.User, error) {
	r.s.lock.RLock()
	defer r.s.lock.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "[memory Users.Get] %s", id)
	}
	c := *u
	return &c, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	r.s.lock.RLock()
	id, ok := r.s.emails[users.NormaliseEmail(email)]
	r.s.lock.RUnlock()
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "[memory Users.GetByEmail] %s", email)
	}
	return r.Get(ctx, id)
}

type orgRepo struct {
	s *Store
}

func (r *orgRepo) Insert(_ context.Context, org *organisations.Organisation) error {
	r.s.lock.Lock()
	defer r.s.lock.Unlock()

	if _, ok := r.s.users[org.OwnerID]; !ok {
		return apperrors.Wrapf(apperrors.ErrNotFound, "[memory Organisations.Insert] owner %s", org.OwnerID)
	}
	if _, ok := r.s.orgs[org.ID]; ok {
		return apperrors.Wrapf(apperrors.ErrAlreadyExists, "[memory Organisations.Insert] %s", org.ID)
	}
	r.s.insertOrg(org)
	return nil
}

func (r *orgRepo) Get(_ context.Context, orgID string) (*organisations.Organisation, error) {
	r.s.lock.RLock()
	defer r.s.lock.RUnlock()

	o, ok := r.s.orgs[orgID]
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "[memory Organisations.Get] %s", orgID)
	}
	c := *o
	return &c, nil
}

func (r *orgRepo) ListByUser(_ context.Context, userID string) ([]*organisations.Organisation, error) {
	r.s.lock.RLock()
	defer r.s.lock.RUnlock()

	out := make([]*organisations.Organisation, 0)
	for _, id := range r.s.orgOrder {
		if r.s.related(id, userID) {
			c := *r.s.orgs[id]
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *orgRepo) AddMember(_ context.Context, orgID, userID string) error {
	r.s.lock.Lock()
	defer r.s.lock.Unlock()

	if _, ok := r.s.orgs[orgID]; !ok {
		return apperrors.Wrapf(apperrors.ErrNotFound, "[memory Organisations.AddMember] organisation %s", orgID)
	}
	if _, ok := r.s.users[userID]; !ok {
		return apperrors.Wrapf(apperrors.ErrNotFound, "[memory Organisations.AddMember] user %s", userID)
	}

	set := r.s.members[orgID]
	if _, ok := set[userID]; ok {
		return nil
	}
	set[userID] = struct{}{}
	r.s.memOrder[orgID] = append(r.s.memOrder[orgID], userID)
	return nil
}

func (r *orgRepo) IsMember(_ context.Context, orgID, userID string) (bool, error) {
	r.s.lock.RLock()
	defer r.s.lock.RUnlock()

	_, ok := r.s.members[orgID][userID]
	return ok, nil
}

func (r *orgRepo) Members(_ context.Context, orgID string) ([]string, error) {
	r.s.lock.RLock()
	defer r.s.lock.RUnlock()

	if _, ok := r.s.orgs[orgID]; !ok {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "[memory Organisations.Members] %s", orgID)
	}
	return append([]string{}, r.s.memOrder[orgID]...), nil
}

func (r *orgRepo) ShareOrganisation(_ context.Context, userA, userB string) (bool, error) {
	r.s.lock.RLock()
	defer r.s.lock.RUnlock()

	for _, id := range r.s.orgOrder {
		if r.s.related(id, userA) && r.s.related(id, userB) {
			return true, nil
		}
	}
	return false, nil
}
