package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-org-server/credentials"
	apperrors "github.com/jrsteele09/go-org-server/internal/errors"
	"github.com/jrsteele09/go-org-server/internal/telemetry"
	"github.com/jrsteele09/go-org-server/internal/utils"
	"github.com/jrsteele09/go-org-server/organisations"
	"github.com/jrsteele09/go-org-server/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Repos holds all repository dependencies for the Service
type Repos struct {
	Users    users.Repo  // Lookups by id and email
	Accounts AccountRepo // Atomic user + default organisation creation
}

// Service is the identity registry: it registers users, authenticates them by
// email and password, and resolves user ids.
type Service struct {
	repos   Repos
	hasher  credentials.Hasher
	nowTime func() time.Time // nowTime function (injectable for testing)
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// NewService initializes a new Service with required dependencies.
func NewService(repos Repos, hasher credentials.Hasher, options ...ServiceOption) (*Service, error) {
	if repos.Users == nil {
		return nil, errors.New("[NewService] Users repo is required")
	}
	if repos.Accounts == nil {
		return nil, errors.New("[NewService] Accounts repo is required")
	}
	if hasher == nil {
		return nil, errors.New("[NewService] hasher is required")
	}

	s := &Service{
		repos:   repos,
		hasher:  hasher,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Register validates the request, then creates the user and their default
// organisation in one atomic step. Field problems are returned as
// *errors.ValidationError; any other failure is errors.ErrRegistrationFailed.
func (s *Service) Register(ctx context.Context, req RegistrationRequest) (*users.User, *organisations.Organisation, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "auth.Register")
	defer span.End()

	if err := req.validateFields(); err != nil {
		return nil, nil, err
	}

	email := users.NormaliseEmail(req.Email)
	_, err := s.repos.Users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, nil, apperrors.NewValidationError("email", apperrors.ReasonAlreadyExists)
	case !apperrors.Is(err, apperrors.ErrNotFound):
		return nil, nil, s.registrationFailed(span, errors.Wrap(err, "[Register] email lookup"))
	}

	if err := req.validatePassword(); err != nil {
		return nil, nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, nil, s.registrationFailed(span, errors.Wrap(err, "[Register] hash password"))
	}

	now := s.nowTime().UTC()
	user := &users.User{
		ID:           uuid.NewString(),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        email,
		PasswordHash: hash,
		DateJoined:   now,
	}
	if phone := strings.TrimSpace(req.Phone); phone != "" {
		user.Phone = utils.Ptr(phone)
	}

	org := &organisations.Organisation{
		ID:          uuid.NewString(),
		OwnerID:     user.ID,
		Name:        user.DefaultOrganisationName(),
		Description: user.DefaultOrganisationDescription(),
		CreatedAt:   now,
	}

	if err := s.repos.Accounts.CreateAccount(ctx, user, org); err != nil {
		if apperrors.Is(err, apperrors.ErrAlreadyExists) {
			// Lost a race with a concurrent registration for the same email.
			return nil, nil, apperrors.NewValidationError("email", apperrors.ReasonAlreadyExists)
		}
		return nil, nil, s.registrationFailed(span, errors.Wrap(err, "[Register] create account"))
	}

	span.SetAttributes(attribute.String("user.id", user.ID), attribute.String("org.id", org.ID))
	zerolog.Ctx(ctx).Info().Str("userID", user.ID).Str("orgID", org.ID).Msg("user registered")
	return user, org, nil
}

// Authenticate returns the user with the given email when password matches.
// An unknown email and a wrong password both produce errors.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*users.User, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "auth.Authenticate")
	defer span.End()

	user, err := s.repos.Users.GetByEmail(ctx, users.NormaliseEmail(email))
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "user lookup failed")
		return nil, errors.Wrap(err, "[Authenticate] user lookup")
	}

	if !credentials.Verify(password, user.PasswordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}

	span.SetAttributes(attribute.String("user.id", user.ID))
	return user, nil
}

// FindByID resolves a user id. A missing user is errors.ErrNotFound.
func (s *Service) FindByID(ctx context.Context, userID string) (*users.User, error) {
	if userID == "" {
		return nil, apperrors.ErrNotFound
	}
	user, err := s.repos.Users.Get(ctx, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "[FindByID] %s", userID)
	}
	return user, nil
}

func (s *Service) registrationFailed(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "registration failed")
	return errors.Wrap(apperrors.ErrRegistrationFailed, err.Error())
}
