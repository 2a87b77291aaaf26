package organisations

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-org-server/internal/errors"
	"github.com/jrsteele09/go-org-server/internal/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Directory creates organisations, maintains membership and answers access
// questions. Requests for an organisation the caller cannot access are
// reported as errors.ErrNotFound so that existence is never leaked.
type Directory struct {
	repo    Repo
	nowFunc func() time.Time
}

type DirectoryOption func(*Directory)

// WithNowFunc sets the clock used for CreatedAt (primarily for testing)
func WithNowFunc(now func() time.Time) DirectoryOption {
	return func(d *Directory) {
		d.nowFunc = now
	}
}

func NewDirectory(repo Repo, options ...DirectoryOption) (*Directory, error) {
	if repo == nil {
		return nil, errors.New("[NewDirectory] organisations repo is required")
	}

	d := &Directory{
		repo:    repo,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(d)
	}
	return d, nil
}

// Create makes a new organisation owned by ownerID. The owner is not added
// to the member set.
func (d *Directory) Create(ctx context.Context, ownerID, name, description string) (*Organisation, error) {
	ctx, span := startSpan(ctx, "organisations.Create", attribute.String("owner.id", ownerID))
	defer span.End()

	if strings.TrimSpace(name) == "" {
		return nil, apperrors.NewValidationError("name", apperrors.ReasonInvalidInput)
	}

	org := &Organisation{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Name:        name,
		Description: description,
		CreatedAt:   d.nowFunc().UTC(),
	}
	if err := d.repo.Insert(ctx, org); err != nil {
		return nil, recordErr(span, errors.Wrap(err, "[Directory Create]"))
	}
	span.SetAttributes(attribute.String("org.id", org.ID))
	return org, nil
}

// Get looks an organisation up by id without any access check.
func (d *Directory) Get(ctx context.Context, orgID string) (*Organisation, error) {
	ctx, span := startSpan(ctx, "organisations.Get", attribute.String("org.id", orgID))
	defer span.End()

	org, err := d.repo.Get(ctx, orgID)
	if err != nil {
		return nil, recordErr(span, errors.Wrapf(err, "[Directory Get] %s", orgID))
	}
	return org, nil
}

// GetForUser returns the organisation only when userID owns it or is a member.
func (d *Directory) GetForUser(ctx context.Context, userID, orgID string) (*Organisation, error) {
	ctx, span := startSpan(ctx, "organisations.GetForUser",
		attribute.String("user.id", userID), attribute.String("org.id", orgID))
	defer span.End()

	org, err := d.repo.Get(ctx, orgID)
	if err != nil {
		return nil, recordErr(span, errors.Wrapf(err, "[Directory GetForUser] %s", orgID))
	}

	ok, err := d.HasAccess(ctx, userID, org)
	if err != nil {
		return nil, recordErr(span, err)
	}
	if !ok {
		return nil, errors.Wrapf(apperrors.ErrNotFound, "[Directory GetForUser] %s", orgID)
	}
	return org, nil
}

// ListAccessibleTo returns every organisation userID owns or belongs to.
func (d *Directory) ListAccessibleTo(ctx context.Context, userID string) ([]*Organisation, error) {
	ctx, span := startSpan(ctx, "organisations.ListAccessibleTo", attribute.String("user.id", userID))
	defer span.End()

	orgs, err := d.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, recordErr(span, errors.Wrap(err, "[Directory ListAccessibleTo]"))
	}
	span.SetAttributes(attribute.Int("org.count", len(orgs)))
	return orgs, nil
}

// HasAccess is true iff userID owns org or is one of its members.
func (d *Directory) HasAccess(ctx context.Context, userID string, org *Organisation) (bool, error) {
	if org == nil || userID == "" {
		return false, nil
	}
	if org.OwnerID == userID {
		return true, nil
	}
	ok, err := d.repo.IsMember(ctx, org.ID, userID)
	if err != nil {
		return false, errors.Wrap(err, "[Directory HasAccess]")
	}
	return ok, nil
}

// AddMember adds userID to the organisation on behalf of callerID, who must be
// the owner. A caller with no access at all sees ErrNotFound; a member who is
// not the owner gets ErrForbidden. Adding an existing member is a no-op.
func (d *Directory) AddMember(ctx context.Context, callerID, orgID, userID string) error {
	ctx, span := startSpan(ctx, "organisations.AddMember",
		attribute.String("caller.id", callerID),
		attribute.String("org.id", orgID),
		attribute.String("user.id", userID))
	defer span.End()

	org, err := d.repo.Get(ctx, orgID)
	if err != nil {
		return recordErr(span, errors.Wrapf(err, "[Directory AddMember] org %s", orgID))
	}

	if org.OwnerID != callerID {
		ok, err := d.HasAccess(ctx, callerID, org)
		if err != nil {
			return recordErr(span, err)
		}
		if !ok {
			return errors.Wrapf(apperrors.ErrNotFound, "[Directory AddMember] org %s", orgID)
		}
		return errors.Wrapf(apperrors.ErrForbidden, "[Directory AddMember] only the owner can add members to %s", orgID)
	}

	if err := d.repo.AddMember(ctx, orgID, userID); err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			// The organisation was resolved above, so the missing id is the user.
			return errors.Wrapf(apperrors.ErrUserNotFound, "[Directory AddMember] %s", userID)
		}
		return recordErr(span, errors.Wrapf(err, "[Directory AddMember] user %s", userID))
	}
	return nil
}

// Members lists the member ids of an organisation. The owner is only listed
// when explicitly added as a member.
func (d *Directory) Members(ctx context.Context, orgID string) ([]string, error) {
	ctx, span := startSpan(ctx, "organisations.Members", attribute.String("org.id", orgID))
	defer span.End()

	members, err := d.repo.Members(ctx, orgID)
	if err != nil {
		return nil, recordErr(span, errors.Wrapf(err, "[Directory Members] %s", orgID))
	}
	return members, nil
}

// CanViewUser is true when viewerID is targetID or the two share an organisation.
func (d *Directory) CanViewUser(ctx context.Context, viewerID, targetID string) (bool, error) {
	if viewerID == "" || targetID == "" {
		return false, nil
	}
	if viewerID == targetID {
		return true, nil
	}

	ctx, span := startSpan(ctx, "organisations.CanViewUser",
		attribute.String("viewer.id", viewerID), attribute.String("user.id", targetID))
	defer span.End()

	ok, err := d.repo.ShareOrganisation(ctx, viewerID, targetID)
	if err != nil {
		return false, recordErr(span, errors.Wrap(err, "[Directory CanViewUser]"))
	}
	return ok, nil
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return telemetry.Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

func recordErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
