package server

import (
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/go-org-server/internal/errors"
	"github.com/jrsteele09/go-org-server/internal/utils"
	"github.com/jrsteele09/go-org-server/organisations"
	"github.com/rs/zerolog"
)

// CreateOrganisationRequest is the body of POST /api/organisations.
type CreateOrganisationRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// AddMemberRequest is the body of POST /api/organisations/{orgId}/users.
type AddMemberRequest struct {
	UserID *string `json:"userId"`
}

// OrganisationList is the body of a non-empty GET /api/organisations.
type OrganisationList struct {
	Organisation []organisations.Summary `json:"organisation"`
}

// GetUserHandler returns a user the caller is, or shares an organisation with.
// Any other id is reported exactly like an unknown one.
func (s *Server) GetUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := UserFromContext(r.Context())
		if !ok {
			writeUnauthorized(w)
			return
		}
		logger := zerolog.Ctx(r.Context())
		targetID := r.PathValue("id")

		visible, err := s.directory.CanViewUser(r.Context(), caller.ID, targetID)
		if err != nil {
			logger.Error().Err(err).Msg("[GetUserHandler] access check failed")
			writeInternalError(w)
			return
		}
		if !visible {
			writeUserNotFound(w)
			return
		}

		user, err := s.auth.FindByID(r.Context(), targetID)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				writeUserNotFound(w)
				return
			}
			logger.Error().Err(err).Msg("[GetUserHandler] user lookup failed")
			writeInternalError(w)
			return
		}

		writeSuccess(w, http.StatusOK, "User Found", user.Summary())
	}
}

func (s *Server) ListOrganisationsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := UserFromContext(r.Context())
		if !ok {
			writeUnauthorized(w)
			return
		}

		orgs, err := s.directory.ListAccessibleTo(r.Context(), caller.ID)
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("[ListOrganisationsHandler] list failed")
			writeInternalError(w)
			return
		}
		if len(orgs) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		writeJSON(w, http.StatusOK, OrganisationList{Organisation: organisations.Summaries(orgs)})
	}
}

func (s *Server) CreateOrganisationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := UserFromContext(r.Context())
		if !ok {
			writeUnauthorized(w)
			return
		}
		logger := zerolog.Ctx(r.Context())

		var req CreateOrganisationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			logger.Debug().Err(err).Msg("[CreateOrganisationHandler] invalid request body")
			writeBadRequest(w)
			return
		}

		org, err := s.directory.Create(r.Context(), caller.ID,
			strings.TrimSpace(utils.Value(req.Name)), utils.Value(req.Description))
		if err != nil {
			if apperrors.Is(err, apperrors.ErrInvalidInput) {
				writeBadRequest(w)
				return
			}
			logger.Error().Err(err).Msg("[CreateOrganisationHandler] create failed")
			writeInternalError(w)
			return
		}

		writeSuccess(w, http.StatusCreated, "Organisation created successfully", org.Summary())
	}
}

func (s *Server) GetOrganisationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := UserFromContext(r.Context())
		if !ok {
			writeUnauthorized(w)
			return
		}

		org, err := s.directory.GetForUser(r.Context(), caller.ID, r.PathValue("orgId"))
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				writeOrganisationNotFound(w)
				return
			}
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("[GetOrganisationHandler] lookup failed")
			writeInternalError(w)
			return
		}

		writeSuccess(w, http.StatusOK, "Organisation Retrieved", org.Summary())
	}
}

// AddMemberHandler adds a user to an organisation the caller owns.
func (s *Server) AddMemberHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := UserFromContext(r.Context())
		if !ok {
			writeUnauthorized(w)
			return
		}
		logger := zerolog.Ctx(r.Context())

		var req AddMemberRequest
		if err := decodeJSON(w, r, &req); err != nil {
			logger.Debug().Err(err).Msg("[AddMemberHandler] invalid request body")
			writeBadRequest(w)
			return
		}
		userID := strings.TrimSpace(utils.Value(req.UserID))
		if userID == "" {
			writeValidationError(w, apperrors.NewValidationError("userId", apperrors.ReasonInvalidInput))
			return
		}

		err := s.directory.AddMember(r.Context(), caller.ID, r.PathValue("orgId"), userID)
		switch {
		case err == nil:
			writeSuccess(w, http.StatusOK, "User added to organisation successfully", nil)
		case apperrors.Is(err, apperrors.ErrUserNotFound):
			writeUserNotFound(w)
		case apperrors.Is(err, apperrors.ErrNotFound):
			writeOrganisationNotFound(w)
		case apperrors.Is(err, apperrors.ErrForbidden):
			writeError(w, http.StatusForbidden, "Forbidden", "Only the organisation owner can add members")
		default:
			logger.Error().Err(err).Msg("[AddMemberHandler] add member failed")
			writeInternalError(w)
		}
	}
}

func writeUserNotFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "Not Found", "User not found")
}

func writeOrganisationNotFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "Not Found", "Organisation not found")
}
