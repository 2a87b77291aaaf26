package server

import (
	"net/http"

	"github.com/jrsteele09/go-org-server/auth"
	apperrors "github.com/jrsteele09/go-org-server/internal/errors"
	"github.com/jrsteele09/go-org-server/internal/utils"
	"github.com/jrsteele09/go-org-server/users"
	"github.com/rs/zerolog"
)

// RegisterRequest is the body of POST /auth/register. Absent fields decode
// to nil and are reported by the registration validation.
type RegisterRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email"`
	Password  *string `json:"password"`
	Phone     *string `json:"phone"`
}

func (r RegisterRequest) toRegistration() auth.RegistrationRequest {
	return auth.RegistrationRequest{
		FirstName: utils.Value(r.FirstName),
		LastName:  utils.Value(r.LastName),
		Email:     utils.Value(r.Email),
		Password:  utils.Value(r.Password),
		Phone:     utils.Value(r.Phone),
	}
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// AuthResponse is the data of a successful register or login.
type AuthResponse struct {
	AccessToken string        `json:"accessToken"`
	User        users.Summary `json:"user"`
}

func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := zerolog.Ctx(r.Context())

		var req RegisterRequest
		if err := decodeJSON(w, r, &req); err != nil {
			logger.Debug().Err(err).Msg("[RegisterHandler] invalid request body")
			writeRegistrationFailed(w)
			return
		}

		user, _, err := s.auth.Register(r.Context(), req.toRegistration())
		if err != nil {
			var verr *apperrors.ValidationError
			if apperrors.As(err, &verr) {
				writeValidationError(w, verr)
				return
			}
			logger.Error().Err(err).Msg("[RegisterHandler] registration failed")
			writeRegistrationFailed(w)
			return
		}

		accessToken, err := s.tokens.Issue(user.ID)
		if err != nil {
			logger.Error().Err(err).Str("user_id", user.ID).Msg("[RegisterHandler] failed to issue token")
			writeRegistrationFailed(w)
			return
		}

		writeSuccess(w, http.StatusCreated, "Registration successful", AuthResponse{
			AccessToken: accessToken,
			User:        user.Summary(),
		})
	}
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := zerolog.Ctx(r.Context())

		var req LoginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			logger.Debug().Err(err).Msg("[LoginHandler] invalid request body")
			writeAuthenticationFailed(w)
			return
		}

		user, err := s.auth.Authenticate(r.Context(), utils.Value(req.Email), utils.Value(req.Password))
		if err != nil {
			if !apperrors.Is(err, apperrors.ErrInvalidCredentials) {
				logger.Error().Err(err).Msg("[LoginHandler] authentication error")
				writeInternalError(w)
				return
			}
			writeAuthenticationFailed(w)
			return
		}

		accessToken, err := s.tokens.Issue(user.ID)
		if err != nil {
			logger.Error().Err(err).Str("user_id", user.ID).Msg("[LoginHandler] failed to issue token")
			writeInternalError(w)
			return
		}

		writeSuccess(w, http.StatusOK, "Login successful", AuthResponse{
			AccessToken: accessToken,
			User:        user.Summary(),
		})
	}
}

func writeRegistrationFailed(w http.ResponseWriter) {
	writeError(w, http.StatusBadRequest, "Bad request", "Registration unsuccessful")
}

func writeAuthenticationFailed(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "Bad request", "Authentication failed")
}
