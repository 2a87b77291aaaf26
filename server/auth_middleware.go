package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/go-org-server/internal/errors"
	"github.com/jrsteele09/go-org-server/users"
	"github.com/rs/zerolog"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyUser stores the authenticated *users.User
	ContextKeyUser ContextKey = "user"
)

// RequireAuth is the access gate for API routes. It accepts only
// "Authorization: Bearer <token>", validates the token and resolves its
// subject to an existing user. Every rejection is the same 401.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			user, err := s.authenticate(r)
			if err != nil {
				logger := zerolog.Ctx(r.Context())
				if apperrors.Is(err, apperrors.ErrUnauthorized) {
					logger.Debug().Err(err).Msg("[RequireAuth] request rejected")
					writeUnauthorized(w)
					return
				}
				logger.Error().Err(err).Msg("[RequireAuth] failed to resolve token subject")
				writeInternalError(w)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUser, user)
			next(w, r.WithContext(ctx))
		}
	}
}

// authenticate resolves the request's bearer token to a user. Anything the
// client can fix by logging in again wraps errors.ErrUnauthorized.
func (s *Server) authenticate(r *http.Request) (*users.User, error) {
	rawToken, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrUnauthorized, "missing or malformed authorization header")
	}

	claims, err := s.tokens.Validate(rawToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrUnauthorized, err)
	}

	user, err := s.auth.FindByID(r.Context(), claims.Subject)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: token subject %s no longer exists", apperrors.ErrUnauthorized, claims.Subject)
		}
		return nil, err
	}
	return user, nil
}

// UserFromContext returns the user placed on the context by RequireAuth.
func UserFromContext(ctx context.Context) (*users.User, bool) {
	user, ok := ctx.Value(ContextKeyUser).(*users.User)
	return user, ok && user != nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
