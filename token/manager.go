package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-org-server/internal/errors"
)

// AccessTokenLifetime is the fixed validity window of every issued token.
const AccessTokenLifetime = time.Hour

// Claims is the decoded content of a valid access token.
type Claims struct {
	Subject   string    // User ID
	IssuedAt  time.Time // iat
	ExpiresAt time.Time // exp, always IssuedAt + AccessTokenLifetime
}

// Manager issues and validates bearer access tokens. It does not check that
// the subject still exists; callers resolve the subject themselves.
type Manager struct {
	signer  Signer
	nowFunc func() time.Time
}

type ManagerOption func(*Manager)

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func New(signer Signer, options ...ManagerOption) *Manager {
	m := &Manager{
		signer: signer,
	}

	for _, opt := range options {
		opt(m)
	}

	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// Issue creates a signed token for userID valid for AccessTokenLifetime.
func (m *Manager) Issue(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("[token Issue] user id is required")
	}

	now := m.nowFunc()
	claims := jwt.MapClaims{
		"sub": userID,                               // Subject: the user the token was issued to
		"iat": now.Unix(),                           // Issued At
		"exp": now.Add(AccessTokenLifetime).Unix(), // Expiry
	}

	signed, err := m.signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("[token Issue] %w", err)
	}
	return signed, nil
}

// Validate verifies the signature of rawToken, decodes its claims and checks
// that it has not expired. A token is expired once now >= exp.
func (m *Manager) Validate(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, apperrors.ErrMalformedToken
	}

	parsed, err := jwt.ParseWithClaims(rawToken, jwt.MapClaims{}, m.signer.GetVerificationKey,
		jwt.WithValidMethods([]string{m.signer.GetSigningMethod().Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, classifyParseError(err)
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperrors.ErrMalformedToken
	}

	sub, err := mapClaims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("%w: missing sub", apperrors.ErrMalformedToken)
	}
	iat, err := mapClaims.GetIssuedAt()
	if err != nil || iat == nil {
		return nil, fmt.Errorf("%w: missing iat", apperrors.ErrMalformedToken)
	}
	exp, err := mapClaims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: missing exp", apperrors.ErrMalformedToken)
	}

	if !m.nowFunc().Before(exp.Time) {
		return nil, apperrors.ErrTokenExpired
	}

	return &Claims{
		Subject:   sub,
		IssuedAt:  iat.Time,
		ExpiresAt: exp.Time,
	}, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", apperrors.ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %v", apperrors.ErrMalformedToken, err)
	}
}
