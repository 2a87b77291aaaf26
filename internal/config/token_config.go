package config

import (
	"errors"
	"fmt"
)

// MinSecretLength is the shortest HMAC signing secret accepted at startup.
const MinSecretLength = 32

const (
	HasherBcrypt   = "bcrypt"
	HasherArgon2id = "argon2id"
)

type TokenConfig interface {
	GetSigningSecret() string
	GetPasswordHasher() string
}

type Token struct {
	Secret         string `env:"JWT_SECRET"`
	PasswordHasher string `env:"PASSWORD_HASHER" envDefault:"bcrypt"`
}

var _ TokenConfig = Token{}

func (t Token) GetSigningSecret() string {
	return t.Secret
}

func (t Token) GetPasswordHasher() string {
	return t.PasswordHasher
}

func (t Token) validate() error {
	if t.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(t.Secret) < MinSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", MinSecretLength)
	}
	switch t.PasswordHasher {
	case HasherBcrypt, HasherArgon2id:
		return nil
	default:
		return fmt.Errorf("unsupported PASSWORD_HASHER %q", t.PasswordHasher)
	}
}
