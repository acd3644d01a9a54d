// Package auth verifies the bearer tokens of services calling the API.
package auth

import (
	"errors"
	"strings"
)

var ErrUnauthenticated = errors.New("invalid or expired token")

// Identity is the caller a token was issued to.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

type TokenVerifier interface {
	Verify(token string) (*Identity, error)
}

// Chain accepts a token when any of its verifiers does, trying them in order.
type Chain []TokenVerifier

func (c Chain) Verify(token string) (*Identity, error) {
	err := ErrUnauthenticated
	for _, v := range c {
		if v == nil {
			continue
		}
		id, verr := v.Verify(token)
		if verr == nil {
			return id, nil
		}
		err = verr
	}
	return nil, err
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
