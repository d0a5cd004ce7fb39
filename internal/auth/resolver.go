package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const bearerScheme = "bearer"

// Resolver turns an Authorization header into the current User.
//
// The user is fetched from the store on every call, so a deleted account is
// rejected and a role change takes effect on the next request even though
// the token itself is still valid.
type Resolver struct {
	tokens *TokenIssuer
	users  UserRepository
}

// NewResolver creates a Resolver.
func NewResolver(tokens *TokenIssuer, users UserRepository) *Resolver {
	return &Resolver{tokens: tokens, users: users}
}

// Resolve returns the user named by a "Bearer <token>" header value.
//
// It returns ErrUnauthenticated for a missing header, a different scheme, a
// token that fails verification, or a user that no longer exists. Store
// failures are returned wrapped so callers can answer with a server error.
func (r *Resolver) Resolve(ctx context.Context, header string) (*User, error) {
	token, ok := BearerToken(header)
	if !ok {
		return nil, ErrUnauthenticated
	}

	userID, err := r.tokens.Verify(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("resolving user %s: %w", userID, err)
	}
	return user, nil
}

// BearerToken extracts the credential from an Authorization header value.
// The scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
