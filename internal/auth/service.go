package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RegisterInput carries the fields accepted at self-registration. There is
// deliberately no role field: new accounts are always RoleUser.
type RegisterInput struct {
	Email       string
	Password    string
	Name        string
	WorkArea    string
	Description string
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *User
}

// Service implements registration and login on top of the repository,
// hasher and token issuer.
type Service struct {
	users  UserRepository
	hasher *Hasher
	tokens *TokenIssuer

	// dummyDigest is verified against when the email is unknown so a miss
	// costs the same as a wrong password.
	dummyDigest string
}

// NewService creates a Service.
func NewService(users UserRepository, hasher *Hasher, tokens *TokenIssuer) (*Service, error) {
	dummy, err := hasher.Hash("taskdesk-timing-equaliser")
	if err != nil {
		return nil, fmt.Errorf("preparing dummy digest: %w", err)
	}
	return &Service{users: users, hasher: hasher, tokens: tokens, dummyDigest: dummy}, nil
}

// Register validates input and creates a standard user.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	email := NormalizeEmail(in.Email)
	if !IsValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if len(in.Password) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrNameRequired
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{
		Email:        email,
		PasswordHash: digest,
		Role:         RoleUser,
		Name:         name,
		WorkArea:     strings.TrimSpace(in.WorkArea),
		Description:  strings.TrimSpace(in.Description),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks credentials and issues a token. An unknown email and a wrong
// password both return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.hasher.Verify(password, s.dummyDigest)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}
