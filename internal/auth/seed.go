package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// seedPasswordBytes is the number of random bytes for the seed admin password.
const seedPasswordBytes = 16

// SeedAdmin creates the bootstrap administrator on first boot. It does
// nothing when email is empty or an account with that email already exists.
// The generated password is logged once and must be changed.
// Returns the generated password (empty string if seeding was skipped).
func SeedAdmin(ctx context.Context, users UserRepository, hasher *Hasher, email, name string, logger *slog.Logger) (string, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return "", nil
	}
	if !IsValidEmail(email) {
		return "", fmt.Errorf("seed admin: %w", ErrInvalidEmail)
	}

	if _, err := users.GetByEmail(ctx, email); err == nil {
		logger.Info("bootstrap admin exists, skipping seed", "email", email)
		return "", nil
	} else if !errors.Is(err, ErrUserNotFound) {
		return "", fmt.Errorf("checking bootstrap admin: %w", err)
	}

	passwordBytes := make([]byte, seedPasswordBytes)
	if _, err := rand.Read(passwordBytes); err != nil {
		return "", fmt.Errorf("generating seed password: %w", err)
	}
	password := hex.EncodeToString(passwordBytes)

	digest, err := hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}

	if strings.TrimSpace(name) == "" {
		name = "Administrator"
	}
	admin := &User{
		Email:        email,
		PasswordHash: digest,
		Role:         RoleAdmin,
		Name:         strings.TrimSpace(name),
	}
	if err := users.Create(ctx, admin); err != nil {
		return "", fmt.Errorf("creating seed admin: %w", err)
	}

	logger.Warn("bootstrap admin account created",
		"email", email,
		"initial_password", password,
		"action_required", "change this password immediately",
	)
	return password, nil
}

// Promote grants RoleAdmin to the account with the given email. This is the
// out-of-band path for creating further administrators.
func Promote(ctx context.Context, users UserRepository, email string) (*User, error) {
	user, err := users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.Role == RoleAdmin {
		return user, nil
	}
	return users.UpdateRole(ctx, user.ID, RoleAdmin)
}
