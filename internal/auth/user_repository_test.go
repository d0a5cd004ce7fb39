package auth

import (
	"context"
	"errors"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestUserRepository_CreateAndGetByID(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := &User{
		Email:        "  Test@Example.com ",
		PasswordHash: "$argon2id$placeholder",
		Name:         "Test User",
		WorkArea:     "Design",
	}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if user.ID == "" || user.ID[:4] != "usr-" {
		t.Fatalf("Create() ID = %q, want usr- prefix", user.ID)
	}

	got, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Email != "test@example.com" {
		t.Errorf("Email = %q, want normalised", got.Email)
	}
	if got.Role != RoleUser {
		t.Errorf("Role = %q, want default %q", got.Role, RoleUser)
	}
	if got.Name != "Test User" || got.WorkArea != "Design" {
		t.Errorf("profile = %q/%q", got.Name, got.WorkArea)
	}
	if got.Description != "" || got.ProfilePicture != "" {
		t.Error("unset optional fields should be empty")
	}
	if got.PasswordHash != "$argon2id$placeholder" {
		t.Error("PasswordHash should be populated")
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestUserRepository_GetByEmailCaseInsensitive(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	user := seedTestUser(t, db, "alice@example.com", RoleUser)

	got, err := repo.GetByEmail(context.Background(), " ALICE@example.COM")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("ID = %q, want %q", got.ID, user.ID)
	}

	if _, err := repo.GetByEmail(context.Background(), "nobody@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByEmail(unknown) error = %v, want ErrUserNotFound", err)
	}
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	seedTestUser(t, db, "dup@example.com", RoleUser)

	err := repo.Create(context.Background(), &User{Email: "DUP@example.com", PasswordHash: "x", Name: "Dup"})
	if !errors.Is(err, ErrEmailExists) {
		t.Errorf("Create() duplicate error = %v, want ErrEmailExists", err)
	}
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	repo := NewUserRepository(testDB(t))

	if _, err := repo.GetByID(context.Background(), "usr-missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByID() error = %v, want ErrUserNotFound", err)
	}
}

func TestUserRepository_List(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)

	users, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if users == nil || len(users) != 0 {
		t.Errorf("List() on empty table = %v, want empty slice", users)
	}

	seedTestUser(t, db, "a@example.com", RoleUser)
	seedTestUser(t, db, "b@example.com", RoleAdmin)

	users, err = repo.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(users) != 2 {
		t.Errorf("List() returned %d users, want 2", len(users))
	}
}

func TestUserRepository_UpdateProfile(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	user := seedTestUser(t, db, "alice@example.com", RoleUser)

	got, err := repo.UpdateProfile(ctx, user.ID, Profile{
		Name:           strPtr("  Alice  "),
		Description:    strPtr("Writes things"),
		ProfilePicture: strPtr("/uploads/abc.png"),
	})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if got.Name != "Alice" || got.Description != "Writes things" || got.ProfilePicture != "/uploads/abc.png" {
		t.Errorf("UpdateProfile() = %+v", got)
	}
	if got.PasswordHash != user.PasswordHash {
		t.Error("UpdateProfile() must not touch the password digest")
	}
	if got.Role != RoleUser || got.Email != user.Email {
		t.Error("UpdateProfile() must not touch role or email")
	}

	// Empty patch is a no-op read.
	same, err := repo.UpdateProfile(ctx, user.ID, Profile{})
	if err != nil {
		t.Fatalf("UpdateProfile(empty) error = %v", err)
	}
	if same.Name != "Alice" {
		t.Errorf("Name = %q after empty patch", same.Name)
	}

	if _, err := repo.UpdateProfile(ctx, "usr-missing", Profile{Name: strPtr("x")}); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("UpdateProfile(missing) error = %v, want ErrUserNotFound", err)
	}
}

func TestUserRepository_UpdateRole(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	user := seedTestUser(t, db, "bob@example.com", RoleUser)

	got, err := repo.UpdateRole(ctx, user.ID, RoleAdmin)
	if err != nil {
		t.Fatalf("UpdateRole() error = %v", err)
	}
	if got.Role != RoleAdmin {
		t.Errorf("Role = %q, want admin", got.Role)
	}
	if got.PasswordHash != user.PasswordHash {
		t.Error("UpdateRole() must not touch the password digest")
	}

	if _, err := repo.UpdateRole(ctx, user.ID, Role("owner")); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("UpdateRole(owner) error = %v, want ErrInvalidRole", err)
	}
	if _, err := repo.UpdateRole(ctx, "usr-missing", RoleAdmin); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("UpdateRole(missing) error = %v, want ErrUserNotFound", err)
	}
}

func TestUserRepository_DeleteAndCount(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	user := seedTestUser(t, db, "carol@example.com", RoleUser)

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}

	if err := repo.Delete(ctx, user.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(ctx, user.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrUserNotFound", err)
	}
	if err := repo.Delete(ctx, user.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Delete() twice error = %v, want ErrUserNotFound", err)
	}
}
