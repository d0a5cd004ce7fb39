package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/taskdesk/internal/audit"
	"github.com/nerrad567/taskdesk/internal/auth"
)

// updateRoleRequest is the body of PUT /users/{id}. Every other field in the
// body is ignored.
type updateRoleRequest struct {
	Role auth.Role `json:"role"`
}

// handleListUsers returns all accounts.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		s.logger.Error("list users failed", "error", err)
		writeInternalError(w, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

// handleGetUser returns a single account by ID.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("get user failed", "error", err)
		writeInternalError(w, "failed to get user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// handleUpdateUserRole changes an account's role. This is the only path
// through which a role can change.
func (s *Server) handleUpdateUserRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	caller := userFromContext(r.Context())

	var req updateRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !auth.IsValidRole(req.Role) {
		writeValidation(w, "invalid role: must be user or admin")
		return
	}
	if id == caller.ID && req.Role != caller.Role {
		writeBadRequest(w, "cannot change your own role")
		return
	}

	before, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("get user for role update failed", "error", err)
		writeInternalError(w, "failed to update user")
		return
	}

	updated, err := s.users.UpdateRole(r.Context(), id, req.Role)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("update user role failed", "error", err)
		writeInternalError(w, "failed to update user")
		return
	}

	if before.Role != updated.Role {
		s.logger.Info("user role changed", "user_id", id, "from", before.Role, "to", updated.Role, "changed_by", caller.ID)
		s.recorder.Record(audit.ActionRoleChange, audit.EntityUser, id, caller.ID, map[string]any{
			"from": before.Role,
			"to":   updated.Role,
		})
	}

	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteUser removes an account. Tasks it owns go with it and tasks
// assigned to it become unassigned.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	caller := userFromContext(r.Context())

	if id == caller.ID {
		writeBadRequest(w, auth.ErrSelfDeletion.Error())
		return
	}

	user, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("get user for delete failed", "error", err)
		writeInternalError(w, "failed to delete user")
		return
	}

	if err := s.users.Delete(r.Context(), id); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("delete user failed", "error", err)
		writeInternalError(w, "failed to delete user")
		return
	}

	s.discardUpload(&user.ProfilePicture)
	s.logger.Info("user deleted", "user_id", id, "deleted_by", caller.ID)
	s.recorder.Record(audit.ActionUserDelete, audit.EntityUser, id, caller.ID, map[string]any{
		"email": user.Email,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}
