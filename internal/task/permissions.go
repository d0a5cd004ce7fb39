package task

import (
	"fmt"

	"github.com/nerrad567/taskdesk/internal/auth"
)

// Operation names an action on a single task.
type Operation string

const (
	OpRead     Operation = "read"
	OpUpdate   Operation = "update"
	OpDelete   Operation = "delete"
	OpReassign Operation = "reassign"
)

// Authorize decides whether requester may perform op on t.
//
// read, update and delete are allowed for an administrator, the owner, or
// the assignee. reassign is allowed for administrators only. Every other
// combination, including an unknown operation or a nil requester, is
// rejected with ErrForbidden.
func Authorize(requester *auth.User, t *Task, op Operation) error {
	if requester == nil || t == nil {
		return ErrForbidden
	}

	switch op {
	case OpRead, OpUpdate, OpDelete:
		if requester.IsAdmin() || t.IsOwner(requester.ID) || t.IsAssignee(requester.ID) {
			return nil
		}
		return ErrForbidden
	case OpReassign:
		if requester.IsAdmin() {
			return nil
		}
		return ErrForbidden
	default:
		return fmt.Errorf("%w: %w %q", ErrForbidden, ErrUnknownOperation, op)
	}
}

// CanReassign reports whether requester may set or change an assignee.
func CanReassign(requester *auth.User) bool {
	return requester.IsAdmin()
}

// SanitizeUpdate drops the assignee change from a non-admin's patch. The
// rest of the patch is kept, so a non-admin request that also tries to
// reassign still applies its other fields.
func SanitizeUpdate(requester *auth.User, p Patch) (Patch, bool) {
	if !p.TouchesAssignee() || CanReassign(requester) {
		return p, false
	}
	p.AssigneeID = nil
	return p, true
}

// SanitizeNew drops the assignee from a non-admin's create request.
func SanitizeNew(requester *auth.User, n NewTask) (NewTask, bool) {
	if n.AssigneeID == nil || CanReassign(requester) {
		return n, false
	}
	n.AssigneeID = nil
	return n, true
}

// ListScope restricts which tasks a list query returns.
type ListScope struct {
	// All means no restriction.
	All bool

	// UserID limits results to tasks owned by or assigned to this user.
	UserID string
}

// ScopeFor returns the list scope for requester: everything for an
// administrator, otherwise the union of owned and assigned tasks.
func ScopeFor(requester *auth.User) ListScope {
	if requester.IsAdmin() {
		return ListScope{All: true}
	}
	if requester == nil {
		return ListScope{}
	}
	return ListScope{UserID: requester.ID}
}

// Visible reports whether t falls inside the scope. It agrees with
// Authorize(requester, t, OpRead) for the scope's requester.
func (s ListScope) Visible(t *Task) bool {
	if s.All {
		return true
	}
	return t.IsOwner(s.UserID) || t.IsAssignee(s.UserID)
}
