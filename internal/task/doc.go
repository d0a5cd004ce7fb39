// Package task holds the task model, its SQLite repository and the
// per-task permission rules.
//
// Access is decided in one place, Authorize, and the list query is derived
// from the same rule by ScopeFor:
//
//	read, update, delete   admin, owner or assignee
//	reassign               admin only
//
// A non-admin update that tries to change the assignee is not rejected.
// SanitizeUpdate removes the assignee change and the remaining fields are
// applied.
package task
