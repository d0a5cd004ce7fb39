package task

import (
	"strings"
	"time"
)

// Task is a unit of work with one immutable owner and at most one assignee.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Completed   bool      `json:"completed"`
	OwnerID     string    `json:"owner_id"`
	AssigneeID  *string   `json:"assignee_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsOwner reports whether userID created the task.
func (t *Task) IsOwner(userID string) bool {
	return userID != "" && t.OwnerID == userID
}

// IsAssignee reports whether userID is the current assignee. An unassigned
// task has no assignee and never matches.
func (t *Task) IsAssignee(userID string) bool {
	return userID != "" && t.AssigneeID != nil && *t.AssigneeID == userID
}

// NewTask holds the fields supplied when creating a task.
type NewTask struct {
	Title       string
	Description string
	Completed   bool
	AssigneeID  *string
}

// Patch is a partial update. Nil fields are left unchanged.
//
// AssigneeID distinguishes "leave alone" (nil) from "set": a pointer to an
// empty string clears the assignee.
type Patch struct {
	Title       *string
	Description *string
	Completed   *bool
	AssigneeID  *string
}

// TouchesAssignee reports whether the patch would change the assignee.
func (p Patch) TouchesAssignee() bool {
	return p.AssigneeID != nil
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Completed == nil && p.AssigneeID == nil
}

// Validate trims text fields in place and checks the title.
func (n *NewTask) Validate() error {
	n.Title = strings.TrimSpace(n.Title)
	n.Description = strings.TrimSpace(n.Description)
	if n.Title == "" {
		return ErrTitleRequired
	}
	if n.AssigneeID != nil && strings.TrimSpace(*n.AssigneeID) == "" {
		n.AssigneeID = nil
	}
	return nil
}

// Validate trims text fields in place and rejects a blank title.
func (p *Patch) Validate() error {
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return ErrTitleRequired
		}
		p.Title = &title
	}
	if p.Description != nil {
		desc := strings.TrimSpace(*p.Description)
		p.Description = &desc
	}
	if p.AssigneeID != nil {
		id := strings.TrimSpace(*p.AssigneeID)
		p.AssigneeID = &id
	}
	return nil
}
