package task

import "errors"

// Sentinel errors for task operations.
var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrForbidden        = errors.New("not permitted to access this task")
	ErrTitleRequired    = errors.New("title is required")
	ErrAssigneeNotFound = errors.New("assignee does not exist")
	ErrUnknownOperation = errors.New("unknown task operation")
)
