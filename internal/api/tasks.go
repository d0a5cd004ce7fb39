package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/taskdesk/internal/audit"
	"github.com/nerrad567/taskdesk/internal/auth"
	"github.com/nerrad567/taskdesk/internal/task"
)

// optionalString tells an absent JSON field from an explicit null.
type optionalString struct {
	Set   bool
	Value *string
}

func (o *optionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(data, []byte("null")) {
		o.Value = nil
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

type createTaskRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Completed   bool    `json:"completed"`
	AssigneeID  *string `json:"assignee_id"`
}

type updateTaskRequest struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	Completed   *bool          `json:"completed"`
	AssigneeID  optionalString `json:"assignee_id"`
}

// patch converts the request into a task.Patch. An explicit null assignee
// becomes a pointer to "", which clears it.
func (req updateTaskRequest) patch() task.Patch {
	p := task.Patch{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	}
	if req.AssigneeID.Set {
		id := ""
		if req.AssigneeID.Value != nil {
			id = *req.AssigneeID.Value
		}
		p.AssigneeID = &id
	}
	return p
}

// handleListTasks returns the tasks visible to the caller: everything for an
// administrator, otherwise the tasks they own or are assigned to.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	user := userFromContext(r.Context())

	tasks, err := s.tasks.List(r.Context(), task.ScopeFor(user))
	if err != nil {
		s.logger.Error("list tasks failed", "user_id", user.ID, "error", err)
		writeInternalError(w, "failed to list tasks")
		return
	}
	s.influx.WriteTaskOperation("list", string(user.Role), true, time.Since(start))

	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// handleCreateTask creates a task owned by the caller. Only administrators
// may set an assignee; anyone else's assignee is dropped.
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	user := userFromContext(r.Context())

	var req createTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input := task.NewTask{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
		AssigneeID:  req.AssigneeID,
	}
	if err := input.Validate(); err != nil {
		writeValidation(w, err.Error())
		return
	}
	input, stripped := task.SanitizeNew(user, input)
	if stripped {
		s.logger.Info("dropped assignee from non-admin task create", "user_id", user.ID)
	}

	created, err := s.tasks.Create(r.Context(), user.ID, input)
	if err != nil {
		if errors.Is(err, task.ErrAssigneeNotFound) {
			writeValidation(w, err.Error())
			return
		}
		s.logger.Error("create task failed", "user_id", user.ID, "error", err)
		writeInternalError(w, "failed to create task")
		return
	}

	s.influx.WriteTaskOperation("create", string(user.Role), true, time.Since(start))
	s.recorder.Record(audit.ActionTaskCreate, audit.EntityTask, created.ID, user.ID, map[string]any{
		"title":    created.Title,
		"assignee": created.AssigneeID,
	})
	s.publishTaskEvent(task.NewEvent(task.EventCreated, created, user.ID))

	writeJSON(w, http.StatusCreated, created)
}

// handleGetTask returns one task if the caller may read it.
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	user := userFromContext(r.Context())

	t, ok := s.loadAuthorizedTask(w, r, user, task.OpRead, start)
	if !ok {
		return
	}
	s.influx.WriteTaskOperation(string(task.OpRead), string(user.Role), true, time.Since(start))
	writeJSON(w, http.StatusOK, t)
}

// handleUpdateTask applies a partial update. A non-administrator's assignee
// change is silently removed and the rest of the update still applies.
func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	user := userFromContext(r.Context())

	current, ok := s.loadAuthorizedTask(w, r, user, task.OpUpdate, start)
	if !ok {
		return
	}

	var req updateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	patch := req.patch()
	if err := patch.Validate(); err != nil {
		writeValidation(w, err.Error())
		return
	}

	patch, stripped := task.SanitizeUpdate(user, patch)
	if stripped {
		s.logger.Info("dropped assignee change from non-admin task update",
			"user_id", user.ID, "task_id", current.ID)
	}
	if patch.TouchesAssignee() {
		if err := task.Authorize(user, current, task.OpReassign); err != nil {
			s.deny(w, user, task.OpReassign, start)
			return
		}
	}

	if patch.IsEmpty() {
		writeJSON(w, http.StatusOK, current)
		return
	}

	updated, err := s.tasks.Update(r.Context(), current.ID, patch)
	if err != nil {
		switch {
		case errors.Is(err, task.ErrTaskNotFound):
			writeNotFound(w, "task not found")
		case errors.Is(err, task.ErrAssigneeNotFound):
			writeValidation(w, err.Error())
		default:
			s.logger.Error("update task failed", "task_id", current.ID, "error", err)
			writeInternalError(w, "failed to update task")
		}
		return
	}

	s.influx.WriteTaskOperation(string(task.OpUpdate), string(user.Role), true, time.Since(start))
	s.recorder.Record(audit.ActionTaskUpdate, audit.EntityTask, updated.ID, user.ID, nil)
	if patch.TouchesAssignee() && !sameAssignee(current.AssigneeID, updated.AssigneeID) {
		s.recorder.Record(audit.ActionTaskReassign, audit.EntityTask, updated.ID, user.ID, map[string]any{
			"from": current.AssigneeID,
			"to":   updated.AssigneeID,
		})
	}

	s.publishTaskEvent(task.NewEvent(task.EventUpdated, updated, user.ID))

	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteTask removes a task the caller may delete.
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	user := userFromContext(r.Context())

	t, ok := s.loadAuthorizedTask(w, r, user, task.OpDelete, start)
	if !ok {
		return
	}

	if err := s.tasks.Delete(r.Context(), t.ID); err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			writeNotFound(w, "task not found")
			return
		}
		s.logger.Error("delete task failed", "task_id", t.ID, "error", err)
		writeInternalError(w, "failed to delete task")
		return
	}

	s.influx.WriteTaskOperation(string(task.OpDelete), string(user.Role), true, time.Since(start))
	s.recorder.Record(audit.ActionTaskDelete, audit.EntityTask, t.ID, user.ID, map[string]any{
		"title": t.Title,
	})
	s.publishTaskEvent(task.NewEvent(task.EventDeleted, t, user.ID))

	writeJSON(w, http.StatusOK, map[string]string{"message": "task deleted"})
}

// loadAuthorizedTask fetches the {id} task and checks op against it,
// writing 404 or 403 itself when the answer is no.
func (s *Server) loadAuthorizedTask(w http.ResponseWriter, r *http.Request, user *auth.User, op task.Operation, start time.Time) (*task.Task, bool) {
	id := chi.URLParam(r, "id")

	t, err := s.tasks.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			writeNotFound(w, "task not found")
			return nil, false
		}
		s.logger.Error("get task failed", "task_id", id, "error", err)
		writeInternalError(w, "failed to get task")
		return nil, false
	}

	if err := task.Authorize(user, t, op); err != nil {
		s.deny(w, user, op, start)
		return nil, false
	}
	return t, true
}

func (s *Server) deny(w http.ResponseWriter, user *auth.User, op task.Operation, start time.Time) {
	s.influx.WriteTaskOperation(string(op), string(user.Role), false, time.Since(start))
	writeForbidden(w, task.ErrForbidden.Error())
}

func sameAssignee(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
