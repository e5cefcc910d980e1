package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"taskdeck/internal/models"
)

// TaskHandler handles HTTP requests for task CRUD, completion toggling
// and rescheduling.
type TaskHandler struct {
	Tasks *TaskService
}

// List handles GET /api/tasks.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	h.writeList(w, r, h.Tasks.List)
}

// Completed handles GET /api/tasks/completed.
func (h *TaskHandler) Completed(w http.ResponseWriter, r *http.Request) {
	h.writeList(w, r, h.Tasks.Completed)
}

// Pending handles GET /api/tasks/pending.
func (h *TaskHandler) Pending(w http.ResponseWriter, r *http.Request) {
	h.writeList(w, r, h.Tasks.Pending)
}

func (h *TaskHandler) writeList(w http.ResponseWriter, r *http.Request,
	list func(ctx context.Context, userID string) ([]models.Task, error)) {
	tasks, err := list(r.Context(), GetUserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "task lookup failed")
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// Create handles POST /api/tasks.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var draft models.TaskDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if draft.Title == "" {
		writeError(w, http.StatusUnprocessableEntity, "title is required")
		return
	}

	task, err := h.Tasks.Create(r.Context(), GetUserIDFromContext(r.Context()), draft)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "create failed")
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// ToggleComplete handles PATCH /api/tasks/{id}/complete.
func (h *TaskHandler) ToggleComplete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	task, err := h.Tasks.ToggleComplete(r.Context(), GetUserIDFromContext(r.Context()), id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "toggle failed")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Delay handles PATCH /api/tasks/{id}/delay.
func (h *TaskHandler) Delay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DelayMinutes int `json:"delay_minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DelayMinutes <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "delay_minutes must be positive")
		return
	}

	id := chi.URLParam(r, "id")
	task, err := h.Tasks.Delay(r.Context(), GetUserIDFromContext(r.Context()), id, req.DelayMinutes)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "delay failed")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Delete handles DELETE /api/tasks/{id}.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.Tasks.Delete(r.Context(), GetUserIDFromContext(r.Context()), id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
