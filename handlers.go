package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"tasktrack/api"
	"tasktrack/auth"
	"tasktrack/tasks"
)

const requestTimeout = 3 * time.Second

// userStore is the slice of the user store the HTTP layer needs. Implemented
// by store.UserStore; faked in tests.
type userStore interface {
	FindByID(ctx context.Context, id int) (*api.User, error)
	FindByEmail(ctx context.Context, email string) (*api.User, error)
	Create(ctx context.Context, name, email, passwordHash string, role api.Role) (*api.User, error)
	List(ctx context.Context) ([]api.User, error)
}

type app struct {
	users  userStore
	tasks  *tasks.Coordinator
	tokens *auth.TokenService
}

type createTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
}

type updateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	Priority    *string    `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
}

func (a *app) createTask(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		errorJSON(w, http.StatusUnauthorized, api.ErrUnauthenticated.Error())
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}

	task, err := a.tasks.Create(ctx, identity, tasks.CreateParams{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
	})
	if err != nil {
		failJSON(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (a *app) listTasks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		errorJSON(w, http.StatusUnauthorized, api.ErrUnauthenticated.Error())
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	result, err := a.tasks.List(ctx, identity, tasks.ListParams{
		Status:   q.Get("status"),
		Priority: q.Get("priority"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		failJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *app) getTask(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	identity, taskID, ok := a.taskRequest(w, r)
	if !ok {
		return
	}

	task, err := a.tasks.Get(ctx, identity, taskID)
	if err != nil {
		failJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (a *app) updateTask(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	identity, taskID, ok := a.taskRequest(w, r)
	if !ok {
		return
	}

	var req updateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}

	task, err := a.tasks.Update(ctx, identity, taskID, tasks.UpdateParams{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
	})
	if err != nil {
		failJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (a *app) deleteTask(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	identity, taskID, ok := a.taskRequest(w, r)
	if !ok {
		return
	}

	if err := a.tasks.Delete(ctx, identity, taskID); err != nil {
		failJSON(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *app) taskStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		errorJSON(w, http.StatusUnauthorized, api.ErrUnauthenticated.Error())
		return
	}

	stats, err := a.tasks.Stats(ctx, identity)
	if err != nil {
		failJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// taskRequest pulls the identity and the task id out of a single-resource
// request, writing the error response itself when either is unusable.
func (a *app) taskRequest(w http.ResponseWriter, r *http.Request) (api.Identity, int, bool) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		errorJSON(w, http.StatusUnauthorized, api.ErrUnauthenticated.Error())
		return api.Identity{}, 0, false
	}
	taskID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "Invalid task ID")
		return api.Identity{}, 0, false
	}
	return identity, taskID, true
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Error("failed to encode response")
	}
}

func errorJSON(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// failJSON maps an error kind from the lower layers to an HTTP status.
// Token errors collapse into one generic unauthenticated message.
func failJSON(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		errorJSON(w, http.StatusGatewayTimeout, "request timed out")
	case errors.Is(err, api.ErrValidation):
		errorJSON(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, api.ErrEmailTaken):
		errorJSON(w, http.StatusConflict, err.Error())
	case errors.Is(err, api.ErrUnauthenticated),
		errors.Is(err, api.ErrTokenExpired),
		errors.Is(err, api.ErrTokenInvalid):
		errorJSON(w, http.StatusUnauthorized, api.ErrUnauthenticated.Error())
	case errors.Is(err, api.ErrForbidden):
		errorJSON(w, http.StatusForbidden, err.Error())
	case errors.Is(err, api.ErrNotFound):
		errorJSON(w, http.StatusNotFound, err.Error())
	default:
		logrus.WithError(err).Error("request failed")
		errorJSON(w, http.StatusInternalServerError, "server error")
	}
}
