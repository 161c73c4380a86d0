// Package tasks composes authentication, role policy and ownership
// enforcement around every task operation.
package tasks

import (
	"context"
	"fmt"
	"time"

	"tasktrack/api"
	"tasktrack/auth"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100

	maxTitleLen       = 100
	maxDescriptionLen = 500
)

// TaskStore is the persistence contract the coordinator drives. Implemented
// by store.TaskStore; faked in tests.
type TaskStore interface {
	Create(ctx context.Context, t *api.Task) error
	FindByID(ctx context.Context, id int) (*api.Task, error)
	Find(ctx context.Context, f api.TaskFilter, skip, limit int) ([]api.Task, error)
	Count(ctx context.Context, f api.TaskFilter) (int, error)
	UpdateByID(ctx context.Context, id int, t *api.Task) (*api.Task, error)
	DeleteByID(ctx context.Context, id int) (bool, error)
	Aggregate(ctx context.Context, f api.TaskFilter) (api.TaskStats, error)
}

// Coordinator exposes one call per task operation, each taking the resolved
// identity and returning a result or an error kind from the api package.
type Coordinator struct {
	store TaskStore
}

func New(store TaskStore) *Coordinator {
	return &Coordinator{store: store}
}

type CreateParams struct {
	Title       string
	Description string
	Status      string
	Priority    string
	DueDate     *time.Time
}

type UpdateParams struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	DueDate     *time.Time
}

type ListParams struct {
	Status   string
	Priority string
	Page     int
	Limit    int
}

// Create stores a new task. The owner is always the caller; any owner field a
// client may have sent never reaches this layer.
func (c *Coordinator) Create(ctx context.Context, id api.Identity, p CreateParams) (*api.Task, error) {
	t := &api.Task{
		Title:       p.Title,
		Description: p.Description,
		Status:      api.StatusPending,
		Priority:    api.PriorityMedium,
		DueDate:     p.DueDate,
		CreatedBy:   id.UserID,
	}
	if p.Status != "" {
		status, ok := api.ParseStatus(p.Status)
		if !ok {
			return nil, fmt.Errorf("%w: invalid status %q", api.ErrValidation, p.Status)
		}
		t.Status = status
	}
	if p.Priority != "" {
		priority, ok := api.ParsePriority(p.Priority)
		if !ok {
			return nil, fmt.Errorf("%w: invalid priority %q", api.ErrValidation, p.Priority)
		}
		t.Priority = priority
	}
	if err := validateTitle(t.Title); err != nil {
		return nil, err
	}
	if err := validateDescription(t.Description); err != nil {
		return nil, err
	}

	if err := c.store.Create(ctx, t); err != nil {
		return nil, err
	}
	t.ComputeOverdue(time.Now())
	return t, nil
}

// List returns one page of tasks. Non-admin callers are constrained to their
// own tasks before any caller-supplied filters apply; page and limit are
// clamped, never rejected.
func (c *Coordinator) List(ctx context.Context, id api.Identity, p ListParams) (*api.TaskPage, error) {
	filter, err := c.scopedFilter(id, p.Status, p.Priority)
	if err != nil {
		return nil, err
	}

	page, limit := clampPage(p.Page, p.Limit)
	skip := (page - 1) * limit

	tasks, err := c.store.Find(ctx, filter, skip, limit)
	if err != nil {
		return nil, err
	}
	total, err := c.store.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for i := range tasks {
		tasks[i].ComputeOverdue(now)
	}
	if tasks == nil {
		tasks = []api.Task{}
	}

	return &api.TaskPage{
		Count: len(tasks),
		Total: total,
		Page:  page,
		Pages: (total + limit - 1) / limit,
		Tasks: tasks,
	}, nil
}

// Get fetches a single task. Existence is checked before ownership so a
// missing id looks identical to every caller.
func (c *Coordinator) Get(ctx context.Context, id api.Identity, taskID int) (*api.Task, error) {
	t, err := c.fetchOwned(ctx, id, taskID)
	if err != nil {
		return nil, err
	}
	t.ComputeOverdue(time.Now())
	return t, nil
}

// Update applies the supplied fields to an existing task. Ownership is
// evaluated against the persisted record, not the request body.
func (c *Coordinator) Update(ctx context.Context, id api.Identity, taskID int, p UpdateParams) (*api.Task, error) {
	t, err := c.fetchOwned(ctx, id, taskID)
	if err != nil {
		return nil, err
	}

	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		status, ok := api.ParseStatus(*p.Status)
		if !ok {
			return nil, fmt.Errorf("%w: invalid status %q", api.ErrValidation, *p.Status)
		}
		t.Status = status
	}
	if p.Priority != nil {
		priority, ok := api.ParsePriority(*p.Priority)
		if !ok {
			return nil, fmt.Errorf("%w: invalid priority %q", api.ErrValidation, *p.Priority)
		}
		t.Priority = priority
	}
	if p.DueDate != nil {
		t.DueDate = p.DueDate
	}
	if err := validateTitle(t.Title); err != nil {
		return nil, err
	}
	if err := validateDescription(t.Description); err != nil {
		return nil, err
	}

	updated, err := c.store.UpdateByID(ctx, taskID, t)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, api.ErrNotFound
	}
	updated.ComputeOverdue(time.Now())
	return updated, nil
}

// Delete removes a task after the same existence-then-ownership checks.
func (c *Coordinator) Delete(ctx context.Context, id api.Identity, taskID int) error {
	if _, err := c.fetchOwned(ctx, id, taskID); err != nil {
		return err
	}
	deleted, err := c.store.DeleteByID(ctx, taskID)
	if err != nil {
		return err
	}
	if !deleted {
		return api.ErrNotFound
	}
	return nil
}

// Stats aggregates the caller's visible tasks by status and priority. An
// empty scope yields zeroed counters, never a missing object.
func (c *Coordinator) Stats(ctx context.Context, id api.Identity) (*api.TaskStats, error) {
	filter, err := c.scopedFilter(id, "", "")
	if err != nil {
		return nil, err
	}
	stats, err := c.store.Aggregate(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// fetchOwned loads the task and enforces ownership. NotFound is returned
// before any ownership evaluation.
func (c *Coordinator) fetchOwned(ctx context.Context, id api.Identity, taskID int) (*api.Task, error) {
	t, err := c.store.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, api.ErrNotFound
	}
	if !auth.CanAccess(id, t.CreatedBy) {
		return nil, api.ErrForbidden
	}
	return t, nil
}

// scopedFilter narrows the query to the caller's own tasks for non-admins,
// then layers the caller-supplied status/priority filters on top.
func (c *Coordinator) scopedFilter(id api.Identity, status, priority string) (api.TaskFilter, error) {
	var f api.TaskFilter
	if id.Role != api.RoleAdmin {
		owner := id.UserID
		f.CreatedBy = &owner
	}
	if status != "" {
		s, ok := api.ParseStatus(status)
		if !ok {
			return f, fmt.Errorf("%w: invalid status %q", api.ErrValidation, status)
		}
		f.Status = &s
	}
	if priority != "" {
		p, ok := api.ParsePriority(priority)
		if !ok {
			return f, fmt.Errorf("%w: invalid priority %q", api.ErrValidation, priority)
		}
		f.Priority = &p
	}
	return f, nil
}

func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

func validateTitle(title string) error {
	if title == "" {
		return fmt.Errorf("%w: title is required", api.ErrValidation)
	}
	if len(title) > maxTitleLen {
		return fmt.Errorf("%w: title cannot be more than %d characters", api.ErrValidation, maxTitleLen)
	}
	return nil
}

func validateDescription(desc string) error {
	if desc == "" {
		return fmt.Errorf("%w: description is required", api.ErrValidation)
	}
	if len(desc) > maxDescriptionLen {
		return fmt.Errorf("%w: description cannot be more than %d characters", api.ErrValidation, maxDescriptionLen)
	}
	return nil
}
