package tasks

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"tasktrack/api"
)

type fakeTaskStore struct {
	nextID int
	tasks  map[int]api.Task
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{nextID: 1, tasks: map[int]api.Task{}}
}

func (f *fakeTaskStore) Create(ctx context.Context, t *api.Task) error {
	t.ID = f.nextID
	f.nextID++
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	f.tasks[t.ID] = *t
	return nil
}

func (f *fakeTaskStore) FindByID(ctx context.Context, id int) (*api.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeTaskStore) Find(ctx context.Context, filter api.TaskFilter, skip, limit int) ([]api.Task, error) {
	matched := f.matching(filter)
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if skip >= len(matched) {
		return nil, nil
	}
	matched = matched[skip:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (f *fakeTaskStore) Count(ctx context.Context, filter api.TaskFilter) (int, error) {
	return len(f.matching(filter)), nil
}

func (f *fakeTaskStore) UpdateByID(ctx context.Context, id int, t *api.Task) (*api.Task, error) {
	existing, ok := f.tasks[id]
	if !ok {
		return nil, nil
	}
	t.ID = id
	t.CreatedBy = existing.CreatedBy
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now()
	f.tasks[id] = *t
	return t, nil
}

func (f *fakeTaskStore) DeleteByID(ctx context.Context, id int) (bool, error) {
	if _, ok := f.tasks[id]; !ok {
		return false, nil
	}
	delete(f.tasks, id)
	return true, nil
}

func (f *fakeTaskStore) Aggregate(ctx context.Context, filter api.TaskFilter) (api.TaskStats, error) {
	var stats api.TaskStats
	for _, t := range f.matching(filter) {
		stats.Total++
		switch t.Status {
		case api.StatusPending:
			stats.Pending++
		case api.StatusInProgress:
			stats.InProgress++
		case api.StatusCompleted:
			stats.Completed++
		}
		switch t.Priority {
		case api.PriorityHigh:
			stats.High++
		case api.PriorityMedium:
			stats.Medium++
		case api.PriorityLow:
			stats.Low++
		}
	}
	return stats, nil
}

func (f *fakeTaskStore) matching(filter api.TaskFilter) []api.Task {
	var out []api.Task
	for _, t := range f.tasks {
		if filter.CreatedBy != nil && t.CreatedBy != *filter.CreatedBy {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && t.Priority != *filter.Priority {
			continue
		}
		out = append(out, t)
	}
	return out
}

var (
	userA = api.Identity{UserID: 1, Role: api.RoleUser}
	userB = api.Identity{UserID: 2, Role: api.RoleUser}
	admin = api.Identity{UserID: 3, Role: api.RoleAdmin}
)

func seedTask(t *testing.T, c *Coordinator, id api.Identity, title string) *api.Task {
	t.Helper()
	task, err := c.Create(context.Background(), id, CreateParams{
		Title:       title,
		Description: "description of " + title,
	})
	if err != nil {
		t.Fatalf("seed create failed: %v", err)
	}
	return task
}

func TestCreateDefaultsAndOwner(t *testing.T) {
	c := New(newFakeTaskStore())

	task, err := c.Create(context.Background(), userA, CreateParams{
		Title:       "T1",
		Description: "D1",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if task.CreatedBy != userA.UserID {
		t.Errorf("expected owner %d; got %d", userA.UserID, task.CreatedBy)
	}
	if task.Status != api.StatusPending {
		t.Errorf("expected default status pending; got %s", task.Status)
	}
	if task.Priority != api.PriorityMedium {
		t.Errorf("expected default priority medium; got %s", task.Priority)
	}
	if task.ID == 0 {
		t.Error("expected new task to have a non-zero ID")
	}
}

func TestCreateValidation(t *testing.T) {
	c := New(newFakeTaskStore())

	testCases := []struct {
		name   string
		params CreateParams
	}{
		{name: "missing title", params: CreateParams{Description: "D"}},
		{name: "missing description", params: CreateParams{Title: "T"}},
		{name: "title too long", params: CreateParams{Title: strings.Repeat("x", 101), Description: "D"}},
		{name: "description too long", params: CreateParams{Title: "T", Description: strings.Repeat("x", 501)}},
		{name: "bad status", params: CreateParams{Title: "T", Description: "D", Status: "done"}},
		{name: "bad priority", params: CreateParams{Title: "T", Description: "D", Priority: "urgent"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Create(context.Background(), userA, tc.params)
			if !errors.Is(err, api.ErrValidation) {
				t.Errorf("expected ErrValidation; got %v", err)
			}
		})
	}
}

func TestListScopedToOwner(t *testing.T) {
	c := New(newFakeTaskStore())
	seedTask(t, c, userA, "mine")
	seedTask(t, c, userB, "theirs 1")
	seedTask(t, c, userB, "theirs 2")

	testCases := []struct {
		name   string
		params ListParams
	}{
		{name: "no filters", params: ListParams{}},
		{name: "status filter", params: ListParams{Status: "pending"}},
		{name: "priority filter", params: ListParams{Priority: "medium"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			page, err := c.List(context.Background(), userA, tc.params)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			for _, task := range page.Tasks {
				if task.CreatedBy != userA.UserID {
					t.Errorf("non-admin listing leaked task owned by %d", task.CreatedBy)
				}
			}
			if page.Total != 1 {
				t.Errorf("expected total 1; got %d", page.Total)
			}
		})
	}
}

func TestListAdminSeesAll(t *testing.T) {
	c := New(newFakeTaskStore())
	seedTask(t, c, userA, "a")
	seedTask(t, c, userB, "b")

	page, err := c.List(context.Background(), admin, ListParams{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("expected admin to see 2 tasks; got %d", page.Total)
	}
}

func TestListClampsPagination(t *testing.T) {
	c := New(newFakeTaskStore())
	seedTask(t, c, userA, "only")

	testCases := []struct {
		name          string
		page, limit   int
		expectedPage  int
		expectedPages int
	}{
		{name: "zero page", page: 0, limit: 10, expectedPage: 1, expectedPages: 1},
		{name: "negative page", page: -5, limit: 10, expectedPage: 1, expectedPages: 1},
		{name: "zero limit falls back to default", page: 1, limit: 0, expectedPage: 1, expectedPages: 1},
		{name: "huge limit clamped", page: 1, limit: 100000, expectedPage: 1, expectedPages: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			page, err := c.List(context.Background(), userA, ListParams{Page: tc.page, Limit: tc.limit})
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if page.Page != tc.expectedPage {
				t.Errorf("expected page %d; got %d", tc.expectedPage, page.Page)
			}
			if page.Pages != tc.expectedPages {
				t.Errorf("expected pages %d; got %d", tc.expectedPages, page.Pages)
			}
			if page.Count != 1 {
				t.Errorf("expected count 1; got %d", page.Count)
			}
		})
	}
}

func TestListInvalidFilterRejected(t *testing.T) {
	c := New(newFakeTaskStore())
	_, err := c.List(context.Background(), userA, ListParams{Status: "nope"})
	if !errors.Is(err, api.ErrValidation) {
		t.Errorf("expected ErrValidation; got %v", err)
	}
}

func TestGetOwnershipMatrix(t *testing.T) {
	c := New(newFakeTaskStore())
	task := seedTask(t, c, userA, "T1")

	testCases := []struct {
		name        string
		identity    api.Identity
		expectedErr error
	}{
		{name: "owner passes", identity: userA},
		{name: "other user forbidden", identity: userB, expectedErr: api.ErrForbidden},
		{name: "admin passes", identity: admin},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.Get(context.Background(), tc.identity, task.ID)
			if tc.expectedErr != nil {
				if !errors.Is(err, tc.expectedErr) {
					t.Errorf("expected %v; got %v", tc.expectedErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if got.ID != task.ID {
				t.Errorf("expected task %d; got %d", task.ID, got.ID)
			}
		})
	}
}

func TestGetMissingIsNotFoundForEveryone(t *testing.T) {
	c := New(newFakeTaskStore())
	deleted := seedTask(t, c, userA, "gone")
	if err := c.Delete(context.Background(), userA, deleted.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	// A never-existing id and a deleted id must be indistinguishable, to
	// every caller, before any ownership evaluation.
	for _, identity := range []api.Identity{userA, userB, admin} {
		for _, taskID := range []int{deleted.ID, 9999} {
			if _, err := c.Get(context.Background(), identity, taskID); !errors.Is(err, api.ErrNotFound) {
				t.Errorf("user %d, task %d: expected ErrNotFound; got %v", identity.UserID, taskID, err)
			}
		}
	}
}

func TestUpdateOwnership(t *testing.T) {
	c := New(newFakeTaskStore())
	task := seedTask(t, c, userA, "T1")

	title := "changed"
	status := "completed"

	if _, err := c.Update(context.Background(), userB, task.ID, UpdateParams{Title: &title}); !errors.Is(err, api.ErrForbidden) {
		t.Errorf("expected ErrForbidden for non-owner; got %v", err)
	}

	updated, err := c.Update(context.Background(), userA, task.ID, UpdateParams{Title: &title, Status: &status})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Title != "changed" {
		t.Errorf("expected title 'changed'; got %q", updated.Title)
	}
	if updated.Status != api.StatusCompleted {
		t.Errorf("expected status completed; got %s", updated.Status)
	}
	if updated.Description != task.Description {
		t.Errorf("unsupplied field changed: %q -> %q", task.Description, updated.Description)
	}
	if updated.CreatedBy != userA.UserID {
		t.Errorf("owner changed on update: got %d", updated.CreatedBy)
	}
}

func TestUpdateInvalidField(t *testing.T) {
	c := New(newFakeTaskStore())
	task := seedTask(t, c, userA, "T1")

	bad := "no-such-status"
	if _, err := c.Update(context.Background(), userA, task.ID, UpdateParams{Status: &bad}); !errors.Is(err, api.ErrValidation) {
		t.Errorf("expected ErrValidation; got %v", err)
	}
}

func TestDeleteDeniedLeavesTask(t *testing.T) {
	store := newFakeTaskStore()
	c := New(store)
	task := seedTask(t, c, userA, "T1")

	if err := c.Delete(context.Background(), userB, task.ID); !errors.Is(err, api.ErrForbidden) {
		t.Errorf("expected ErrForbidden; got %v", err)
	}
	if _, ok := store.tasks[task.ID]; !ok {
		t.Error("task was deleted despite the denial")
	}

	if err := c.Delete(context.Background(), admin, task.ID); err != nil {
		t.Errorf("admin delete failed: %v", err)
	}
	if _, ok := store.tasks[task.ID]; ok {
		t.Error("task still exists after admin delete")
	}
}

func TestStatsEmptyScopeIsZeroed(t *testing.T) {
	c := New(newFakeTaskStore())

	stats, err := c.Stats(context.Background(), userA)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if *stats != (api.TaskStats{}) {
		t.Errorf("expected all-zero stats; got %+v", *stats)
	}
}

func TestStatsScopedToOwner(t *testing.T) {
	c := New(newFakeTaskStore())
	seedTask(t, c, userA, "mine")
	seedTask(t, c, userB, "theirs")
	seedTask(t, c, userB, "also theirs")

	stats, err := c.Stats(context.Background(), userA)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 1 || stats.Pending != 1 || stats.Medium != 1 {
		t.Errorf("expected scoped counters {1,1,1}; got %+v", *stats)
	}

	adminStats, err := c.Stats(context.Background(), admin)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if adminStats.Total != 3 {
		t.Errorf("expected admin total 3; got %d", adminStats.Total)
	}
}

func TestOverdueComputedAtRead(t *testing.T) {
	c := New(newFakeTaskStore())
	past := time.Now().Add(-24 * time.Hour)
	future := time.Now().Add(24 * time.Hour)

	testCases := []struct {
		name    string
		params  CreateParams
		overdue bool
	}{
		{name: "past due and not completed", params: CreateParams{Title: "T", Description: "D", DueDate: &past}, overdue: true},
		{name: "past due but completed", params: CreateParams{Title: "T", Description: "D", Status: "completed", DueDate: &past}, overdue: false},
		{name: "future due", params: CreateParams{Title: "T", Description: "D", DueDate: &future}, overdue: false},
		{name: "no due date", params: CreateParams{Title: "T", Description: "D"}, overdue: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			created, err := c.Create(context.Background(), userA, tc.params)
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			got, err := c.Get(context.Background(), userA, created.ID)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if got.Overdue != tc.overdue {
				t.Errorf("expected overdue %t; got %t", tc.overdue, got.Overdue)
			}
		})
	}
}
