package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"tasktrack/api"
)

const taskCacheTTL = 5 * time.Minute

// TaskStore is the task store adapter over Postgres with an optional Redis
// read-through cache on single-task lookups. A nil client disables caching.
type TaskStore struct {
	db  *sql.DB
	rdb *redis.Client
}

func NewTaskStore(db *sql.DB, rdb *redis.Client) *TaskStore {
	return &TaskStore{db: db, rdb: rdb}
}

func taskCacheKey(id int) string {
	return fmt.Sprintf("task:%d", id)
}

// Create inserts the task and fills in its generated id and timestamps.
func (s *TaskStore) Create(ctx context.Context, t *api.Task) error {
	return s.db.QueryRowContext(ctx,
		`INSERT INTO tasks (title, description, status, priority, due_date, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		t.Title, t.Description, string(t.Status), string(t.Priority), t.DueDate, t.CreatedBy,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// FindByID returns the task or nil when no row matches.
func (s *TaskStore) FindByID(ctx context.Context, id int) (*api.Task, error) {
	cacheKey := taskCacheKey(id)

	if s.rdb != nil {
		val, err := s.rdb.Get(ctx, cacheKey).Result()
		if err == nil {
			var t api.Task
			if err := json.Unmarshal([]byte(val), &t); err == nil {
				logrus.Debugf("cache hit for %s", cacheKey)
				return &t, nil
			}
		}
	}

	var t api.Task
	var status, priority string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, status, priority, due_date, created_by, created_at, updated_at
		 FROM tasks WHERE id = $1`, id,
	).Scan(&t.ID, &t.Title, &t.Description, &status, &priority, &t.DueDate, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.Status = api.Status(status)
	t.Priority = api.Priority(priority)

	if s.rdb != nil {
		if cacheData, err := json.Marshal(t); err == nil {
			if err := s.rdb.Set(ctx, cacheKey, cacheData, taskCacheTTL).Err(); err != nil {
				logrus.WithError(err).Warnf("failed to set cache key %s", cacheKey)
			}
		}
	}

	return &t, nil
}

// Find returns matching tasks sorted by creation time descending.
func (s *TaskStore) Find(ctx context.Context, f api.TaskFilter, skip, limit int) ([]api.Task, error) {
	where, args := buildWhere(f)
	query := fmt.Sprintf(
		`SELECT id, title, description, status, priority, due_date, created_by, created_at, updated_at
		 FROM tasks%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	args = append(args, limit, skip)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []api.Task
	for rows.Next() {
		var t api.Task
		var status, priority string
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &status, &priority,
			&t.DueDate, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		t.Status = api.Status(status)
		t.Priority = api.Priority(priority)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Count returns the number of tasks matching the filter.
func (s *TaskStore) Count(ctx context.Context, f api.TaskFilter) (int, error) {
	where, args := buildWhere(f)
	var total int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`+where, args...).Scan(&total)
	return total, err
}

// UpdateByID writes the mutable fields of t to the row and returns the updated
// task, or nil when no row matches. The cached copy is invalidated.
func (s *TaskStore) UpdateByID(ctx context.Context, id int, t *api.Task) (*api.Task, error) {
	err := s.db.QueryRowContext(ctx,
		`UPDATE tasks SET title = $1, description = $2, status = $3, priority = $4, due_date = $5, updated_at = NOW()
		 WHERE id = $6
		 RETURNING id, created_by, created_at, updated_at`,
		t.Title, t.Description, string(t.Status), string(t.Priority), t.DueDate, id,
	).Scan(&t.ID, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	return t, nil
}

// DeleteByID removes the row and reports whether one existed. The cached copy
// is invalidated.
func (s *TaskStore) DeleteByID(ctx context.Context, id int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	rowsAffected, _ := res.RowsAffected()
	if rowsAffected == 0 {
		return false, nil
	}

	s.invalidate(ctx, id)
	return true, nil
}

// Aggregate groups the filtered set by status and priority. An empty set
// yields all-zero counters.
func (s *TaskStore) Aggregate(ctx context.Context, f api.TaskFilter) (api.TaskStats, error) {
	where, args := buildWhere(f)
	var stats api.TaskStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE status = 'pending'),
		        COUNT(*) FILTER (WHERE status = 'in-progress'),
		        COUNT(*) FILTER (WHERE status = 'completed'),
		        COUNT(*) FILTER (WHERE priority = 'high'),
		        COUNT(*) FILTER (WHERE priority = 'medium'),
		        COUNT(*) FILTER (WHERE priority = 'low')
		 FROM tasks`+where, args...,
	).Scan(&stats.Total, &stats.Pending, &stats.InProgress, &stats.Completed,
		&stats.High, &stats.Medium, &stats.Low)
	return stats, err
}

func (s *TaskStore) invalidate(ctx context.Context, id int) {
	if s.rdb == nil {
		return
	}
	cacheKey := taskCacheKey(id)
	if err := s.rdb.Del(ctx, cacheKey).Err(); err != nil {
		logrus.WithError(err).Warnf("failed to delete cache key %s", cacheKey)
	}
}

func buildWhere(f api.TaskFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}
	add := func(clause string, val interface{}) {
		args = append(args, val)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.CreatedBy != nil {
		add("created_by = $%d", *f.CreatedBy)
	}
	if f.Status != nil {
		add("status = $%d", string(*f.Status))
	}
	if f.Priority != nil {
		add("priority = $%d", string(*f.Priority))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	where := " WHERE " + clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args
}
