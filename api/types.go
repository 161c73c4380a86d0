package api

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the closed set of roles a user can hold.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole validates a raw role string against the closed set.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

// Status is the closed set of task statuses.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusInProgress, StatusCompleted:
		return Status(s), true
	}
	return "", false
}

// Priority is the closed set of task priorities.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func ParsePriority(s string) (Priority, bool) {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return Priority(s), true
	}
	return "", false
}

type User struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

type Task struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedBy   int        `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Overdue     bool       `json:"overdue"`
}

// ComputeOverdue derives the overdue flag at read time. It is never stored.
func (t *Task) ComputeOverdue(now time.Time) {
	t.Overdue = t.DueDate != nil && t.Status != StatusCompleted && t.DueDate.Before(now)
}

// Identity is the resolved (user id, role) pair for one request. It is derived
// from a verified token and lives only in that request's context.
type Identity struct {
	UserID int
	Role   Role
}

type Claims struct {
	UserID int    `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TaskFilter narrows a task query. A nil field means no constraint.
type TaskFilter struct {
	CreatedBy *int
	Status    *Status
	Priority  *Priority
}

// TaskPage is one page of a task listing.
type TaskPage struct {
	Count int    `json:"count"`
	Total int    `json:"total"`
	Page  int    `json:"page"`
	Pages int    `json:"pages"`
	Tasks []Task `json:"tasks"`
}

// TaskStats are grouped counters over a (scoped) set of tasks.
type TaskStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
	High       int `json:"high"`
	Medium     int `json:"medium"`
	Low        int `json:"low"`
}
