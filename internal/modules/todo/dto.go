package todo

import "time"

type CreateTodoRequest struct {
	Title       string     `json:"title" binding:"required,max=255"`
	Description string     `json:"description"`
	DueAt       *time.Time `json:"due_at"`
}

type UpdateTodoRequest struct {
	Title       *string    `json:"title" binding:"omitempty,max=255"`
	Description *string    `json:"description"`
	Status      *string    `json:"status" binding:"omitempty,oneof=pending done"`
	DueAt       *time.Time `json:"due_at"`
}
