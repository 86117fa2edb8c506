package domain

import "time"

type TodoStatus string

const (
	TodoPending TodoStatus = "pending"
	TodoDone    TodoStatus = "done"
)

type Todo struct {
	ID     int64 `json:"id" gorm:"primaryKey"`
	UserID int64 `json:"user_id" gorm:"index;not null"`
	User   User  `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`

	Title       string     `json:"title" gorm:"size:255;not null"`
	Description string     `json:"description,omitempty"`
	Status      TodoStatus `json:"status" gorm:"size:20;not null;default:pending"`
	DueAt       *time.Time `json:"due_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
