package todo

import (
	"context"

	"taskhub/internal/domain"
)

type TodoRepositoryInterface interface {
	Create(ctx context.Context, t *domain.Todo) error
	GetByID(ctx context.Context, id int64) (*domain.Todo, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Todo, error)
	Update(ctx context.Context, t *domain.Todo) error
	Delete(ctx context.Context, id, userID int64) (bool, error)
}
