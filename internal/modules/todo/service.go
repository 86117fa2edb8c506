package todo

import (
	"context"
	"errors"
	"time"

	"taskhub/internal/cache"
	"taskhub/internal/domain"
	"taskhub/internal/repository"
)

var ErrTodoNotFound = errors.New("todo not found")

const listCacheTTL = time.Minute

type Service struct {
	todos TodoRepositoryInterface
	cache *cache.Cache
}

func NewService(todos TodoRepositoryInterface, c *cache.Cache) *Service {
	return &Service{todos: todos, cache: c}
}

func (s *Service) Create(ctx context.Context, userID int64, req CreateTodoRequest) (*domain.Todo, error) {
	t := &domain.Todo{
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Status:      domain.TodoPending,
		DueAt:       req.DueAt,
	}
	if err := s.todos.Create(ctx, t); err != nil {
		return nil, err
	}
	s.invalidateList(ctx, userID)
	return t, nil
}

// List serves from the per-user cache when possible. Writes invalidate the
// key, so a stale list lives at most listCacheTTL.
func (s *Service) List(ctx context.Context, userID int64) ([]domain.Todo, error) {
	key := cache.TodoListKey(userID)

	var cached []domain.Todo
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	todos, err := s.todos.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	_ = s.cache.SetJSON(ctx, key, todos, listCacheTTL)
	return todos, nil
}

func (s *Service) Get(ctx context.Context, userID, id int64) (*domain.Todo, error) {
	t, err := s.todos.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTodoNotFound
		}
		return nil, err
	}
	// Other tenants' todos do not exist as far as this user is concerned.
	if t.UserID != userID {
		return nil, ErrTodoNotFound
	}
	return t, nil
}

func (s *Service) Update(ctx context.Context, userID, id int64, req UpdateTodoRequest) (*domain.Todo, error) {
	t, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Status != nil {
		t.Status = domain.TodoStatus(*req.Status)
	}
	if req.DueAt != nil {
		t.DueAt = req.DueAt
	}

	if err := s.todos.Update(ctx, t); err != nil {
		return nil, err
	}
	s.invalidateList(ctx, userID)
	return t, nil
}

func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	deleted, err := s.todos.Delete(ctx, id, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrTodoNotFound
	}
	s.invalidateList(ctx, userID)
	return nil
}

func (s *Service) invalidateList(ctx context.Context, userID int64) {
	_ = s.cache.Delete(ctx, cache.TodoListKey(userID))
}
