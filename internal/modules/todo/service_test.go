package todo

import (
	"context"
	"testing"
	"time"

	"taskhub/internal/cache"
	"taskhub/internal/database"
	"taskhub/internal/domain"
	"taskhub/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, int64) {
	t.Helper()

	db, err := database.Connect(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.User{}, &domain.Todo{}))

	user := &domain.User{Email: "todo@example.com", PasswordHash: "x", Role: domain.RoleUser, IsActive: true}
	require.NoError(t, repository.NewUserRepository(db).Create(context.Background(), user))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewService(repository.NewTodoRepository(db), cache.New(client)), user.ID
}

func TestTodoService_CreateAndList(t *testing.T) {
	svc, userID := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, userID, CreateTodoRequest{Title: "write report"})
	require.NoError(t, err)
	assert.Equal(t, domain.TodoPending, created.Status)

	todos, err := svc.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, "write report", todos[0].Title)
}

func TestTodoService_ListCacheInvalidatedOnWrite(t *testing.T) {
	svc, userID := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, userID, CreateTodoRequest{Title: "first"})
	require.NoError(t, err)

	// Prime the cache.
	todos, err := svc.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, todos, 1)

	_, err = svc.Create(ctx, userID, CreateTodoRequest{Title: "second"})
	require.NoError(t, err)

	todos, err = svc.List(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, todos, 2)
}

func TestTodoService_Update(t *testing.T) {
	svc, userID := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, userID, CreateTodoRequest{Title: "draft"})
	require.NoError(t, err)

	done := "done"
	title := "final"
	updated, err := svc.Update(ctx, userID, created.ID, UpdateTodoRequest{Title: &title, Status: &done})
	require.NoError(t, err)
	assert.Equal(t, "final", updated.Title)
	assert.Equal(t, domain.TodoDone, updated.Status)
}

func TestTodoService_CrossTenantAccessDenied(t *testing.T) {
	svc, userID := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, userID, CreateTodoRequest{Title: "mine"})
	require.NoError(t, err)

	otherUser := userID + 100
	_, err = svc.Get(ctx, otherUser, created.ID)
	assert.ErrorIs(t, err, ErrTodoNotFound)

	err = svc.Delete(ctx, otherUser, created.ID)
	assert.ErrorIs(t, err, ErrTodoNotFound)

	// Still present for the owner.
	_, err = svc.Get(ctx, userID, created.ID)
	assert.NoError(t, err)
}

func TestTodoService_Delete(t *testing.T) {
	svc, userID := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, userID, CreateTodoRequest{Title: "gone soon", DueAt: ptrTime(time.Now().Add(time.Hour))})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, userID, created.ID))
	_, err = svc.Get(ctx, userID, created.ID)
	assert.ErrorIs(t, err, ErrTodoNotFound)
}

func ptrTime(t time.Time) *time.Time { return &t }
