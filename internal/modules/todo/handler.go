package todo

import (
	"errors"
	"net/http"
	"strconv"

	"taskhub/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers todo routes under the protected group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	todoGroup := rg.Group("/todos")
	{
		todoGroup.POST("", h.Create)
		todoGroup.GET("", h.List)
		todoGroup.GET("/:id", h.Get)
		todoGroup.PUT("/:id", h.Update)
		todoGroup.DELETE("/:id", h.Delete)
	}
}

func (h *Handler) Create(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req CreateTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	t, err := h.service.Create(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to create todo")
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"todo": t})
}

func (h *Handler) List(c *gin.Context) {
	userID := c.GetInt64("user_id")

	todos, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "LIST_FAILED", "Failed to list todos")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"todos": todos})
}

func (h *Handler) Get(c *gin.Context) {
	userID := c.GetInt64("user_id")
	id, err := parseID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid todo id")
		return
	}

	t, err := h.service.Get(c.Request.Context(), userID, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"todo": t})
}

func (h *Handler) Update(c *gin.Context) {
	userID := c.GetInt64("user_id")
	id, err := parseID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid todo id")
		return
	}

	var req UpdateTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	t, err := h.service.Update(c.Request.Context(), userID, id, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"todo": t})
}

func (h *Handler) Delete(c *gin.Context) {
	userID := c.GetInt64("user_id")
	id, err := parseID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid todo id")
		return
	}

	if err := h.service.Delete(c.Request.Context(), userID, id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	if errors.Is(err, ErrTodoNotFound) {
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Todo not found")
		return
	}
	response.Error(c, http.StatusInternalServerError, "TODO_FAILED", "Operation failed")
}

func parseID(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}
