package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/todo-api/internal/models"
	"github.com/noah-isme/todo-api/internal/service"
	"github.com/noah-isme/todo-api/pkg/response"
)

type todoService interface {
	List(ctx context.Context, userID, collectionID string) ([]models.TodoView, error)
	Create(ctx context.Context, userID, collectionID string, req service.CreateTodoRequest) (*models.TodoView, error)
	Update(ctx context.Context, userID, id string, req service.UpdateTodoRequest) (*models.TodoView, error)
	Complete(ctx context.Context, userID, id string) (*models.TodoView, error)
	AddMoney(ctx context.Context, userID, id string, req service.AddMoneyRequest) (*models.TodoView, error)
	Delete(ctx context.Context, userID, id string) error
}

// TodoHandler exposes todo endpoints. Tasks are addressed through their collection on
// list and create, and directly by id afterwards.
type TodoHandler struct {
	service todoService
}

// NewTodoHandler constructs a todo handler.
func NewTodoHandler(svc todoService) *TodoHandler {
	return &TodoHandler{service: svc}
}

// List godoc
// @Summary List todos of a collection
// @Tags Todos
// @Produce json
// @Security BearerAuth
// @Param id path string true "Collection ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.ErrorBody
// @Router /collections/{id}/tasks [get]
func (h *TodoHandler) List(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	todos, err := h.service.List(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, todos, map[string]interface{}{"total": len(todos)})
}

// Create godoc
// @Summary Create todo
// @Tags Todos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Collection ID"
// @Param payload body service.CreateTodoRequest true "Todo payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /collections/{id}/tasks [post]
func (h *TodoHandler) Create(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req service.CreateTodoRequest
	if !bindJSON(c, &req, "invalid todo payload") {
		return
	}
	todo, err := h.service.Create(c.Request.Context(), user.ID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, todo)
}

// Update godoc
// @Summary Update todo
// @Tags Todos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param taskId path string true "Todo ID"
// @Param payload body service.UpdateTodoRequest true "Todo payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /tasks/{taskId} [put]
func (h *TodoHandler) Update(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req service.UpdateTodoRequest
	if !bindJSON(c, &req, "invalid todo payload") {
		return
	}
	todo, err := h.service.Update(c.Request.Context(), user.ID, c.Param("taskId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, todo)
}

// Complete godoc
// @Summary Complete todo
// @Tags Todos
// @Produce json
// @Security BearerAuth
// @Param taskId path string true "Todo ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.ErrorBody
// @Router /tasks/{taskId}/complete [post]
func (h *TodoHandler) Complete(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	todo, err := h.service.Complete(c.Request.Context(), user.ID, c.Param("taskId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, todo)
}

// AddMoney godoc
// @Summary Deposit into a saving todo
// @Tags Todos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param taskId path string true "Todo ID"
// @Param payload body service.AddMoneyRequest true "Deposit"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /tasks/{taskId}/add-money [post]
func (h *TodoHandler) AddMoney(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req service.AddMoneyRequest
	if !bindJSON(c, &req, "invalid deposit payload") {
		return
	}
	todo, err := h.service.AddMoney(c.Request.Context(), user.ID, c.Param("taskId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, todo)
}

// Delete godoc
// @Summary Delete todo
// @Tags Todos
// @Security BearerAuth
// @Param taskId path string true "Todo ID"
// @Success 204
// @Failure 404 {object} response.ErrorBody
// @Router /tasks/{taskId} [delete]
func (h *TodoHandler) Delete(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), user.ID, c.Param("taskId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
