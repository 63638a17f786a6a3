package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/todo-api/internal/models"
	"github.com/noah-isme/todo-api/internal/service"
	"github.com/noah-isme/todo-api/pkg/response"
)

type collectionService interface {
	List(ctx context.Context, userID string) ([]models.Collection, error)
	Get(ctx context.Context, userID, id string) (*models.Collection, error)
	Create(ctx context.Context, userID string, req service.CollectionRequest) (*models.Collection, error)
	Update(ctx context.Context, userID, id string, req service.CollectionRequest) (*models.Collection, error)
	Delete(ctx context.Context, userID, id string) error
}

// CollectionHandler exposes collection endpoints for the authenticated user.
type CollectionHandler struct {
	service collectionService
}

// NewCollectionHandler constructs a collection handler.
func NewCollectionHandler(svc collectionService) *CollectionHandler {
	return &CollectionHandler{service: svc}
}

// List godoc
// @Summary List collections
// @Tags Collections
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /collections [get]
func (h *CollectionHandler) List(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	collections, err := h.service.List(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, collections, map[string]interface{}{"total": len(collections)})
}

// Get godoc
// @Summary Get collection
// @Tags Collections
// @Produce json
// @Security BearerAuth
// @Param id path string true "Collection ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.ErrorBody
// @Router /collections/{id} [get]
func (h *CollectionHandler) Get(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	collection, err := h.service.Get(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, collection)
}

// Create godoc
// @Summary Create collection
// @Tags Collections
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CollectionRequest true "Collection payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.ErrorBody
// @Router /collections [post]
func (h *CollectionHandler) Create(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req service.CollectionRequest
	if !bindJSON(c, &req, "invalid collection payload") {
		return
	}
	collection, err := h.service.Create(c.Request.Context(), user.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, collection)
}

// Update godoc
// @Summary Update collection
// @Tags Collections
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Collection ID"
// @Param payload body service.CollectionRequest true "Collection payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /collections/{id} [put]
func (h *CollectionHandler) Update(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req service.CollectionRequest
	if !bindJSON(c, &req, "invalid collection payload") {
		return
	}
	collection, err := h.service.Update(c.Request.Context(), user.ID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, collection)
}

// Delete godoc
// @Summary Delete collection
// @Description Delete a collection and all of its todos
// @Tags Collections
// @Security BearerAuth
// @Param id path string true "Collection ID"
// @Success 204
// @Failure 404 {object} response.ErrorBody
// @Router /collections/{id} [delete]
func (h *CollectionHandler) Delete(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
