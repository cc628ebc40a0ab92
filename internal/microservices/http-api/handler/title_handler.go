package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"yamdb/internal/microservices/http-api/dto"
	"yamdb/internal/microservices/http-api/middleware"
	"yamdb/internal/microservices/http-api/service"
)

type TitleHandler struct {
	titleService service.TitleService
}

func NewTitleHandler(titleService service.TitleService) *TitleHandler {
	return &TitleHandler{titleService: titleService}
}

// RegisterRoutes registers title routes. Reviews and comments hang off
// /titles/:title_id and are registered by their own handlers.
func (h *TitleHandler) RegisterRoutes(rg *gin.RouterGroup) {
	titles := rg.Group("/titles")
	{
		titles.GET("", h.List)   // ?name=&year=&category=&genre=, best rated first
		titles.POST("", h.Create)
		titles.GET("/:title_id", h.Get)
		titles.PATCH("/:title_id", h.Update)
		titles.DELETE("/:title_id", h.Delete)
	}
}

// List returns titles with their computed rating.
// GET /api/v1/titles
func (h *TitleHandler) List(c *gin.Context) {
	var q dto.TitleFilterQuery
	if !bindQuery(c, &q) {
		return
	}
	resp, err := h.titleService.List(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.Link(c.Request.URL))
}

func (h *TitleHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "title_id", "title")
	if !ok {
		return
	}
	resp, err := h.titleService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TitleHandler) Create(c *gin.Context) {
	var req dto.TitleWriteDTO
	if !decodeJSON(c, &req) {
		return
	}
	resp, err := h.titleService.Create(c.Request.Context(), middleware.ActorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *TitleHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "title_id", "title")
	if !ok {
		return
	}
	var req dto.TitleUpdateDTO
	if !decodeJSON(c, &req) {
		return
	}
	resp, err := h.titleService.Update(c.Request.Context(), middleware.ActorFrom(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Delete removes the title with its reviews and their comments.
func (h *TitleHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "title_id", "title")
	if !ok {
		return
	}
	if err := h.titleService.Delete(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
