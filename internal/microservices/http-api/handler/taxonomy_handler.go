package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"yamdb/internal/microservices/http-api/dto"
	"yamdb/internal/microservices/http-api/middleware"
	"yamdb/internal/microservices/http-api/service"
)

// searchQuery binds ?search= on top of pagination.
type searchQuery struct {
	dto.PageQuery
	Search string `form:"search"`
}

type CategoryHandler struct {
	categoryService service.CategoryService
}

func NewCategoryHandler(categoryService service.CategoryService) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService}
}

// RegisterRoutes registers category routes; there is no detail GET.
func (h *CategoryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	categories := rg.Group("/categories")
	{
		categories.GET("", h.List)
		categories.POST("", h.Create)
		categories.PATCH("/:slug", h.Update)
		categories.DELETE("/:slug", h.Delete)
	}
}

func (h *CategoryHandler) List(c *gin.Context) {
	var q searchQuery
	if !bindQuery(c, &q) {
		return
	}
	resp, err := h.categoryService.List(c.Request.Context(), q.Search, q.PageQuery)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.Link(c.Request.URL))
}

func (h *CategoryHandler) Create(c *gin.Context) {
	var req dto.TaxonomyWriteDTO
	if !decodeJSON(c, &req) {
		return
	}
	resp, err := h.categoryService.Create(c.Request.Context(), middleware.ActorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *CategoryHandler) Update(c *gin.Context) {
	var req dto.TaxonomyUpdateDTO
	if !decodeJSON(c, &req) {
		return
	}
	resp, err := h.categoryService.Update(c.Request.Context(), middleware.ActorFrom(c), c.Param("slug"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Delete detaches the category from its titles before removing it.
func (h *CategoryHandler) Delete(c *gin.Context) {
	if err := h.categoryService.Delete(c.Request.Context(), middleware.ActorFrom(c), c.Param("slug")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type GenreHandler struct {
	genreService service.GenreService
}

func NewGenreHandler(genreService service.GenreService) *GenreHandler {
	return &GenreHandler{genreService: genreService}
}

func (h *GenreHandler) RegisterRoutes(rg *gin.RouterGroup) {
	genres := rg.Group("/genres")
	{
		genres.GET("", h.List)
		genres.POST("", h.Create)
		genres.PATCH("/:slug", h.Update)
		genres.DELETE("/:slug", h.Delete)
	}
}

func (h *GenreHandler) List(c *gin.Context) {
	var q searchQuery
	if !bindQuery(c, &q) {
		return
	}
	resp, err := h.genreService.List(c.Request.Context(), q.Search, q.PageQuery)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.Link(c.Request.URL))
}

func (h *GenreHandler) Create(c *gin.Context) {
	var req dto.TaxonomyWriteDTO
	if !decodeJSON(c, &req) {
		return
	}
	resp, err := h.genreService.Create(c.Request.Context(), middleware.ActorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *GenreHandler) Update(c *gin.Context) {
	var req dto.TaxonomyUpdateDTO
	if !decodeJSON(c, &req) {
		return
	}
	resp, err := h.genreService.Update(c.Request.Context(), middleware.ActorFrom(c), c.Param("slug"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *GenreHandler) Delete(c *gin.Context) {
	if err := h.genreService.Delete(c.Request.Context(), middleware.ActorFrom(c), c.Param("slug")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
