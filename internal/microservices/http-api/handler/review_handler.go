package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"yamdb/internal/microservices/http-api/dto"
	"yamdb/internal/microservices/http-api/middleware"
	"yamdb/internal/microservices/http-api/service"
)

type ReviewHandler struct {
	reviewService service.ReviewService
}

func NewReviewHandler(reviewService service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService}
}

// RegisterRoutes registers review routes under /titles/:title_id/reviews
func (h *ReviewHandler) RegisterRoutes(rg *gin.RouterGroup) {
	reviews := rg.Group("/titles/:title_id/reviews")
	{
		reviews.GET("", h.List)
		reviews.POST("", h.Create) // one per author and title
		reviews.GET("/:review_id", h.Get)
		reviews.PATCH("/:review_id", h.Update) // author, moderator or admin
		reviews.DELETE("/:review_id", h.Delete)
	}
}

func (h *ReviewHandler) List(c *gin.Context) {
	titleID, ok := pathID(c, "title_id", "title")
	if !ok {
		return
	}
	var q dto.PageQuery
	if !bindQuery(c, &q) {
		return
	}
	resp, err := h.reviewService.List(c.Request.Context(), titleID, q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.Link(c.Request.URL))
}

func (h *ReviewHandler) Get(c *gin.Context) {
	titleID, reviewID, ok := reviewPath(c)
	if !ok {
		return
	}
	resp, err := h.reviewService.Get(c.Request.Context(), titleID, reviewID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Create posts the actor's review of the title in the path.
// POST /api/v1/titles/:title_id/reviews
func (h *ReviewHandler) Create(c *gin.Context) {
	titleID, ok := pathID(c, "title_id", "title")
	if !ok {
		return
	}
	var req dto.CreateReviewDTO
	if !decodeJSON(c, &req) {
		return
	}
	resp, err := h.reviewService.Create(c.Request.Context(), middleware.ActorFrom(c), titleID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *ReviewHandler) Update(c *gin.Context) {
	titleID, reviewID, ok := reviewPath(c)
	if !ok {
		return
	}
	var req dto.UpdateReviewDTO
	if !decodeJSON(c, &req) {
		return
	}
	resp, err := h.reviewService.Update(c.Request.Context(), middleware.ActorFrom(c), titleID, reviewID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ReviewHandler) Delete(c *gin.Context) {
	titleID, reviewID, ok := reviewPath(c)
	if !ok {
		return
	}
	if err := h.reviewService.Delete(c.Request.Context(), middleware.ActorFrom(c), titleID, reviewID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func reviewPath(c *gin.Context) (titleID, reviewID int64, ok bool) {
	if titleID, ok = pathID(c, "title_id", "title"); !ok {
		return 0, 0, false
	}
	if reviewID, ok = pathID(c, "review_id", "review"); !ok {
		return 0, 0, false
	}
	return titleID, reviewID, true
}
