package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"yamdb/internal/microservices/http-api/dto"
	"yamdb/internal/microservices/http-api/middleware"
	"yamdb/internal/microservices/http-api/service"
)

type UserHandler struct {
	userService service.UserService
}

func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// RegisterRoutes registers account administration and the /users/me profile.
// The static "me" segment wins over :username, and "me" can never be a handle.
func (h *UserHandler) RegisterRoutes(rg *gin.RouterGroup) {
	users := rg.Group("/users")
	{
		// Own profile, any authenticated account
		users.GET("/me", h.GetProfile)
		users.PATCH("/me", h.UpdateProfile)

		// Admin only
		users.GET("", h.List)
		users.POST("", h.Create)
		users.GET("/:username", h.Get)
		users.PATCH("/:username", h.Update)
		users.DELETE("/:username", h.Delete)
	}
}

func (h *UserHandler) List(c *gin.Context) {
	var q searchQuery
	if !bindQuery(c, &q) {
		return
	}
	resp, err := h.userService.List(c.Request.Context(), middleware.ActorFrom(c), q.Search, q.PageQuery)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.Link(c.Request.URL))
}

func (h *UserHandler) Create(c *gin.Context) {
	var req dto.CreateUserDTO
	if !decodeJSON(c, &req) {
		return
	}
	resp, err := h.userService.Create(c.Request.Context(), middleware.ActorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *UserHandler) Get(c *gin.Context) {
	resp, err := h.userService.Get(c.Request.Context(), middleware.ActorFrom(c), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *UserHandler) Update(c *gin.Context) {
	var req dto.UpdateUserDTO
	if !decodeJSON(c, &req) {
		return
	}
	resp, err := h.userService.Update(c.Request.Context(), middleware.ActorFrom(c), c.Param("username"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.userService.Delete(c.Request.Context(), middleware.ActorFrom(c), c.Param("username")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetProfile returns the caller's own account.
// GET /api/v1/users/me
func (h *UserHandler) GetProfile(c *gin.Context) {
	resp, err := h.userService.GetProfile(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateProfile edits the caller's own account. A role in the body is ignored.
// PATCH /api/v1/users/me
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req dto.UpdateProfileDTO
	if !decodeJSON(c, &req) {
		return
	}
	resp, err := h.userService.UpdateProfile(c.Request.Context(), middleware.ActorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
