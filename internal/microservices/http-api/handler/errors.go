package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"yamdb/internal/microservices/http-api/apperr"
	"yamdb/internal/microservices/http-api/dto"
)

var registerTagNames sync.Once

// useJSONFieldNames makes gin's validator report query fields by name.
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(dto.FieldName)
		}
	})
}

// respondError maps the service error taxonomy onto status codes.
func respondError(c *gin.Context, err error) {
	if ve, ok := apperr.IsValidation(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": ve.Fields})
		return
	}

	switch {
	case errors.Is(err, apperr.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		// the cause goes to logs and Sentry, never to the client
		_ = c.Error(err)
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		} else {
			sentry.CaptureException(err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// decodeJSON only decodes the body. Field rules run in the service after
// the target is resolved and the actor authorized. An empty body decodes
// as an empty object.
func decodeJSON(c *gin.Context, obj any) bool {
	err := json.NewDecoder(c.Request.Body).Decode(obj)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		respondError(c, apperr.Validation(typeErr.Field, "has the wrong type"))
		return false
	}
	respondError(c, apperr.Validation("body", "malformed JSON"))
	return false
}

// bindQuery binds and validates query parameters; they never depend on the
// target so they fail fast.
func bindQuery(c *gin.Context, obj any) bool {
	useJSONFieldNames()
	if err := c.ShouldBindQuery(obj); err != nil {
		ve := &apperr.ValidationError{}
		dto.AddFieldErrors(ve, err)
		if len(ve.Fields) == 0 {
			ve.Add("query", "malformed query parameters")
		}
		respondError(c, ve)
		return false
	}
	return true
}

// pathID parses a numeric path parameter. A non-number can never name an
// existing row, so it is answered like a missing one.
func pathID(c *gin.Context, param, what string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id < 1 {
		respondError(c, apperr.NotFound(what))
		return 0, false
	}
	return id, true
}
