package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/emilythestrangee/social-feed/backend/internal/apperr"
	"github.com/emilythestrangee/social-feed/backend/internal/logger"
	"github.com/emilythestrangee/social-feed/backend/internal/middleware"
	"github.com/emilythestrangee/social-feed/backend/internal/models"
	"github.com/emilythestrangee/social-feed/backend/internal/store"
)

func errorBody(message, code string) gin.H {
	return gin.H{"error": gin.H{"message": message, "code": code}}
}

// respondError writes err with the status its kind maps to. Internal
// details never reach the client.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	status := apperr.Status(err)
	code := string(apperr.KindOf(err))
	message := "internal server error"

	var appErr *apperr.Error
	switch {
	case status == http.StatusInternalServerError || !errors.As(err, &appErr):
		code = string(apperr.KindInternal)
		log.Error("Request failed", "path", c.FullPath(), "error", err)
	case appErr.Retryable:
		code = "retryable_conflict"
		message = appErr.Message
	default:
		message = appErr.Message
	}
	c.JSON(status, errorBody(message, code))
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorBody(message, "bad_request"))
}

// extractActor returns the authenticated actor, or writes 401.
func extractActor(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorBody("User not authenticated", "unauthorized"))
		return models.Actor{}, false
	}
	return actor, true
}

// paramID parses a uuid path parameter, or writes 400.
func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "Invalid "+name+" parameter")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func pageFrom(c *gin.Context) store.Page {
	return store.NewPage(queryInt(c, "page", 1), queryInt(c, "limit", store.DefaultPageSize))
}
