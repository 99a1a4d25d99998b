package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/social-feed/backend/internal/hashtags"
	"github.com/emilythestrangee/social-feed/backend/internal/logger"
)

type HashtagHandler struct {
	hashtags *hashtags.Reconciler
	log      *logger.Logger
}

func NewHashtagHandler(r *hashtags.Reconciler, log *logger.Logger) *HashtagHandler {
	return &HashtagHandler{hashtags: r, log: log}
}

// GetTrending returns the most used hashtags, optionally filtered by ?q=
func (h *HashtagHandler) GetTrending(c *gin.Context) {
	tags, err := h.hashtags.Trending(c.Request.Context(), queryInt(c, "limit", hashtags.DefaultTrendingLimit), c.Query("q"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hashtags": tags})
}

// GetHashtag returns one hashtag by name
func (h *HashtagHandler) GetHashtag(c *gin.Context) {
	tag, err := h.hashtags.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, tag)
}
