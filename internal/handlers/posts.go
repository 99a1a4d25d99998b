package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/social-feed/backend/internal/logger"
	"github.com/emilythestrangee/social-feed/backend/internal/posts"
)

type PostHandler struct {
	posts *posts.Engine
	log   *logger.Logger
}

func NewPostHandler(engine *posts.Engine, log *logger.Logger) *PostHandler {
	return &PostHandler{posts: engine, log: log}
}

// GetPosts returns a page of posts, newest first
func (h *PostHandler) GetPosts(c *gin.Context) {
	result, err := h.posts.List(c.Request.Context(), pageFrom(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetPost returns a single post by ID
func (h *PostHandler) GetPost(c *gin.Context) {
	postID, ok := paramID(c, "id")
	if !ok {
		return
	}
	post, err := h.posts.Get(c.Request.Context(), postID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// GetUserPosts returns a page of one creator's posts
func (h *PostHandler) GetUserPosts(c *gin.Context) {
	creatorID, ok := paramID(c, "id")
	if !ok {
		return
	}
	result, err := h.posts.ListByCreator(c.Request.Context(), creatorID, pageFrom(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CreatePost creates a new post (PROTECTED - requires authentication)
func (h *PostHandler) CreatePost(c *gin.Context) {
	actor, ok := extractActor(c)
	if !ok {
		return
	}
	var input posts.CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid post body")
		return
	}

	post, err := h.posts.Create(c.Request.Context(), actor, input)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// UpdatePost edits the caller's own post
func (h *PostHandler) UpdatePost(c *gin.Context) {
	actor, ok := extractActor(c)
	if !ok {
		return
	}
	postID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input posts.UpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid post body")
		return
	}

	result, err := h.posts.Update(c.Request.Context(), actor, postID, input)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// DeletePost deletes the caller's own post
func (h *PostHandler) DeletePost(c *gin.Context) {
	actor, ok := extractActor(c)
	if !ok {
		return
	}
	postID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.posts.Delete(c.Request.Context(), actor, postID); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}
