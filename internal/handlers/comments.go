package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/emilythestrangee/social-feed/backend/internal/comments"
	"github.com/emilythestrangee/social-feed/backend/internal/logger"
)

type CommentHandler struct {
	comments *comments.Engine
	log      *logger.Logger
}

func NewCommentHandler(engine *comments.Engine, log *logger.Logger) *CommentHandler {
	return &CommentHandler{comments: engine, log: log}
}

// GetComments returns root comments of a post with their latest replies
func (h *CommentHandler) GetComments(c *gin.Context) {
	postID, ok := paramID(c, "id")
	if !ok {
		return
	}
	result, err := h.comments.ListByPost(c.Request.Context(), postID, pageFrom(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetReplies pages through the replies of one comment
func (h *CommentHandler) GetReplies(c *gin.Context) {
	postID, ok := paramID(c, "id")
	if !ok {
		return
	}
	commentID, ok := paramID(c, "commentId")
	if !ok {
		return
	}
	result, err := h.comments.ListReplies(c.Request.Context(), postID, commentID, pageFrom(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CreateComment creates a new comment on a post
func (h *CommentHandler) CreateComment(c *gin.Context) {
	actor, ok := extractActor(c)
	if !ok {
		return
	}
	postID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input struct {
		Content         string     `json:"content" binding:"required"`
		ParentCommentID *uuid.UUID `json:"parent_comment_id"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Comment content is required")
		return
	}

	comment, err := h.comments.Create(c.Request.Context(), actor, postID, input.Content, input.ParentCommentID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// UpdateComment edits the caller's own comment
func (h *CommentHandler) UpdateComment(c *gin.Context) {
	actor, ok := extractActor(c)
	if !ok {
		return
	}
	commentID, ok := paramID(c, "commentId")
	if !ok {
		return
	}
	var input struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Comment content is required")
		return
	}

	comment, err := h.comments.Update(c.Request.Context(), actor, commentID, input.Content)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

// DeleteComment deletes the caller's own comment and its replies
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	actor, ok := extractActor(c)
	if !ok {
		return
	}
	commentID, ok := paramID(c, "commentId")
	if !ok {
		return
	}
	if err := h.comments.Delete(c.Request.Context(), actor, commentID); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}
