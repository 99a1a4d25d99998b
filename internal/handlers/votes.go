package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/emilythestrangee/social-feed/backend/internal/logger"
	"github.com/emilythestrangee/social-feed/backend/internal/models"
	"github.com/emilythestrangee/social-feed/backend/internal/polls"
	"github.com/emilythestrangee/social-feed/backend/internal/votes"
)

type VoteHandler struct {
	votes *votes.Engine
	log   *logger.Logger
}

func NewVoteHandler(engine *votes.Engine, log *logger.Logger) *VoteHandler {
	return &VoteHandler{votes: engine, log: log}
}

// VotePost toggles the caller's like on a post
func (h *VoteHandler) VotePost(c *gin.Context) {
	h.toggle(c, "id", models.TargetPost)
}

// VoteComment toggles the caller's like on a comment
func (h *VoteHandler) VoteComment(c *gin.Context) {
	h.toggle(c, "commentId", models.TargetComment)
}

func (h *VoteHandler) toggle(c *gin.Context, param string, targetType models.TargetType) {
	actor, ok := extractActor(c)
	if !ok {
		return
	}
	targetID, ok := paramID(c, param)
	if !ok {
		return
	}
	result, err := h.votes.Toggle(c.Request.Context(), actor, targetID, targetType)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type PollHandler struct {
	polls *polls.Engine
	log   *logger.Logger
}

func NewPollHandler(engine *polls.Engine, log *logger.Logger) *PollHandler {
	return &PollHandler{polls: engine, log: log}
}

// VotePoll casts the caller's ballot on a poll
func (h *PollHandler) VotePoll(c *gin.Context) {
	actor, ok := extractActor(c)
	if !ok {
		return
	}
	postID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input struct {
		PollOptionID uuid.UUID `json:"poll_option_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid poll_option_id")
		return
	}

	result, err := h.polls.CastBallot(c.Request.Context(), actor, postID, input.PollOptionID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetVoters pages through the ballots for one poll option
func (h *PollHandler) GetVoters(c *gin.Context) {
	postID, ok := paramID(c, "id")
	if !ok {
		return
	}
	optionID, ok := paramID(c, "optionId")
	if !ok {
		return
	}
	result, err := h.polls.Voters(c.Request.Context(), postID, optionID, pageFrom(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
