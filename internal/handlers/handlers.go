package handlers

import (
	"github.com/emilythestrangee/social-feed/backend/internal/comments"
	"github.com/emilythestrangee/social-feed/backend/internal/hashtags"
	"github.com/emilythestrangee/social-feed/backend/internal/logger"
	"github.com/emilythestrangee/social-feed/backend/internal/polls"
	"github.com/emilythestrangee/social-feed/backend/internal/posts"
	"github.com/emilythestrangee/social-feed/backend/internal/votes"
)

// Engines are the domain services the handlers call into.
type Engines struct {
	Posts    *posts.Engine
	Comments *comments.Engine
	Votes    *votes.Engine
	Polls    *polls.Engine
	Hashtags *hashtags.Reconciler
}

// Handler combines all handler types
type Handler struct {
	Post    *PostHandler
	Comment *CommentHandler
	Vote    *VoteHandler
	Poll    *PollHandler
	Hashtag *HashtagHandler
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(e Engines, log *logger.Logger) *Handler {
	log = log.With("component", "handlers")
	return &Handler{
		Post:    NewPostHandler(e.Posts, log),
		Comment: NewCommentHandler(e.Comments, log),
		Vote:    NewVoteHandler(e.Votes, log),
		Poll:    NewPollHandler(e.Polls, log),
		Hashtag: NewHashtagHandler(e.Hashtags, log),
	}
}
