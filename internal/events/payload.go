package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/emilythestrangee/social-feed/backend/internal/models"
)

// Payload is the data block of an envelope. EntityID is the partition key:
// events about one entity are delivered in publish order.
type Payload interface {
	EntityID() string
}

// HashtagChange is one applied hashtag delta. ID is set only when the
// hashtag was created by the change.
type HashtagChange struct {
	Name  string     `json:"name"`
	Delta int        `json:"delta"`
	ID    *uuid.UUID `json:"id,omitempty"`
}

// PostPayload is a tagged union on Type: Poll is set only for POLL posts
// and QuotedPostID only for QUOTE posts.
type PostPayload struct {
	ID             uuid.UUID         `json:"_id"`
	Type           models.PostType   `json:"type"`
	CreatorID      uuid.UUID         `json:"creator_id"`
	Content        string            `json:"content"`
	Hashtags       []string          `json:"hashtags"`
	HashtagChanges []HashtagChange   `json:"hashtag_changes,omitempty"`
	Media          []models.MediaRef `json:"urls"`
	LikeCount      int64             `json:"like_count"`
	CommentCount   int64             `json:"comment_count"`
	QuotePostCount int64             `json:"quote_post_count"`
	Poll           *PollBlock        `json:"poll,omitempty"`
	QuotedPostID   *uuid.UUID        `json:"quoted_post_id,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

func (p PostPayload) EntityID() string { return p.ID.String() }

type PollBlock struct {
	EndAt   *time.Time        `json:"end_at,omitempty"`
	Status  models.PollStatus `json:"status"`
	Options []PollOptionBlock `json:"options"`
}

type PollOptionBlock struct {
	ID        uuid.UUID `json:"_id"`
	Content   string    `json:"content"`
	VoteCount int64     `json:"vote_count"`
}

// NewPostPayload shapes a post for the bus according to its type.
func NewPostPayload(post *models.Post, changes []HashtagChange) PostPayload {
	p := PostPayload{
		ID:             post.ID,
		Type:           post.Type,
		CreatorID:      post.CreatorID,
		Content:        post.Content,
		Hashtags:       nonNil([]string(post.Hashtags)),
		HashtagChanges: changes,
		Media:          nonNil([]models.MediaRef(post.Media)),
		LikeCount:      post.LikeCount,
		CommentCount:   post.CommentCount,
		QuotePostCount: post.QuotePostCount,
		CreatedAt:      post.CreatedAt,
		UpdatedAt:      post.UpdatedAt,
	}
	switch post.Type {
	case models.PostPoll:
		block := NewPollBlock(post)
		p.Poll = &block
	case models.PostQuote:
		p.QuotedPostID = post.QuotedPostID
	}
	return p
}

func NewPollBlock(post *models.Post) PollBlock {
	block := PollBlock{
		EndAt:   post.PollEndAt,
		Status:  post.PollStatus,
		Options: make([]PollOptionBlock, 0, len(post.PollOptions)),
	}
	for _, opt := range post.PollOptions {
		block.Options = append(block.Options, PollOptionBlock{ID: opt.ID, Content: opt.Content, VoteCount: opt.VoteCount})
	}
	return block
}

// VotePayload describes a like or an unlike. It is keyed by the target so
// toggles on one post or comment stay ordered.
type VotePayload struct {
	ID         uuid.UUID         `json:"_id"`
	TargetID   uuid.UUID         `json:"target_id"`
	TargetType models.TargetType `json:"target_type"`
	ActorID    uuid.UUID         `json:"user_id"`
	LikeCount  int64             `json:"like_count"`
	CreatedAt  time.Time         `json:"createdAt"`
}

func (p VotePayload) EntityID() string { return p.TargetID.String() }

// PollVotePayload carries the poll snapshot after a ballot and the ballot.
type PollVotePayload struct {
	ID     uuid.UUID   `json:"_id"`
	Poll   PollBlock   `json:"poll"`
	Ballot BallotBlock `json:"dataPollVote"`
}

func (p PollVotePayload) EntityID() string { return p.ID.String() }

type BallotBlock struct {
	ID           uuid.UUID `json:"_id"`
	PollOptionID uuid.UUID `json:"poll_option_id"`
	ActorID      uuid.UUID `json:"user_id"`
	CreatedAt    time.Time `json:"createdAt"`
}

func NewBallotBlock(ballot *models.PollBallot) BallotBlock {
	return BallotBlock{
		ID:           ballot.ID,
		PollOptionID: ballot.PollOptionID,
		ActorID:      ballot.ActorID,
		CreatedAt:    ballot.CreatedAt,
	}
}

// PollClosedPayload is published once, by the request that closed the poll.
type PollClosedPayload struct {
	ID       uuid.UUID  `json:"_id"`
	EndAt    *time.Time `json:"end_at,omitempty"`
	ClosedAt time.Time  `json:"closed_at"`
}

func (p PollClosedPayload) EntityID() string { return p.ID.String() }

type CommentPayload struct {
	ID              uuid.UUID  `json:"_id"`
	PostID          uuid.UUID  `json:"post_id"`
	AuthorID        uuid.UUID  `json:"user_id"`
	ParentCommentID *uuid.UUID `json:"parent_comment_id,omitempty"`
	Level           int        `json:"level"`
	Body            string     `json:"content"`
	LikeCount       int64      `json:"like_count"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func (p CommentPayload) EntityID() string { return p.ID.String() }

func NewCommentPayload(c *models.Comment) CommentPayload {
	return CommentPayload{
		ID:              c.ID,
		PostID:          c.PostID,
		AuthorID:        c.AuthorID,
		ParentCommentID: c.ParentCommentID,
		Level:           c.Level,
		Body:            c.Body,
		LikeCount:       c.LikeCount,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

// DeletedPayload announces a removed post or comment.
type DeletedPayload struct {
	ID              uuid.UUID       `json:"_id"`
	PostID          *uuid.UUID      `json:"post_id,omitempty"`
	MediaKeys       []string        `json:"deleted_keys,omitempty"`
	HashtagChanges  []HashtagChange `json:"hashtag_changes,omitempty"`
	RemovedComments int64           `json:"removed_comments,omitempty"`
}

func (p DeletedPayload) EntityID() string { return p.ID.String() }

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
