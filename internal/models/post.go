package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PostType string

const (
	PostNormal PostType = "NORMAL"
	PostPoll   PostType = "POLL"
	PostQuote  PostType = "QUOTE"
)

type PollStatus string

const (
	PollOpen   PollStatus = "OPEN"
	PollClosed PollStatus = "CLOSED"
)

// MediaRef is an opaque object-storage reference. The bytes live elsewhere.
type MediaRef struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// Post is the aggregate whose counters track votes, comments, quotes and,
// for polls, ballots per option.
type Post struct {
	ID             uuid.UUID                     `gorm:"type:uuid;primaryKey" json:"id"`
	CreatorID      uuid.UUID                     `gorm:"type:uuid;not null;index" json:"creator_id"`
	Type           PostType                      `gorm:"type:varchar(16);not null;index" json:"type"`
	Content        string                        `gorm:"type:text" json:"content"`
	LikeCount      int64                         `gorm:"not null;default:0" json:"like_count"`
	CommentCount   int64                         `gorm:"not null;default:0" json:"comment_count"`
	QuotePostCount int64                         `gorm:"not null;default:0" json:"quote_post_count"`
	Hashtags       datatypes.JSONSlice[string]   `json:"hashtags"`
	Media          datatypes.JSONSlice[MediaRef] `json:"media"`
	QuotedPostID   *uuid.UUID                    `gorm:"type:uuid;index" json:"quoted_post_id,omitempty"`
	PollEndAt      *time.Time                    `json:"poll_end_at,omitempty"`
	PollStatus     PollStatus                    `gorm:"type:varchar(16)" json:"poll_status,omitempty"`
	PollOptions    []PollOption                  `gorm:"foreignKey:PostID" json:"poll_options,omitempty"`
	CreatedAt      time.Time                     `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time                     `json:"updated_at"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PollExpired reports whether the poll deadline has passed at now.
func (p *Post) PollExpired(now time.Time) bool {
	return p.PollEndAt != nil && !now.Before(*p.PollEndAt)
}

// Option finds an option of this post by id.
func (p *Post) Option(id uuid.UUID) (*PollOption, bool) {
	for i := range p.PollOptions {
		if p.PollOptions[i].ID == id {
			return &p.PollOptions[i], true
		}
	}
	return nil, false
}

// PollOption belongs to exactly one POLL post and is only written while
// that post's row is locked.
type PollOption struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PostID    uuid.UUID `gorm:"type:uuid;not null;index" json:"post_id"`
	Position  int       `gorm:"not null" json:"position"`
	Content   string    `gorm:"not null" json:"content"`
	VoteCount int64     `gorm:"not null;default:0" json:"vote_count"`
}

func (o *PollOption) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
