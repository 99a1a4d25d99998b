package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TargetType string

const (
	TargetPost    TargetType = "POST"
	TargetComment TargetType = "COMMENT"
)

func (t TargetType) Valid() bool {
	return t == TargetPost || t == TargetComment
}

// Vote is one actor's standing like on one target. Rows are inserted and
// deleted by the toggle engine, never updated.
type Vote struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TargetID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_vote_actor_target,priority:2;index" json:"target_id"`
	TargetType TargetType `gorm:"type:varchar(16);not null;uniqueIndex:idx_vote_actor_target,priority:3" json:"target_type"`
	ActorID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_vote_actor_target,priority:1" json:"user_id"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (v *Vote) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// PollBallot is one actor's immutable choice in one poll.
type PollBallot struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PostID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_ballot_actor_post,priority:2" json:"post_id"`
	PollOptionID uuid.UUID `gorm:"type:uuid;not null;index" json:"poll_option_id"`
	ActorID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_ballot_actor_post,priority:1" json:"user_id"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

func (b *PollBallot) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
