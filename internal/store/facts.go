package store

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/emilythestrangee/social-feed/backend/internal/apperr"
	"github.com/emilythestrangee/social-feed/backend/internal/dbctx"
	"github.com/emilythestrangee/social-feed/backend/internal/models"
)

// Facts is the Fact Store: vote records and poll ballots.
// Rows are inserted or deleted, never updated.
type Facts struct {
	db *gorm.DB
}

func NewFacts(db *gorm.DB) *Facts {
	return &Facts{db: db}
}

// FindVote returns the actor's standing vote on the target, or nil.
func (f *Facts) FindVote(dbc dbctx.Context, actorID, targetID uuid.UUID, targetType models.TargetType) (*models.Vote, error) {
	var vote models.Vote
	err := dbc.Conn(f.db).
		Where("actor_id = ? AND target_id = ? AND target_type = ?", actorID, targetID, targetType).
		Take(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vote, nil
}

func (f *Facts) InsertVote(dbc dbctx.Context, vote *models.Vote) error {
	return dbc.Conn(f.db).Create(vote).Error
}

// DeleteVote removes one vote record. A missing row means another
// transaction removed it first.
func (f *Facts) DeleteVote(dbc dbctx.Context, id uuid.UUID) error {
	res := dbc.Conn(f.db).Where("id = ?", id).Delete(&models.Vote{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.Retryable("store.DeleteVote", "vote already removed", nil)
	}
	return nil
}

func (f *Facts) CountVotes(dbc dbctx.Context, targetID uuid.UUID, targetType models.TargetType) (int64, error) {
	var count int64
	err := dbc.Conn(f.db).Model(&models.Vote{}).
		Where("target_id = ? AND target_type = ?", targetID, targetType).
		Count(&count).Error
	return count, err
}

// DeleteVotesForTargets drops every vote on the given targets.
func (f *Facts) DeleteVotesForTargets(dbc dbctx.Context, targetType models.TargetType, targetIDs []uuid.UUID) error {
	if len(targetIDs) == 0 {
		return nil
	}
	return dbc.Conn(f.db).
		Where("target_type = ? AND target_id IN ?", targetType, targetIDs).
		Delete(&models.Vote{}).Error
}

// FindBallot returns the actor's ballot in the poll, or nil.
func (f *Facts) FindBallot(dbc dbctx.Context, actorID, postID uuid.UUID) (*models.PollBallot, error) {
	var ballot models.PollBallot
	err := dbc.Conn(f.db).
		Where("actor_id = ? AND post_id = ?", actorID, postID).
		Take(&ballot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ballot, nil
}

func (f *Facts) InsertBallot(dbc dbctx.Context, ballot *models.PollBallot) error {
	return dbc.Conn(f.db).Create(ballot).Error
}

func (f *Facts) CountBallots(dbc dbctx.Context, optionID uuid.UUID) (int64, error) {
	var count int64
	err := dbc.Conn(f.db).Model(&models.PollBallot{}).
		Where("poll_option_id = ?", optionID).
		Count(&count).Error
	return count, err
}

// ListBallots pages through one option's ballots, newest first.
func (f *Facts) ListBallots(dbc dbctx.Context, postID, optionID uuid.UUID, page Page) ([]models.PollBallot, int64, error) {
	q := dbc.Conn(f.db).Model(&models.PollBallot{}).
		Where("post_id = ? AND poll_option_id = ?", postID, optionID).
		Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var ballots []models.PollBallot
	err := q.Order("created_at DESC").Order("id").
		Offset(page.Offset()).Limit(page.Size).
		Find(&ballots).Error
	return ballots, total, err
}

func (f *Facts) DeleteBallotsForPost(dbc dbctx.Context, postID uuid.UUID) error {
	return dbc.Conn(f.db).Where("post_id = ?", postID).Delete(&models.PollBallot{}).Error
}
