package store

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/social-feed/backend/internal/apperr"
	"github.com/emilythestrangee/social-feed/backend/internal/dbctx"
	"github.com/emilythestrangee/social-feed/backend/internal/models"
)

// Aggregates is the Aggregate Store: posts, poll options, comments and
// hashtags with their denormalized counters. Counter writes are relative
// SQL expressions so concurrent transactions never overwrite each other.
type Aggregates struct {
	db *gorm.DB
}

func NewAggregates(db *gorm.DB) *Aggregates {
	return &Aggregates{db: db}
}

func forUpdate() clause.Locking {
	return clause.Locking{Strength: "UPDATE"}
}

// LockPost loads a post and holds its row lock until the transaction ends.
func (a *Aggregates) LockPost(dbc dbctx.Context, id uuid.UUID) (*models.Post, error) {
	var post models.Post
	err := dbc.Conn(a.db).Clauses(forUpdate()).Where("id = ?", id).Take(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("store.LockPost", "post not found")
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// LockPostOfType is LockPost restricted to one post type. A post of another
// type is reported as not found.
func (a *Aggregates) LockPostOfType(dbc dbctx.Context, id uuid.UUID, postType models.PostType) (*models.Post, error) {
	var post models.Post
	err := dbc.Conn(a.db).Clauses(forUpdate()).
		Where("id = ? AND type = ?", id, postType).
		Take(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("store.LockPostOfType", fmt.Sprintf("%s post not found", postType))
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// GetPost loads a post with its poll options in display order.
func (a *Aggregates) GetPost(dbc dbctx.Context, id uuid.UUID) (*models.Post, error) {
	var post models.Post
	err := dbc.Conn(a.db).
		Preload("PollOptions", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).
		Take(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("store.GetPost", "post not found")
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// LoadPollOptions fills post.PollOptions from storage.
func (a *Aggregates) LoadPollOptions(dbc dbctx.Context, post *models.Post) error {
	var options []models.PollOption
	if err := dbc.Conn(a.db).Where("post_id = ?", post.ID).Order("position ASC").Find(&options).Error; err != nil {
		return err
	}
	post.PollOptions = options
	return nil
}

// ListPosts pages through posts newest first, optionally for one creator.
func (a *Aggregates) ListPosts(dbc dbctx.Context, creatorID *uuid.UUID, page Page) ([]models.Post, int64, error) {
	q := dbc.Conn(a.db).Model(&models.Post{})
	if creatorID != nil {
		q = q.Where("creator_id = ?", *creatorID)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var posts []models.Post
	err := q.Preload("PollOptions", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("created_at DESC").Order("id").
		Offset(page.Offset()).Limit(page.Size).
		Find(&posts).Error
	return posts, total, err
}

func (a *Aggregates) CreatePost(dbc dbctx.Context, post *models.Post) error {
	return dbc.Conn(a.db).Create(post).Error
}

// UpdatePost writes the given columns of one post.
func (a *Aggregates) UpdatePost(dbc dbctx.Context, id uuid.UUID, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	return dbc.Conn(a.db).Model(&models.Post{}).Where("id = ?", id).Updates(fields).Error
}

// DeletePost removes a post and its poll options.
func (a *Aggregates) DeletePost(dbc dbctx.Context, id uuid.UUID) error {
	conn := dbc.Conn(a.db)
	if err := conn.Where("post_id = ?", id).Delete(&models.PollOption{}).Error; err != nil {
		return err
	}
	res := conn.Where("id = ?", id).Delete(&models.Post{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("store.DeletePost", "post not found")
	}
	return nil
}

// LockComment loads a comment and holds its row lock until the transaction ends.
func (a *Aggregates) LockComment(dbc dbctx.Context, id uuid.UUID) (*models.Comment, error) {
	var comment models.Comment
	err := dbc.Conn(a.db).Clauses(forUpdate()).Where("id = ?", id).Take(&comment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("store.LockComment", "comment not found")
	}
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func (a *Aggregates) GetComment(dbc dbctx.Context, id uuid.UUID) (*models.Comment, error) {
	var comment models.Comment
	err := dbc.Conn(a.db).Where("id = ?", id).Take(&comment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("store.GetComment", "comment not found")
	}
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// LockComments takes row locks on every listed comment, in id order.
func (a *Aggregates) LockComments(dbc dbctx.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	var locked []uuid.UUID
	return dbc.Conn(a.db).Model(&models.Comment{}).
		Clauses(forUpdate()).
		Where("id IN ?", ids).
		Order("id").
		Pluck("id", &locked).Error
}

// GetCommentInPost loads a comment only if it belongs to postID.
func (a *Aggregates) GetCommentInPost(dbc dbctx.Context, postID, commentID uuid.UUID) (*models.Comment, error) {
	var comment models.Comment
	err := dbc.Conn(a.db).Where("id = ? AND post_id = ?", commentID, postID).Take(&comment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("store.GetCommentInPost", "comment does not exist in the specified post")
	}
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func (a *Aggregates) CreateComment(dbc dbctx.Context, comment *models.Comment) error {
	return dbc.Conn(a.db).Create(comment).Error
}

func (a *Aggregates) UpdateCommentBody(dbc dbctx.Context, id uuid.UUID, body string) error {
	return dbc.Conn(a.db).Model(&models.Comment{}).Where("id = ?", id).Update("body", body).Error
}

// ReplyIDs returns the ids of the direct replies to a comment.
func (a *Aggregates) ReplyIDs(dbc dbctx.Context, parentID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := dbc.Conn(a.db).Model(&models.Comment{}).
		Where("parent_comment_id = ?", parentID).
		Pluck("id", &ids).Error
	return ids, err
}

// CommentIDsForPost returns the ids of every comment on a post.
func (a *Aggregates) CommentIDsForPost(dbc dbctx.Context, postID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := dbc.Conn(a.db).Model(&models.Comment{}).Where("post_id = ?", postID).Pluck("id", &ids).Error
	return ids, err
}

func (a *Aggregates) DeleteComments(dbc dbctx.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := dbc.Conn(a.db).Where("id IN ?", ids).Delete(&models.Comment{})
	return res.RowsAffected, res.Error
}

// ListRootComments pages through level-1 comments of a post, newest first.
func (a *Aggregates) ListRootComments(dbc dbctx.Context, postID uuid.UUID, page Page) ([]models.Comment, int64, error) {
	return listComments(dbc.Conn(a.db).Where("post_id = ? AND level = ?", postID, models.CommentLevelRoot), page)
}

// ListReplies pages through the replies of one comment, newest first.
func (a *Aggregates) ListReplies(dbc dbctx.Context, postID, parentID uuid.UUID, page Page) ([]models.Comment, int64, error) {
	return listComments(dbc.Conn(a.db).
		Where("post_id = ? AND parent_comment_id = ? AND level = ?", postID, parentID, models.CommentLevelReply), page)
}

func listComments(q *gorm.DB, page Page) ([]models.Comment, int64, error) {
	q = q.Model(&models.Comment{}).Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var comments []models.Comment
	err := q.Order("created_at DESC").Order("id").
		Offset(page.Offset()).Limit(page.Size).
		Find(&comments).Error
	return comments, total, err
}

// AdjustLikeCount applies delta (+1 or -1) to the target's like_count and
// returns the new value. A decrement that would go below zero fails.
func (a *Aggregates) AdjustLikeCount(dbc dbctx.Context, targetType models.TargetType, id uuid.UUID, delta int64) (int64, error) {
	model, err := targetModel(targetType)
	if err != nil {
		return 0, err
	}
	conn := dbc.Conn(a.db)
	q := conn.Model(model).Where("id = ?", id)
	if delta < 0 {
		q = q.Where("like_count >= ?", -delta)
	}
	res := q.UpdateColumn("like_count", gorm.Expr("like_count + ?", delta))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, apperr.Internal("store.AdjustLikeCount", fmt.Errorf("like_count of %s %s cannot move by %d", targetType, id, delta))
	}

	var count int64
	if err := conn.Model(model).Select("like_count").Where("id = ?", id).Row().Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// AdjustCommentCount moves comment_count by delta, clamped at zero.
func (a *Aggregates) AdjustCommentCount(dbc dbctx.Context, postID uuid.UUID, delta int64) error {
	return a.adjustClamped(dbc, "comment_count", postID, delta)
}

// AdjustQuoteCount moves quote_post_count by delta, clamped at zero.
func (a *Aggregates) AdjustQuoteCount(dbc dbctx.Context, postID uuid.UUID, delta int64) error {
	return a.adjustClamped(dbc, "quote_post_count", postID, delta)
}

func (a *Aggregates) adjustClamped(dbc dbctx.Context, column string, postID uuid.UUID, delta int64) error {
	expr := gorm.Expr(column+" + ?", delta)
	if delta < 0 {
		expr = gorm.Expr("CASE WHEN "+column+" > ? THEN "+column+" - ? ELSE 0 END", -delta, -delta)
	}
	return dbc.Conn(a.db).Model(&models.Post{}).Where("id = ?", postID).UpdateColumn(column, expr).Error
}

// IncrementOptionVotes adds one ballot to an option of postID and returns
// the option's new vote_count.
func (a *Aggregates) IncrementOptionVotes(dbc dbctx.Context, postID, optionID uuid.UUID) (int64, error) {
	conn := dbc.Conn(a.db)
	res := conn.Model(&models.PollOption{}).
		Where("id = ? AND post_id = ?", optionID, postID).
		UpdateColumn("vote_count", gorm.Expr("vote_count + ?", 1))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, apperr.NotFound("store.IncrementOptionVotes", "poll option not found")
	}
	var count int64
	if err := conn.Model(&models.PollOption{}).Select("vote_count").Where("id = ?", optionID).Row().Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ClosePoll flips an OPEN poll to CLOSED. It reports false when the poll
// was already closed.
func (a *Aggregates) ClosePoll(dbc dbctx.Context, postID uuid.UUID) (bool, error) {
	res := dbc.Conn(a.db).Model(&models.Post{}).
		Where("id = ? AND type = ? AND poll_status = ?", postID, models.PostPoll, models.PollOpen).
		UpdateColumn("poll_status", models.PollClosed)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func targetModel(targetType models.TargetType) (interface{}, error) {
	switch targetType {
	case models.TargetPost:
		return &models.Post{}, nil
	case models.TargetComment:
		return &models.Comment{}, nil
	default:
		return nil, apperr.NotFound("store.targetModel", fmt.Sprintf("unknown target type %q", targetType))
	}
}
