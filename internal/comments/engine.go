package comments

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/emilythestrangee/social-feed/backend/internal/apperr"
	"github.com/emilythestrangee/social-feed/backend/internal/database"
	"github.com/emilythestrangee/social-feed/backend/internal/dbctx"
	"github.com/emilythestrangee/social-feed/backend/internal/events"
	"github.com/emilythestrangee/social-feed/backend/internal/logger"
	"github.com/emilythestrangee/social-feed/backend/internal/models"
	"github.com/emilythestrangee/social-feed/backend/internal/observability"
	"github.com/emilythestrangee/social-feed/backend/internal/store"
)

// RepliesPerThread is how many replies ListByPost inlines under each root.
const RepliesPerThread = 3

type Thread struct {
	models.Comment
	Replies    []models.Comment `json:"replies"`
	ReplyCount int64            `json:"reply_count"`
}

type ThreadPage struct {
	Threads []Thread `json:"comments"`
	Total   int64    `json:"total"`
	Page    int      `json:"page"`
	Limit   int      `json:"limit"`
}

type ReplyPage struct {
	Replies []models.Comment `json:"replies"`
	Total   int64            `json:"total"`
	Page    int              `json:"page"`
	Limit   int              `json:"limit"`
}

// Engine manages two-level comment threads and the post's comment_count.
type Engine struct {
	tx     database.TxRunner
	facts  *store.Facts
	aggs   *store.Aggregates
	events events.Publisher
	log    *logger.Logger
}

func NewEngine(tx database.TxRunner, facts *store.Facts, aggs *store.Aggregates, pub events.Publisher, log *logger.Logger) *Engine {
	return &Engine{
		tx:     tx,
		facts:  facts,
		aggs:   aggs,
		events: pub,
		log:    log.With("service", "CommentService"),
	}
}

// Create adds a comment to a post. Without a parent it is a root comment;
// a reply to a reply is attached to the root of that thread.
func (e *Engine) Create(ctx context.Context, actor models.Actor, postID uuid.UUID, body string, parentID *uuid.UUID) (comment *models.Comment, err error) {
	const op = "comments.Create"
	ctx, span := observability.StartSpan(ctx, "comments", op, attribute.String("post.id", postID.String()))
	defer func() { observability.EndSpan(span, err) }()

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperr.Conflict(op, "comment content is required")
	}

	comment = &models.Comment{PostID: postID, AuthorID: actor.ID, Level: models.CommentLevelRoot, Body: body}
	err = e.tx.InTx(ctx, func(dbc dbctx.Context) error {
		if _, err := e.aggs.LockPost(dbc, postID); err != nil {
			return err
		}
		if parentID != nil {
			parent, err := e.aggs.GetCommentInPost(dbc, postID, *parentID)
			if err != nil {
				return err
			}
			rootID := parent.ID
			if parent.Level == models.CommentLevelReply && parent.ParentCommentID != nil {
				rootID = *parent.ParentCommentID
			}
			comment.ParentCommentID = &rootID
			comment.Level = models.CommentLevelReply
		}
		if err := e.aggs.CreateComment(dbc, comment); err != nil {
			return err
		}
		return e.aggs.AdjustCommentCount(dbc, postID, 1)
	})
	if err != nil {
		return nil, e.fail(op, err, "post_id", postID, "actor_id", actor.ID)
	}

	e.events.Publish(ctx, events.CommentCreated, actor, events.NewCommentPayload(comment))
	return comment, nil
}

// Update replaces the body of the actor's own comment.
func (e *Engine) Update(ctx context.Context, actor models.Actor, commentID uuid.UUID, body string) (comment *models.Comment, err error) {
	const op = "comments.Update"
	ctx, span := observability.StartSpan(ctx, "comments", op, attribute.String("comment.id", commentID.String()))
	defer func() { observability.EndSpan(span, err) }()

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperr.Conflict(op, "comment content is required")
	}

	err = e.tx.InTx(ctx, func(dbc dbctx.Context) error {
		current, err := e.aggs.LockComment(dbc, commentID)
		if err != nil {
			return err
		}
		if current.AuthorID != actor.ID {
			return apperr.Forbidden(op, "only the author can edit this comment")
		}
		if err := e.aggs.UpdateCommentBody(dbc, current.ID, body); err != nil {
			return err
		}
		comment, err = e.aggs.GetCommentInPost(dbc, current.PostID, current.ID)
		return err
	})
	if err != nil {
		return nil, e.fail(op, err, "comment_id", commentID, "actor_id", actor.ID)
	}

	e.events.Publish(ctx, events.CommentUpdated, actor, events.NewCommentPayload(comment))
	return comment, nil
}

// Delete removes the actor's comment together with its replies and every
// vote on them, and lowers the post's comment_count by the number removed.
func (e *Engine) Delete(ctx context.Context, actor models.Actor, commentID uuid.UUID) (err error) {
	const op = "comments.Delete"
	ctx, span := observability.StartSpan(ctx, "comments", op, attribute.String("comment.id", commentID.String()))
	defer func() { observability.EndSpan(span, err) }()

	var (
		comment *models.Comment
		removed int64
	)
	err = e.tx.InTx(ctx, func(dbc dbctx.Context) error {
		// Lock order is post, then comments.
		found, err := e.aggs.GetComment(dbc, commentID)
		if err != nil {
			return err
		}
		if _, err := e.aggs.LockPost(dbc, found.PostID); err != nil {
			return err
		}
		comment, err = e.aggs.LockComment(dbc, commentID)
		if err != nil {
			return err
		}
		if comment.AuthorID != actor.ID {
			return apperr.Forbidden(op, "only the author can delete this comment")
		}

		ids := []uuid.UUID{comment.ID}
		if comment.Level == models.CommentLevelRoot {
			replies, err := e.aggs.ReplyIDs(dbc, comment.ID)
			if err != nil {
				return err
			}
			ids = append(ids, replies...)
		}
		if err := e.aggs.LockComments(dbc, ids); err != nil {
			return err
		}
		if err := e.facts.DeleteVotesForTargets(dbc, models.TargetComment, ids); err != nil {
			return err
		}
		if removed, err = e.aggs.DeleteComments(dbc, ids); err != nil {
			return err
		}
		return e.aggs.AdjustCommentCount(dbc, comment.PostID, -removed)
	})
	if err != nil {
		return e.fail(op, err, "comment_id", commentID, "actor_id", actor.ID)
	}

	postID := comment.PostID
	e.events.Publish(ctx, events.CommentDeleted, actor, events.DeletedPayload{
		ID:              comment.ID,
		PostID:          &postID,
		RemovedComments: removed,
	})
	return nil
}

// ListByPost pages through root comments, newest first, each with its
// latest replies inlined.
func (e *Engine) ListByPost(ctx context.Context, postID uuid.UUID, page store.Page) (*ThreadPage, error) {
	const op = "comments.ListByPost"
	dbc := dbctx.Context{Ctx: ctx}

	if _, err := e.aggs.GetPost(dbc, postID); err != nil {
		return nil, e.fail(op, err, "post_id", postID)
	}
	roots, total, err := e.aggs.ListRootComments(dbc, postID, page)
	if err != nil {
		return nil, e.fail(op, err, "post_id", postID)
	}

	threads := make([]Thread, 0, len(roots))
	for _, root := range roots {
		replies, count, err := e.aggs.ListReplies(dbc, postID, root.ID, store.NewPage(1, RepliesPerThread))
		if err != nil {
			return nil, e.fail(op, err, "post_id", postID, "comment_id", root.ID)
		}
		if replies == nil {
			replies = []models.Comment{}
		}
		threads = append(threads, Thread{Comment: root, Replies: replies, ReplyCount: count})
	}
	return &ThreadPage{Threads: threads, Total: total, Page: page.Number, Limit: page.Size}, nil
}

// ListReplies pages through the replies of one root comment.
func (e *Engine) ListReplies(ctx context.Context, postID, parentID uuid.UUID, page store.Page) (*ReplyPage, error) {
	const op = "comments.ListReplies"
	dbc := dbctx.Context{Ctx: ctx}

	if _, err := e.aggs.GetCommentInPost(dbc, postID, parentID); err != nil {
		return nil, e.fail(op, err, "post_id", postID, "comment_id", parentID)
	}
	replies, total, err := e.aggs.ListReplies(dbc, postID, parentID, page)
	if err != nil {
		return nil, e.fail(op, err, "post_id", postID, "comment_id", parentID)
	}
	if replies == nil {
		replies = []models.Comment{}
	}
	return &ReplyPage{Replies: replies, Total: total, Page: page.Number, Limit: page.Size}, nil
}

func (e *Engine) fail(op string, err error, keysAndValues ...interface{}) error {
	err = apperr.MapError(op, err)
	kv := append([]interface{}{"op", op, "error", err}, keysAndValues...)
	if apperr.IsKind(err, apperr.KindInternal) {
		e.log.Error("Comment operation failed", kv...)
	} else {
		e.log.Debug("Comment operation rejected", kv...)
	}
	return err
}
