package posts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"

	"github.com/emilythestrangee/social-feed/backend/internal/apperr"
	"github.com/emilythestrangee/social-feed/backend/internal/database"
	"github.com/emilythestrangee/social-feed/backend/internal/dbctx"
	"github.com/emilythestrangee/social-feed/backend/internal/events"
	"github.com/emilythestrangee/social-feed/backend/internal/hashtags"
	"github.com/emilythestrangee/social-feed/backend/internal/logger"
	"github.com/emilythestrangee/social-feed/backend/internal/models"
	"github.com/emilythestrangee/social-feed/backend/internal/observability"
	"github.com/emilythestrangee/social-feed/backend/internal/store"
)

const (
	MinPollOptions = 2
	MaxPollOptions = 4
)

type PollInput struct {
	EndAt   time.Time `json:"end_at"`
	Options []string  `json:"options"`
}

type CreateInput struct {
	Type         models.PostType   `json:"type"`
	Content      string            `json:"content"`
	Hashtags     []string          `json:"hashtags"`
	Media        []models.MediaRef `json:"media"`
	QuotedPostID *uuid.UUID        `json:"quoted_post_id"`
	Poll         *PollInput        `json:"poll"`
}

// UpdateInput changes only the fields that are set. Hashtags replaces the
// whole set when non-nil.
type UpdateInput struct {
	Content         *string           `json:"content"`
	Hashtags        *[]string         `json:"hashtags"`
	AddMedia        []models.MediaRef `json:"add_media"`
	RemoveMediaKeys []string          `json:"remove_media_keys"`
}

func (in UpdateInput) empty() bool {
	return in.Content == nil && in.Hashtags == nil && len(in.AddMedia) == 0 && len(in.RemoveMediaKeys) == 0
}

type UpdateResult struct {
	Post         *models.Post      `json:"post"`
	RemovedMedia []models.MediaRef `json:"removed_media"`
}

type ListResult struct {
	Posts []models.Post `json:"posts"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// Reconciler moves hashtag counters between two tag sets.
type Reconciler interface {
	Reconcile(ctx context.Context, newTags, oldTags []string) ([]hashtags.Delta, error)
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine owns the post lifecycle. Post writes and the counters they move
// share one transaction; hashtag reconciliation runs after commit.
type Engine struct {
	tx     database.TxRunner
	facts  *store.Facts
	aggs   *store.Aggregates
	tags   Reconciler
	events events.Publisher
	log    *logger.Logger
	now    func() time.Time
}

func NewEngine(tx database.TxRunner, facts *store.Facts, aggs *store.Aggregates, tags Reconciler, pub events.Publisher, log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		tx:     tx,
		facts:  facts,
		aggs:   aggs,
		tags:   tags,
		events: pub,
		log:    log.With("service", "PostService"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Create stores a NORMAL, POLL or QUOTE post. Quoting a post bumps its
// quote_post_count in the same transaction.
func (e *Engine) Create(ctx context.Context, actor models.Actor, in CreateInput) (post *models.Post, err error) {
	const op = "posts.Create"
	ctx, span := observability.StartSpan(ctx, "posts", op, attribute.String("post.type", string(in.Type)))
	defer func() { observability.EndSpan(span, err) }()

	post, err = e.buildPost(op, actor, in)
	if err != nil {
		return nil, err
	}

	err = e.tx.InTx(ctx, func(dbc dbctx.Context) error {
		if post.Type == models.PostQuote {
			if _, err := e.aggs.LockPost(dbc, *post.QuotedPostID); err != nil {
				if apperr.IsKind(err, apperr.KindNotFound) {
					return apperr.NotFound(op, "quoted post not found")
				}
				return err
			}
		}
		if err := e.aggs.CreatePost(dbc, post); err != nil {
			return err
		}
		if post.Type == models.PostQuote {
			return e.aggs.AdjustQuoteCount(dbc, *post.QuotedPostID, 1)
		}
		return nil
	})
	if err != nil {
		return nil, e.fail(op, err, "creator_id", actor.ID, "type", post.Type)
	}
	span.SetAttributes(attribute.String("post.id", post.ID.String()))

	changes := e.reconcile(ctx, post.ID, post.Hashtags, nil)
	e.events.Publish(ctx, events.PostCreated, actor, events.NewPostPayload(post, changes))
	return post, nil
}

func (e *Engine) buildPost(op string, actor models.Actor, in CreateInput) (*models.Post, error) {
	postType := in.Type
	if postType == "" {
		postType = models.PostNormal
	}
	post := &models.Post{
		CreatorID: actor.ID,
		Type:      postType,
		Content:   strings.TrimSpace(in.Content),
		Hashtags:  datatypes.JSONSlice[string](hashtags.Normalize(in.Hashtags)),
		Media:     datatypes.JSONSlice[models.MediaRef](in.Media),
	}

	switch postType {
	case models.PostNormal:
		if post.Content == "" && len(post.Media) == 0 {
			return nil, apperr.Conflict(op, "post must have content or media")
		}
	case models.PostPoll:
		if in.Poll == nil {
			return nil, apperr.Conflict(op, "poll is required")
		}
		if len(in.Poll.Options) < MinPollOptions || len(in.Poll.Options) > MaxPollOptions {
			return nil, apperr.Conflict(op, fmt.Sprintf("poll must have between %d and %d options", MinPollOptions, MaxPollOptions))
		}
		if !in.Poll.EndAt.After(e.now()) {
			return nil, apperr.Conflict(op, "poll end_at must be in the future")
		}
		endAt := in.Poll.EndAt.UTC()
		post.PollEndAt = &endAt
		post.PollStatus = models.PollOpen
		for i, content := range in.Poll.Options {
			content = strings.TrimSpace(content)
			if content == "" {
				return nil, apperr.Conflict(op, "poll option content is required")
			}
			post.PollOptions = append(post.PollOptions, models.PollOption{Position: i, Content: content})
		}
	case models.PostQuote:
		if in.QuotedPostID == nil {
			return nil, apperr.Conflict(op, "quoted_post_id is required")
		}
		id := *in.QuotedPostID
		post.QuotedPostID = &id
	default:
		return nil, apperr.Conflict(op, "type must be NORMAL, POLL or QUOTE")
	}

	if postType != models.PostPoll && in.Poll != nil {
		return nil, apperr.Conflict(op, "poll is only allowed on POLL posts")
	}
	if postType != models.PostQuote && in.QuotedPostID != nil {
		return nil, apperr.Conflict(op, "quoted_post_id is only allowed on QUOTE posts")
	}
	return post, nil
}

// Update edits content, hashtags and media of the actor's own post. Poll
// options and deadline never change. The removed media refs are returned so
// the caller can drop the stored objects.
func (e *Engine) Update(ctx context.Context, actor models.Actor, postID uuid.UUID, in UpdateInput) (result *UpdateResult, err error) {
	const op = "posts.Update"
	ctx, span := observability.StartSpan(ctx, "posts", op, attribute.String("post.id", postID.String()))
	defer func() { observability.EndSpan(span, err) }()

	if in.empty() {
		return nil, apperr.Conflict(op, "at least one field must be updated")
	}

	var (
		oldTags []string
		newTags []string
		removed []models.MediaRef
		updated *models.Post
	)
	err = e.tx.InTx(ctx, func(dbc dbctx.Context) error {
		post, err := e.aggs.LockPost(dbc, postID)
		if err != nil {
			return err
		}
		if post.CreatorID != actor.ID {
			return apperr.Forbidden(op, "only the creator can edit this post")
		}

		fields := map[string]interface{}{}
		if in.Content != nil {
			content := strings.TrimSpace(*in.Content)
			if content == "" && post.Type != models.PostNormal {
				return apperr.Conflict(op, "content cannot be empty")
			}
			fields["content"] = content
			post.Content = content
		}

		oldTags = post.Hashtags
		newTags = oldTags
		if in.Hashtags != nil {
			newTags = hashtags.Normalize(*in.Hashtags)
			fields["hashtags"] = datatypes.JSONSlice[string](newTags)
		}

		if len(in.AddMedia) > 0 || len(in.RemoveMediaKeys) > 0 {
			var kept []models.MediaRef
			kept, removed, err = applyMedia(post.Media, in.AddMedia, in.RemoveMediaKeys)
			if err != nil {
				return apperr.Conflict(op, err.Error())
			}
			fields["media"] = datatypes.JSONSlice[models.MediaRef](kept)
			post.Media = kept
		}

		if post.Type == models.PostNormal && post.Content == "" && len(post.Media) == 0 {
			return apperr.Conflict(op, "post must have content or media")
		}

		fields["updated_at"] = e.now().UTC()
		if err := e.aggs.UpdatePost(dbc, post.ID, fields); err != nil {
			return err
		}
		updated, err = e.aggs.GetPost(dbc, post.ID)
		return err
	})
	if err != nil {
		return nil, e.fail(op, err, "post_id", postID, "actor_id", actor.ID)
	}

	changes := e.reconcile(ctx, postID, newTags, oldTags)
	e.events.Publish(ctx, events.PostUpdated, actor, events.NewPostPayload(updated, changes))
	if removed == nil {
		removed = []models.MediaRef{}
	}
	return &UpdateResult{Post: updated, RemovedMedia: removed}, nil
}

// applyMedia removes the refs named by keys and appends added. Every key
// must name a current ref.
func applyMedia(current, added []models.MediaRef, keys []string) (kept, removed []models.MediaRef, err error) {
	drop := make(map[string]bool, len(keys))
	for _, k := range keys {
		drop[k] = false
	}
	for _, ref := range current {
		if _, ok := drop[ref.Key]; ok {
			drop[ref.Key] = true
			removed = append(removed, ref)
			continue
		}
		kept = append(kept, ref)
	}
	var missing []string
	for _, k := range keys {
		if !drop[k] {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("invalid remove_media_keys: %s", strings.Join(missing, "; "))
	}
	kept = append(kept, added...)
	if kept == nil {
		kept = []models.MediaRef{}
	}
	return kept, removed, nil
}

// Delete removes the actor's post with its options, ballots, comments and
// every vote on the post or its comments.
func (e *Engine) Delete(ctx context.Context, actor models.Actor, postID uuid.UUID) (err error) {
	const op = "posts.Delete"
	ctx, span := observability.StartSpan(ctx, "posts", op, attribute.String("post.id", postID.String()))
	defer func() { observability.EndSpan(span, err) }()

	var (
		post            *models.Post
		removedComments int64
	)
	err = e.tx.InTx(ctx, func(dbc dbctx.Context) error {
		var err error
		post, err = e.aggs.LockPost(dbc, postID)
		if err != nil {
			return err
		}
		if post.CreatorID != actor.ID {
			return apperr.Forbidden(op, "only the creator can delete this post")
		}

		commentIDs, err := e.aggs.CommentIDsForPost(dbc, post.ID)
		if err != nil {
			return err
		}
		if err := e.aggs.LockComments(dbc, commentIDs); err != nil {
			return err
		}
		if err := e.facts.DeleteVotesForTargets(dbc, models.TargetComment, commentIDs); err != nil {
			return err
		}
		if err := e.facts.DeleteVotesForTargets(dbc, models.TargetPost, []uuid.UUID{post.ID}); err != nil {
			return err
		}
		if err := e.facts.DeleteBallotsForPost(dbc, post.ID); err != nil {
			return err
		}
		if removedComments, err = e.aggs.DeleteComments(dbc, commentIDs); err != nil {
			return err
		}
		if err := e.aggs.DeletePost(dbc, post.ID); err != nil {
			return err
		}
		if post.Type == models.PostQuote && post.QuotedPostID != nil {
			return e.aggs.AdjustQuoteCount(dbc, *post.QuotedPostID, -1)
		}
		return nil
	})
	if err != nil {
		return e.fail(op, err, "post_id", postID, "actor_id", actor.ID)
	}

	changes := e.reconcile(ctx, postID, nil, post.Hashtags)
	keys := make([]string, 0, len(post.Media))
	for _, ref := range post.Media {
		keys = append(keys, ref.Key)
	}
	e.events.Publish(ctx, events.PostDeleted, actor, events.DeletedPayload{
		ID:              post.ID,
		MediaKeys:       keys,
		HashtagChanges:  changes,
		RemovedComments: removedComments,
	})
	return nil
}

func (e *Engine) Get(ctx context.Context, postID uuid.UUID) (*models.Post, error) {
	post, err := e.aggs.GetPost(dbctx.Context{Ctx: ctx}, postID)
	if err != nil {
		return nil, e.fail("posts.Get", err, "post_id", postID)
	}
	return post, nil
}

// List pages through all posts, newest first.
func (e *Engine) List(ctx context.Context, page store.Page) (*ListResult, error) {
	return e.list(ctx, "posts.List", nil, page)
}

func (e *Engine) ListByCreator(ctx context.Context, creatorID uuid.UUID, page store.Page) (*ListResult, error) {
	return e.list(ctx, "posts.ListByCreator", &creatorID, page)
}

func (e *Engine) list(ctx context.Context, op string, creatorID *uuid.UUID, page store.Page) (*ListResult, error) {
	posts, total, err := e.aggs.ListPosts(dbctx.Context{Ctx: ctx}, creatorID, page)
	if err != nil {
		return nil, e.fail(op, err)
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return &ListResult{Posts: posts, Total: total, Page: page.Number, Limit: page.Size}, nil
}

// reconcile applies the hashtag change of a committed post write. A failure
// leaves the post as written and is only logged.
func (e *Engine) reconcile(ctx context.Context, postID uuid.UUID, newTags, oldTags []string) []events.HashtagChange {
	deltas, err := e.tags.Reconcile(ctx, newTags, oldTags)
	if err != nil {
		e.log.Warn("Hashtag reconcile failed after post write", "post_id", postID, "error", err)
		return nil
	}
	return hashtags.Changes(deltas)
}

func (e *Engine) fail(op string, err error, keysAndValues ...interface{}) error {
	err = apperr.MapError(op, err)
	kv := append([]interface{}{"op", op, "error", err}, keysAndValues...)
	if apperr.IsKind(err, apperr.KindInternal) {
		e.log.Error("Post operation failed", kv...)
	} else {
		e.log.Debug("Post operation rejected", kv...)
	}
	return err
}
