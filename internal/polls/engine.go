package polls

import (
	"context"
	"time"

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

// BallotResult is the poll after the ballot was counted, plus the ballot.
type BallotResult struct {
	ID     uuid.UUID          `json:"_id"`
	Poll   *models.Post       `json:"poll"`
	Ballot *models.PollBallot `json:"dataPollVote"`
}

type VotersPage struct {
	Ballots []models.PollBallot `json:"voters"`
	Total   int64               `json:"total"`
	Page    int                 `json:"page"`
	Limit   int                 `json:"limit"`
}

type Option func(*Engine)

// WithClock overrides the time source used for deadline checks.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine records poll ballots. Every precondition is checked inside the
// transaction that writes the ballot, with the poll row locked.
type Engine struct {
	tx     database.TxRunner
	facts  *store.Facts
	aggs   *store.Aggregates
	events events.Publisher
	log    *logger.Logger
	now    func() time.Time
}

func NewEngine(tx database.TxRunner, facts *store.Facts, aggs *store.Aggregates, pub events.Publisher, log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		tx:     tx,
		facts:  facts,
		aggs:   aggs,
		events: pub,
		log:    log.With("service", "PollBallotEngine"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CastBallot records the actor's single ballot for optionID. Checks run in
// this order and the first failure wins: poll exists, actor is not the
// creator, poll has not ended, actor has not voted, option is in the poll.
// A ballot that arrives after the deadline closes an OPEN poll; the close
// is committed even though the ballot fails.
func (e *Engine) CastBallot(ctx context.Context, actor models.Actor, postID, optionID uuid.UUID) (result *BallotResult, err error) {
	const op = "polls.CastBallot"
	ctx, span := observability.StartSpan(ctx, "polls", op,
		attribute.String("post.id", postID.String()),
		attribute.String("option.id", optionID.String()),
	)
	defer func() { observability.EndSpan(span, err) }()

	var (
		post     *models.Post
		ballot   models.PollBallot
		ended    bool
		closedAt time.Time
		closed   bool
	)
	err = e.tx.InTx(ctx, func(dbc dbctx.Context) error {
		var err error
		post, err = e.aggs.LockPostOfType(dbc, postID, models.PostPoll)
		if err != nil {
			return err
		}

		if post.CreatorID == actor.ID {
			return apperr.Forbidden(op, "creator cannot vote their own poll")
		}

		now := e.now()
		if post.PollExpired(now) || post.PollStatus == models.PollClosed {
			ended = true
			if post.PollStatus == models.PollOpen {
				closed, err = e.aggs.ClosePoll(dbc, post.ID)
				if err != nil {
					return err
				}
				closedAt = now
				post.PollStatus = models.PollClosed
			}
			return nil
		}

		existing, err := e.facts.FindBallot(dbc, actor.ID, post.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperr.Conflict(op, "already voted")
		}

		if err := e.aggs.LoadPollOptions(dbc, post); err != nil {
			return err
		}
		if _, ok := post.Option(optionID); !ok {
			return apperr.NotFound(op, "poll option not found")
		}

		ballot = models.PollBallot{PostID: post.ID, PollOptionID: optionID, ActorID: actor.ID}
		if err := e.facts.InsertBallot(dbc, &ballot); err != nil {
			return err
		}
		if _, err := e.aggs.IncrementOptionVotes(dbc, post.ID, optionID); err != nil {
			return err
		}
		return e.aggs.LoadPollOptions(dbc, post)
	})
	if err != nil {
		return nil, e.fail(op, err, "post_id", postID, "option_id", optionID, "actor_id", actor.ID)
	}

	if ended {
		if closed {
			e.log.Info("Poll closed on late ballot", "post_id", post.ID, "end_at", post.PollEndAt)
			e.events.Publish(ctx, events.PostPollClosed, actor, events.PollClosedPayload{
				ID:       post.ID,
				EndAt:    post.PollEndAt,
				ClosedAt: closedAt.UTC(),
			})
		}
		return nil, apperr.Conflict(op, "poll has ended")
	}

	e.events.Publish(ctx, events.PostPollVoted, actor, events.PollVotePayload{
		ID:     post.ID,
		Poll:   events.NewPollBlock(post),
		Ballot: events.NewBallotBlock(&ballot),
	})
	return &BallotResult{ID: post.ID, Poll: post, Ballot: &ballot}, nil
}

// Voters pages through the ballots cast for one option of a poll.
func (e *Engine) Voters(ctx context.Context, postID, optionID uuid.UUID, page store.Page) (*VotersPage, error) {
	const op = "polls.Voters"
	dbc := dbctx.Context{Ctx: ctx}

	post, err := e.aggs.GetPost(dbc, postID)
	if err != nil {
		return nil, e.fail(op, err, "post_id", postID)
	}
	if post.Type != models.PostPoll {
		return nil, apperr.NotFound(op, "POLL post not found")
	}
	if _, ok := post.Option(optionID); !ok {
		return nil, apperr.NotFound(op, "poll option not found")
	}

	ballots, total, err := e.facts.ListBallots(dbc, postID, optionID, page)
	if err != nil {
		return nil, e.fail(op, err, "post_id", postID, "option_id", optionID)
	}
	if ballots == nil {
		ballots = []models.PollBallot{}
	}
	return &VotersPage{Ballots: ballots, Total: total, Page: page.Number, Limit: page.Size}, nil
}

func (e *Engine) fail(op string, err error, keysAndValues ...interface{}) error {
	err = apperr.MapError(op, err)
	kv := append([]interface{}{"op", op, "error", err}, keysAndValues...)
	if apperr.IsKind(err, apperr.KindInternal) {
		e.log.Error("Poll operation failed", kv...)
	} else {
		e.log.Debug("Poll operation rejected", kv...)
	}
	return err
}
