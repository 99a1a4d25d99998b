package votes

import (
	"context"

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

type State string

const (
	Voted   State = "VOTED"
	Unvoted State = "UNVOTED"
)

type Result struct {
	State      State             `json:"vote_state"`
	TargetID   uuid.UUID         `json:"target_id"`
	TargetType models.TargetType `json:"target_type"`
	LikeCount  int64             `json:"updated_count"`
}

// Engine toggles likes. Each toggle inserts or deletes exactly one vote
// record and moves the target's like_count by one in the same transaction.
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
		log:    log.With("service", "VoteToggleEngine"),
	}
}

// Toggle flips the actor's vote on the target. The target row is locked
// before the existence check, so toggles on one target are linearized.
func (e *Engine) Toggle(ctx context.Context, actor models.Actor, targetID uuid.UUID, targetType models.TargetType) (result *Result, err error) {
	const op = "votes.Toggle"
	ctx, span := observability.StartSpan(ctx, "votes", op,
		attribute.String("target.id", targetID.String()),
		attribute.String("target.type", string(targetType)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if !targetType.Valid() {
		return nil, apperr.NotFound(op, "unknown target type")
	}

	var vote models.Vote
	res := Result{TargetID: targetID, TargetType: targetType}
	err = e.tx.InTx(ctx, func(dbc dbctx.Context) error {
		if err := e.lockTarget(dbc, targetID, targetType); err != nil {
			return err
		}

		existing, err := e.facts.FindVote(dbc, actor.ID, targetID, targetType)
		if err != nil {
			return err
		}

		delta := int64(1)
		if existing == nil {
			vote = models.Vote{TargetID: targetID, TargetType: targetType, ActorID: actor.ID}
			if err := e.facts.InsertVote(dbc, &vote); err != nil {
				return err
			}
			res.State = Voted
		} else {
			if err := e.facts.DeleteVote(dbc, existing.ID); err != nil {
				return err
			}
			vote = *existing
			delta = -1
			res.State = Unvoted
		}

		count, err := e.aggs.AdjustLikeCount(dbc, targetType, targetID, delta)
		if err != nil {
			return err
		}
		res.LikeCount = count
		return nil
	})
	if err != nil {
		return nil, e.fail(op, err, "target_id", targetID, "target_type", targetType, "actor_id", actor.ID)
	}

	eventType := events.LikeVoted
	if res.State == Unvoted {
		eventType = events.LikeUnvoted
	}
	e.events.Publish(ctx, eventType, actor, events.VotePayload{
		ID:         vote.ID,
		TargetID:   targetID,
		TargetType: targetType,
		ActorID:    actor.ID,
		LikeCount:  res.LikeCount,
		CreatedAt:  vote.CreatedAt,
	})
	span.SetAttributes(attribute.String("vote.state", string(res.State)))
	return &res, nil
}

func (e *Engine) lockTarget(dbc dbctx.Context, targetID uuid.UUID, targetType models.TargetType) error {
	var err error
	switch targetType {
	case models.TargetPost:
		_, err = e.aggs.LockPost(dbc, targetID)
	case models.TargetComment:
		_, err = e.aggs.LockComment(dbc, targetID)
	}
	return err
}

func (e *Engine) fail(op string, err error, keysAndValues ...interface{}) error {
	err = apperr.MapError(op, err)
	kv := append([]interface{}{"op", op, "error", err}, keysAndValues...)
	if apperr.IsKind(err, apperr.KindInternal) {
		e.log.Error("Vote toggle failed", kv...)
	} else {
		e.log.Debug("Vote toggle rejected", kv...)
	}
	return err
}
