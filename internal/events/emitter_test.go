package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/social-feed/backend/internal/logger"
	"github.com/emilythestrangee/social-feed/backend/internal/models"
)

func newTestEmitter(p Producer) *Emitter {
	e := NewEmitter(p, "post-service", time.Second, logger.Nop())
	e.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestPublishWrapsPayloadInEnvelope(t *testing.T) {
	producer := NewMemoryProducer()
	emitter := newTestEmitter(producer)
	actor := models.Actor{ID: uuid.New(), Fullname: "Ada", Avatar: "a.png"}
	target := uuid.New()

	emitter.Publish(context.Background(), LikeVoted, actor, VotePayload{
		ID: uuid.New(), TargetID: target, TargetType: models.TargetPost, ActorID: actor.ID, LikeCount: 3,
	})

	msgs := producer.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, string(TopicLike), msgs[0].Topic)
	require.Equal(t, target.String(), msgs[0].Key)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(msgs[0].Value, &fields))
	for _, name := range []string{"eventId", "data", "userInfo", "eventType", "topicType", "timestamp", "source"} {
		require.Contains(t, fields, name)
	}

	env, err := msgs[0].Envelope()
	require.NoError(t, err)
	require.Equal(t, LikeVoted, env.EventType)
	require.Equal(t, TopicLike, env.TopicType)
	require.Equal(t, "post-service", env.Source)
	require.Equal(t, "2026-03-01T12:00:00.000Z", env.Timestamp)
	require.Equal(t, actor, env.UserInfo)
	_, err = uuid.Parse(env.EventID)
	require.NoError(t, err)
}

func TestPublishUsesFreshEventIDs(t *testing.T) {
	producer := NewMemoryProducer()
	emitter := newTestEmitter(producer)
	payload := DeletedPayload{ID: uuid.New()}

	emitter.Publish(context.Background(), PostDeleted, models.Actor{}, payload)
	emitter.Publish(context.Background(), PostDeleted, models.Actor{}, payload)

	envs, err := producer.Envelopes()
	require.NoError(t, err)
	require.Len(t, envs, 2)
	require.NotEqual(t, envs[0].EventID, envs[1].EventID)
}

func TestPublishSwallowsProducerFailure(t *testing.T) {
	producer := NewMemoryProducer()
	producer.Fail(errors.New("broker unreachable"))
	emitter := newTestEmitter(producer)

	require.NotPanics(t, func() {
		emitter.Publish(context.Background(), PostCreated, models.Actor{}, PostPayload{ID: uuid.New()})
	})
	require.Empty(t, producer.Messages())
}

func TestPublishSurvivesCancelledRequest(t *testing.T) {
	producer := NewMemoryProducer()
	emitter := newTestEmitter(producer)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	emitter.Publish(ctx, CommentCreated, models.Actor{}, CommentPayload{ID: uuid.New()})
	require.Len(t, producer.Messages(), 1)
	require.Equal(t, string(TopicComment), producer.Messages()[0].Topic)
}

func TestNilEmitterIsSafe(t *testing.T) {
	var e *Emitter
	require.NotPanics(t, func() {
		e.Publish(context.Background(), PostCreated, models.Actor{}, PostPayload{})
	})
	require.NoError(t, e.Close())
}

func TestTopicFor(t *testing.T) {
	require.Equal(t, TopicLike, TopicFor(LikeUnvoted))
	require.Equal(t, TopicComment, TopicFor(CommentDeleted))
	require.Equal(t, TopicPost, TopicFor(PostPollVoted))
	require.Equal(t, TopicPost, TopicFor(PostPollClosed))
}

func TestPostPayloadVariants(t *testing.T) {
	end := time.Now().Add(time.Hour)
	quoted := uuid.New()

	normal := NewPostPayload(&models.Post{ID: uuid.New(), Type: models.PostNormal}, nil)
	require.Nil(t, normal.Poll)
	require.Nil(t, normal.QuotedPostID)
	require.NotNil(t, normal.Hashtags)
	require.NotNil(t, normal.Media)

	poll := NewPostPayload(&models.Post{
		ID: uuid.New(), Type: models.PostPoll, PollEndAt: &end, PollStatus: models.PollOpen,
		PollOptions: []models.PollOption{{ID: uuid.New(), Content: "yes", VoteCount: 2}},
		QuotedPostID: &quoted,
	}, nil)
	require.NotNil(t, poll.Poll)
	require.Len(t, poll.Poll.Options, 1)
	require.EqualValues(t, 2, poll.Poll.Options[0].VoteCount)
	require.Nil(t, poll.QuotedPostID)

	quote := NewPostPayload(&models.Post{ID: uuid.New(), Type: models.PostQuote, QuotedPostID: &quoted, PollEndAt: &end}, nil)
	require.Nil(t, quote.Poll)
	require.Equal(t, quoted, *quote.QuotedPostID)
}

func TestMemoryProducerRejectsAfterClose(t *testing.T) {
	producer := NewMemoryProducer()
	require.NoError(t, producer.Close())
	require.ErrorIs(t, producer.Send(context.Background(), "t", "k", nil), ErrProducerClosed)
}

func TestBoundedMemoryProducerKeepsNewest(t *testing.T) {
	producer := NewBoundedMemoryProducer(3)
	for i := 0; i < 10; i++ {
		require.NoError(t, producer.Send(context.Background(), "t", fmt.Sprint(i), nil))
	}

	msgs := producer.Messages()
	require.Len(t, msgs, 3)
	require.Equal(t, []string{"7", "8", "9"}, []string{msgs[0].Key, msgs[1].Key, msgs[2].Key})
}
