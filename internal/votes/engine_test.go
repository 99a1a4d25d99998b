package votes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/emilythestrangee/social-feed/backend/internal/apperr"
	"github.com/emilythestrangee/social-feed/backend/internal/database"
	"github.com/emilythestrangee/social-feed/backend/internal/database/testutil"
	"github.com/emilythestrangee/social-feed/backend/internal/dbctx"
	"github.com/emilythestrangee/social-feed/backend/internal/events"
	"github.com/emilythestrangee/social-feed/backend/internal/logger"
	"github.com/emilythestrangee/social-feed/backend/internal/models"
	"github.com/emilythestrangee/social-feed/backend/internal/store"
)

type fixture struct {
	db       *gorm.DB
	engine   *Engine
	producer *events.MemoryProducer
}

func newFixture(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()
	producer := events.NewMemoryProducer()
	emitter := events.NewEmitter(producer, "post-service", time.Second, logger.Nop())
	engine := NewEngine(database.NewTxRunner(db, 5*time.Second), store.NewFacts(db), store.NewAggregates(db), emitter, logger.Nop())
	return &fixture{db: db, engine: engine, producer: producer}
}

func (f *fixture) post(t *testing.T) *models.Post {
	t.Helper()
	post := &models.Post{CreatorID: uuid.New(), Type: models.PostNormal, Content: "hello"}
	require.NoError(t, f.db.Create(post).Error)
	return post
}

func (f *fixture) likeCount(t *testing.T, model interface{}, id uuid.UUID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(model).Select("like_count").Where("id = ?", id).Row().Scan(&count))
	return count
}

func (f *fixture) voteRows(t *testing.T, targetID uuid.UUID, targetType models.TargetType) int64 {
	t.Helper()
	count, err := store.NewFacts(f.db).CountVotes(dbctx.Context{Ctx: context.Background()}, targetID, targetType)
	require.NoError(t, err)
	return count
}

func actor() models.Actor {
	return models.Actor{ID: uuid.New(), Fullname: "Test User"}
}

func TestToggleScenario(t *testing.T) {
	f := newFixture(t, testutil.SQLite(t))
	ctx := context.Background()
	p := f.post(t)
	u1, u2 := actor(), actor()

	res, err := f.engine.Toggle(ctx, u1, p.ID, models.TargetPost)
	require.NoError(t, err)
	require.Equal(t, Voted, res.State)
	require.EqualValues(t, 1, res.LikeCount)

	res, err = f.engine.Toggle(ctx, u2, p.ID, models.TargetPost)
	require.NoError(t, err)
	require.Equal(t, Voted, res.State)
	require.EqualValues(t, 2, res.LikeCount)

	res, err = f.engine.Toggle(ctx, u1, p.ID, models.TargetPost)
	require.NoError(t, err)
	require.Equal(t, Unvoted, res.State)
	require.EqualValues(t, 1, res.LikeCount)

	require.EqualValues(t, 1, f.likeCount(t, &models.Post{}, p.ID))
	require.EqualValues(t, 1, f.voteRows(t, p.ID, models.TargetPost))
}

func TestTogglePairIsIdempotent(t *testing.T) {
	f := newFixture(t, testutil.SQLite(t))
	ctx := context.Background()
	p := f.post(t)
	u := actor()

	_, err := f.engine.Toggle(ctx, u, p.ID, models.TargetPost)
	require.NoError(t, err)
	_, err = f.engine.Toggle(ctx, u, p.ID, models.TargetPost)
	require.NoError(t, err)

	require.Zero(t, f.likeCount(t, &models.Post{}, p.ID))
	require.Zero(t, f.voteRows(t, p.ID, models.TargetPost))
}

func TestToggleComment(t *testing.T) {
	f := newFixture(t, testutil.SQLite(t))
	ctx := context.Background()
	p := f.post(t)
	c := &models.Comment{PostID: p.ID, AuthorID: uuid.New(), Level: models.CommentLevelRoot, Body: "nice"}
	require.NoError(t, f.db.Create(c).Error)

	res, err := f.engine.Toggle(ctx, actor(), c.ID, models.TargetComment)
	require.NoError(t, err)
	require.Equal(t, Voted, res.State)
	require.EqualValues(t, 1, f.likeCount(t, &models.Comment{}, c.ID))
	require.Zero(t, f.likeCount(t, &models.Post{}, p.ID))
	require.Zero(t, f.voteRows(t, c.ID, models.TargetPost))
}

func TestToggleMissingTarget(t *testing.T) {
	f := newFixture(t, testutil.SQLite(t))

	_, err := f.engine.Toggle(context.Background(), actor(), uuid.New(), models.TargetPost)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))

	_, err = f.engine.Toggle(context.Background(), actor(), uuid.New(), models.TargetType("STORY"))
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
	require.Empty(t, f.producer.Messages())
}

func TestToggleTargetTypeMismatchIsNotFound(t *testing.T) {
	f := newFixture(t, testutil.SQLite(t))
	p := f.post(t)

	_, err := f.engine.Toggle(context.Background(), actor(), p.ID, models.TargetComment)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
	require.Zero(t, f.voteRows(t, p.ID, models.TargetComment))
}

func TestToggleEmitsAfterCommit(t *testing.T) {
	f := newFixture(t, testutil.SQLite(t))
	ctx := context.Background()
	p := f.post(t)
	u := actor()

	_, err := f.engine.Toggle(ctx, u, p.ID, models.TargetPost)
	require.NoError(t, err)
	_, err = f.engine.Toggle(ctx, u, p.ID, models.TargetPost)
	require.NoError(t, err)

	require.Equal(t, []events.EventType{events.LikeVoted, events.LikeUnvoted}, f.producer.EventTypes())
	for _, msg := range f.producer.Messages() {
		require.Equal(t, string(events.TopicLike), msg.Topic)
		require.Equal(t, p.ID.String(), msg.Key)
	}
}

func TestToggleSucceedsWhenBusIsDown(t *testing.T) {
	f := newFixture(t, testutil.SQLite(t))
	f.producer.Fail(errors.New("broker unreachable"))
	p := f.post(t)

	res, err := f.engine.Toggle(context.Background(), actor(), p.ID, models.TargetPost)
	require.NoError(t, err)
	require.Equal(t, Voted, res.State)
	require.EqualValues(t, 1, f.likeCount(t, &models.Post{}, p.ID))
}

func TestToggleRollsBackOnCounterDrift(t *testing.T) {
	f := newFixture(t, testutil.SQLite(t))
	ctx := context.Background()
	p := f.post(t)
	u := actor()

	_, err := f.engine.Toggle(ctx, u, p.ID, models.TargetPost)
	require.NoError(t, err)
	// Simulate a drifted counter: the vote exists but like_count is zero.
	require.NoError(t, f.db.Model(&models.Post{}).Where("id = ?", p.ID).UpdateColumn("like_count", 0).Error)

	_, err = f.engine.Toggle(ctx, u, p.ID, models.TargetPost)
	require.True(t, apperr.IsKind(err, apperr.KindInternal))
	require.EqualValues(t, 1, f.voteRows(t, p.ID, models.TargetPost), "vote delete must roll back")
	require.Len(t, f.producer.Messages(), 1)
}
