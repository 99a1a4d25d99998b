package comments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/emilythestrangee/social-feed/backend/internal/apperr"
	"github.com/emilythestrangee/social-feed/backend/internal/database"
	"github.com/emilythestrangee/social-feed/backend/internal/database/testutil"
	"github.com/emilythestrangee/social-feed/backend/internal/events"
	"github.com/emilythestrangee/social-feed/backend/internal/hashtags"
	"github.com/emilythestrangee/social-feed/backend/internal/logger"
	"github.com/emilythestrangee/social-feed/backend/internal/models"
	"github.com/emilythestrangee/social-feed/backend/internal/posts"
	"github.com/emilythestrangee/social-feed/backend/internal/store"
	"github.com/emilythestrangee/social-feed/backend/internal/votes"
)

func newVoter(db *gorm.DB) *votes.Engine {
	emitter := events.NewEmitter(events.NopProducer{}, "post-service", time.Second, logger.Nop())
	return votes.NewEngine(database.NewTxRunner(db, 5*time.Second), store.NewFacts(db), store.NewAggregates(db), emitter, logger.Nop())
}

// tolerate accepts success or a target that a concurrent delete removed.
func tolerate(err error) error {
	if err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
		return err
	}
	return nil
}

func TestDeleteRacingReplyVotesPostgres(t *testing.T) {
	db := testutil.Postgres(t)
	f := newFixtureOn(t, db)
	voter := newVoter(db)
	ctx := context.Background()

	for round := 0; round < 10; round++ {
		p := f.post(t)
		author := user()
		root, err := f.engine.Create(ctx, author, p.ID, "root", nil)
		require.NoError(t, err)

		ids := []uuid.UUID{root.ID}
		for i := 0; i < 4; i++ {
			reply, err := f.engine.Create(ctx, user(), p.ID, "reply", &root.ID)
			require.NoError(t, err)
			ids = append(ids, reply.ID)
		}

		var g errgroup.Group
		for _, id := range ids[1:] {
			for i := 0; i < 3; i++ {
				target := id
				g.Go(func() error {
					_, err := voter.Toggle(ctx, user(), target, models.TargetComment)
					return tolerate(err)
				})
			}
		}
		g.Go(func() error {
			return f.engine.Delete(ctx, author, root.ID)
		})
		require.NoError(t, g.Wait())

		var orphans, left int64
		require.NoError(t, db.Model(&models.Vote{}).Where("target_id IN ?", ids).Count(&orphans).Error)
		require.NoError(t, db.Model(&models.Comment{}).Where("id IN ?", ids).Count(&left).Error)
		require.Zero(t, orphans, "round %d", round)
		require.Zero(t, left, "round %d", round)
		require.Zero(t, f.commentCount(t, p.ID))
	}
}

func TestPostDeleteRacingCommentWritesPostgres(t *testing.T) {
	db := testutil.Postgres(t)
	f := newFixtureOn(t, db)
	voter := newVoter(db)
	tx := database.NewTxRunner(db, 5*time.Second)
	aggs := store.NewAggregates(db)
	emitter := events.NewEmitter(events.NopProducer{}, "post-service", time.Second, logger.Nop())
	postEngine := posts.NewEngine(tx, store.NewFacts(db), aggs, hashtags.NewReconciler(tx, aggs, logger.Nop()), emitter, logger.Nop())
	ctx := context.Background()

	for round := 0; round < 10; round++ {
		creator := user()
		p, err := postEngine.Create(ctx, creator, posts.CreateInput{Content: "doomed"})
		require.NoError(t, err)

		commenter := user()
		var ids []uuid.UUID
		for i := 0; i < 3; i++ {
			c, err := f.engine.Create(ctx, commenter, p.ID, "c", nil)
			require.NoError(t, err)
			ids = append(ids, c.ID)
		}

		var g errgroup.Group
		for _, id := range ids {
			target := id
			g.Go(func() error {
				_, err := voter.Toggle(ctx, user(), target, models.TargetComment)
				return tolerate(err)
			})
		}
		g.Go(func() error {
			return tolerate(f.engine.Delete(ctx, commenter, ids[0]))
		})
		g.Go(func() error {
			return postEngine.Delete(ctx, creator, p.ID)
		})
		require.NoError(t, g.Wait(), "round %d", round)

		var orphans, left int64
		require.NoError(t, db.Model(&models.Vote{}).Where("target_id IN ?", ids).Count(&orphans).Error)
		require.NoError(t, db.Model(&models.Comment{}).Where("post_id = ?", p.ID).Count(&left).Error)
		require.Zero(t, orphans, "round %d", round)
		require.Zero(t, left, "round %d", round)
	}
}
