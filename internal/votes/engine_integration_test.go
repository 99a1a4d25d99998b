package votes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/emilythestrangee/social-feed/backend/internal/database/testutil"
	"github.com/emilythestrangee/social-feed/backend/internal/models"
)

func TestConcurrentTogglesPostgres(t *testing.T) {
	f := newFixture(t, testutil.Postgres(t))
	ctx := context.Background()

	t.Run("distinct actors never lose an increment", func(t *testing.T) {
		p := f.post(t)
		const voters = 25

		var g errgroup.Group
		for i := 0; i < voters; i++ {
			u := actor()
			g.Go(func() error {
				_, err := f.engine.Toggle(ctx, u, p.ID, models.TargetPost)
				return err
			})
		}
		require.NoError(t, g.Wait())

		require.EqualValues(t, voters, f.likeCount(t, &models.Post{}, p.ID))
		require.EqualValues(t, voters, f.voteRows(t, p.ID, models.TargetPost))
	})

	t.Run("same actor toggles linearize", func(t *testing.T) {
		p := f.post(t)
		u := actor()
		const toggles = 20

		var g errgroup.Group
		for i := 0; i < toggles; i++ {
			g.Go(func() error {
				_, err := f.engine.Toggle(ctx, u, p.ID, models.TargetPost)
				return err
			})
		}
		require.NoError(t, g.Wait())

		// An even number of toggles returns to the starting state.
		require.Zero(t, f.likeCount(t, &models.Post{}, p.ID))
		require.Zero(t, f.voteRows(t, p.ID, models.TargetPost))
	})
}
