package polls

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/emilythestrangee/social-feed/backend/internal/apperr"
	"github.com/emilythestrangee/social-feed/backend/internal/database/testutil"
)

func TestConcurrentBallotsPostgres(t *testing.T) {
	f := newFixture(t, testutil.Postgres(t))
	ctx := context.Background()

	t.Run("distinct voters are all counted", func(t *testing.T) {
		p := f.poll(t, f.now.Add(time.Hour), "a", "b")
		const voters = 20

		var g errgroup.Group
		for i := 0; i < voters; i++ {
			v := voter()
			option := p.PollOptions[i%2].ID
			g.Go(func() error {
				_, err := f.engine.CastBallot(ctx, v, p.ID, option)
				return err
			})
		}
		require.NoError(t, g.Wait())

		got := f.reload(t, p.ID)
		require.EqualValues(t, voters/2, got.PollOptions[0].VoteCount)
		require.EqualValues(t, voters/2, got.PollOptions[1].VoteCount)
		require.EqualValues(t, voters, f.ballots(t, p.ID))
	})

	t.Run("one voter racing gets exactly one ballot", func(t *testing.T) {
		p := f.poll(t, f.now.Add(time.Hour), "a", "b")
		v := voter()
		const attempts = 10

		errs := make([]error, attempts)
		var g errgroup.Group
		for i := 0; i < attempts; i++ {
			i := i
			g.Go(func() error {
				_, errs[i] = f.engine.CastBallot(ctx, v, p.ID, p.PollOptions[i%2].ID)
				return nil
			})
		}
		require.NoError(t, g.Wait())

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			require.True(t, apperr.IsKind(err, apperr.KindConflict), err.Error())
		}
		require.Equal(t, 1, succeeded)

		got := f.reload(t, p.ID)
		require.EqualValues(t, 1, got.PollOptions[0].VoteCount+got.PollOptions[1].VoteCount)
		require.EqualValues(t, 1, f.ballots(t, p.ID))
	})
}
