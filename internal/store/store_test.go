package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/emilythestrangee/social-feed/backend/internal/apperr"
	"github.com/emilythestrangee/social-feed/backend/internal/database/testutil"
	"github.com/emilythestrangee/social-feed/backend/internal/dbctx"
	"github.com/emilythestrangee/social-feed/backend/internal/models"
	"github.com/emilythestrangee/social-feed/backend/internal/store"
)

func setup(t *testing.T) (*gorm.DB, *store.Facts, *store.Aggregates, dbctx.Context) {
	t.Helper()
	db := testutil.SQLite(t)
	return db, store.NewFacts(db), store.NewAggregates(db), dbctx.Context{Ctx: context.Background()}
}

func createPost(t *testing.T, db *gorm.DB, post *models.Post) {
	t.Helper()
	if post.CreatorID == uuid.Nil {
		post.CreatorID = uuid.New()
	}
	if post.Type == "" {
		post.Type = models.PostNormal
	}
	require.NoError(t, db.Create(post).Error)
}

func TestAdjustLikeCountRefusesUnderflow(t *testing.T) {
	db, _, aggs, dbc := setup(t)
	post := &models.Post{}
	createPost(t, db, post)

	count, err := aggs.AdjustLikeCount(dbc, models.TargetPost, post.ID, 1)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	count, err = aggs.AdjustLikeCount(dbc, models.TargetPost, post.ID, -1)
	require.NoError(t, err)
	require.Zero(t, count)

	_, err = aggs.AdjustLikeCount(dbc, models.TargetPost, post.ID, -1)
	require.True(t, apperr.IsKind(err, apperr.KindInternal))
}

func TestLockPostMissing(t *testing.T) {
	_, _, aggs, dbc := setup(t)
	_, err := aggs.LockPost(dbc, uuid.New())
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestLockPostOfTypeFiltersOnType(t *testing.T) {
	db, _, aggs, dbc := setup(t)
	post := &models.Post{Type: models.PostNormal}
	createPost(t, db, post)

	_, err := aggs.LockPostOfType(dbc, post.ID, models.PostPoll)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))

	got, err := aggs.LockPostOfType(dbc, post.ID, models.PostNormal)
	require.NoError(t, err)
	require.Equal(t, post.ID, got.ID)
}

func TestClosePollIsCompareAndSwap(t *testing.T) {
	db, _, aggs, dbc := setup(t)
	end := time.Now().Add(-time.Minute)
	post := &models.Post{Type: models.PostPoll, PollEndAt: &end, PollStatus: models.PollOpen}
	createPost(t, db, post)

	flipped, err := aggs.ClosePoll(dbc, post.ID)
	require.NoError(t, err)
	require.True(t, flipped)

	flipped, err = aggs.ClosePoll(dbc, post.ID)
	require.NoError(t, err)
	require.False(t, flipped)
}

func TestIncrementOptionVotesChecksMembership(t *testing.T) {
	db, _, aggs, dbc := setup(t)
	end := time.Now().Add(time.Hour)
	poll := &models.Post{
		Type: models.PostPoll, PollEndAt: &end, PollStatus: models.PollOpen,
		PollOptions: []models.PollOption{{Position: 0, Content: "a"}, {Position: 1, Content: "b"}},
	}
	other := &models.Post{
		Type: models.PostPoll, PollEndAt: &end, PollStatus: models.PollOpen,
		PollOptions: []models.PollOption{{Position: 0, Content: "x"}},
	}
	createPost(t, db, poll)
	createPost(t, db, other)

	count, err := aggs.IncrementOptionVotes(dbc, poll.ID, poll.PollOptions[0].ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	_, err = aggs.IncrementOptionVotes(dbc, poll.ID, other.PollOptions[0].ID)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestAdjustQuoteCountClampsAtZero(t *testing.T) {
	db, _, aggs, dbc := setup(t)
	post := &models.Post{}
	createPost(t, db, post)

	require.NoError(t, aggs.AdjustQuoteCount(dbc, post.ID, -1))
	require.NoError(t, aggs.AdjustCommentCount(dbc, post.ID, 2))
	require.NoError(t, aggs.AdjustCommentCount(dbc, post.ID, -5))

	got, err := aggs.GetPost(dbc, post.ID)
	require.NoError(t, err)
	require.Zero(t, got.QuotePostCount)
	require.Zero(t, got.CommentCount)
}

func TestApplyHashtagDeltas(t *testing.T) {
	_, _, aggs, dbc := setup(t)

	created, err := aggs.ApplyHashtagDeltas(dbc, []string{"go", "gorm"}, nil)
	require.NoError(t, err)
	require.Len(t, created, 2)

	created, err = aggs.ApplyHashtagDeltas(dbc, []string{"go", "kafka"}, []string{"gorm", "ghost"})
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.Contains(t, created, "kafka")

	goTag, err := aggs.GetHashtag(dbc, "go")
	require.NoError(t, err)
	require.EqualValues(t, 2, goTag.PostCount)

	gormTag, err := aggs.GetHashtag(dbc, "gorm")
	require.NoError(t, err)
	require.Zero(t, gormTag.PostCount)

	_, err = aggs.GetHashtag(dbc, "ghost")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = aggs.ApplyHashtagDeltas(dbc, nil, []string{"gorm"})
	require.NoError(t, err)
	gormTag, err = aggs.GetHashtag(dbc, "gorm")
	require.NoError(t, err)
	require.Zero(t, gormTag.PostCount)
}

func TestApplyHashtagDeltasNameTakenAfterLookup(t *testing.T) {
	db, _, aggs, dbc := setup(t)

	// Another writer inserts "go" between the name lookup and the insert.
	var inserted bool
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:insert_go_first", func(tx *gorm.DB) {
		if inserted || tx.Statement.Table != "hashtags" {
			return
		}
		inserted = true
		now := time.Now()
		tx.Session(&gorm.Session{NewDB: true}).
			Exec("INSERT INTO hashtags (id, name, post_count, created_at, updated_at) VALUES (?, ?, 1, ?, ?)", uuid.New(), "go", now, now)
	}))

	created, err := aggs.ApplyHashtagDeltas(dbc, []string{"go"}, nil)
	require.NoError(t, err)
	require.True(t, inserted)
	require.Empty(t, created)

	tag, err := aggs.GetHashtag(dbc, "go")
	require.NoError(t, err)
	require.EqualValues(t, 2, tag.PostCount)
}

func TestLockCommentsAndGetComment(t *testing.T) {
	db, _, aggs, dbc := setup(t)
	post := &models.Post{Content: "p"}
	createPost(t, db, post)
	comment := &models.Comment{PostID: post.ID, AuthorID: uuid.New(), Body: "c", Level: models.CommentLevelRoot}
	require.NoError(t, db.Create(comment).Error)

	require.NoError(t, aggs.LockComments(dbc, nil))
	require.NoError(t, aggs.LockComments(dbc, []uuid.UUID{comment.ID, uuid.New()}))

	got, err := aggs.GetComment(dbc, comment.ID)
	require.NoError(t, err)
	require.Equal(t, post.ID, got.PostID)

	_, err = aggs.GetComment(dbc, uuid.New())
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestTrendingHashtags(t *testing.T) {
	_, _, aggs, dbc := setup(t)
	_, err := aggs.ApplyHashtagDeltas(dbc, []string{"golang", "rust", "go"}, nil)
	require.NoError(t, err)
	_, err = aggs.ApplyHashtagDeltas(dbc, []string{"golang"}, nil)
	require.NoError(t, err)

	tags, err := aggs.TrendingHashtags(dbc, 5, "GO")
	require.NoError(t, err)
	require.Len(t, tags, 2)
	require.Equal(t, "golang", tags[0].Name)
	require.Equal(t, "go", tags[1].Name)
}

func TestListBallotsPages(t *testing.T) {
	db, facts, _, dbc := setup(t)
	end := time.Now().Add(time.Hour)
	poll := &models.Post{
		Type: models.PostPoll, PollEndAt: &end, PollStatus: models.PollOpen,
		PollOptions: []models.PollOption{{Position: 0, Content: "a"}},
	}
	createPost(t, db, poll)
	for i := 0; i < 3; i++ {
		require.NoError(t, facts.InsertBallot(dbc, &models.PollBallot{
			PostID: poll.ID, PollOptionID: poll.PollOptions[0].ID, ActorID: uuid.New(),
		}))
	}

	ballots, total, err := facts.ListBallots(dbc, poll.ID, poll.PollOptions[0].ID, store.NewPage(1, 2))
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, ballots, 2)

	ballots, _, err = facts.ListBallots(dbc, poll.ID, poll.PollOptions[0].ID, store.NewPage(2, 2))
	require.NoError(t, err)
	require.Len(t, ballots, 1)
}

func TestNewPageClamps(t *testing.T) {
	p := store.NewPage(0, 1000)
	require.Equal(t, 1, p.Number)
	require.Equal(t, store.MaxPageSize, p.Size)
	require.Zero(t, p.Offset())
	require.Equal(t, 20, store.NewPage(3, 10).Offset())
}
