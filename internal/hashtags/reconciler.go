package hashtags

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/emilythestrangee/social-feed/backend/internal/apperr"
	"github.com/emilythestrangee/social-feed/backend/internal/database"
	"github.com/emilythestrangee/social-feed/backend/internal/dbctx"
	"github.com/emilythestrangee/social-feed/backend/internal/events"
	"github.com/emilythestrangee/social-feed/backend/internal/logger"
	"github.com/emilythestrangee/social-feed/backend/internal/models"
	"github.com/emilythestrangee/social-feed/backend/internal/observability"
	"github.com/emilythestrangee/social-feed/backend/internal/store"
)

const (
	DefaultTrendingLimit = 5
	MaxTrendingLimit     = 50
)

// Delta is one signed change to a hashtag's post_count. HashtagID is set
// when the hashtag was created by this change.
type Delta struct {
	Name      string     `json:"name"`
	Delta     int        `json:"delta"`
	HashtagID *uuid.UUID `json:"hashtag_id,omitempty"`
}

// Normalize trims, strips a leading '#', lower-cases and de-duplicates tag
// names, keeping first-seen order and dropping empties.
func Normalize(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#")))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// Diff returns +1 for every tag in newTags but not oldTags (in newTags
// order) followed by -1 for every tag in oldTags but not newTags (in oldTags
// order). Tags in both sets produce no entry.
func Diff(newTags, oldTags []string) []Delta {
	newSet := toSet(newTags)
	oldSet := toSet(oldTags)

	var deltas []Delta
	for _, name := range newTags {
		if _, ok := oldSet[name]; !ok {
			deltas = append(deltas, Delta{Name: name, Delta: 1})
		}
	}
	for _, name := range oldTags {
		if _, ok := newSet[name]; !ok {
			deltas = append(deltas, Delta{Name: name, Delta: -1})
		}
	}
	return deltas
}

func toSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		set[tag] = struct{}{}
	}
	return set
}

// Changes converts deltas to their event form.
func Changes(deltas []Delta) []events.HashtagChange {
	if len(deltas) == 0 {
		return nil
	}
	out := make([]events.HashtagChange, 0, len(deltas))
	for _, d := range deltas {
		out = append(out, events.HashtagChange{Name: d.Name, Delta: d.Delta, ID: d.HashtagID})
	}
	return out
}

// Reconciler applies hashtag set changes as counter deltas. It runs in its
// own transaction, separate from the post write that triggered it.
type Reconciler struct {
	tx   database.TxRunner
	aggs *store.Aggregates
	log  *logger.Logger
}

func NewReconciler(tx database.TxRunner, aggs *store.Aggregates, log *logger.Logger) *Reconciler {
	return &Reconciler{tx: tx, aggs: aggs, log: log.With("service", "HashtagReconciler")}
}

// Reconcile moves the hashtag counters from oldTags to newTags and returns
// the applied deltas. Pass nil oldTags on create and nil newTags on delete.
func (r *Reconciler) Reconcile(ctx context.Context, newTags, oldTags []string) (deltas []Delta, err error) {
	const op = "hashtags.Reconcile"
	ctx, span := observability.StartSpan(ctx, "hashtags", op)
	defer func() { observability.EndSpan(span, err) }()

	deltas = Diff(Normalize(newTags), Normalize(oldTags))
	span.SetAttributes(attribute.Int("hashtags.deltas", len(deltas)))
	if len(deltas) == 0 {
		return nil, nil
	}

	var inc, dec []string
	for _, d := range deltas {
		if d.Delta > 0 {
			inc = append(inc, d.Name)
		} else {
			dec = append(dec, d.Name)
		}
	}

	var created map[string]uuid.UUID
	err = r.tx.InTx(ctx, func(dbc dbctx.Context) error {
		var applyErr error
		created, applyErr = r.aggs.ApplyHashtagDeltas(dbc, inc, dec)
		return applyErr
	})
	if err != nil {
		err = apperr.MapError(op, err)
		r.log.Error("Hashtag reconcile failed", "increments", inc, "decrements", dec, "error", err)
		return nil, err
	}

	for i := range deltas {
		if id, ok := created[deltas[i].Name]; ok && deltas[i].Delta > 0 {
			id := id
			deltas[i].HashtagID = &id
		}
	}
	return deltas, nil
}

// Trending returns the most used hashtags, optionally filtered by a
// case-insensitive substring.
func (r *Reconciler) Trending(ctx context.Context, limit int, query string) ([]models.Hashtag, error) {
	const op = "hashtags.Trending"
	if limit < 1 {
		limit = DefaultTrendingLimit
	}
	if limit > MaxTrendingLimit {
		limit = MaxTrendingLimit
	}
	tags, err := r.aggs.TrendingHashtags(dbctx.Context{Ctx: ctx}, limit, query)
	if err != nil {
		return nil, apperr.MapError(op, err)
	}
	return tags, nil
}

// Get loads one hashtag by name, normalizing it first.
func (r *Reconciler) Get(ctx context.Context, name string) (*models.Hashtag, error) {
	const op = "hashtags.Get"
	names := Normalize([]string{name})
	if len(names) == 0 {
		return nil, apperr.NotFound(op, "hashtag not found")
	}
	tag, err := r.aggs.GetHashtag(dbctx.Context{Ctx: ctx}, names[0])
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(op, "hashtag not found")
	}
	if err != nil {
		return nil, apperr.MapError(op, err)
	}
	return tag, nil
}
