package store

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/social-feed/backend/internal/dbctx"
	"github.com/emilythestrangee/social-feed/backend/internal/models"
)

// ApplyHashtagDeltas adds one use to every name in inc, creating missing
// hashtags with post_count 1, and removes one use from every name in dec.
// Decrements never take a count below zero and never create rows.
// It returns the ids of the hashtags that inc created.
func (a *Aggregates) ApplyHashtagDeltas(dbc dbctx.Context, inc, dec []string) (map[string]uuid.UUID, error) {
	conn := dbc.Conn(a.db)
	created := make(map[string]uuid.UUID)

	if len(inc) > 0 {
		var existing []string
		if err := conn.Model(&models.Hashtag{}).Where("name IN ?", inc).Pluck("name", &existing).Error; err != nil {
			return nil, err
		}
		have := make(map[string]struct{}, len(existing))
		for _, name := range existing {
			have[name] = struct{}{}
		}

		if len(existing) > 0 {
			if err := conn.Model(&models.Hashtag{}).
				Where("name IN ?", existing).
				UpdateColumn("post_count", gorm.Expr("post_count + ?", 1)).Error; err != nil {
				return nil, err
			}
		}

		for _, name := range inc {
			if _, ok := have[name]; ok {
				continue
			}
			tag := models.Hashtag{Name: name, PostCount: 1}
			res := conn.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoNothing: true,
			}).Create(&tag)
			if res.Error != nil {
				return nil, res.Error
			}
			if res.RowsAffected == 1 {
				created[name] = tag.ID
				continue
			}
			// Inserted by a concurrent reconcile after the lookup; count the use.
			if err := conn.Model(&models.Hashtag{}).
				Where("name = ?", name).
				UpdateColumn("post_count", gorm.Expr("post_count + ?", 1)).Error; err != nil {
				return nil, err
			}
		}
	}

	if len(dec) > 0 {
		if err := conn.Model(&models.Hashtag{}).
			Where("name IN ? AND post_count > 0", dec).
			UpdateColumn("post_count", gorm.Expr("post_count - ?", 1)).Error; err != nil {
			return nil, err
		}
	}

	return created, nil
}

// TrendingHashtags returns the most used hashtags, optionally filtered by a
// case-insensitive substring of the name.
func (a *Aggregates) TrendingHashtags(dbc dbctx.Context, limit int, query string) ([]models.Hashtag, error) {
	q := dbc.Conn(a.db).Model(&models.Hashtag{})
	if query = strings.ToLower(strings.TrimSpace(query)); query != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+query+"%")
	}
	var tags []models.Hashtag
	err := q.Order("post_count DESC").Order("name ASC").Limit(limit).Find(&tags).Error
	return tags, err
}

// GetHashtag loads one hashtag by its normalized name.
func (a *Aggregates) GetHashtag(dbc dbctx.Context, name string) (*models.Hashtag, error) {
	var tag models.Hashtag
	if err := dbc.Conn(a.db).Where("name = ?", name).Take(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}
