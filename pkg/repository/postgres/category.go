package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type categoryRepository struct {
	db *gorm.DB
}

func (r *categoryRepository) Save(ctx context.Context, category *model.Category) (*model.Category, error) {
	if category.ID == "" {
		return nil, goerr.New("category ID is required")
	}

	var previous *model.Category
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		rec := categoryToRecord(category)
		rec.CreatedAt = now
		rec.UpdatedAt = now
		previous = nil

		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			return nil
		}

		var existing categoryRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", rec.ID).First(&existing).Error; err != nil {
			return err
		}
		rec.CreatedAt = existing.CreatedAt
		if err := tx.Save(rec).Error; err != nil {
			return err
		}
		previous = existing.toModel()
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to save category", goerr.V("id", category.ID))
	}
	return previous, nil
}

func (r *categoryRepository) Get(ctx context.Context, id types.CategoryID) (*model.Category, error) {
	var rec categoryRecord
	if err := r.db.WithContext(ctx).Where("id = ?", string(id)).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, goerr.Wrap(ErrNotFound, "category not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get category", goerr.V("id", id))
	}
	return rec.toModel(), nil
}

func (r *categoryRepository) find(ctx context.Context, defaultOnly bool) ([]*model.Category, error) {
	db := r.db.WithContext(ctx)
	if defaultOnly {
		db = db.Where("is_default = ?", true)
	}

	var recs []categoryRecord
	if err := db.Order("name").Find(&recs).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to list categories")
	}

	categories := make([]*model.Category, 0, len(recs))
	for i := range recs {
		categories = append(categories, recs[i].toModel())
	}
	return categories, nil
}

func (r *categoryRepository) List(ctx context.Context) ([]*model.Category, error) {
	return r.find(ctx, false)
}

func (r *categoryRepository) ListDefault(ctx context.Context) ([]*model.Category, error) {
	return r.find(ctx, true)
}

func (r *categoryRepository) Delete(ctx context.Context, id types.CategoryID) error {
	res := r.db.WithContext(ctx).Where("id = ?", string(id)).Delete(&categoryRecord{})
	if res.Error != nil {
		return goerr.Wrap(res.Error, "failed to delete category", goerr.V("id", id))
	}
	if res.RowsAffected == 0 {
		return goerr.Wrap(ErrNotFound, "category not found", goerr.V("id", id))
	}
	return nil
}
