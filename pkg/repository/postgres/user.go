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

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) Upsert(ctx context.Context, user *model.User) (*model.UpsertResult, error) {
	if user.ID == "" {
		return nil, goerr.New("user ID is required")
	}

	var result *model.UpsertResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		rec := userToRecord(user)
		rec.CreatedAt = now
		rec.UpdatedAt = now

		// The primary key decides between insert and update; a concurrent
		// insert of the same ID falls through to the update path.
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			result = &model.UpsertResult{User: rec.toModel(), Created: true}
			return nil
		}

		var existing userRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", rec.ID).First(&existing).Error; err != nil {
			return err
		}
		rec.CreatedAt = existing.CreatedAt
		if err := tx.Save(rec).Error; err != nil {
			return err
		}

		result = &model.UpsertResult{User: rec.toModel(), Previous: existing.toModel()}
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to upsert user", goerr.V("id", user.ID))
	}
	return result, nil
}

func (r *userRepository) Get(ctx context.Context, id types.UserID) (*model.User, error) {
	var rec userRecord
	if err := r.db.WithContext(ctx).Where("id = ?", string(id)).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, goerr.Wrap(ErrNotFound, "user not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get user", goerr.V("id", id))
	}
	return rec.toModel(), nil
}

func (r *userRepository) GetInLocation(ctx context.Context, id types.UserID, locationID types.LocationID) (*model.User, error) {
	var rec userRecord
	err := r.db.WithContext(ctx).
		Where("id = ? AND location_id = ?", string(id), string(locationID)).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, goerr.Wrap(ErrNotFound, "user not found in location",
				goerr.V("id", id), goerr.V("location_id", locationID))
		}
		return nil, goerr.Wrap(err, "failed to get user in location",
			goerr.V("id", id), goerr.V("location_id", locationID))
	}
	return rec.toModel(), nil
}

func (r *userRepository) find(ctx context.Context, query string, args ...any) ([]*model.User, error) {
	db := r.db.WithContext(ctx)
	if query != "" {
		db = db.Where(query, args...)
	}

	var recs []userRecord
	if err := db.Order("id").Find(&recs).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to list users", goerr.V("query", query))
	}

	users := make([]*model.User, 0, len(recs))
	for i := range recs {
		users = append(users, recs[i].toModel())
	}
	return users, nil
}

func (r *userRepository) List(ctx context.Context) ([]*model.User, error) {
	return r.find(ctx, "")
}

func (r *userRepository) ListByLocation(ctx context.Context, locationID types.LocationID) ([]*model.User, error) {
	return r.find(ctx, "location_id = ?", string(locationID))
}

func (r *userRepository) ListActive(ctx context.Context) ([]*model.User, error) {
	return r.find(ctx, "status = ?", string(types.UserStatusActive))
}

func (r *userRepository) Delete(ctx context.Context, id types.UserID) error {
	res := r.db.WithContext(ctx).Where("id = ?", string(id)).Delete(&userRecord{})
	if res.Error != nil {
		return goerr.Wrap(res.Error, "failed to delete user", goerr.V("id", id))
	}
	if res.RowsAffected == 0 {
		return goerr.Wrap(ErrNotFound, "user not found", goerr.V("id", id))
	}
	return nil
}
