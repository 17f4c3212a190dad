package postgres

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type assignmentRepository struct {
	db *gorm.DB
}

// insertIfAbsent relies on the (user_id, category_id) primary key
func insertIfAbsent(tx *gorm.DB, rec *assignmentRecord) (bool, error) {
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *assignmentRepository) CreateIfAbsent(ctx context.Context, assignment *model.Assignment) (bool, error) {
	created, err := insertIfAbsent(r.db.WithContext(ctx), assignmentToRecord(assignment))
	if err != nil {
		return false, goerr.Wrap(err, "failed to create assignment",
			goerr.V("user_id", assignment.UserID), goerr.V("category_id", assignment.CategoryID))
	}
	return created, nil
}

func (r *assignmentRepository) ReplaceForUser(ctx context.Context, userID types.UserID, categoryIDs []types.CategoryID, at time.Time) ([]*model.Assignment, error) {
	var result []*model.Assignment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result = nil
		if err := tx.Where("user_id = ?", string(userID)).Delete(&assignmentRecord{}).Error; err != nil {
			return err
		}

		for _, categoryID := range categoryIDs {
			rec := assignmentToRecord(&model.Assignment{UserID: userID, CategoryID: categoryID, AssignedAt: at})
			created, err := insertIfAbsent(tx, rec)
			if err != nil {
				return err
			}
			if created {
				result = append(result, rec.toModel())
			}
		}
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to replace assignments", goerr.V("user_id", userID))
	}
	return result, nil
}

func (r *assignmentRepository) AssignAll(ctx context.Context, assignments []*model.Assignment) ([]*model.Assignment, error) {
	var created []*model.Assignment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created = nil
		for _, a := range assignments {
			rec := assignmentToRecord(a)
			ok, err := insertIfAbsent(tx, rec)
			if err != nil {
				return err
			}
			if ok {
				created = append(created, rec.toModel())
			}
		}
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to assign all", goerr.V("count", len(assignments)))
	}
	return created, nil
}

func (r *assignmentRepository) find(ctx context.Context, query string, arg string) ([]*model.Assignment, error) {
	var recs []assignmentRecord
	if err := r.db.WithContext(ctx).Where(query, arg).Order("user_id, category_id").Find(&recs).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to list assignments", goerr.V("query", query), goerr.V("arg", arg))
	}

	result := make([]*model.Assignment, 0, len(recs))
	for i := range recs {
		result = append(result, recs[i].toModel())
	}
	return result, nil
}

func (r *assignmentRepository) ListByUser(ctx context.Context, userID types.UserID) ([]*model.Assignment, error) {
	return r.find(ctx, "user_id = ?", string(userID))
}

func (r *assignmentRepository) ListByCategory(ctx context.Context, categoryID types.CategoryID) ([]*model.Assignment, error) {
	return r.find(ctx, "category_id = ?", string(categoryID))
}

func (r *assignmentRepository) DeleteByUser(ctx context.Context, userID types.UserID) (int, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", string(userID)).Delete(&assignmentRecord{})
	if res.Error != nil {
		return 0, goerr.Wrap(res.Error, "failed to delete assignments", goerr.V("user_id", userID))
	}
	return int(res.RowsAffected), nil
}

func (r *assignmentRepository) DeleteByCategory(ctx context.Context, categoryID types.CategoryID) (int, error) {
	res := r.db.WithContext(ctx).Where("category_id = ?", string(categoryID)).Delete(&assignmentRecord{})
	if res.Error != nil {
		return 0, goerr.Wrap(res.Error, "failed to delete assignments", goerr.V("category_id", categoryID))
	}
	return int(res.RowsAffected), nil
}
