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

type credentialsRepository struct {
	db *gorm.DB
}

func (r *credentialsRepository) Save(ctx context.Context, cred *model.Credentials) error {
	if cred.LocationID == "" {
		return goerr.New("location ID is required")
	}

	now := time.Now().UTC()
	rec := credentialsToRecord(cred)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "location_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"access_token", "refresh_token", "expires_in", "expires_at", "scope",
			"user_type", "company_id", "remote_user_id", "location_name", "timezone",
			"updated_at",
		}),
	}).Create(rec).Error
	if err != nil {
		return goerr.Wrap(err, "failed to save credentials", goerr.V("location_id", cred.LocationID))
	}
	return nil
}

func (r *credentialsRepository) Get(ctx context.Context, locationID types.LocationID) (*model.Credentials, error) {
	var rec credentialsRecord
	if err := r.db.WithContext(ctx).Where("location_id = ?", string(locationID)).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, goerr.Wrap(ErrNotFound, "credentials not found", goerr.V("location_id", locationID))
		}
		return nil, goerr.Wrap(err, "failed to get credentials", goerr.V("location_id", locationID))
	}
	return rec.toModel(), nil
}

func (r *credentialsRepository) List(ctx context.Context) ([]*model.Credentials, error) {
	var recs []credentialsRecord
	if err := r.db.WithContext(ctx).Order("location_id").Find(&recs).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to list credentials")
	}

	creds := make([]*model.Credentials, 0, len(recs))
	for i := range recs {
		creds = append(creds, recs[i].toModel())
	}
	return creds, nil
}
