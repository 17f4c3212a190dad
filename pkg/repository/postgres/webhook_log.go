package postgres

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"gorm.io/gorm"
)

type webhookLogRepository struct {
	db *gorm.DB
}

func (r *webhookLogRepository) Put(ctx context.Context, log *model.WebhookLog) error {
	if log.ID == "" {
		return goerr.New("webhook log ID is required")
	}

	rec := &webhookLogRecord{
		ID:         string(log.ID),
		ReceivedAt: log.ReceivedAt,
		Type:       log.Type,
		Payload:    log.Payload,
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return goerr.Wrap(err, "failed to put webhook log", goerr.V("id", log.ID))
	}
	return nil
}

func (r *webhookLogRepository) List(ctx context.Context, limit int) ([]*model.WebhookLog, error) {
	db := r.db.WithContext(ctx).Order("received_at desc")
	if limit > 0 {
		db = db.Limit(limit)
	}

	var recs []webhookLogRecord
	if err := db.Find(&recs).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to list webhook logs")
	}

	logs := make([]*model.WebhookLog, 0, len(recs))
	for _, rec := range recs {
		logs = append(logs, &model.WebhookLog{
			ID:         model.WebhookLogID(rec.ID),
			ReceivedAt: rec.ReceivedAt,
			Type:       rec.Type,
			Payload:    rec.Payload,
		})
	}
	return logs, nil
}
