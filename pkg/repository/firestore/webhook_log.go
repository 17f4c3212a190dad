package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"google.golang.org/api/iterator"
)

type webhookLogDocument struct {
	ID         string    `firestore:"id"`
	ReceivedAt time.Time `firestore:"received_at"`
	Type       string    `firestore:"type"`
	Payload    []byte    `firestore:"payload"`
}

type webhookLogRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newWebhookLogRepository(client *firestore.Client) *webhookLogRepository {
	return &webhookLogRepository{client: client}
}

func (r *webhookLogRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, CollectionWebhookLogs))
}

func (r *webhookLogRepository) Put(ctx context.Context, log *model.WebhookLog) error {
	if log.ID == "" {
		return goerr.New("webhook log ID is required")
	}

	doc := &webhookLogDocument{
		ID:         string(log.ID),
		ReceivedAt: log.ReceivedAt,
		Type:       log.Type,
		Payload:    log.Payload,
	}
	if _, err := r.collection().Doc(doc.ID).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to put webhook log", goerr.V("id", log.ID))
	}
	return nil
}

func (r *webhookLogRepository) List(ctx context.Context, limit int) ([]*model.WebhookLog, error) {
	query := r.collection().OrderBy("received_at", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	iter := query.Documents(ctx)
	defer iter.Stop()

	var logs []*model.WebhookLog
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate webhook logs")
		}

		var doc webhookLogDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal webhook log")
		}
		logs = append(logs, &model.WebhookLog{
			ID:         model.WebhookLogID(doc.ID),
			ReceivedAt: doc.ReceivedAt,
			Type:       doc.Type,
			Payload:    doc.Payload,
		})
	}
	return logs, nil
}
