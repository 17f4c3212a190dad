package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/crmsync/pkg/domain/interfaces"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
)

func runWebhookLogRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("Put keeps payload verbatim and List is newest first", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		base := time.Now().UTC().Truncate(time.Millisecond)

		older := &model.WebhookLog{
			ID:         model.NewWebhookLogID(),
			ReceivedAt: base,
			Type:       "UserCreate",
			Payload:    []byte(`{"type":"UserCreate",  "id":"u1"}`),
		}
		newer := &model.WebhookLog{
			ID:         model.NewWebhookLogID(),
			ReceivedAt: base.Add(time.Second),
			Type:       "UserDeleted",
			Payload:    []byte(`not even json`),
		}
		gt.NoError(t, repo.WebhookLog().Put(ctx, older)).Required()
		gt.NoError(t, repo.WebhookLog().Put(ctx, newer)).Required()

		logs, err := repo.WebhookLog().List(ctx, 2)
		gt.NoError(t, err).Required()
		gt.Array(t, logs).Length(2)
		gt.Value(t, logs[0].ID).Equal(newer.ID)
		gt.Value(t, string(logs[0].Payload)).Equal(`not even json`)
		gt.Value(t, string(logs[1].Payload)).Equal(`{"type":"UserCreate",  "id":"u1"}`)
	})
}

func TestWebhookLogRepository(t *testing.T) {
	runAllBackends(t, runWebhookLogRepositoryTest)
}
