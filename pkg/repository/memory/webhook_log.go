package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
)

type webhookLogRepository struct {
	mu   sync.RWMutex
	logs []*model.WebhookLog
}

func newWebhookLogRepository() *webhookLogRepository {
	return &webhookLogRepository{}
}

func copyWebhookLog(l *model.WebhookLog) *model.WebhookLog {
	copied := *l
	copied.Payload = append([]byte(nil), l.Payload...)
	return &copied
}

func (r *webhookLogRepository) Put(ctx context.Context, log *model.WebhookLog) error {
	if log.ID == "" {
		return goerr.New("webhook log ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.logs = append(r.logs, copyWebhookLog(log))
	return nil
}

func (r *webhookLogRepository) List(ctx context.Context, limit int) ([]*model.WebhookLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	logs := make([]*model.WebhookLog, 0, len(r.logs))
	for _, l := range r.logs {
		logs = append(logs, copyWebhookLog(l))
	}
	sort.SliceStable(logs, func(i, j int) bool { return logs[i].ReceivedAt.After(logs[j].ReceivedAt) })
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}
