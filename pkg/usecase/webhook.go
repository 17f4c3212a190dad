package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/interfaces"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
	"github.com/secmon-lab/crmsync/pkg/utils/errutil"
	"github.com/secmon-lab/crmsync/pkg/utils/logging"
)

// WebhookUseCase records inbound provider events and applies user
// lifecycle changes to storage.
type WebhookUseCase struct {
	repo       interfaces.Repository
	assigner   *assigner
	propagator *PropagatorUseCase
	users      *UserUseCase
	now        func() time.Time
}

func NewWebhookUseCase(repo interfaces.Repository, assigner *assigner, propagator *PropagatorUseCase, users *UserUseCase, now func() time.Time) *WebhookUseCase {
	return &WebhookUseCase{
		repo:       repo,
		assigner:   assigner,
		propagator: propagator,
		users:      users,
		now:        now,
	}
}

// Receive persists the raw body and then dispatches the parsed event. Only
// storage failures are returned so that the provider redelivers.
func (uc *WebhookUseCase) Receive(ctx context.Context, raw []byte) error {
	entry := &model.WebhookLog{
		ID:         model.NewWebhookLogID(),
		ReceivedAt: uc.now(),
		Type:       model.PeekWebhookType(raw),
		Payload:    raw,
	}
	if err := uc.repo.WebhookLog().Put(ctx, entry); err != nil {
		return goerr.Wrap(err, "failed to store webhook log", goerr.V("webhook_type", entry.Type))
	}

	ev, err := model.ParseWebhookEvent(raw)
	if err != nil {
		_ = errutil.Handle(ctx, err, "malformed webhook body ignored")
		return nil
	}

	return uc.HandleEvent(ctx, ev)
}

// HandleEvent applies one normalized event
func (uc *WebhookUseCase) HandleEvent(ctx context.Context, ev *model.WebhookEvent) error {
	logger := logging.From(ctx).With("event", ev.Kind, "userID", ev.UserID, "locationID", ev.LocationID)

	switch ev.Kind {
	case types.EventUserCreated, types.EventUserUpdated:
		return uc.handleUserUpsert(ctx, ev)

	case types.EventUserDeleted:
		return uc.handleUserDeleted(ctx, ev)

	case types.EventUnknown:
		logger.Debug("unhandled webhook event", "label", ev.Label)
		return nil

	default:
		logger.Warn("unexpected event kind", "label", ev.Label)
		return nil
	}
}

func (uc *WebhookUseCase) handleUserUpsert(ctx context.Context, ev *model.WebhookEvent) error {
	logger := logging.From(ctx).With("event", ev.Kind, "userID", ev.UserID, "locationID", ev.LocationID)

	if ev.UserID == "" {
		logger.Warn("webhook user event without user id")
		return nil
	}
	if ev.LocationID == "" {
		logger.Warn("webhook user event without location id")
		return nil
	}

	if _, err := uc.repo.Credentials().Get(ctx, ev.LocationID); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			logger.Warn("webhook for unknown location dropped")
			return nil
		}
		return goerr.Wrap(err, "failed to get credentials", goerr.V(LocationIDKey, ev.LocationID))
	}

	result, err := upsertUser(ctx, uc.repo, ev.ToUser())
	if err != nil {
		return err
	}

	if (result.Created && result.User.IsActive()) || result.Activated() {
		if _, err := uc.propagator.OnUserActivated(ctx, result.User); err != nil {
			return goerr.Wrap(err, "failed to assign default categories", goerr.V(UserIDKey, ev.UserID))
		}
	}

	if ev.Kind == types.EventUserUpdated {
		uc.assigner.publishRefresh(ctx, result.User)
	}

	logger.Info("user stored from webhook", "created", result.Created)
	return nil
}

func (uc *WebhookUseCase) handleUserDeleted(ctx context.Context, ev *model.WebhookEvent) error {
	logger := logging.From(ctx).With("event", ev.Kind, "userID", ev.UserID)

	if ev.UserID == "" {
		logger.Warn("webhook delete event without user id")
		return nil
	}

	if err := uc.users.Delete(ctx, ev.UserID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			logger.Info("user to delete not found")
			return nil
		}
		return err
	}
	return nil
}
