package usecase

import (
	"time"

	"github.com/secmon-lab/crmsync/pkg/domain/interfaces"
	"github.com/secmon-lab/crmsync/pkg/service/crm"
	"github.com/secmon-lab/crmsync/pkg/service/queue"
)

// DefaultMarkerTag is attached to a remote contact once an assignment has
// been projected onto it
const DefaultMarkerTag = "roleplay-assigned"

type UseCases struct {
	repo      interfaces.Repository
	crm       crm.Service
	oauth     crm.OAuth
	queue     interfaces.TaskQueue
	markerTag string
	now       func() time.Time

	Sync       *SyncUseCase
	Webhook    *WebhookUseCase
	Reactor    *ReactorUseCase
	Propagator *PropagatorUseCase
	Assignment *AssignmentUseCase
	Category   *CategoryUseCase
	User       *UserUseCase
	Auth       *AuthUseCase
}

type Option func(*UseCases)

func WithCRM(svc crm.Service) Option {
	return func(uc *UseCases) {
		uc.crm = svc
	}
}

func WithOAuth(oauth crm.OAuth) Option {
	return func(uc *UseCases) {
		uc.oauth = oauth
	}
}

func WithTaskQueue(q interfaces.TaskQueue) Option {
	return func(uc *UseCases) {
		uc.queue = q
	}
}

func WithMarkerTag(tag string) Option {
	return func(uc *UseCases) {
		if tag != "" {
			uc.markerTag = tag
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(uc *UseCases) {
		uc.now = now
	}
}

func New(repo interfaces.Repository, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:      repo,
		markerTag: DefaultMarkerTag,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	if uc.queue == nil {
		uc.queue = queue.NewMemory()
	}

	assigner := newAssigner(repo, uc.queue, uc.now)
	uc.Propagator = NewPropagatorUseCase(repo, assigner)
	uc.Sync = NewSyncUseCase(repo, uc.crm, assigner, uc.Propagator)
	uc.User = NewUserUseCase(repo)
	uc.Webhook = NewWebhookUseCase(repo, assigner, uc.Propagator, uc.User, uc.now)
	uc.Reactor = NewReactorUseCase(repo, uc.crm, uc.markerTag)
	uc.Assignment = NewAssignmentUseCase(repo, assigner, uc.now)
	uc.Category = NewCategoryUseCase(repo, uc.Propagator)
	uc.Auth = NewAuthUseCase(repo, uc.crm, uc.oauth, uc.Sync, uc.now)

	return uc
}

// TaskQueue returns the queue the use cases publish background work to
func (uc *UseCases) TaskQueue() interfaces.TaskQueue {
	return uc.queue
}
