package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
)

type credentialsRepository struct {
	mu    sync.RWMutex
	creds map[types.LocationID]*model.Credentials
}

func newCredentialsRepository() *credentialsRepository {
	return &credentialsRepository{
		creds: make(map[types.LocationID]*model.Credentials),
	}
}

func copyCredentials(c *model.Credentials) *model.Credentials {
	copied := *c
	return &copied
}

func (r *credentialsRepository) Save(ctx context.Context, cred *model.Credentials) error {
	if cred.LocationID == "" {
		return goerr.New("location ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	saved := copyCredentials(cred)
	if existing, ok := r.creds[cred.LocationID]; ok {
		saved.CreatedAt = existing.CreatedAt
	} else if saved.CreatedAt.IsZero() {
		saved.CreatedAt = now
	}
	saved.UpdatedAt = now

	r.creds[saved.LocationID] = saved
	return nil
}

func (r *credentialsRepository) Get(ctx context.Context, locationID types.LocationID) (*model.Credentials, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cred, ok := r.creds[locationID]
	if !ok {
		return nil, goerr.Wrap(ErrNotFound, "credentials not found", goerr.V("location_id", locationID))
	}
	return copyCredentials(cred), nil
}

func (r *credentialsRepository) List(ctx context.Context) ([]*model.Credentials, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	creds := make([]*model.Credentials, 0, len(r.creds))
	for _, c := range r.creds {
		creds = append(creds, copyCredentials(c))
	}
	sort.Slice(creds, func(i, j int) bool { return creds[i].LocationID < creds[j].LocationID })
	return creds, nil
}
