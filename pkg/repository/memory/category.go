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

type categoryRepository struct {
	mu         sync.RWMutex
	categories map[types.CategoryID]*model.Category
}

func newCategoryRepository() *categoryRepository {
	return &categoryRepository{
		categories: make(map[types.CategoryID]*model.Category),
	}
}

func copyCategory(c *model.Category) *model.Category {
	copied := *c
	return &copied
}

func (r *categoryRepository) Save(ctx context.Context, category *model.Category) (*model.Category, error) {
	if category.ID == "" {
		return nil, goerr.New("category ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	saved := copyCategory(category)
	saved.UpdatedAt = now

	var previous *model.Category
	if existing, ok := r.categories[category.ID]; ok {
		previous = copyCategory(existing)
		saved.CreatedAt = existing.CreatedAt
	} else {
		saved.CreatedAt = now
	}
	r.categories[saved.ID] = saved

	return previous, nil
}

func (r *categoryRepository) Get(ctx context.Context, id types.CategoryID) (*model.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.categories[id]
	if !ok {
		return nil, goerr.Wrap(ErrNotFound, "category not found", goerr.V("id", id))
	}
	return copyCategory(c), nil
}

func (r *categoryRepository) list(defaultOnly bool) []*model.Category {
	r.mu.RLock()
	defer r.mu.RUnlock()

	categories := make([]*model.Category, 0, len(r.categories))
	for _, c := range r.categories {
		if defaultOnly && !c.Default {
			continue
		}
		categories = append(categories, copyCategory(c))
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories
}

func (r *categoryRepository) List(ctx context.Context) ([]*model.Category, error) {
	return r.list(false), nil
}

func (r *categoryRepository) ListDefault(ctx context.Context) ([]*model.Category, error) {
	return r.list(true), nil
}

func (r *categoryRepository) Delete(ctx context.Context, id types.CategoryID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.categories[id]; !ok {
		return goerr.Wrap(ErrNotFound, "category not found", goerr.V("id", id))
	}
	delete(r.categories, id)
	return nil
}
