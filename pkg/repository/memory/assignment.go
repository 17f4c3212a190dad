package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
)

type assignmentRepository struct {
	mu          sync.RWMutex
	assignments map[string]*model.Assignment
}

func newAssignmentRepository() *assignmentRepository {
	return &assignmentRepository{
		assignments: make(map[string]*model.Assignment),
	}
}

func copyAssignment(a *model.Assignment) *model.Assignment {
	copied := *a
	return &copied
}

// createLocked must be called with mu held
func (r *assignmentRepository) createLocked(a *model.Assignment) bool {
	key := a.Key()
	if _, ok := r.assignments[key]; ok {
		return false
	}
	saved := copyAssignment(a)
	if saved.AssignedAt.IsZero() {
		saved.AssignedAt = time.Now().UTC()
	}
	r.assignments[key] = saved
	return true
}

func (r *assignmentRepository) CreateIfAbsent(ctx context.Context, assignment *model.Assignment) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.createLocked(assignment), nil
}

func (r *assignmentRepository) ReplaceForUser(ctx context.Context, userID types.UserID, categoryIDs []types.CategoryID, at time.Time) ([]*model.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, a := range r.assignments {
		if a.UserID == userID {
			delete(r.assignments, key)
		}
	}

	var result []*model.Assignment
	for _, categoryID := range categoryIDs {
		a := &model.Assignment{UserID: userID, CategoryID: categoryID, AssignedAt: at}
		if r.createLocked(a) {
			result = append(result, copyAssignment(r.assignments[a.Key()]))
		}
	}
	return result, nil
}

func (r *assignmentRepository) AssignAll(ctx context.Context, assignments []*model.Assignment) ([]*model.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var created []*model.Assignment
	for _, a := range assignments {
		if r.createLocked(a) {
			created = append(created, copyAssignment(r.assignments[a.Key()]))
		}
	}
	return created, nil
}

func (r *assignmentRepository) list(filter func(*model.Assignment) bool) []*model.Assignment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.Assignment
	for _, a := range r.assignments {
		if filter(a) {
			result = append(result, copyAssignment(a))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key() < result[j].Key() })
	return result
}

func (r *assignmentRepository) ListByUser(ctx context.Context, userID types.UserID) ([]*model.Assignment, error) {
	return r.list(func(a *model.Assignment) bool { return a.UserID == userID }), nil
}

func (r *assignmentRepository) ListByCategory(ctx context.Context, categoryID types.CategoryID) ([]*model.Assignment, error) {
	return r.list(func(a *model.Assignment) bool { return a.CategoryID == categoryID }), nil
}

func (r *assignmentRepository) deleteWhere(filter func(*model.Assignment) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for key, a := range r.assignments {
		if filter(a) {
			delete(r.assignments, key)
			count++
		}
	}
	return count
}

func (r *assignmentRepository) DeleteByUser(ctx context.Context, userID types.UserID) (int, error) {
	return r.deleteWhere(func(a *model.Assignment) bool { return a.UserID == userID }), nil
}

func (r *assignmentRepository) DeleteByCategory(ctx context.Context, categoryID types.CategoryID) (int, error) {
	return r.deleteWhere(func(a *model.Assignment) bool { return a.CategoryID == categoryID }), nil
}
