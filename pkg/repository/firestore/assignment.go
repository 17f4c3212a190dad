package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type assignmentDocument struct {
	UserID     string    `firestore:"user_id"`
	CategoryID string    `firestore:"category_id"`
	AssignedAt time.Time `firestore:"assigned_at"`
}

type assignmentRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newAssignmentRepository(client *firestore.Client) *assignmentRepository {
	return &assignmentRepository{client: client}
}

func (r *assignmentRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, CollectionAssignments))
}

// docRef keys documents by the (user, category) pair so a second create of
// the same pair collides instead of duplicating.
func (r *assignmentRepository) docRef(userID types.UserID, categoryID types.CategoryID) *firestore.DocumentRef {
	return r.collection().Doc(model.AssignmentKey(userID, categoryID))
}

func assignmentToDocument(a *model.Assignment) *assignmentDocument {
	assignedAt := a.AssignedAt
	if assignedAt.IsZero() {
		assignedAt = time.Now().UTC()
	}
	return &assignmentDocument{
		UserID:     string(a.UserID),
		CategoryID: string(a.CategoryID),
		AssignedAt: assignedAt,
	}
}

func assignmentToModel(d *assignmentDocument) *model.Assignment {
	return &model.Assignment{
		UserID:     types.UserID(d.UserID),
		CategoryID: types.CategoryID(d.CategoryID),
		AssignedAt: d.AssignedAt,
	}
}

func (r *assignmentRepository) CreateIfAbsent(ctx context.Context, assignment *model.Assignment) (bool, error) {
	ref := r.docRef(assignment.UserID, assignment.CategoryID)
	if _, err := ref.Create(ctx, assignmentToDocument(assignment)); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return false, nil
		}
		return false, goerr.Wrap(err, "failed to create assignment",
			goerr.V("user_id", assignment.UserID), goerr.V("category_id", assignment.CategoryID))
	}
	return true, nil
}

func (r *assignmentRepository) ReplaceForUser(ctx context.Context, userID types.UserID, categoryIDs []types.CategoryID, at time.Time) ([]*model.Assignment, error) {
	var result []*model.Assignment

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		result = nil

		iter := tx.Documents(r.collection().Where("user_id", "==", string(userID)))
		existing, err := iter.GetAll()
		if err != nil {
			return goerr.Wrap(err, "failed to read current assignments")
		}
		for _, snap := range existing {
			if err := tx.Delete(snap.Ref); err != nil {
				return err
			}
		}

		seen := make(map[types.CategoryID]struct{}, len(categoryIDs))
		for _, categoryID := range categoryIDs {
			if _, ok := seen[categoryID]; ok {
				continue
			}
			seen[categoryID] = struct{}{}

			a := &model.Assignment{UserID: userID, CategoryID: categoryID, AssignedAt: at}
			doc := assignmentToDocument(a)
			if err := tx.Set(r.docRef(userID, categoryID), doc); err != nil {
				return err
			}
			result = append(result, assignmentToModel(doc))
		}
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to replace assignments", goerr.V("user_id", userID))
	}
	return result, nil
}

func (r *assignmentRepository) AssignAll(ctx context.Context, assignments []*model.Assignment) ([]*model.Assignment, error) {
	var created []*model.Assignment
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		created = nil

		refs := make([]*firestore.DocumentRef, 0, len(assignments))
		for _, a := range assignments {
			refs = append(refs, r.docRef(a.UserID, a.CategoryID))
		}
		snaps, err := tx.GetAll(refs)
		if err != nil {
			return goerr.Wrap(err, "failed to read assignments")
		}

		pending := make(map[string]struct{}, len(assignments))
		for i, a := range assignments {
			if snaps[i].Exists() {
				continue
			}
			if _, ok := pending[a.Key()]; ok {
				continue
			}
			pending[a.Key()] = struct{}{}

			doc := assignmentToDocument(a)
			if err := tx.Create(refs[i], doc); err != nil {
				return err
			}
			created = append(created, assignmentToModel(doc))
		}
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to assign all", goerr.V("count", len(assignments)))
	}
	return created, nil
}

func (r *assignmentRepository) listWhere(ctx context.Context, field, value string) ([]*model.Assignment, error) {
	iter := r.collection().Where(field, "==", value).Documents(ctx)
	defer iter.Stop()

	var result []*model.Assignment
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate assignments", goerr.V(field, value))
		}

		var doc assignmentDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal assignment")
		}
		result = append(result, assignmentToModel(&doc))
	}
	return result, nil
}

func (r *assignmentRepository) ListByUser(ctx context.Context, userID types.UserID) ([]*model.Assignment, error) {
	return r.listWhere(ctx, "user_id", string(userID))
}

func (r *assignmentRepository) ListByCategory(ctx context.Context, categoryID types.CategoryID) ([]*model.Assignment, error) {
	return r.listWhere(ctx, "category_id", string(categoryID))
}

// deleteWhere removes the matching documents through a BulkWriter and
// counts only the deletes the server confirmed.
func (r *assignmentRepository) deleteWhere(ctx context.Context, field, value string) (int, error) {
	iter := r.collection().Where(field, "==", value).Documents(ctx)
	defer iter.Stop()

	bulkWriter := r.client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			bulkWriter.End()
			return 0, goerr.Wrap(err, "failed to iterate assignments for deletion", goerr.V(field, value))
		}

		job, err := bulkWriter.Delete(snap.Ref)
		if err != nil {
			bulkWriter.End()
			return 0, goerr.Wrap(err, "failed to delete assignment", goerr.V(field, value))
		}
		jobs = append(jobs, job)
	}
	bulkWriter.End()

	count := 0
	var failed error
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			if failed == nil {
				failed = err
			}
			continue
		}
		count++
	}
	if failed != nil {
		return count, goerr.Wrap(failed, "failed to delete assignments",
			goerr.V(field, value), goerr.V("deleted", count), goerr.V("failed", len(jobs)-count))
	}
	return count, nil
}

func (r *assignmentRepository) DeleteByUser(ctx context.Context, userID types.UserID) (int, error) {
	return r.deleteWhere(ctx, "user_id", string(userID))
}

func (r *assignmentRepository) DeleteByCategory(ctx context.Context, categoryID types.CategoryID) (int, error) {
	return r.deleteWhere(ctx, "category_id", string(categoryID))
}
