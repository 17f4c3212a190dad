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

type categoryDocument struct {
	ID          string    `firestore:"id"`
	Name        string    `firestore:"name"`
	Description string    `firestore:"description"`
	Default     bool      `firestore:"default"`
	CreatedAt   time.Time `firestore:"created_at"`
	UpdatedAt   time.Time `firestore:"updated_at"`
}

type categoryRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newCategoryRepository(client *firestore.Client) *categoryRepository {
	return &categoryRepository{client: client}
}

func (r *categoryRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, CollectionCategories))
}

func categoryToDocument(c *model.Category) *categoryDocument {
	return &categoryDocument{
		ID:          string(c.ID),
		Name:        c.Name,
		Description: c.Description,
		Default:     c.Default,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func categoryToModel(d *categoryDocument) *model.Category {
	return &model.Category{
		ID:          types.CategoryID(d.ID),
		Name:        d.Name,
		Description: d.Description,
		Default:     d.Default,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func (r *categoryRepository) Save(ctx context.Context, category *model.Category) (*model.Category, error) {
	if category.ID == "" {
		return nil, goerr.New("category ID is required")
	}

	docRef := r.collection().Doc(string(category.ID))
	var previous *model.Category

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		now := time.Now().UTC()
		doc := categoryToDocument(category)
		doc.UpdatedAt = now
		previous = nil

		snap, err := tx.Get(docRef)
		switch {
		case err == nil:
			var existing categoryDocument
			if err := snap.DataTo(&existing); err != nil {
				return goerr.Wrap(err, "failed to unmarshal category")
			}
			doc.CreatedAt = existing.CreatedAt
			previous = categoryToModel(&existing)
		case status.Code(err) == codes.NotFound:
			doc.CreatedAt = now
		default:
			return err
		}

		return tx.Set(docRef, doc)
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to save category", goerr.V("id", category.ID))
	}

	return previous, nil
}

func (r *categoryRepository) Get(ctx context.Context, id types.CategoryID) (*model.Category, error) {
	snap, err := r.collection().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "category not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get category", goerr.V("id", id))
	}

	var doc categoryDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal category", goerr.V("id", id))
	}
	return categoryToModel(&doc), nil
}

func collectCategories(iter *firestore.DocumentIterator) ([]*model.Category, error) {
	defer iter.Stop()

	var categories []*model.Category
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate categories")
		}

		var doc categoryDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal category")
		}
		categories = append(categories, categoryToModel(&doc))
	}
	return categories, nil
}

func (r *categoryRepository) List(ctx context.Context) ([]*model.Category, error) {
	return collectCategories(r.collection().OrderBy("name", firestore.Asc).Documents(ctx))
}

func (r *categoryRepository) ListDefault(ctx context.Context) ([]*model.Category, error) {
	return collectCategories(r.collection().
		Where("default", "==", true).
		OrderBy("name", firestore.Asc).
		Documents(ctx))
}

func (r *categoryRepository) Delete(ctx context.Context, id types.CategoryID) error {
	docRef := r.collection().Doc(string(id))

	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "category not found", goerr.V("id", id))
		}
		return goerr.Wrap(err, "failed to get category", goerr.V("id", id))
	}

	if _, err := docRef.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete category", goerr.V("id", id))
	}
	return nil
}
