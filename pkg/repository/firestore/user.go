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

type userDocument struct {
	ID          string    `firestore:"id"`
	LocationRef string    `firestore:"location_ref"`
	LocationID  string    `firestore:"location_id"`
	Name        string    `firestore:"name"`
	FirstName   string    `firestore:"first_name"`
	LastName    string    `firestore:"last_name"`
	Email       string    `firestore:"email"`
	Phone       string    `firestore:"phone"`
	Role        string    `firestore:"role"`
	Status      string    `firestore:"status"`
	CreatedAt   time.Time `firestore:"created_at"`
	UpdatedAt   time.Time `firestore:"updated_at"`
}

type userRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newUserRepository(client *firestore.Client) *userRepository {
	return &userRepository{client: client}
}

func (r *userRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, CollectionUsers))
}

func userToDocument(u *model.User) *userDocument {
	return &userDocument{
		ID:          string(u.ID),
		LocationRef: string(u.LocationRef),
		LocationID:  string(u.LocationID),
		Name:        u.Name,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
		Phone:       u.Phone,
		Role:        u.Role,
		// Stored normalized so the active filter can be an equality query
		Status:    string(u.Status.Normalize()),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func userToModel(d *userDocument) *model.User {
	return &model.User{
		ID:          types.UserID(d.ID),
		LocationRef: types.LocationID(d.LocationRef),
		LocationID:  types.LocationID(d.LocationID),
		Name:        d.Name,
		FirstName:   d.FirstName,
		LastName:    d.LastName,
		Email:       d.Email,
		Phone:       d.Phone,
		Role:        d.Role,
		Status:      types.UserStatus(d.Status),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func (r *userRepository) Upsert(ctx context.Context, user *model.User) (*model.UpsertResult, error) {
	if user.ID == "" {
		return nil, goerr.New("user ID is required")
	}

	docRef := r.collection().Doc(string(user.ID))
	var result *model.UpsertResult

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		now := time.Now().UTC()
		doc := userToDocument(user)
		doc.UpdatedAt = now
		result = &model.UpsertResult{}

		snap, err := tx.Get(docRef)
		switch {
		case err == nil:
			var existing userDocument
			if err := snap.DataTo(&existing); err != nil {
				return goerr.Wrap(err, "failed to unmarshal user")
			}
			doc.CreatedAt = existing.CreatedAt
			result.Previous = userToModel(&existing)
		case status.Code(err) == codes.NotFound:
			doc.CreatedAt = now
			result.Created = true
		default:
			return err
		}

		result.User = userToModel(doc)
		return tx.Set(docRef, doc)
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to upsert user", goerr.V("id", user.ID))
	}

	return result, nil
}

func (r *userRepository) Get(ctx context.Context, id types.UserID) (*model.User, error) {
	snap, err := r.collection().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "user not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get user", goerr.V("id", id))
	}

	var doc userDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal user", goerr.V("id", id))
	}
	return userToModel(&doc), nil
}

func (r *userRepository) GetInLocation(ctx context.Context, id types.UserID, locationID types.LocationID) (*model.User, error) {
	iter := r.collection().
		Where("id", "==", string(id)).
		Where("location_id", "==", string(locationID)).
		Limit(1).
		Documents(ctx)
	users, err := collectUsers(iter)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get user in location", goerr.V("id", id), goerr.V("location_id", locationID))
	}
	if len(users) == 0 {
		return nil, goerr.Wrap(ErrNotFound, "user not found in location", goerr.V("id", id), goerr.V("location_id", locationID))
	}
	return users[0], nil
}

func collectUsers(iter *firestore.DocumentIterator) ([]*model.User, error) {
	defer iter.Stop()

	var users []*model.User
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate users")
		}

		var doc userDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal user")
		}
		users = append(users, userToModel(&doc))
	}
	return users, nil
}

func (r *userRepository) List(ctx context.Context) ([]*model.User, error) {
	return collectUsers(r.collection().OrderBy("id", firestore.Asc).Documents(ctx))
}

func (r *userRepository) ListByLocation(ctx context.Context, locationID types.LocationID) ([]*model.User, error) {
	return collectUsers(r.collection().
		Where("location_id", "==", string(locationID)).
		OrderBy("id", firestore.Asc).
		Documents(ctx))
}

func (r *userRepository) ListActive(ctx context.Context) ([]*model.User, error) {
	return collectUsers(r.collection().
		Where("status", "==", string(types.UserStatusActive)).
		OrderBy("id", firestore.Asc).
		Documents(ctx))
}

func (r *userRepository) Delete(ctx context.Context, id types.UserID) error {
	docRef := r.collection().Doc(string(id))

	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "user not found", goerr.V("id", id))
		}
		return goerr.Wrap(err, "failed to get user", goerr.V("id", id))
	}

	if _, err := docRef.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete user", goerr.V("id", id))
	}
	return nil
}
