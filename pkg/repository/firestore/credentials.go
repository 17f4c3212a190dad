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

type credentialsDocument struct {
	LocationID   string    `firestore:"location_id"`
	AccessToken  string    `firestore:"access_token"`
	RefreshToken string    `firestore:"refresh_token"`
	ExpiresIn    int       `firestore:"expires_in"`
	ExpiresAt    time.Time `firestore:"expires_at"`
	Scope        string    `firestore:"scope"`
	UserType     string    `firestore:"user_type"`
	CompanyID    string    `firestore:"company_id"`
	RemoteUserID string    `firestore:"remote_user_id"`
	LocationName string    `firestore:"location_name"`
	Timezone     string    `firestore:"timezone"`
	CreatedAt    time.Time `firestore:"created_at"`
	UpdatedAt    time.Time `firestore:"updated_at"`
}

type credentialsRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newCredentialsRepository(client *firestore.Client) *credentialsRepository {
	return &credentialsRepository{client: client}
}

func (r *credentialsRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, CollectionCredentials))
}

func credentialsToDocument(c *model.Credentials) *credentialsDocument {
	return &credentialsDocument{
		LocationID:   string(c.LocationID),
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		ExpiresIn:    c.ExpiresIn,
		ExpiresAt:    c.ExpiresAt,
		Scope:        c.Scope,
		UserType:     c.UserType,
		CompanyID:    c.CompanyID,
		RemoteUserID: c.RemoteUserID,
		LocationName: c.LocationName,
		Timezone:     c.Timezone,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func credentialsToModel(d *credentialsDocument) *model.Credentials {
	return &model.Credentials{
		LocationID:   types.LocationID(d.LocationID),
		AccessToken:  d.AccessToken,
		RefreshToken: d.RefreshToken,
		ExpiresIn:    d.ExpiresIn,
		ExpiresAt:    d.ExpiresAt,
		Scope:        d.Scope,
		UserType:     d.UserType,
		CompanyID:    d.CompanyID,
		RemoteUserID: d.RemoteUserID,
		LocationName: d.LocationName,
		Timezone:     d.Timezone,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func (r *credentialsRepository) Save(ctx context.Context, cred *model.Credentials) error {
	if cred.LocationID == "" {
		return goerr.New("location ID is required")
	}

	docRef := r.collection().Doc(string(cred.LocationID))
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		now := time.Now().UTC()
		doc := credentialsToDocument(cred)
		doc.UpdatedAt = now

		snap, err := tx.Get(docRef)
		switch {
		case err == nil:
			var existing credentialsDocument
			if err := snap.DataTo(&existing); err != nil {
				return goerr.Wrap(err, "failed to unmarshal credentials")
			}
			doc.CreatedAt = existing.CreatedAt
		case status.Code(err) == codes.NotFound:
			if doc.CreatedAt.IsZero() {
				doc.CreatedAt = now
			}
		default:
			return err
		}

		return tx.Set(docRef, doc)
	})
	if err != nil {
		return goerr.Wrap(err, "failed to save credentials", goerr.V("location_id", cred.LocationID))
	}
	return nil
}

func (r *credentialsRepository) Get(ctx context.Context, locationID types.LocationID) (*model.Credentials, error) {
	snap, err := r.collection().Doc(string(locationID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "credentials not found", goerr.V("location_id", locationID))
		}
		return nil, goerr.Wrap(err, "failed to get credentials", goerr.V("location_id", locationID))
	}

	var doc credentialsDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal credentials", goerr.V("location_id", locationID))
	}
	return credentialsToModel(&doc), nil
}

func (r *credentialsRepository) List(ctx context.Context) ([]*model.Credentials, error) {
	iter := r.collection().OrderBy("location_id", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var creds []*model.Credentials
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate credentials")
		}

		var doc credentialsDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal credentials")
		}
		creds = append(creds, credentialsToModel(&doc))
	}
	return creds, nil
}
