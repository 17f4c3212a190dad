package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/interfaces"
)

// ErrNotFound is the sentinel wrapped by every firestore repository lookup miss
var ErrNotFound = interfaces.ErrNotFound

type Firestore struct {
	client      *firestore.Client
	credentials *credentialsRepository
	user        *userRepository
	category    *categoryRepository
	assignment  *assignmentRepository
	webhookLog  *webhookLogRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.credentials.collectionPrefix = prefix
		f.user.collectionPrefix = prefix
		f.category.collectionPrefix = prefix
		f.assignment.collectionPrefix = prefix
		f.webhookLog.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID), goerr.V("databaseID", databaseID))
	}

	f := &Firestore{
		client:      client,
		credentials: newCredentialsRepository(client),
		user:        newUserRepository(client),
		category:    newCategoryRepository(client),
		assignment:  newAssignmentRepository(client),
		webhookLog:  newWebhookLogRepository(client),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Credentials() interfaces.CredentialsRepository {
	return f.credentials
}

func (f *Firestore) User() interfaces.UserRepository {
	return f.user
}

func (f *Firestore) Category() interfaces.CategoryRepository {
	return f.category
}

func (f *Firestore) Assignment() interfaces.AssignmentRepository {
	return f.assignment
}

func (f *Firestore) WebhookLog() interfaces.WebhookLogRepository {
	return f.webhookLog
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// collectionName applies the optional test prefix to a base collection name
func collectionName(prefix, base string) string {
	if prefix != "" {
		return prefix + "_" + base
	}
	return base
}

// Collection names, exported for index migration
const (
	CollectionCredentials = "credentials"
	CollectionUsers       = "users"
	CollectionCategories  = "categories"
	CollectionAssignments = "assignments"
	CollectionWebhookLogs = "webhook_logs"
)
