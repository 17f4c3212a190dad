package memory

import (
	"github.com/secmon-lab/crmsync/pkg/domain/interfaces"
)

// ErrNotFound is the sentinel wrapped by every memory repository lookup miss
var ErrNotFound = interfaces.ErrNotFound

// Repository is an alias for Memory to match the pattern
type Repository = Memory

type Memory struct {
	credentials *credentialsRepository
	user        *userRepository
	category    *categoryRepository
	assignment  *assignmentRepository
	webhookLog  *webhookLogRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		credentials: newCredentialsRepository(),
		user:        newUserRepository(),
		category:    newCategoryRepository(),
		assignment:  newAssignmentRepository(),
		webhookLog:  newWebhookLogRepository(),
	}
}

func (m *Memory) Credentials() interfaces.CredentialsRepository {
	return m.credentials
}

func (m *Memory) User() interfaces.UserRepository {
	return m.user
}

func (m *Memory) Category() interfaces.CategoryRepository {
	return m.category
}

func (m *Memory) Assignment() interfaces.AssignmentRepository {
	return m.assignment
}

func (m *Memory) WebhookLog() interfaces.WebhookLogRepository {
	return m.webhookLog
}

func (m *Memory) Close() error {
	return nil
}
