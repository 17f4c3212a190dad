package usecase_test

import (
	"context"
	"strings"
	"sync"

	"github.com/secmon-lab/crmsync/pkg/domain/interfaces"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
	"github.com/secmon-lab/crmsync/pkg/service/crm"
)

// mockCRM is a hand-written crm.Service. Unset functions fall back to an
// in-memory contact book keyed by email.
type mockCRM struct {
	listUsersFn            func(ctx context.Context, token string, locationID types.LocationID) ([]*crm.RemoteUser, error)
	getLocationFn          func(ctx context.Context, token string, locationID types.LocationID) (*crm.Location, error)
	searchContactByEmailFn func(ctx context.Context, token string, locationID types.LocationID, email string) (*crm.Contact, error)
	createContactFn        func(ctx context.Context, token string, input *crm.ContactInput) (*crm.Contact, error)
	updateContactFn        func(ctx context.Context, token string, contactID types.ContactID, input *crm.ContactInput) (*crm.Contact, error)
	addTagsFn              func(ctx context.Context, token string, contactID types.ContactID, tags []string) error

	mu       sync.Mutex
	contacts map[string]*crm.Contact
	calls    []string
	tokens   []string
}

var _ crm.Service = (*mockCRM)(nil)

func newMockCRM() *mockCRM {
	return &mockCRM{contacts: make(map[string]*crm.Contact)}
}

func (m *mockCRM) record(call, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	m.tokens = append(m.tokens, token)
}

func (m *mockCRM) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockCRM) Count(call string) int {
	n := 0
	for _, c := range m.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (m *mockCRM) Contact(email string) *crm.Contact {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.contacts[strings.ToLower(email)]
}

func (m *mockCRM) ListUsers(ctx context.Context, token string, locationID types.LocationID) ([]*crm.RemoteUser, error) {
	m.record("ListUsers", token)
	if m.listUsersFn != nil {
		return m.listUsersFn(ctx, token, locationID)
	}
	return nil, nil
}

func (m *mockCRM) GetUser(ctx context.Context, token string, userID types.UserID) (*crm.RemoteUser, error) {
	m.record("GetUser", token)
	return &crm.RemoteUser{ID: string(userID)}, nil
}

func (m *mockCRM) GetLocation(ctx context.Context, token string, locationID types.LocationID) (*crm.Location, error) {
	m.record("GetLocation", token)
	if m.getLocationFn != nil {
		return m.getLocationFn(ctx, token, locationID)
	}
	return &crm.Location{ID: string(locationID), Name: "Main Office", Timezone: "Asia/Tokyo"}, nil
}

func (m *mockCRM) SearchContactByEmail(ctx context.Context, token string, locationID types.LocationID, email string) (*crm.Contact, error) {
	m.record("SearchContactByEmail", token)
	if m.searchContactByEmailFn != nil {
		return m.searchContactByEmailFn(ctx, token, locationID, email)
	}
	return m.Contact(email), nil
}

func (m *mockCRM) CreateContact(ctx context.Context, token string, input *crm.ContactInput) (*crm.Contact, error) {
	m.record("CreateContact", token)
	if m.createContactFn != nil {
		return m.createContactFn(ctx, token, input)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	contact := &crm.Contact{
		ID:         types.ContactID("c-" + input.Email),
		LocationID: input.LocationID,
		Email:      input.Email,
		FirstName:  input.FirstName,
		LastName:   input.LastName,
		Name:       input.Name,
		Phone:      input.Phone,
		Tags:       append([]string(nil), input.Tags...),
	}
	m.contacts[strings.ToLower(input.Email)] = contact
	return contact, nil
}

func (m *mockCRM) UpdateContact(ctx context.Context, token string, contactID types.ContactID, input *crm.ContactInput) (*crm.Contact, error) {
	m.record("UpdateContact", token)
	if m.updateContactFn != nil {
		return m.updateContactFn(ctx, token, contactID, input)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.contacts {
		if c.ID == contactID {
			c.FirstName, c.LastName, c.Name, c.Phone = input.FirstName, input.LastName, input.Name, input.Phone
			return c, nil
		}
	}
	return &crm.Contact{ID: contactID}, nil
}

func (m *mockCRM) AddTags(ctx context.Context, token string, contactID types.ContactID, tags []string) error {
	m.record("AddTags", token)
	if m.addTagsFn != nil {
		return m.addTagsFn(ctx, token, contactID, tags)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.contacts {
		if c.ID != contactID {
			continue
		}
		for _, tag := range tags {
			if !c.HasTag(tag) {
				c.Tags = append(c.Tags, tag)
			}
		}
	}
	return nil
}

// mockOAuth is a hand-written crm.OAuth
type mockOAuth struct {
	exchangeFn func(ctx context.Context, code string) (*crm.Grant, error)
	refreshFn  func(ctx context.Context, refreshToken string) (*crm.Grant, error)
	lastState  string
}

var _ crm.OAuth = (*mockOAuth)(nil)

func (m *mockOAuth) AuthCodeURL(state string) string {
	m.lastState = state
	return "https://auth.example.com/authorize?state=" + state
}

func (m *mockOAuth) Exchange(ctx context.Context, code string) (*crm.Grant, error) {
	return m.exchangeFn(ctx, code)
}

func (m *mockOAuth) Refresh(ctx context.Context, refreshToken string) (*crm.Grant, error) {
	return m.refreshFn(ctx, refreshToken)
}

// recordingRepo wraps a repository and records the order of destructive
// calls made through it
type recordingRepo struct {
	interfaces.Repository
	mu  sync.Mutex
	ops []string
}

func newRecordingRepo(repo interfaces.Repository) *recordingRepo {
	return &recordingRepo{Repository: repo}
}

func (r *recordingRepo) record(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func (r *recordingRepo) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

func (r *recordingRepo) User() interfaces.UserRepository {
	return &recordingUserRepo{UserRepository: r.Repository.User(), parent: r}
}

func (r *recordingRepo) Assignment() interfaces.AssignmentRepository {
	return &recordingAssignmentRepo{AssignmentRepository: r.Repository.Assignment(), parent: r}
}

type recordingUserRepo struct {
	interfaces.UserRepository
	parent *recordingRepo
}

func (r *recordingUserRepo) Delete(ctx context.Context, id types.UserID) error {
	r.parent.record("User.Delete")
	return r.UserRepository.Delete(ctx, id)
}

type recordingAssignmentRepo struct {
	interfaces.AssignmentRepository
	parent *recordingRepo
}

func (r *recordingAssignmentRepo) DeleteByUser(ctx context.Context, userID types.UserID) (int, error) {
	r.parent.record("Assignment.DeleteByUser")
	return r.AssignmentRepository.DeleteByUser(ctx, userID)
}
