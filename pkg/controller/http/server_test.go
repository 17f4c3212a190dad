package http_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	httpctrl "github.com/secmon-lab/crmsync/pkg/controller/http"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
	"github.com/secmon-lab/crmsync/pkg/repository/memory"
	"github.com/secmon-lab/crmsync/pkg/service/crm"
	"github.com/secmon-lab/crmsync/pkg/usecase"
)

// stubCRM serves a fixed remote user list and accepts every write
type stubCRM struct {
	users   []*crm.RemoteUser
	listErr error
}

func (s *stubCRM) ListUsers(ctx context.Context, token string, locationID types.LocationID) ([]*crm.RemoteUser, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.users, nil
}

func (s *stubCRM) GetUser(ctx context.Context, token string, userID types.UserID) (*crm.RemoteUser, error) {
	return nil, crm.ErrRemoteUnavailable
}

func (s *stubCRM) GetLocation(ctx context.Context, token string, locationID types.LocationID) (*crm.Location, error) {
	return &crm.Location{ID: string(locationID), Name: "Shop"}, nil
}

func (s *stubCRM) SearchContactByEmail(ctx context.Context, token string, locationID types.LocationID, email string) (*crm.Contact, error) {
	return nil, nil
}

func (s *stubCRM) CreateContact(ctx context.Context, token string, input *crm.ContactInput) (*crm.Contact, error) {
	return &crm.Contact{ID: "c1"}, nil
}

func (s *stubCRM) UpdateContact(ctx context.Context, token string, contactID types.ContactID, input *crm.ContactInput) (*crm.Contact, error) {
	return &crm.Contact{ID: contactID}, nil
}

func (s *stubCRM) AddTags(ctx context.Context, token string, contactID types.ContactID, tags []string) error {
	return nil
}

type testServer struct {
	repo    *memory.Memory
	crm     *stubCRM
	handler http.Handler
}

func newTestServer(t *testing.T, opts ...httpctrl.Options) *testServer {
	t.Helper()
	repo := memory.New()
	stub := &stubCRM{
		users: []*crm.RemoteUser{
			{ID: "u1", Name: "Ada", Email: "ada@example.com"},
			{ID: "u2", Name: "Grace", Email: "grace@example.com"},
		},
	}
	uc := usecase.New(repo, usecase.WithCRM(stub))
	return &testServer{repo: repo, crm: stub, handler: httpctrl.New(uc, opts...)}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *testServer) connect(t *testing.T, locationID types.LocationID) {
	t.Helper()
	gt.NoError(t, s.repo.Credentials().Save(context.Background(), &model.Credentials{
		LocationID:  locationID,
		AccessToken: "token",
	})).Required()
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var v map[string]any
	gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &v)).Required()
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/health", "")
	gt.Value(t, w.Code).Equal(http.StatusOK)
}

func TestWebhookEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.connect(t, "loc1")

	body := `{"type":"UserCreate","locationId":"loc1","user":{"id":"u1","email":"a@b.com"}}`
	w := s.do(t, http.MethodPost, "/hooks/crm", body)
	gt.Value(t, w.Code).Equal(http.StatusOK)
	gt.Value(t, decode(t, w)["message"]).Equal("Webhook received")

	user, err := s.repo.User().Get(context.Background(), "u1")
	gt.NoError(t, err).Required()
	gt.Value(t, user.LocationID).Equal(types.LocationID("loc1"))

	t.Run("repeated delete is ok", func(t *testing.T) {
		del := `{"type":"UserDeleted","id":"u1","locationId":"loc1"}`
		gt.Value(t, s.do(t, http.MethodPost, "/hooks/crm", del).Code).Equal(http.StatusOK)
		gt.Value(t, s.do(t, http.MethodPost, "/hooks/crm", del).Code).Equal(http.StatusOK)
	})

	t.Run("malformed body is still acknowledged", func(t *testing.T) {
		gt.Value(t, s.do(t, http.MethodPost, "/hooks/crm", "{{{").Code).Equal(http.StatusOK)
	})
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookSignature(t *testing.T) {
	s := newTestServer(t, httpctrl.WithWebhookSecret("s3cret"))
	body := `{"type":"ContactCreate"}`

	req := httptest.NewRequest(http.MethodPost, "/hooks/crm", strings.NewReader(body))
	req.Header.Set(httpctrl.SignatureHeader, sign("s3cret", body))
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	gt.Value(t, w.Code).Equal(http.StatusOK)

	req = httptest.NewRequest(http.MethodPost, "/hooks/crm", strings.NewReader(body))
	req.Header.Set(httpctrl.SignatureHeader, sign("wrong", body))
	w = httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	gt.Value(t, w.Code).Equal(http.StatusUnauthorized)

	gt.NoError(t, httpctrl.VerifyWebhookSignature("k", sign("k", "x"), []byte("x")))
	gt.Error(t, httpctrl.VerifyWebhookSignature("k", "", []byte("x")))
}

func TestRefreshUsers(t *testing.T) {
	s := newTestServer(t)
	s.connect(t, "loc1")

	w := s.do(t, http.MethodPost, "/api/users/refresh", `{"location_id":"loc1"}`)
	gt.Value(t, w.Code).Equal(http.StatusOK)
	resp := decode(t, w)
	gt.Value(t, resp["users_synced"]).Equal(float64(2))
	gt.Value(t, resp["location_id"]).Equal("loc1")

	gt.Value(t, s.do(t, http.MethodPost, "/api/users/refresh", `{}`).Code).Equal(http.StatusBadRequest)
	gt.Value(t, s.do(t, http.MethodPost, "/api/users/refresh", `{"location_id":"nope"}`).Code).Equal(http.StatusNotFound)

	w = s.do(t, http.MethodGet, "/api/users?location_id=loc1", "")
	gt.Value(t, w.Code).Equal(http.StatusOK)
	gt.Array(t, decode(t, w)["users"].([]any)).Length(2)

	gt.Value(t, s.do(t, http.MethodGet, "/api/users/u1", "").Code).Equal(http.StatusOK)
	gt.Value(t, s.do(t, http.MethodGet, "/api/users/zz", "").Code).Equal(http.StatusNotFound)
	gt.Value(t, s.do(t, http.MethodDelete, "/api/users/u2", "").Code).Equal(http.StatusOK)
	gt.Value(t, s.do(t, http.MethodDelete, "/api/users/u2", "").Code).Equal(http.StatusNotFound)
}

func TestRefreshUsers_RemoteFailure(t *testing.T) {
	s := newTestServer(t)
	s.connect(t, "loc1")
	s.crm.listErr = crm.ErrRemoteUnavailable

	w := s.do(t, http.MethodPost, "/api/users/refresh", `{"location_id":"loc1"}`)
	gt.Value(t, w.Code).Equal(http.StatusOK)
	resp := decode(t, w)
	gt.Value(t, resp["users_synced"]).Equal(float64(0))
	gt.Value(t, resp["location_id"]).Equal("loc1")
	gt.Bool(t, strings.Contains(resp["error"].(string), "unavailable")).True()

	users, err := s.repo.User().ListByLocation(context.Background(), "loc1")
	gt.NoError(t, err).Required()
	gt.Array(t, users).Length(0)
}

func TestUserCategories(t *testing.T) {
	s := newTestServer(t)
	s.connect(t, "loc1")
	gt.Value(t, s.do(t, http.MethodPost, "/api/users/refresh", `{"location_id":"loc1"}`).Code).Equal(http.StatusOK)

	gt.Value(t, s.do(t, http.MethodPost, "/api/categories", `{"id":"a","name":"A"}`).Code).Equal(http.StatusCreated)
	gt.Value(t, s.do(t, http.MethodPost, "/api/categories", `{"id":"b","name":"B"}`).Code).Equal(http.StatusCreated)

	w := s.do(t, http.MethodPost, "/api/users/u1/categories", `{"category_ids":["a","b","a"]}`)
	gt.Value(t, w.Code).Equal(http.StatusOK)
	gt.Array(t, decode(t, w)["category_ids"].([]any)).Length(2)

	// unknown category is rejected without touching the current set
	w = s.do(t, http.MethodPost, "/api/users/u1/categories", `{"category_ids":["a","ghost"]}`)
	gt.Value(t, w.Code).Equal(http.StatusBadRequest)

	w = s.do(t, http.MethodGet, "/api/users/u1/categories", "")
	gt.Value(t, w.Code).Equal(http.StatusOK)
	gt.Array(t, decode(t, w)["categories"].([]any)).Length(2)

	w = s.do(t, http.MethodPost, "/api/users/nobody/categories", `{"category_ids":["a"]}`)
	gt.Value(t, w.Code).Equal(http.StatusNotFound)

	w = s.do(t, http.MethodPost, "/api/locations/loc1/assign-all", "")
	gt.Value(t, w.Code).Equal(http.StatusOK)
	gt.Value(t, decode(t, w)["created"]).Equal(float64(2))
}

func TestCategoryCRUD(t *testing.T) {
	s := newTestServer(t)
	s.connect(t, "loc1")
	gt.Value(t, s.do(t, http.MethodPost, "/api/users/refresh", `{"location_id":"loc1"}`).Code).Equal(http.StatusOK)

	w := s.do(t, http.MethodPost, "/api/categories", `{"id":"onboarding","name":"Onboarding"}`)
	gt.Value(t, w.Code).Equal(http.StatusCreated)
	gt.Value(t, decode(t, w)["assigned"]).Equal(float64(0))

	w = s.do(t, http.MethodPut, "/api/categories/onboarding", `{"name":"Onboarding","default":true}`)
	gt.Value(t, w.Code).Equal(http.StatusOK)
	gt.Value(t, decode(t, w)["assigned"]).Equal(float64(2))

	gt.Value(t, s.do(t, http.MethodGet, "/api/categories/onboarding", "").Code).Equal(http.StatusOK)
	gt.Value(t, s.do(t, http.MethodGet, "/api/categories", "").Code).Equal(http.StatusOK)
	gt.Value(t, s.do(t, http.MethodPost, "/api/categories", `{"name":""}`).Code).Equal(http.StatusBadRequest)
	gt.Value(t, s.do(t, http.MethodPut, "/api/categories/missing", `{"name":"x"}`).Code).Equal(http.StatusNotFound)

	gt.Value(t, s.do(t, http.MethodDelete, "/api/categories/onboarding", "").Code).Equal(http.StatusOK)
	gt.Value(t, s.do(t, http.MethodGet, "/api/categories/onboarding", "").Code).Equal(http.StatusNotFound)

	byCategory, err := s.repo.Assignment().ListByCategory(context.Background(), "onboarding")
	gt.NoError(t, err).Required()
	gt.Array(t, byCategory).Length(0)
}

func TestAuthWithoutOAuth(t *testing.T) {
	s := newTestServer(t)
	gt.Value(t, s.do(t, http.MethodGet, "/api/auth/connect", "").Code).Equal(http.StatusServiceUnavailable)
	gt.Value(t, s.do(t, http.MethodGet, "/api/auth/callback?error=access_denied", "").Code).Equal(http.StatusBadRequest)
}
