package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
)

func TestParseWebhookEvent_NestedLegacyLabel(t *testing.T) {
	raw := []byte(`{
		"type": "UserCreate",
		"locationId": "loc1",
		"user": {"id": "u1", "email": "a@b.com", "firstName": "Ada", "lastName": "Lovelace", "locationId": "other"}
	}`)

	ev, err := model.ParseWebhookEvent(raw)
	gt.NoError(t, err).Required()
	gt.Value(t, ev.Label).Equal("UserCreate")
	gt.Value(t, ev.Type).Equal("UserCreated")
	gt.Value(t, ev.Kind).Equal(types.EventUserCreated)
	gt.Value(t, ev.LocationID).Equal(types.LocationID("loc1"))
	gt.Value(t, ev.UserID).Equal(types.UserID("u1"))
	gt.Value(t, ev.Email).Equal("a@b.com")

	u := ev.ToUser()
	gt.Value(t, u.Name).Equal("Ada Lovelace")
	gt.Value(t, u.Status).Equal(types.UserStatusActive)
}

func TestParseWebhookEvent_Flat(t *testing.T) {
	raw := []byte(`{
		"type": "UserUpdated",
		"id": "u2",
		"firstName": "Grace",
		"lastName": "Hopper",
		"email": "g@h.com",
		"phone": "+100",
		"role": "user",
		"status": "inactive",
		"locationId": "loc2"
	}`)

	ev, err := model.ParseWebhookEvent(raw)
	gt.NoError(t, err).Required()
	gt.Value(t, ev.Kind).Equal(types.EventUserUpdated)
	gt.Value(t, ev.UserID).Equal(types.UserID("u2"))
	gt.Value(t, ev.LocationID).Equal(types.LocationID("loc2"))
	gt.Value(t, ev.Phone).Equal("+100")
	gt.Value(t, ev.Role).Equal("user")
	gt.Bool(t, ev.ToUser().IsActive()).False()
}

func TestParseWebhookEvent_LocationFallback(t *testing.T) {
	t.Run("nested user locationId", func(t *testing.T) {
		ev, err := model.ParseWebhookEvent([]byte(`{"type":"UserCreated","user":{"userId":"u3","locationId":"loc3"}}`))
		gt.NoError(t, err).Required()
		gt.Value(t, ev.UserID).Equal(types.UserID("u3"))
		gt.Value(t, ev.LocationID).Equal(types.LocationID("loc3"))
	})

	t.Run("roles locationIds", func(t *testing.T) {
		ev, err := model.ParseWebhookEvent([]byte(`{"type":"UserCreated","user":{"id":"u4","roles":{"role":"admin","locationIds":["loc4","loc5"]}}}`))
		gt.NoError(t, err).Required()
		gt.Value(t, ev.LocationID).Equal(types.LocationID("loc4"))
		gt.Value(t, ev.Role).Equal("admin")
	})
}

func TestParseWebhookEvent_Unknown(t *testing.T) {
	ev, err := model.ParseWebhookEvent([]byte(`{"type":"ContactCreate","id":"c1"}`))
	gt.NoError(t, err).Required()
	gt.Value(t, ev.Kind).Equal(types.EventUnknown)
	gt.Value(t, ev.Type).Equal("ContactCreate")
}

func TestParseWebhookEvent_Invalid(t *testing.T) {
	_, err := model.ParseWebhookEvent([]byte(`not json`))
	gt.Error(t, err)
	gt.Value(t, model.PeekWebhookType([]byte(`not json`))).Equal("")
	gt.Value(t, model.PeekWebhookType([]byte(`{"type":"UserDelete"}`))).Equal("UserDelete")
}
