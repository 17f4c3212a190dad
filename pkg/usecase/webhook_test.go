package usecase_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/crmsync/pkg/domain/interfaces"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
	"github.com/secmon-lab/crmsync/pkg/usecase"
	"github.com/secmon-lab/crmsync/pkg/utils/logging"
)

func TestWebhook_NestedUserCreate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.connect(t, "loc1")
	env.saveCategory(t, "onboarding", true)
	env.saveCategory(t, "closing", false)

	raw := []byte(`{"type":"UserCreate","locationId":"loc1","user":{"id":"u1","firstName":"Ada","lastName":"Lovelace","email":"ada@example.com"}}`)
	gt.NoError(t, env.uc.Webhook.Receive(ctx, raw)).Required()

	user, err := env.repo.User().Get(ctx, "u1")
	gt.NoError(t, err).Required()
	gt.Value(t, user.LocationID).Equal(types.LocationID("loc1"))
	gt.Value(t, user.Name).Equal("Ada Lovelace")

	list := env.assignments(t, "u1")
	gt.Array(t, list).Length(1)
	gt.Value(t, list[0].CategoryID).Equal(types.CategoryID("onboarding"))

	logs, err := env.repo.WebhookLog().List(ctx, 10)
	gt.NoError(t, err).Required()
	gt.Array(t, logs).Length(1)
	gt.Value(t, logs[0].Type).Equal("UserCreate")
	gt.Value(t, string(logs[0].Payload)).Equal(string(raw))

	tasks := env.drainTasks(t)
	gt.Array(t, tasks).Length(1)
	gt.Value(t, tasks[0].Kind).Equal(types.TaskProjectAssignment)
	gt.Value(t, tasks[0].Assignment.Email).Equal("ada@example.com")
}

func TestWebhook_Redelivery(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.connect(t, "loc1")
	env.saveCategory(t, "onboarding", true)

	raw := []byte(`{"type":"UserCreated","id":"u1","email":"a@example.com","locationId":"loc1"}`)
	for range 3 {
		gt.NoError(t, env.uc.Webhook.Receive(ctx, raw)).Required()
	}

	users, err := env.repo.User().List(ctx)
	gt.NoError(t, err).Required()
	gt.Array(t, users).Length(1)
	gt.Array(t, env.assignments(t, "u1")).Length(1)
	gt.Array(t, env.drainTasks(t)).Length(1)

	logs, err := env.repo.WebhookLog().List(ctx, 10)
	gt.NoError(t, err).Required()
	gt.Array(t, logs).Length(3)
}

func TestWebhook_InactiveCreateGetsNoDefaults(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.connect(t, "loc1")
	env.saveCategory(t, "onboarding", true)

	gt.NoError(t, env.uc.Webhook.Receive(ctx,
		[]byte(`{"type":"UserCreated","id":"u1","status":"inactive","locationId":"loc1"}`))).Required()
	gt.Array(t, env.assignments(t, "u1")).Length(0)

	// activation through an update assigns the defaults
	gt.NoError(t, env.uc.Webhook.Receive(ctx,
		[]byte(`{"type":"UserUpdated","id":"u1","status":"active","email":"u1@example.com","locationId":"loc1"}`))).Required()
	gt.Array(t, env.assignments(t, "u1")).Length(1)

	tasks := env.drainTasks(t)
	gt.Array(t, tasks).Length(2)
	kinds := map[types.TaskKind]int{}
	for _, task := range tasks {
		kinds[task.Kind]++
	}
	gt.Value(t, kinds[types.TaskProjectAssignment]).Equal(1)
	gt.Value(t, kinds[types.TaskRefreshContact]).Equal(1)
}

func TestWebhook_UnknownLocationDropped(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	gt.NoError(t, env.uc.Webhook.Receive(ctx,
		[]byte(`{"type":"UserCreated","id":"u1","locationId":"stranger"}`))).Required()

	_, err := env.repo.User().Get(ctx, "u1")
	gt.Error(t, err).Is(interfaces.ErrNotFound)

	logs, err := env.repo.WebhookLog().List(ctx, 10)
	gt.NoError(t, err).Required()
	gt.Array(t, logs).Length(1)
}

func TestWebhook_DeleteOrdering(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.saveUser(t, "u1", "loc1", types.UserStatusActive)
	env.saveCategory(t, "onboarding", true)
	_, err := env.repo.Assignment().CreateIfAbsent(ctx, &model.Assignment{UserID: "u1", CategoryID: "onboarding"})
	gt.NoError(t, err).Required()

	recorder := newRecordingRepo(env.repo)
	env.uc = usecase.New(recorder, usecase.WithCRM(env.crm), usecase.WithTaskQueue(env.queue))

	raw := []byte(`{"type":"UserDelete","id":"u1","locationId":"loc1"}`)
	gt.NoError(t, env.uc.Webhook.Receive(ctx, raw)).Required()

	// assignments go first so a failure in between never leaves orphans
	gt.Value(t, recorder.Ops()).Equal([]string{"Assignment.DeleteByUser", "User.Delete"})

	_, err = env.repo.User().Get(ctx, "u1")
	gt.Error(t, err).Is(interfaces.ErrNotFound)
	gt.Array(t, env.assignments(t, "u1")).Length(0)

	byCategory, err := env.repo.Assignment().ListByCategory(ctx, "onboarding")
	gt.NoError(t, err).Required()
	gt.Array(t, byCategory).Length(0)

	// a repeated delivery is harmless
	gt.NoError(t, env.uc.Webhook.Receive(ctx, raw)).Required()
	gt.NoError(t, env.uc.Webhook.Receive(ctx, raw)).Required()
}

func TestWebhook_UnknownAndMalformed(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	gt.NoError(t, env.uc.Webhook.Receive(ctx, []byte(`{"type":"ContactCreate","id":"c1"}`))).Required()
	gt.NoError(t, env.uc.Webhook.Receive(ctx, []byte(`not json`))).Required()

	users, err := env.repo.User().List(ctx)
	gt.NoError(t, err).Required()
	gt.Array(t, users).Length(0)

	logs, err := env.repo.WebhookLog().List(ctx, 10)
	gt.NoError(t, err).Required()
	gt.Array(t, logs).Length(2)
}

func TestWebhook_IdentityDivergence(t *testing.T) {
	var buf bytes.Buffer
	ctx := logging.With(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))
	env := newTestEnv(t)
	env.connect(t, "loc2")
	env.saveUser(t, "u1", "loc1", types.UserStatusActive)

	gt.NoError(t, env.uc.Webhook.Receive(ctx,
		[]byte(`{"type":"UserUpdated","id":"u1","locationId":"loc2"}`))).Required()

	user, err := env.repo.User().Get(ctx, "u1")
	gt.NoError(t, err).Required()
	gt.Value(t, user.LocationID).Equal(types.LocationID("loc2"))

	var warned bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if strings.Contains(line, `"msg":"user identity diverges across locations"`) {
			warned = true
			gt.Bool(t, strings.Contains(line, `"storedLocationID":"loc1"`)).True()
			gt.Bool(t, strings.Contains(line, `"locationID":"loc2"`)).True()
		}
	}
	gt.Bool(t, warned).True()
}
