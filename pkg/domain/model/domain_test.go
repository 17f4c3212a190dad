package model_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
)

func TestCredentials_ReplaceTokens(t *testing.T) {
	now := time.Now()
	cred := &model.Credentials{
		LocationID:   "loc1",
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
		Scope:        "users.readonly",
		LocationName: "Main",
	}
	cred.ReplaceTokens(model.TokenSet{
		AccessToken:  "new-access",
		RefreshToken: "new-refresh",
		ExpiresIn:    3600,
		ExpiresAt:    now.Add(time.Hour),
		Scope:        "users.readonly contacts.write",
	})

	gt.Value(t, cred.AccessToken).Equal("new-access")
	gt.Value(t, cred.RefreshToken).Equal("new-refresh")
	gt.Value(t, cred.Scope).Equal("users.readonly contacts.write")
	gt.Value(t, cred.LocationName).Equal("Main")
	gt.Bool(t, cred.Expired(now)).False()
	gt.Bool(t, cred.Expired(now.Add(2*time.Hour))).True()
	gt.Bool(t, (&model.Credentials{}).Expired(now)).False()
}

func TestUpsertResult_Activated(t *testing.T) {
	active := &model.User{ID: "u1", Status: types.UserStatusActive}
	inactive := &model.User{ID: "u1", Status: types.UserStatusInactive}

	gt.Bool(t, (&model.UpsertResult{User: active, Previous: inactive}).Activated()).True()
	gt.Bool(t, (&model.UpsertResult{User: active, Previous: active}).Activated()).False()
	gt.Bool(t, (&model.UpsertResult{User: active, Created: true}).Activated()).False()
	gt.Bool(t, (&model.UpsertResult{User: inactive, Previous: active}).Activated()).False()
}

func TestCategory_BecameDefault(t *testing.T) {
	c := &model.Category{ID: "onboarding", Name: "Onboarding", Default: true}
	gt.Bool(t, c.BecameDefault(nil)).True()
	gt.Bool(t, c.BecameDefault(&model.Category{Default: false})).True()
	gt.Bool(t, c.BecameDefault(&model.Category{Default: true})).False()
	gt.Bool(t, (&model.Category{Default: false}).BecameDefault(nil)).False()

	gt.NoError(t, c.Validate())
	gt.Error(t, (&model.Category{ID: "onboarding"}).Validate())
}

func TestTask_Validate(t *testing.T) {
	u := &model.User{ID: "u1", LocationID: "loc1", Email: "a@b.com", FirstName: "A", LastName: "B"}
	c := &model.Category{ID: "cat", Name: "Cat"}
	now := time.Now()

	task := model.NewAssignmentTask(u, c, now)
	gt.NoError(t, task.Validate())
	gt.Value(t, task.Assignment.Name).Equal("A B")
	gt.Value(t, task.Assignment.CategoryName).Equal("Cat")

	task.Receipt = "lease-1"
	retry := task.Retry(now.Add(time.Second))
	gt.Value(t, retry.Attempt).Equal(1)
	gt.Value(t, retry.Receipt).Equal("")
	gt.Value(t, task.Attempt).Equal(0)

	gt.NoError(t, model.NewContactRefreshTask(u, now).Validate())
	gt.Error(t, (&model.Task{Kind: types.TaskProjectAssignment}).Validate())
	gt.Error(t, (&model.Task{Kind: "bogus"}).Validate())
}
