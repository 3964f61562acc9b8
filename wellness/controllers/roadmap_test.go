package controllers

import (
	"context"
	"net/http"
	"testing"

	"wellness/wellness/prompts"
	"wellness/wellness/services/activity"
	"wellness/wellness/services/llm/llmtest"
	"wellness/wellness/services/roadmap"
	"wellness/wellness/sources/psql/dao"
	"wellness/wellness/sources/psql/models"
	"wellness/wellness/utils/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func newRoadmap(e *env, client *llmtest.Client) *RoadmapController {
	items := dao.NewRoadmapDAO(e.db)
	return NewRoadmapController(items, roadmap.NewTransformer(client, "main", prompts.Default(), items, e.rec), e.rec)
}

func TestRoadmapCRUD(t *testing.T) {
	e := newEnv(t)
	ctrl := newRoadmap(e, llmtest.Text(""))
	ctx := context.Background()

	items, err := ctrl.List(ctx, "u1")
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)

	_, err = ctrl.Create(ctx, "u1", types.RoadmapItemRequest{Title: ptr("  ")})
	assert.ErrorIs(t, err, ErrBadRequest)
	_, err = ctrl.Create(ctx, "u1", types.RoadmapItemRequest{Title: ptr("Walk"), Category: ptr("astrology")})
	assert.ErrorIs(t, err, ErrBadRequest)
	_, err = ctrl.Create(ctx, "u1", types.RoadmapItemRequest{Title: ptr("Walk"), Status: ptr("done")})
	assert.ErrorIs(t, err, ErrBadRequest)

	item, err := ctrl.Create(ctx, "u1", types.RoadmapItemRequest{Title: ptr("Evening walk"), Category: ptr("Fitness")})
	require.NoError(t, err)
	assert.Equal(t, "fitness", item.Category)
	assert.Equal(t, models.RoadmapStatusNotStarted, item.Status)
	assert.Equal(t, "manual", item.Source)
	assert.Nil(t, item.CompletedAt)

	done, err := ctrl.Update(ctx, "u1", item.ID, types.RoadmapItemRequest{Status: ptr(models.RoadmapStatusCompleted)})
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	assert.Len(t, e.activities(t, activity.RoadmapItemCompleted), 1)

	// completing again does not record a second completion
	_, err = ctrl.Update(ctx, "u1", item.ID, types.RoadmapItemRequest{Notes: &[]string{"felt great"}})
	require.NoError(t, err)
	assert.Len(t, e.activities(t, activity.RoadmapItemCompleted), 1)

	reopened, err := ctrl.Update(ctx, "u1", item.ID, types.RoadmapItemRequest{Status: ptr(models.RoadmapStatusInProgress)})
	require.NoError(t, err)
	assert.Nil(t, reopened.CompletedAt)
	assert.Equal(t, []string{"felt great"}, []string(reopened.Notes))

	_, err = ctrl.Update(ctx, "u2", item.ID, types.RoadmapItemRequest{Title: ptr("mine now")})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, ctrl.Delete(ctx, "u2", item.ID), ErrNotFound)

	require.NoError(t, ctrl.Delete(ctx, "u1", item.ID))
	assert.ErrorIs(t, ctrl.Delete(ctx, "u1", item.ID), ErrNotFound)

	assert.Len(t, e.activities(t, activity.RoadmapItemAdded), 1)
	assert.Len(t, e.activities(t, activity.RoadmapItemRemoved), 1)
}

func TestRoadmapCreate_CompletedSetsTimestamp(t *testing.T) {
	e := newEnv(t)
	ctrl := newRoadmap(e, llmtest.Text(""))

	item, err := ctrl.Create(context.Background(), "u1", types.RoadmapItemRequest{
		Title:  ptr("Drink water"),
		Status: ptr(models.RoadmapStatusCompleted),
		Source: ptr(roadmap.SourceChat),
	})
	require.NoError(t, err)
	assert.NotNil(t, item.CompletedAt)
	assert.Equal(t, "other", item.Category)
	assert.Equal(t, roadmap.SourceChat, item.Source)
}

func TestRoadmapTransform(t *testing.T) {
	ctx := context.Background()

	e := newEnv(t)
	ctrl := newRoadmap(e, llmtest.Text(`{"title":"Screen-free dinners","description":"Put phones away at meals.","category":"social"}`))
	item, err := ctrl.Transform(ctx, "u1", roadmap.TransformRequest{Mode: roadmap.ModeFormat, Message: "Try screen-free dinners"})
	require.NoError(t, err)
	assert.Equal(t, "Screen-free dinners", item.Title)

	_, err = ctrl.Transform(ctx, "u1", roadmap.TransformRequest{Message: " "})
	assert.ErrorIs(t, err, ErrBadRequest)
	_, err = ctrl.Transform(ctx, "u1", roadmap.TransformRequest{Mode: "rewrite", Message: "x"})
	assert.ErrorIs(t, err, ErrBadRequest)

	bad := newRoadmap(newEnv(t), llmtest.Text("no idea"))
	_, err = bad.Transform(ctx, "u1", roadmap.TransformRequest{Message: "x"})
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
	assert.Equal(t, map[string]any{"error": "Invalid AI response"}, ErrorBody(err))
}
