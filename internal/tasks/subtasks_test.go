package tasks

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/JunoAX/familytasks-go/internal/apperror"
	"github.com/JunoAX/familytasks-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubtaskLifecycle(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	task := createTask(t, svc, models.TaskCreateRequest{Title: "Clean room"})

	first, err := svc.CreateSubtask(ctx, task.ID, models.SubtaskCreateRequest{Title: "Bed"})
	require.NoError(t, err)
	second, err := svc.CreateSubtask(ctx, task.ID, models.SubtaskCreateRequest{Title: "Floor"})
	require.NoError(t, err)
	assert.False(t, first.Completed)

	list, err := svc.ListSubtasks(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)

	var req models.SubtaskUpdateRequest
	require.NoError(t, json.Unmarshal([]byte(`{"completed":true}`), &req))
	updated, err := svc.UpdateSubtask(ctx, first.ID, req)
	require.NoError(t, err)
	assert.True(t, updated.Completed)
	assert.Equal(t, "Bed", updated.Title)

	same, err := svc.UpdateSubtask(ctx, first.ID, models.SubtaskUpdateRequest{})
	require.NoError(t, err)
	assert.Equal(t, updated.UpdatedAt, same.UpdatedAt)

	require.NoError(t, svc.DeleteSubtask(ctx, second.ID))
	assert.ErrorIs(t, svc.DeleteSubtask(ctx, second.ID), apperror.ErrNotFound)
}

func TestSubtaskRequiresTask(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.CreateSubtask(ctx, 99, models.SubtaskCreateRequest{Title: "orphan"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = svc.ListSubtasks(ctx, 99)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = svc.UpdateSubtask(ctx, 99, models.SubtaskUpdateRequest{})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestLinkLifecycle(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	task := createTask(t, svc, models.TaskCreateRequest{Title: "Science fair"})
	title := "Rubric"

	link, err := svc.CreateLink(ctx, task.ID, models.TaskLinkCreateRequest{URL: "https://school.example/rubric", Title: &title})
	require.NoError(t, err)
	assert.NotZero(t, link.ID)

	links, err := svc.ListLinks(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "Rubric", *links[0].Title)

	_, err = svc.CreateLink(ctx, 99, models.TaskLinkCreateRequest{URL: "https://example.com"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	require.NoError(t, svc.DeleteLink(ctx, link.ID))
	assert.ErrorIs(t, svc.DeleteLink(ctx, link.ID), apperror.ErrNotFound)
}
