package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/JunoAX/familytasks-go/internal/apperror"
	"github.com/JunoAX/familytasks-go/internal/models"
	"github.com/JunoAX/familytasks-go/internal/patch"
	"github.com/JunoAX/familytasks-go/internal/store"
)

func (s *Service) requireTask(ctx context.Context, q store.Queries, taskID int64) error {
	exists, err := q.TaskExists(ctx, taskID)
	if err != nil {
		return err
	}
	if !exists {
		return apperror.NotFound("Task %d not found", taskID)
	}
	return nil
}

// ListSubtasks returns a task's subtasks, oldest first.
func (s *Service) ListSubtasks(ctx context.Context, taskID int64) ([]models.Subtask, error) {
	if err := s.requireTask(ctx, s.store, taskID); err != nil {
		return nil, apperror.FromStore(err, fmt.Sprintf("Task %d", taskID))
	}
	subtasks, err := s.store.ListSubtasks(ctx, taskID)
	if err != nil {
		return nil, apperror.FromStore(err, "Subtasks")
	}
	return subtasks, nil
}

func (s *Service) CreateSubtask(ctx context.Context, taskID int64, req models.SubtaskCreateRequest) (*models.Subtask, error) {
	subtask := models.Subtask{TaskID: taskID, Title: strings.TrimSpace(req.Title)}
	if subtask.Title == "" {
		return nil, apperror.Invalid("title is required")
	}

	err := s.store.Tx(ctx, store.ReadCommitted, func(q store.Queries) error {
		if err := s.requireTask(ctx, q, taskID); err != nil {
			return err
		}
		return q.CreateSubtask(ctx, &subtask)
	})
	if err != nil {
		return nil, apperror.FromStore(err, "Subtask")
	}
	return &subtask, nil
}

// UpdateSubtask applies the fields present in req; an empty request is a no-op.
func (s *Service) UpdateSubtask(ctx context.Context, id int64, req models.SubtaskUpdateRequest) (*models.Subtask, error) {
	var p patch.Patch
	if req.Title.Set {
		title := strings.TrimSpace(req.Title.Value)
		if req.Title.Null || title == "" {
			return nil, apperror.Invalid("title cannot be empty")
		}
		p.Set("title", title)
	}
	if req.Completed.Set {
		if req.Completed.Null {
			return nil, apperror.Invalid("completed cannot be null")
		}
		p.Set("completed", req.Completed.Value)
	}

	what := fmt.Sprintf("Subtask %d", id)
	if p.Empty() {
		subtask, err := s.store.GetSubtask(ctx, id)
		if err != nil {
			return nil, apperror.FromStore(err, what)
		}
		return subtask, nil
	}

	subtask, err := s.store.UpdateSubtask(ctx, id, p)
	if err != nil {
		return nil, apperror.FromStore(err, what)
	}
	return subtask, nil
}

func (s *Service) DeleteSubtask(ctx context.Context, id int64) error {
	deleted, err := s.store.DeleteSubtask(ctx, id)
	if err != nil {
		return apperror.FromStore(err, fmt.Sprintf("Subtask %d", id))
	}
	if !deleted {
		return apperror.NotFound("Subtask %d not found", id)
	}
	return nil
}

// ListLinks returns a task's links, oldest first.
func (s *Service) ListLinks(ctx context.Context, taskID int64) ([]models.TaskLink, error) {
	if err := s.requireTask(ctx, s.store, taskID); err != nil {
		return nil, apperror.FromStore(err, fmt.Sprintf("Task %d", taskID))
	}
	links, err := s.store.ListLinks(ctx, taskID)
	if err != nil {
		return nil, apperror.FromStore(err, "Links")
	}
	return links, nil
}

func (s *Service) CreateLink(ctx context.Context, taskID int64, req models.TaskLinkCreateRequest) (*models.TaskLink, error) {
	link := models.TaskLink{TaskID: taskID, URL: strings.TrimSpace(req.URL), Title: req.Title}
	if link.URL == "" {
		return nil, apperror.Invalid("url is required")
	}

	err := s.store.Tx(ctx, store.ReadCommitted, func(q store.Queries) error {
		if err := s.requireTask(ctx, q, taskID); err != nil {
			return err
		}
		return q.CreateLink(ctx, &link)
	})
	if err != nil {
		return nil, apperror.FromStore(err, "Link")
	}
	return &link, nil
}

func (s *Service) DeleteLink(ctx context.Context, id int64) error {
	deleted, err := s.store.DeleteLink(ctx, id)
	if err != nil {
		return apperror.FromStore(err, fmt.Sprintf("Link %d", id))
	}
	if !deleted {
		return apperror.NotFound("Link %d not found", id)
	}
	return nil
}
