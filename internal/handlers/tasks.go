package handlers

import (
	"net/http"
	"time"

	"github.com/JunoAX/familytasks-go/internal/models"
	"github.com/JunoAX/familytasks-go/internal/tasks"
	"github.com/gin-gonic/gin"
)

// taskListQuery is the query string of GET /api/tasks
type taskListQuery struct {
	Status         string `form:"status" binding:"omitempty,taskstatus"`
	AssignedUserID *int64 `form:"assigned_user_id" binding:"omitempty,gt=0"`
	DueDateFrom    string `form:"due_date_from" binding:"omitempty,datetime=2006-01-02"`
	DueDateTo      string `form:"due_date_to" binding:"omitempty,datetime=2006-01-02"`
	Priority       string `form:"priority" binding:"omitempty,taskpriority"`
	SortBy         string `form:"sort_by" binding:"omitempty,oneof=due_date priority created_at"`
	SortOrder      string `form:"sort_order" binding:"omitempty,oneof=asc desc"`
}

func (q taskListQuery) filter() models.TaskFilter {
	f := models.TaskFilter{
		Status:         q.Status,
		AssignedUserID: q.AssignedUserID,
		Priority:       q.Priority,
		SortBy:         q.SortBy,
		SortOrder:      q.SortOrder,
	}
	// Both dates already passed the datetime binding.
	if d, err := time.Parse(models.DateLayout, q.DueDateFrom); err == nil {
		f.DueDateFrom = &d
	}
	if d, err := time.Parse(models.DateLayout, q.DueDateTo); err == nil {
		f.DueDateTo = &d
	}
	return f
}

// ListTasks returns tasks matching the query filters, with assignee and dependency views
func ListTasks(svc *tasks.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q taskListQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			respondBindError(c, err)
			return
		}
		list, err := svc.GetTasks(c.Request.Context(), q.filter())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func GetTask(svc *tasks.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		task, err := svc.GetTask(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

func CreateTask(svc *tasks.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.TaskCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		task, err := svc.CreateTask(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, task)
	}
}

// UpdateTask applies a partial update; explicit nulls clear nullable fields
func UpdateTask(svc *tasks.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req models.TaskUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		task, err := svc.UpdateTask(c.Request.Context(), id, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

func DeleteTask(svc *tasks.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		if err := svc.DeleteTask(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
