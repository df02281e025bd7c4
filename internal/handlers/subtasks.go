package handlers

import (
	"net/http"

	"github.com/JunoAX/familytasks-go/internal/models"
	"github.com/JunoAX/familytasks-go/internal/tasks"
	"github.com/gin-gonic/gin"
)

func ListSubtasks(svc *tasks.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID, ok := parseID(c, "id")
		if !ok {
			return
		}
		subtasks, err := svc.ListSubtasks(c.Request.Context(), taskID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, subtasks)
	}
}

func CreateSubtask(svc *tasks.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req models.SubtaskCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		subtask, err := svc.CreateSubtask(c.Request.Context(), taskID, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, subtask)
	}
}

func UpdateSubtask(svc *tasks.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req models.SubtaskUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		subtask, err := svc.UpdateSubtask(c.Request.Context(), id, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, subtask)
	}
}

func DeleteSubtask(svc *tasks.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		if err := svc.DeleteSubtask(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func ListLinks(svc *tasks.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID, ok := parseID(c, "id")
		if !ok {
			return
		}
		links, err := svc.ListLinks(c.Request.Context(), taskID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, links)
	}
}

func CreateLink(svc *tasks.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req models.TaskLinkCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		link, err := svc.CreateLink(c.Request.Context(), taskID, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, link)
	}
}

func DeleteLink(svc *tasks.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		if err := svc.DeleteLink(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
