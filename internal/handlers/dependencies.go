package handlers

import (
	"net/http"

	"github.com/JunoAX/familytasks-go/internal/apperror"
	"github.com/JunoAX/familytasks-go/internal/graph"
	"github.com/JunoAX/familytasks-go/internal/models"
	"github.com/gin-gonic/gin"
)

// ListDependencies returns every dependency edge, newest first
func ListDependencies(engine *graph.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		deps, err := engine.ListDependencies(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, deps)
	}
}

// ListTaskDependencies returns the edges touching a task in either direction
func ListTaskDependencies(engine *graph.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID, ok := parseID(c, "taskId")
		if !ok {
			return
		}
		deps, err := engine.ListForTask(c.Request.Context(), taskID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, deps)
	}
}

// CreateDependency adds an edge, rejecting self-loops, duplicates and cycles
func CreateDependency(engine *graph.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.DependencyCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		dep, err := engine.CreateDependency(c.Request.Context(), req.TaskID, req.DependsOnTaskID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, dep)
	}
}

func DeleteDependency(engine *graph.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		deleted, err := engine.DeleteDependency(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		if !deleted {
			respondError(c, apperror.NotFound("Dependency %d not found", id))
			return
		}
		c.Status(http.StatusNoContent)
	}
}
