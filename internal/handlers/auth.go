package handlers

import (
	"net/http"

	"github.com/JunoAX/familytasks-go/internal/identity"
	"github.com/JunoAX/familytasks-go/internal/models"
	"github.com/gin-gonic/gin"
)

// SyncIdentity maps a signed-in identity to its user and family, creating them on first sign-in
func SyncIdentity(svc *identity.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SyncRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		result, err := svc.SyncIdentity(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
