package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"points-ledger/internal/auth"
)

// AuthHandler issues JWTs to trusted bot frontends. The frontends
// authenticate with the shared service API key and act on behalf of the
// accounts they serve.
type AuthHandler struct {
	serviceAPIKey string
}

func NewAuthHandler(serviceAPIKey string) *AuthHandler {
	return &AuthHandler{serviceAPIKey: serviceAPIKey}
}

// Token exchanges the service API key for an account-scoped JWT
func (h *AuthHandler) Token(c *gin.Context) {
	var req struct {
		APIKey     string `json:"api_key" binding:"required"`
		ExternalID string `json:"external_id" binding:"required"`
		Admin      bool   `json:"admin"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if h.serviceAPIKey == "" ||
		subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(h.serviceAPIKey)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
		return
	}

	token, err := auth.GenerateToken(req.ExternalID, req.Admin)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"token": token},
	})
}
