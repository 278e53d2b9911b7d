package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"points-ledger/internal/auth"
	"points-ledger/internal/services"
)

type ReferralHandler struct {
	referrals *services.ReferralService
}

func NewReferralHandler(referrals *services.ReferralService) *ReferralHandler {
	return &ReferralHandler{referrals: referrals}
}

// GetStats returns the caller's referral code and counters
func (h *ReferralHandler) GetStats(c *gin.Context) {
	externalID, exists := auth.GetExternalID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	stats, err := h.referrals.GetStats(c.Request.Context(), externalID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    stats,
	})
}

// ListReferrals returns the accounts the caller brought in
func (h *ReferralHandler) ListReferrals(c *gin.Context) {
	externalID, exists := auth.GetExternalID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	edges, err := h.referrals.ListReferrals(c.Request.Context(), externalID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    edges,
	})
}
