package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"points-ledger/internal/auth"
	"points-ledger/internal/services"
)

type RewardHandler struct {
	rewards *services.RewardService
}

func NewRewardHandler(rewards *services.RewardService) *RewardHandler {
	return &RewardHandler{rewards: rewards}
}

// TryReward probes eligibility for a category without mutating state
func (h *RewardHandler) TryReward(c *gin.Context) {
	externalID, exists := auth.GetExternalID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	category := c.Param("category")
	result, err := h.rewards.TryReward(c.Request.Context(), externalID, category)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// Claim grants the engine-defined reward for a category
func (h *RewardHandler) Claim(c *gin.Context) {
	externalID, exists := auth.GetExternalID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	category := c.Param("category")
	var req struct {
		Description string `json:"description"`
	}
	_ = c.ShouldBindJSON(&req)

	result, err := h.rewards.Reward(c.Request.Context(), externalID, category, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// Charge deducts points for a downstream operation
func (h *RewardHandler) Charge(c *gin.Context) {
	externalID, exists := auth.GetExternalID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		Amount      decimal.Decimal `json:"amount" binding:"required"`
		Category    string          `json:"category"`
		Description string          `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.rewards.Charge(c.Request.Context(), externalID, req.Amount, req.Category, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// Refund credits back a previously charged amount after a downstream failure
func (h *RewardHandler) Refund(c *gin.Context) {
	externalID, exists := auth.GetExternalID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		Amount           decimal.Decimal `json:"amount" binding:"required"`
		OriginalCategory string          `json:"original_category"`
		Description      string          `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.rewards.Refund(c.Request.Context(), externalID, req.Amount, req.OriginalCategory, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}
