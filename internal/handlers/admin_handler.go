package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"points-ledger/internal/services"
)

type AdminHandler struct {
	accounts    *services.AccountService
	rewards     *services.RewardService
	withdrawals *services.WithdrawalService
	stats       *services.StatsService
}

func NewAdminHandler(accounts *services.AccountService, rewards *services.RewardService, withdrawals *services.WithdrawalService, stats *services.StatsService) *AdminHandler {
	return &AdminHandler{
		accounts:    accounts,
		rewards:     rewards,
		withdrawals: withdrawals,
		stats:       stats,
	}
}

// Adjust applies a signed balance correction to any account
func (h *AdminHandler) Adjust(c *gin.Context) {
	var req struct {
		ExternalID string          `json:"external_id" binding:"required"`
		Amount     decimal.Decimal `json:"amount" binding:"required"`
		Reason     string          `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.rewards.AdminAdjust(c.Request.Context(), req.ExternalID, req.Amount, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// Ban soft-bans an account
func (h *AdminHandler) Ban(c *gin.Context) {
	var req struct {
		ExternalID string `json:"external_id" binding:"required"`
		Reason     string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.accounts.Ban(c.Request.Context(), req.ExternalID, req.Reason); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Unban lifts a ban
func (h *AdminHandler) Unban(c *gin.Context) {
	var req struct {
		ExternalID string `json:"external_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.accounts.Unban(c.Request.Context(), req.ExternalID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// PendingWithdrawals lists withdrawals awaiting review
func (h *AdminHandler) PendingWithdrawals(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	withdrawals, err := h.withdrawals.ListPending(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    withdrawals,
	})
}

// ApproveWithdrawal marks a pending withdrawal as paid out
func (h *AdminHandler) ApproveWithdrawal(c *gin.Context) {
	var req struct {
		Note string `json:"note"`
	}
	_ = c.ShouldBindJSON(&req)

	if err := h.withdrawals.Approve(c.Request.Context(), c.Param("reference"), req.Note); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RejectWithdrawal rejects a pending withdrawal, refunding the points
func (h *AdminHandler) RejectWithdrawal(c *gin.Context) {
	var req struct {
		Note string `json:"note"`
	}
	_ = c.ShouldBindJSON(&req)

	if err := h.withdrawals.Reject(c.Request.Context(), c.Param("reference"), req.Note); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Snapshot forces a daily platform stats snapshot
func (h *AdminHandler) Snapshot(c *gin.Context) {
	snapshot, err := h.stats.SnapshotDaily(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    snapshot,
	})
}
