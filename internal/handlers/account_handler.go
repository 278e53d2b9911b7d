package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"points-ledger/internal/auth"
	"points-ledger/internal/services"
)

type AccountHandler struct {
	accounts *services.AccountService
	ledger   *services.LedgerService
	stats    *services.StatsService
}

func NewAccountHandler(accounts *services.AccountService, ledger *services.LedgerService, stats *services.StatsService) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		ledger:   ledger,
		stats:    stats,
	}
}

// Register creates or refreshes the account for an external id
func (h *AccountHandler) Register(c *gin.Context) {
	var req struct {
		ExternalID   string            `json:"external_id" binding:"required"`
		Profile      services.Profile  `json:"profile"`
		ReferralCode string            `json:"referral_code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := h.accounts.Register(c.Request.Context(), req.ExternalID, req.Profile, req.ReferralCode)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    account,
	})
}

// GetBalance returns the caller's current balance
func (h *AccountHandler) GetBalance(c *gin.Context) {
	externalID, exists := auth.GetExternalID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	balance, err := h.accounts.GetBalance(c.Request.Context(), externalID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"balance": balance},
	})
}

// GetHistory returns a reverse-chronological page of the caller's ledger
func (h *AccountHandler) GetHistory(c *gin.Context) {
	externalID, exists := auth.GetExternalID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	account, err := h.accounts.GetAccount(c.Request.Context(), externalID)
	if err != nil {
		respondError(c, err)
		return
	}

	entries, err := h.ledger.History(c.Request.Context(), account.ID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    entries,
	})
}

// GetSummary returns balance, earnings and rank for the caller
func (h *AccountHandler) GetSummary(c *gin.Context) {
	externalID, exists := auth.GetExternalID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	summary, err := h.stats.Summary(c.Request.Context(), externalID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    summary,
	})
}
