package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"points-ledger/internal/auth"
	"points-ledger/internal/services"
)

type WithdrawalHandler struct {
	withdrawals *services.WithdrawalService
}

func NewWithdrawalHandler(withdrawals *services.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawals: withdrawals}
}

// Request creates a pending withdrawal, charging the points up front
func (h *WithdrawalHandler) Request(c *gin.Context) {
	externalID, exists := auth.GetExternalID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		Amount  decimal.Decimal `json:"amount" binding:"required"`
		Method  string          `json:"method"`
		Details string          `json:"details"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	withdrawal, err := h.withdrawals.Request(c.Request.Context(), externalID, req.Amount, req.Method, req.Details)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    withdrawal,
	})
}

// List returns the caller's withdrawals
func (h *WithdrawalHandler) List(c *gin.Context) {
	externalID, exists := auth.GetExternalID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	withdrawals, err := h.withdrawals.ListForAccount(c.Request.Context(), externalID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    withdrawals,
	})
}
