package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"points-ledger/internal/services"
)

// respondError maps engine errors to HTTP responses. Denials carry their
// retry-after seconds or shortfall so bot frontends can render precise
// messages.
func respondError(c *gin.Context, err error) {
	if denied, ok := services.AsDenied(err); ok {
		c.JSON(http.StatusConflict, gin.H{
			"error":               "denied",
			"reason":              denied.Reason,
			"retry_after_seconds": denied.RetryAfterSeconds,
			"shortfall":           denied.Shortfall,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrAccountNotFound), errors.Is(err, services.ErrWithdrawalNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrAccountBanned):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable, retry later"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
