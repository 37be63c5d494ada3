package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/primastock/inventory-service/internal/domain"
)

// actorFrom returns the authenticated actor identity forwarded by the
// surrounding auth layer. Attribution only; no authorization happens
// here.
func actorFrom(c *gin.Context) string {
	if actor := strings.TrimSpace(c.GetHeader("X-Actor")); actor != "" {
		return actor
	}
	return "system"
}

func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnknownProduct),
		errors.Is(err, domain.ErrUnknownLocation),
		errors.Is(err, domain.ErrUnknownSupplier),
		errors.Is(err, domain.ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidMovementType),
		errors.Is(err, domain.ErrSameLocation),
		errors.Is(err, domain.ErrLineNotInOrder):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrOrderNotModifiable),
		errors.Is(err, domain.ErrOrderNotReceivable),
		errors.Is(err, domain.ErrOverReceipt),
		errors.Is(err, domain.ErrConcurrencyConflict):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parsePositiveIntWithDefault(value string, fallback int) int {
	if fallback <= 0 {
		fallback = 50
	}
	if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && v > 0 {
		return v
	}
	return fallback
}

func parseNonNegativeInt(value string) int {
	if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && v > 0 {
		return v
	}
	return 0
}
