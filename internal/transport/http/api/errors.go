package apihttp

import (
	"errors"
	"net/http"

	"inditrade/internal/ledger"
	"inditrade/internal/logger"
	"inditrade/internal/market"

	"github.com/gin-gonic/gin"
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrValidation), errors.Is(err, market.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, market.ErrSymbolNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, market.ErrNetworkTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, market.ErrQuoteUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, ledger.ErrNotLoaded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}
	switch status {
	case http.StatusBadGateway, http.StatusGatewayTimeout:
		body["hint"] = "market data is temporarily unreachable, try again in a few seconds"
		logger.Warnf("[api] %s %s upstream failure: %v", c.Request.Method, c.Request.URL.Path, err)
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		logger.Errorf("[api] %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
