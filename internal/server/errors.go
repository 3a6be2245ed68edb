package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"social-scraper/internal/pipeline"
	"social-scraper/pkg/models"
)

// Labels for failures outside the scraping taxonomy
const (
	kindBusy       = "Busy"
	kindTimeout    = "Timeout"
	kindBadRequest = "BadRequest"
)

// StatusFor maps an error to the HTTP status and kind label returned to
// clients
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, pipeline.ErrBusy):
		return http.StatusServiceUnavailable, kindBusy
	case errors.Is(err, models.ErrMalformedURL),
		errors.Is(err, models.ErrUnsupportedPlatform),
		errors.Is(err, models.ErrUnsupportedLinkShape):
		return http.StatusBadRequest, models.ErrorKind(err)
	case errors.Is(err, models.ErrPageUnavailable):
		return http.StatusBadGateway, models.ErrorKind(err)
	case errors.Is(err, models.ErrEmptyExtraction),
		errors.Is(err, models.ErrFieldMissing):
		return http.StatusUnprocessableEntity, models.ErrorKind(err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, kindTimeout
	default:
		// NoExtractorRegistered and internal failures
		return http.StatusInternalServerError, models.ErrorKind(err)
	}
}

func writeError(c *gin.Context, err error) {
	status, kind := StatusFor(err)
	c.JSON(status, gin.H{"error": err.Error(), "kind": kind})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "kind": kindBadRequest})
}
