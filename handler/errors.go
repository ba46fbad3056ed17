package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tieubaoca/docchat-be/metrics"
	"github.com/tieubaoca/docchat-be/types"
)

// apiError is a failure reported before a stream starts.
type apiError struct {
	status  int
	detail  string
	outcome string
}

func (e *apiError) Error() string {
	return e.detail
}

var (
	errRateLimited     = &apiError{http.StatusTooManyRequests, "Rate limit exceeded. Try again later.", metrics.OutcomeRateLimited}
	errInvalidBody     = &apiError{http.StatusBadRequest, "Invalid request body", metrics.OutcomeBadRequest}
	errMessageRequired = &apiError{http.StatusBadRequest, "Message is required", metrics.OutcomeBadRequest}
	errMessageTooLong  = &apiError{http.StatusBadRequest, "Message is too long", metrics.OutcomeBadRequest}
	errNoContext       = &apiError{http.StatusInternalServerError, "PDF context not loaded", metrics.OutcomeNoContext}
	errQueueFull       = &apiError{http.StatusTooManyRequests, "Too many pending messages", metrics.OutcomeQueueFull}
)

func sendError(c *gin.Context, err *apiError) {
	c.AbortWithStatusJSON(err.status, types.ErrorResponse{Detail: err.detail})
}
