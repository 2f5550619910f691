// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"blgu-assess-go/internal/indicator"
	"blgu-assess-go/internal/model"
	"blgu-assess-go/internal/service"
	"blgu-assess-go/pkg/log"
)

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{"code": status, "message": message, "data": data})
}

func success(c *gin.Context, data interface{}) {
	respond(c, http.StatusOK, "success", data)
}

// currentUser returns the user AuthMiddleware stored on the context.
func currentUser(c *gin.Context) (*model.User, bool) {
	value, exists := c.Get("user")
	if !exists {
		respond(c, http.StatusUnauthorized, "unauthenticated request", nil)
		return nil, false
	}
	user, isUser := value.(*model.User)
	if !isUser || user == nil {
		respond(c, http.StatusInternalServerError, "unexpected user type in request context", nil)
		return nil, false
	}
	return user, true
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		respond(c, http.StatusBadRequest, "invalid "+name, nil)
		return 0, false
	}
	return uint(v), true
}

// statusOf maps service and store errors to HTTP statuses.
func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrDraftNotFound),
		errors.Is(err, service.ErrIndicatorNotFound),
		errors.Is(err, service.ErrAreaNotFound),
		errors.Is(err, indicator.ErrNodeNotFound),
		errors.Is(err, indicator.ErrParentNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrDraftLocked):
		return http.StatusLocked
	case errors.Is(err, service.ErrDraftConflict),
		errors.Is(err, service.ErrDraftNotPublished),
		errors.Is(err, service.ErrSessionNotOpen),
		errors.Is(err, service.ErrUsernameTaken),
		errors.Is(err, service.ErrAreaCodeTaken),
		errors.Is(err, indicator.ErrArchiveOccupied):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidRefresh):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrPublisherDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, indicator.ErrMoveIntoDescendant),
		errors.Is(err, indicator.ErrInvalidOrdering),
		errors.Is(err, service.ErrNotLeafIndicator),
		errors.Is(err, service.ErrMissingAssessment),
		errors.Is(err, service.ErrNothingToEvaluate),
		errors.Is(err, service.ErrEmptyQuery),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidAreaType):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with the status statusOf picks. Server errors are logged
// and hidden behind a generic message.
func fail(c *gin.Context, op string, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Errorf("%s: %v", op, err)
		respond(c, status, "internal server error", nil)
		return
	}
	log.Warnf("%s: %v", op, err)
	respond(c, status, err.Error(), nil)
}
