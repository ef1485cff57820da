package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"facilityops/lottery/internal/handler/middleware"
	"facilityops/lottery/internal/lottery"
	"facilityops/lottery/internal/model"
	"facilityops/lottery/internal/service"
	jwtpkg "facilityops/lottery/pkg/jwt"
	"facilityops/lottery/pkg/response"
)

var ErrNoClaims = errors.New("claims not found in context")

func getUserIDFromContext(c *gin.Context) (string, error) {
	claimsVal, exists := c.Get(middleware.ContextKeyUserClaims)
	if !exists {
		return "", ErrNoClaims
	}
	claims, ok := claimsVal.(*jwtpkg.Claims)
	if !ok || claims.UserID() == "" {
		return "", ErrNoClaims
	}
	return claims.UserID(), nil
}

// scopeFromPath reads :date (YYYY-MM-DD) and :facility. On failure the
// response has already been written.
func scopeFromPath(c *gin.Context) (model.Scope, bool) {
	scope := model.Scope{Date: c.Param("date"), FacilityID: c.Param("facility")}
	return scope, validScope(c, scope)
}

func validScope(c *gin.Context, scope model.Scope) bool {
	if !scope.Complete() {
		response.BadRequest(c, service.ErrScopeIncomplete.Error())
		return false
	}
	if _, err := time.Parse(time.DateOnly, scope.Date); err != nil {
		response.BadRequest(c, "date must be formatted as YYYY-MM-DD")
		return false
	}
	return true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// errorStatus maps a service error onto an HTTP status. Zero means the error
// is unexpected.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, lottery.ErrInvalidSource),
		errors.Is(err, lottery.ErrInvalidTarget),
		errors.Is(err, lottery.ErrInvalidMethod),
		errors.Is(err, lottery.ErrNoSources),
		errors.Is(err, lottery.ErrTargetUnresolved),
		errors.Is(err, service.ErrScopeIncomplete),
		errors.Is(err, service.ErrEmptyQueue),
		errors.Is(err, service.ErrInvalidRecord),
		errors.Is(err, service.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrRuleNotFound),
		errors.Is(err, service.ErrSourceNotFound),
		errors.Is(err, service.ErrPackageNotFound),
		errors.Is(err, service.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrScopeBusy),
		errors.Is(err, lottery.ErrRunInProgress),
		errors.Is(err, service.ErrRunNotCompleted),
		errors.Is(err, service.ErrRecordsChanged),
		errors.Is(err, service.ErrCommitContention),
		errors.Is(err, service.ErrRecordAssigned),
		errors.Is(err, lottery.ErrNothingToConfirm):
		return http.StatusConflict
	}
	return 0
}

// writeError answers with the mapped status. Validation failures are also
// surfaced as warnings; unexpected errors are logged and hidden.
func writeError(c *gin.Context, logger *zap.Logger, notifier service.Notifier, err error) {
	status := errorStatus(err)
	switch status {
	case 0:
		logger.Error("request failed",
			zap.String("path", c.Request.URL.Path), zap.Error(err))
		_ = c.Error(err)
		if notifier != nil {
			notifier.Error(c.Request.Context(), "request failed", err)
		}
		response.InternalError(c, "internal server error")
	case http.StatusBadRequest:
		if notifier != nil {
			notifier.Warning(c.Request.Context(), err.Error())
		}
		response.BadRequest(c, err.Error())
	default:
		response.Error(c, status, status, err.Error())
	}
}
