package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aq2208/gorder-pickup/internal/logging"
	"github.com/aq2208/gorder-pickup/internal/usecase"
)

type errorResp struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func statusFor(err error) int {
	switch usecase.KindOf(err) {
	case usecase.KindValidation:
		return http.StatusBadRequest
	case usecase.KindConflict:
		return http.StatusConflict
	case usecase.KindIntegrity:
		return http.StatusUnprocessableEntity
	case usecase.KindPolicy:
		if usecase.Code(err) == "not_owner" {
			return http.StatusForbidden
		}
		return http.StatusUnprocessableEntity
	case usecase.KindNotFound:
		return http.StatusNotFound
	case usecase.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a usecase error onto the HTTP error envelope.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logging.From(c).Error("unhandled error", "err", err)
		msg = "internal error"
	}
	c.JSON(status, errorResp{Error: usecase.Code(err), Message: msg})
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, errorResp{Error: "bad_request", Message: err.Error()})
}
