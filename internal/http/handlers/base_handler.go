// README: Base handler utilities (JSON helpers, error mapping, query parsing).
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ordertrack/internal/http/middleware"
	"ordertrack/internal/modules/order"
)

const (
	codeBadRequest           = "bad_request"
	codeNotFound             = "order_not_found"
	codeInvalidTransition    = "invalid_transition"
	codeMissingEstimatedTime = "missing_estimated_time"
	codeStoreWriteFailure    = "store_write_failure"
	codeConflict             = "conflict"
	codeForbidden            = "forbidden"
	codeInternal             = "internal_error"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type transitionErrorResponse struct {
	Error           string         `json:"error"`
	Message         string         `json:"message"`
	CurrentStatus   order.Status   `json:"currentStatus"`
	RequestedStatus order.Status   `json:"requestedStatus"`
	Role            order.Role     `json:"role"`
	Allowed         []order.Status `json:"allowed"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, code, msg string) {
	writeJSON(c, status, errorResponse{Error: code, Message: msg})
}

func writeOrderError(c *gin.Context, err error) {
	var te *order.TransitionError
	switch {
	case errors.As(err, &te):
		writeJSON(c, http.StatusConflict, transitionErrorResponse{
			Error:           codeInvalidTransition,
			Message:         te.Error(),
			CurrentStatus:   te.From,
			RequestedStatus: te.To,
			Role:            te.Role,
			Allowed:         te.Allowed,
		})
	case errors.Is(err, order.ErrNotFound):
		writeError(c, http.StatusNotFound, codeNotFound, order.ErrNotFound.Error())
	case errors.Is(err, order.ErrMissingEstimatedTime):
		writeError(c, http.StatusUnprocessableEntity, codeMissingEstimatedTime, err.Error())
	case errors.Is(err, order.ErrStoreWrite):
		writeError(c, http.StatusServiceUnavailable, codeStoreWriteFailure, "status change was not saved; retry")
	case errors.Is(err, order.ErrBadRequest):
		writeError(c, http.StatusBadRequest, codeBadRequest, err.Error())
	case errors.Is(err, order.ErrConflict):
		writeError(c, http.StatusConflict, codeConflict, err.Error())
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

// roleFrom prefers an explicit role and falls back to the caller's header role.
func roleFrom(c *gin.Context, explicit string) order.Role {
	if r := strings.TrimSpace(explicit); r != "" {
		return order.Role(strings.ToLower(r))
	}
	return middleware.ActorRole(c)
}

// parseTime accepts RFC 3339 timestamps and plain dates. With endOfDay set a plain date
// becomes the following midnight, so it can serve as an exclusive upper bound.
func parseTime(v string, endOfDay bool) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}

func parseInt(v string, def int) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func parseStatuses(v string) ([]order.Status, error) {
	var out []order.Status
	for _, part := range strings.Split(v, ",") {
		p := strings.TrimSpace(part)
		if p == "" {
			continue
		}
		st := order.Status(strings.ToLower(p))
		if !st.Valid() {
			return nil, errors.New("unknown status " + p)
		}
		out = append(out, st)
	}
	return out, nil
}
