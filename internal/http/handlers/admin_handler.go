// README: Admin handlers: status updates, order list and export, registration, rules and ETA hints.
package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ordertrack/internal/maps"
	"ordertrack/internal/modules/order"
	"ordertrack/internal/types"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ETASuggester proposes an estimated time for an order.
type ETASuggester interface {
	SuggestETA(ctx context.Context, o order.Snapshot, origin string) (*maps.Suggestion, error)
}

type AdminHandler struct {
	order *order.Service
	eta   ETASuggester
}

// NewAdminHandler builds the admin handler. eta may be nil when maps is not configured.
func NewAdminHandler(svc *order.Service, eta ETASuggester) *AdminHandler {
	return &AdminHandler{order: svc, eta: eta}
}

type updateStatusReq struct {
	Status         string  `json:"status"`
	Role           string  `json:"role"`
	Message        *string `json:"message"`
	EstimatedTime  *string `json:"estimatedTime"`
	Location       *string `json:"location"`
	NotifyCustomer bool    `json:"notifyCustomer"`
}

type updateStatusResp struct {
	Order       *order.Snapshot `json:"order"`
	NextAllowed []order.Status  `json:"nextAllowed"`
}

func (h *AdminHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, codeBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		writeError(c, http.StatusBadRequest, codeBadRequest, "status is required")
		return
	}
	cmd := order.UpdateStatusCommand{
		OrderID:        types.ID(c.Param("id")),
		To:             order.Status(strings.ToLower(strings.TrimSpace(req.Status))),
		Role:           roleFrom(c, req.Role),
		Message:        req.Message,
		Location:       req.Location,
		NotifyCustomer: req.NotifyCustomer,
	}
	if req.EstimatedTime != nil {
		eta, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.EstimatedTime))
		if err != nil {
			writeError(c, http.StatusBadRequest, codeBadRequest, "estimatedTime must be RFC 3339")
			return
		}
		eta = eta.UTC()
		cmd.EstimatedTime = &eta
	}

	ctx := c.Request.Context()
	if err := h.order.UpdateStatus(ctx, cmd); err != nil {
		writeOrderError(c, err)
		return
	}
	o, err := h.order.Get(ctx, cmd.OrderID)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, updateStatusResp{
		Order:       o,
		NextAllowed: h.order.Table().NextAllowed(o.Status, cmd.Role),
	})
}

func (h *AdminHandler) List(c *gin.Context) {
	f, err := filterFromQuery(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	res, err := h.order.FilteredList(c.Request.Context(), f)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (h *AdminHandler) Export(c *gin.Context) {
	f, err := filterFromQuery(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	var buf bytes.Buffer
	if _, err := h.order.ExportXLSX(c.Request.Context(), f, &buf); err != nil {
		writeOrderError(c, err)
		return
	}
	name := "orders-" + time.Now().UTC().Format("20060102-150405") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

type registerReq struct {
	ID              string  `json:"id"`
	OrderNumber     string  `json:"orderNumber"`
	CustomerName    string  `json:"customerName"`
	CustomerEmail   string  `json:"customerEmail"`
	CustomerPhone   string  `json:"customerPhone"`
	OrderType       string  `json:"orderType"`
	DeliveryType    string  `json:"deliveryType"`
	DeliveryAddress string  `json:"deliveryAddress"`
	Message         *string `json:"message"`
}

func (h *AdminHandler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, codeBadRequest, "invalid json")
		return
	}
	o, err := h.order.Register(c.Request.Context(), order.RegisterCommand{
		ID:              types.ID(strings.TrimSpace(req.ID)),
		OrderNumber:     req.OrderNumber,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		OrderType:       order.OrderType(strings.ToLower(req.OrderType)),
		DeliveryType:    order.DeliveryType(strings.ToLower(req.DeliveryType)),
		DeliveryAddress: req.DeliveryAddress,
		Message:         req.Message,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, o)
}

// Transitions lists the rule table, or the next statuses for ?from=&role= when both are given.
func (h *AdminHandler) Transitions(c *gin.Context) {
	table := h.order.Table()
	from := order.Status(strings.ToLower(c.Query("from")))
	role := strings.TrimSpace(c.Query("role"))
	if from == "" && role == "" {
		writeJSON(c, http.StatusOK, gin.H{"rules": table.Rules()})
		return
	}
	if !from.Valid() || role == "" {
		writeError(c, http.StatusBadRequest, codeBadRequest, "from must be a known status and role is required")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"from":        from,
		"role":        order.Role(strings.ToLower(role)),
		"nextAllowed": table.NextAllowed(from, order.Role(strings.ToLower(role))),
	})
}

func (h *AdminHandler) SuggestETA(c *gin.Context) {
	if h.eta == nil {
		writeError(c, http.StatusServiceUnavailable, "eta_unavailable", "maps is not configured")
		return
	}
	ctx := c.Request.Context()
	o, err := h.order.Get(ctx, types.ID(c.Param("id")))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	sug, err := h.eta.SuggestETA(ctx, *o, c.Query("origin"))
	switch {
	case err == nil:
		writeJSON(c, http.StatusOK, sug)
	case errors.Is(err, maps.ErrTerminal):
		writeError(c, http.StatusConflict, "order_finished", err.Error())
	case errors.Is(err, maps.ErrNoDestination), errors.Is(err, maps.ErrNoRoute):
		writeError(c, http.StatusUnprocessableEntity, "no_route", err.Error())
	default:
		_ = c.Error(err)
		writeError(c, http.StatusBadGateway, "maps_failure", "route lookup failed")
	}
}

func filterFromQuery(c *gin.Context) (order.Filter, error) {
	var f order.Filter
	var err error
	if f.Statuses, err = parseStatuses(c.Query("status")); err != nil {
		return f, err
	}
	if f.From, err = parseTime(c.Query("from"), false); err != nil {
		return f, errors.New("from must be RFC 3339 or YYYY-MM-DD")
	}
	if f.To, err = parseTime(c.Query("to"), true); err != nil {
		return f, errors.New("to must be RFC 3339 or YYYY-MM-DD")
	}
	if f.Limit, err = parseInt(c.Query("limit"), 0); err != nil {
		return f, errors.New("limit must be a number")
	}
	if f.Offset, err = parseInt(c.Query("offset"), 0); err != nil {
		return f, errors.New("offset must be a number")
	}
	f.Search = c.Query("q")
	f.OrderType = order.OrderType(strings.ToLower(c.Query("orderType")))
	f.DeliveryType = order.DeliveryType(strings.ToLower(c.Query("deliveryType")))
	return f, nil
}
