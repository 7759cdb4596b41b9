// README: Customer-facing order handlers: contact lookup and single order snapshot.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ordertrack/internal/modules/order"
	"ordertrack/internal/types"
)

type OrderHandler struct {
	order *order.Service
}

func NewOrderHandler(svc *order.Service) *OrderHandler {
	return &OrderHandler{order: svc}
}

type trackResponse struct {
	Orders      []order.Snapshot `json:"orders"`
	TotalOrders int              `json:"totalOrders"`
}

// Track looks orders up by the customer's email or phone, optionally narrowed by order number.
func (h *OrderHandler) Track(c *gin.Context) {
	contact := strings.TrimSpace(c.Query("contact"))
	if contact == "" {
		writeError(c, http.StatusBadRequest, codeBadRequest, "contact is required")
		return
	}
	orders, err := h.order.LookupByContact(c.Request.Context(), contact, c.Query("order"))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, trackResponse{Orders: orders, TotalOrders: len(orders)})
}

func (h *OrderHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, codeBadRequest, "missing order id")
		return
	}
	o, err := h.order.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}
