package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aq2208/gorder-pickup/internal/adapter/http/middleware"
	domain "github.com/aq2208/gorder-pickup/internal/entity"
	"github.com/aq2208/gorder-pickup/internal/usecase"
)

type OrderHandler struct {
	orders  *usecase.OrderService
	timeout time.Duration
}

func NewOrderHandler(orders *usecase.OrderService, timeout time.Duration) *OrderHandler {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &OrderHandler{orders: orders, timeout: timeout}
}

type placeOrderReq struct {
	Items      []lineItemReq `json:"items" binding:"required,min=1,dive"`
	CouponCode string        `json:"couponCode"`
	Class      string        `json:"class"`
}

type placeOrderResp struct {
	Order           orderResp   `json:"order"`
	MilestoneCoupon *couponResp `json:"milestoneCoupon,omitempty"`
	Replayed        bool        `json:"replayed,omitempty"`
}

type scanReq struct {
	Token string `json:"token" binding:"required"`
}

// PlaceOrder places an order for the token's customer.
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req placeOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	items := make([]domain.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.LineItem{
			ItemID:    it.ItemID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Note:      it.Note,
		})
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	out, err := h.orders.PlaceOrder(ctx, usecase.PlaceOrderInput{
		CustomerID:     middleware.Subject(c),
		Items:          items,
		CouponCode:     req.CouponCode,
		Class:          domain.Class(req.Class),
		IdempotencyKey: c.GetHeader("X-Idempotency-Key"), // prevent duplicated requests
	})
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusCreated
	if out.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, placeOrderResp{
		Order:           toOrderResp(out.Order, true),
		MilestoneCoupon: toCouponResp(out.MilestoneCoupon),
		Replayed:        out.Replayed,
	})
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	o, err := h.orders.GetOrder(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	owner := middleware.CustomerScoped(c) && middleware.Subject(c) == o.CustomerID
	if middleware.CustomerScoped(c) && !owner {
		writeError(c, usecase.ErrNotOwner)
		return
	}
	c.JSON(http.StatusOK, toOrderResp(o, owner))
}

func (h *OrderHandler) GetStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	id := c.Param("id")
	// customers only see their own orders, so ownership comes from the stored order
	if middleware.CustomerScoped(c) {
		o, err := h.orders.GetOrder(ctx, id)
		if err != nil {
			writeError(c, err)
			return
		}
		if o.CustomerID != middleware.Subject(c) {
			writeError(c, usecase.ErrNotOwner)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "status": o.Status})
		return
	}

	st, err := h.orders.GetStatus(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": st})
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	o, err := h.orders.CancelOrder(ctx, c.Param("id"), middleware.Subject(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResp(o, false))
}

// Prepare is the kitchen's manual fallback for the RabbitMQ command feed.
func (h *OrderHandler) Prepare(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	o, err := h.orders.AdvanceToPrepared(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResp(o, false))
}

// Scan verifies a pickup QR token at the counter and hands the order over.
func (h *OrderHandler) Scan(c *gin.Context) {
	var req scanReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	o, err := h.orders.VerifyAndCollect(ctx, req.Token)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResp(o, false))
}
