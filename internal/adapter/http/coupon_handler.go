package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	domain "github.com/aq2208/gorder-pickup/internal/entity"
	"github.com/aq2208/gorder-pickup/internal/usecase"
)

type CouponHandler struct {
	coupons *usecase.CouponLedger
	timeout time.Duration
}

func NewCouponHandler(coupons *usecase.CouponLedger, timeout time.Duration) *CouponHandler {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &CouponHandler{coupons: coupons, timeout: timeout}
}

type issueCouponReq struct {
	CustomerID  string          `json:"customerId"`
	Code        string          `json:"code" binding:"required"`
	Description string          `json:"description"`
	Kind        string          `json:"kind" binding:"required,oneof=fixed percentage"`
	Value       decimal.Decimal `json:"value"`
}

func (r issueCouponReq) input() usecase.IssueCouponInput {
	return usecase.IssueCouponInput{
		CustomerID:  r.CustomerID,
		Code:        r.Code,
		Description: r.Description,
		Kind:        domain.DiscountKind(r.Kind),
		Value:       r.Value,
		Origin:      domain.OriginManual,
	}
}

func (h *CouponHandler) Issue(c *gin.Context) {
	var req issueCouponReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	cp, created, err := h.coupons.Issue(ctx, req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, toCouponResp(cp))
}

// Broadcast may touch every customer, so it is not bound by the request timeout.
func (h *CouponHandler) Broadcast(c *gin.Context) {
	var req issueCouponReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.coupons.Broadcast(c.Request.Context(), req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *CouponHandler) Activate(c *gin.Context)   { h.setActive(c, true) }
func (h *CouponHandler) Deactivate(c *gin.Context) { h.setActive(c, false) }

func (h *CouponHandler) setActive(c *gin.Context, active bool) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	n, err := h.coupons.SetActive(ctx, c.Param("code"), active)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": c.Param("code"), "active": active, "instances": n})
}

func (h *CouponHandler) ListForCustomer(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	list, err := h.coupons.ListCoupons(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]*couponResp, 0, len(list))
	for _, cp := range list {
		out = append(out, toCouponResp(cp))
	}
	c.JSON(http.StatusOK, gin.H{"coupons": out})
}
