package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aq2208/gorder-pickup/internal/adapter/http/middleware"
	"github.com/aq2208/gorder-pickup/internal/usecase"
)

type LoyaltyHandler struct {
	loyalty *usecase.LoyaltyLedger
	timeout time.Duration
}

func NewLoyaltyHandler(loyalty *usecase.LoyaltyLedger, timeout time.Duration) *LoyaltyHandler {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &LoyaltyHandler{loyalty: loyalty, timeout: timeout}
}

type redeemPointsReq struct {
	Points int64 `json:"points" binding:"required,gt=0"`
}

func (h *LoyaltyHandler) Profile(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	p, err := h.loyalty.Profile(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProfileResp(p))
}

func (h *LoyaltyHandler) Rewards(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rewards": toRewardResps(h.loyalty.Rewards())})
}

func (h *LoyaltyHandler) RedeemPoints(c *gin.Context) {
	var req redeemPointsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	p, err := h.loyalty.RedeemPoints(ctx, middleware.Subject(c), req.Points)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProfileResp(p))
}

func (h *LoyaltyHandler) RedeemReward(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	cp, p, err := h.loyalty.RedeemReward(ctx, middleware.Subject(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"coupon": toCouponResp(cp), "profile": toProfileResp(p)})
}
