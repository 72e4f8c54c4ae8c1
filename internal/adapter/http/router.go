package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aq2208/gorder-pickup/internal/adapter/http/middleware"
	"github.com/aq2208/gorder-pickup/internal/logging"
	"github.com/aq2208/gorder-pickup/internal/security"
)

type Handlers struct {
	Orders  *OrderHandler
	Coupons *CouponHandler
	Loyalty *LoyaltyHandler
	Tokens  *TokenHandler
	Metrics *middleware.HTTPMetrics // optional

	// CORSOrigins enables CORS for the listed origins; empty disables it.
	CORSOrigins []string
}

func NewRouter(h Handlers, authz *middleware.Authz) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if h.Metrics != nil {
		r.Use(h.Metrics.Handler())
	}
	r.Use(middleware.Logging(logging.New("http")))
	if len(h.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  h.CORSOrigins,
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Idempotency-Key"},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	// Prometheus endpoint (scraped by Prometheus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		v1.POST("/token", h.Tokens.IssueToken)

		v1.POST("/orders", authz.Require(security.PermOrdersWrite), h.Orders.PlaceOrder)
		v1.GET("/orders/:id", authz.Require(security.PermOrdersRead), h.Orders.GetOrder)
		v1.GET("/orders/:id/status", authz.Require(security.PermOrdersRead), h.Orders.GetStatus)
		v1.POST("/orders/:id/cancel", authz.Require(security.PermOrdersWrite), h.Orders.CancelOrder)
		v1.POST("/orders/:id/prepare", authz.Require(security.PermOrdersFulfil), h.Orders.Prepare)
		v1.POST("/pickups/scan", authz.Require(security.PermOrdersFulfil), h.Orders.Scan)

		v1.POST("/coupons", authz.Require(security.PermCouponsManage), h.Coupons.Issue)
		v1.POST("/coupons/broadcast", authz.Require(security.PermCouponsManage), h.Coupons.Broadcast)
		v1.POST("/coupons/:code/activate", authz.Require(security.PermCouponsManage), h.Coupons.Activate)
		v1.POST("/coupons/:code/deactivate", authz.Require(security.PermCouponsManage), h.Coupons.Deactivate)

		customer := v1.Group("/customers/:id", authz.Require(security.PermOrdersRead), middleware.SameCustomer("id"))
		customer.GET("/coupons", h.Coupons.ListForCustomer)
		customer.GET("/loyalty", h.Loyalty.Profile)

		v1.GET("/loyalty/rewards", authz.Require(security.PermOrdersRead), h.Loyalty.Rewards)
		v1.POST("/loyalty/redeem-points", authz.Require(security.PermLoyaltyRedeem), h.Loyalty.RedeemPoints)
		v1.POST("/loyalty/rewards/:id/redeem", authz.Require(security.PermLoyaltyRedeem), h.Loyalty.RedeemReward)
	}

	return r
}
