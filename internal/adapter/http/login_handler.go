package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/aq2208/gorder-pickup/configs"
	"github.com/aq2208/gorder-pickup/internal/security"
)

type TokenHandler struct {
	cfg     configs.Config
	clients map[string]security.Client
	now     func() time.Time
}

func NewTokenHandler(cfg configs.Config) *TokenHandler {
	return &TokenHandler{cfg: cfg, clients: security.Clients, now: time.Now}
}

// POST /token (form)
// Accepts: client_id, client_secret
// Optional: subject (customer id; only for clients that act for a customer)
func (h *TokenHandler) IssueToken(c *gin.Context) {
	clientID := c.PostForm("client_id")
	clientSecret := c.PostForm("client_secret")
	if clientID == "" || clientSecret == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid client"})
		return
	}

	cl, ok := h.clients[clientID]
	if !ok || !cl.Enabled || clientSecret != cl.Secret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid client"})
		return
	}

	sub, scoped := clientID, false
	if s := c.PostForm("subject"); s != "" {
		if !cl.SubjectFromRequest {
			c.JSON(http.StatusBadRequest, gin.H{"error": "subject not allowed for this client"})
			return
		}
		sub, scoped = s, true
	}

	now := h.now()
	claims := jwt.MapClaims{
		"iss":      h.cfg.Security.Issuer,              // issuer
		"aud":      h.cfg.Security.Audience,            // audience
		"sub":      sub,                                // customer id or client id
		"iat":      now.Unix(),                         // issued at
		"nbf":      now.Unix(),                         // not before
		"exp":      now.Add(h.cfg.Security.TTL).Unix(), // expire
		"clientID": clientID,
		"cust":     scoped,
		"perms":    cl.Perms,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(h.cfg.Security.JWTSecret))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": signed,
		"token_type":   "Bearer",
		"expires_in":   int64(h.cfg.Security.TTL.Seconds()),
	})
}
