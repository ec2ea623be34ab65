package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	CookieName = "token"
	// ContextUserID is the gin context key holding the authenticated user id.
	ContextUserID = "userId"
)

// Auth issues and checks HS256 tokens. Tokens are read from the
// Authorization header first and from the cookie otherwise.
type Auth struct {
	secret     []byte
	production bool
}

func NewAuth(secret string, production bool) *Auth {
	return &Auth{secret: []byte(secret), production: production}
}

func (a *Auth) IssueToken(userID string, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("JWT_SECRET no configurado")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": userID,
		"exp":    time.Now().Add(ttl).Unix(),
	})
	return token.SignedString(a.secret)
}

func (a *Auth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string

		// 1. Header "Authorization: Bearer <token>"
		if parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2); len(parts) == 2 && parts[0] == "Bearer" {
			tokenString = parts[1]
		}

		// 2. Cookie as fallback
		if tokenString == "" {
			tokenString, _ = c.Cookie(CookieName)
		}

		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No autorizado: token ausente"})
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			return a.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token inválido o expirado"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Claims inválidos"})
			return
		}

		var userID string
		if v, ok := claims["userId"].(string); ok && v != "" {
			userID = v
		} else if v, ok := claims["userID"].(string); ok && v != "" {
			userID = v
		} else {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "userId inválido"})
			return
		}

		c.Set(ContextUserID, userID)
		c.Next()
	}
}

// SetCookie stores the token in an HTTP-only cookie. Production needs
// SameSite=None and Secure because the front end is served from another
// domain.
func (a *Auth) SetCookie(c *gin.Context, token string, ttl time.Duration) {
	sameSite := http.SameSiteLaxMode
	if a.production {
		sameSite = http.SameSiteNoneMode
	}
	c.SetSameSite(sameSite)
	c.SetCookie(CookieName, token, int(ttl.Seconds()), "/", "", a.production, true)
}

func (a *Auth) ClearCookie(c *gin.Context) {
	c.SetCookie(CookieName, "", -1, "/", "", a.production, true)
}

// UserID returns the id set by Middleware.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}
