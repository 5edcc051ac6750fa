package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"textcleaner_go_backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

// Sessions are anonymous. A client calls POST /auth/session once, receives a
// session id plus a signed token, and presents the token on every later call.
func SetupRoutes(r *gin.Engine, registry *services.SessionRegistry, secret string) {
	auth := r.Group("/auth")
	{
		auth.POST("/session", createSession(registry, secret))
		auth.GET("/session", AuthMiddleware(registry, secret), getSession)
	}
}

func AuthMiddleware(registry *services.SessionRegistry, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization token is required"})
			c.Abort()
			return
		}

		sessionID, err := verifyToken(tokenString, secret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		session, ok := registry.Get(sessionID)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired, create a new one"})
			c.Abort()
			return
		}

		c.Set("session", session)
		c.Next()
	}
}

// bearerToken pulls the token from the Authorization header, falling back to
// the token query parameter for websocket upgrades where custom headers are
// not available from browsers.
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}

func createSession(registry *services.SessionRegistry, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := registry.Create()

		token, err := issueToken(session.ID, secret)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue session token"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"session_id": session.ID,
			"token":      token,
		})
	}
}

func getSession(c *gin.Context) {
	session, exists := c.Get("session")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session not found in context"})
		return
	}
	c.JSON(http.StatusOK, session)
}

func issueToken(sessionID, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sid": sessionID,
		"iat": time.Now().Unix(),
	})
	return token.SignedString([]byte(secret))
}

func verifyToken(tokenString, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token")
	}

	sessionID, _ := claims["sid"].(string)
	if sessionID == "" {
		return "", errors.New("token carries no session id")
	}
	return sessionID, nil
}
