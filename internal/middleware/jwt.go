package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
)

const (
	// ContextKeyClaims is the Gin context key for JWT claims.
	ContextKeyClaims = "claims"
)

// TokenValidator verifies bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenStr string) (*service.Claims, error)
}

// RequireStudentJWT validates a student JWT from the Authorization header.
func RequireStudentJWT(auth TokenValidator) gin.HandlerFunc {
	return requireTokenType(auth, service.TokenTypeStudent, response.ErrStudentAccessOnly, false)
}

// RequireAdminJWT validates an admin JWT from the Authorization header.
func RequireAdminJWT(auth TokenValidator) gin.HandlerFunc {
	return requireTokenType(auth, service.TokenTypeAdmin, response.ErrAdminAccessOnly, false)
}

// RequireStudentWSAuth validates a student JWT from the query param ?token=...
// Used for WebSocket upgrade requests, which cannot carry headers from browsers.
func RequireStudentWSAuth(auth TokenValidator) gin.HandlerFunc {
	return requireTokenType(auth, service.TokenTypeStudent, response.ErrStudentAccessOnly, true)
}

func requireTokenType(auth TokenValidator, want service.TokenType, denied response.ErrCode, queryOnly bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := extractAndValidateClaims(c, auth, queryOnly)
		if err != nil {
			code := response.ErrTokenInvalid
			if err == errTokenMissing {
				code = response.ErrTokenRequired
			}
			response.AbortFail(c, http.StatusUnauthorized, code)
			return
		}

		if claims.TokenType != want {
			response.AbortFail(c, http.StatusForbidden, denied)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// GetClaims retrieves the JWT claims from the Gin context.
func GetClaims(c *gin.Context) *service.Claims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.Claims)
	if !ok {
		return nil
	}
	return claims
}

// GetPrincipal returns the verified principal of the request. The second value
// is false when no auth middleware ran.
func GetPrincipal(c *gin.Context) (model.Principal, bool) {
	claims := GetClaims(c)
	if claims == nil {
		return model.Principal{}, false
	}
	return claims.Principal(), true
}

var errTokenMissing = fmt.Errorf("authorization header or token query required")

func extractAndValidateClaims(c *gin.Context, auth TokenValidator, queryOnly bool) (*service.Claims, error) {
	tokenStr := ""

	if !queryOnly {
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				tokenStr = parts[1]
			}
		}
	}

	if tokenStr == "" {
		tokenStr = c.Query("token")
	}

	if tokenStr == "" {
		return nil, errTokenMissing
	}

	return auth.ValidateToken(tokenStr)
}
