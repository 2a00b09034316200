package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bau/backend/internal/infrastructure/auth"
	"github.com/bau/backend/internal/infrastructure/logger"
	"github.com/bau/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// JWT context keys
const (
	JWTClaimsKey   = "jwt_claims"
	JWTOperatorKey = "jwt_operator"
	AuthHeaderKey  = "Authorization"
	BearerPrefix   = "Bearer "

	// AccessTokenQueryParam lets EventSource clients, which cannot set
	// headers, authenticate the progress stream
	AccessTokenQueryParam = "access_token"
)

// TokenValidator validates admin bearer tokens
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// JWTMiddlewareConfig holds configuration for JWT middleware
type JWTMiddlewareConfig struct {
	Validator TokenValidator
	// SkipPaths are exact paths that don't require authentication
	SkipPaths []string
	// AllowQueryToken accepts the token from the access_token query parameter
	AllowQueryToken bool
	Logger          *zap.Logger
}

// JWTAuthMiddleware requires a valid admin bearer token
func JWTAuthMiddleware(cfg JWTMiddlewareConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		tokenString, err := extractToken(c, cfg.AllowQueryToken)
		if err != nil {
			abortUnauthorized(c, cfg.Logger, err)
			return
		}

		claims, err := cfg.Validator.Validate(tokenString)
		if err != nil {
			abortUnauthorized(c, cfg.Logger, err)
			return
		}

		c.Set(JWTClaimsKey, claims)
		c.Set(JWTOperatorKey, claims.Operator)

		ctx := c.Request.Context()
		ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(zap.String("operator", claims.Operator)))
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func extractToken(c *gin.Context, allowQuery bool) (string, error) {
	header := c.GetHeader(AuthHeaderKey)
	if header == "" {
		if allowQuery {
			if token := c.Query(AccessTokenQueryParam); token != "" {
				return token, nil
			}
		}
		return "", errMissingCredentials
	}
	if !strings.HasPrefix(header, BearerPrefix) {
		return "", auth.ErrInvalidToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
	if token == "" {
		return "", errMissingCredentials
	}
	return token, nil
}

var errMissingCredentials = errors.New("missing credentials")

func abortUnauthorized(c *gin.Context, log *zap.Logger, err error) {
	log.Warn("JWT authentication failed",
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
	)

	code := dto.ErrCodeUnauthorized
	message := "Authentication required"
	status := http.StatusUnauthorized

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code, message = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrInsufficientScope):
		code, message, status = dto.ErrCodeForbidden, "Token does not grant provisioning access", http.StatusForbidden
	case errors.Is(err, errMissingCredentials):
	default:
		code, message = dto.ErrCodeTokenInvalid, "Invalid token"
	}

	c.AbortWithStatusJSON(status, dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
}

// GetJWTClaims returns the validated claims or nil
func GetJWTClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(JWTClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

// GetOperator returns the authenticated operator, empty when auth is off
func GetOperator(c *gin.Context) string {
	return c.GetString(JWTOperatorKey)
}
