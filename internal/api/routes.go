// Package api exposes the HTTP surface: token issuance, guardian linking,
// and the authenticated WebSocket endpoint devices connect to.
package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/somiapp/somi-core/domain/repositories"
	"github.com/somiapp/somi-core/internal/auth"
	"github.com/somiapp/somi-core/internal/websocket"
)

// Deps carries everything the routes need.
type Deps struct {
	Hub          *websocket.Hub
	TokenIssuer  *auth.TokenIssuer
	Guardians    repositories.GuardianRepository
	ClientSecret string
	Logger       *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Deps) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"service": "somi-core",
			"clients": deps.Hub.ClientCount(),
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.POST("/auth/token", func(c echo.Context) error {
		return issueToken(c, deps)
	})

	guardians := v1.Group("/guardians", requireUser(deps))
	guardians.POST("/links", func(c echo.Context) error {
		return requestGuardianLink(c, deps)
	})
	guardians.GET("/links/:id", func(c echo.Context) error {
		return guardianLinkStatus(c, deps)
	})

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		claims, err := authenticate(c, deps.TokenIssuer)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "authentication_failed",
				Message: "Invalid or missing token",
			})
		}
		return websocket.HandleWebSocket(deps.Hub, c, claims.UserID, deps.Logger)
	})
}

func issueToken(c echo.Context, deps Deps) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		deps.Logger.Error("Failed to bind token request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.UserID == "" || req.ClientSecret == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "User ID and client secret are required",
		})
	}

	if subtle.ConstantTimeCompare([]byte(req.ClientSecret), []byte(deps.ClientSecret)) != 1 {
		deps.Logger.Warn("Token request with invalid client secret",
			zap.String("userID", req.UserID))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid client secret",
		})
	}

	token, expiresAt, err := deps.TokenIssuer.GenerateUserToken(req.UserID)
	if err != nil {
		deps.Logger.Error("Failed to generate token",
			zap.String("userID", req.UserID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	return c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		UserID:    req.UserID,
	})
}

func requestGuardianLink(c echo.Context, deps Deps) error {
	userID, _ := c.Get("userID").(string)

	var req GuardianLinkRequest
	if err := c.Bind(&req); err != nil || req.GuardianEmail == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Guardian email is required",
		})
	}

	link, err := deps.Guardians.RequestLink(c.Request().Context(), userID, req.GuardianEmail)
	if err != nil {
		deps.Logger.Error("Failed to request guardian link",
			zap.String("userID", userID),
			zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "guardian_link_failed",
			Message: "Failed to request guardian link",
		})
	}
	return c.JSON(http.StatusOK, link)
}

func guardianLinkStatus(c echo.Context, deps Deps) error {
	link, err := deps.Guardians.LinkStatus(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Guardian link not found",
			})
		}
		deps.Logger.Error("Failed to fetch guardian link status", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "guardian_link_failed",
			Message: "Failed to fetch guardian link status",
		})
	}
	return c.JSON(http.StatusOK, link)
}

// requireUser validates the bearer token and stores the user ID in the
// request context.
func requireUser(deps Deps) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := authenticate(c, deps.TokenIssuer)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "authentication_failed",
					Message: "Invalid or missing token",
				})
			}
			c.Set("userID", claims.UserID)
			return next(c)
		}
	}
}

// authenticate accepts the token either as a bearer header or, for
// WebSocket clients that cannot set headers, as a query parameter.
func authenticate(c echo.Context, issuer *auth.TokenIssuer) (*auth.Claims, error) {
	token := c.QueryParam("token")
	if token == "" {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token = strings.TrimPrefix(header, "Bearer ")
	}
	if token == "" {
		return nil, errors.New("missing token")
	}
	return issuer.ValidateToken(token)
}
