package api

import (
	"context"
	_ "embed"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/mirror-of-truth/domain/entities"
	"github.com/satriahrh/mirror-of-truth/internal/auth"
	"github.com/satriahrh/mirror-of-truth/internal/catalog"
	"github.com/satriahrh/mirror-of-truth/internal/websocket"
	"github.com/satriahrh/mirror-of-truth/usecase"
)

//go:embed static/index.html
var indexHTML []byte

// HistoryService serves recorded readings
type HistoryService interface {
	History(ctx context.Context, sessionID string, limit int) ([]*entities.MoodEntry, error)
	Summary(ctx context.Context, sessionID string) (entities.MoodSummary, error)
}

// DetectorStatus reports which detector serves requests
type DetectorStatus interface {
	Name() string
	Degraded() bool
}

// InitRoutes initializes all API routes
func InitRoutes(
	e *echo.Echo,
	hub *websocket.Hub,
	history HistoryService,
	tokens *auth.TokenIssuer,
	detector DetectorStatus,
	c *catalog.Catalog,
	logger *zap.Logger,
) {
	// Health check
	e.GET("/health", func(ec echo.Context) error {
		return ec.JSON(http.StatusOK, HealthResponse{
			Status:    "ok",
			Service:   "mirror-of-truth",
			Detector:  detector.Name(),
			Degraded:  detector.Degraded(),
			Connected: hub.ClientCount(),
		})
	})

	// Mirror page
	e.GET("/", func(ec echo.Context) error {
		return ec.HTMLBlob(http.StatusOK, indexHTML)
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.POST("/sessions", func(ec echo.Context) error {
		return createSession(ec, tokens, logger)
	})
	v1.GET("/catalog", func(ec echo.Context) error {
		return ec.JSON(http.StatusOK, CatalogResponse{Emotions: c.Entries()})
	})

	sessions := v1.Group("/sessions/:id", requireSession(tokens, logger))
	sessions.GET("/history", func(ec echo.Context) error {
		return getHistory(ec, history, logger)
	})
	sessions.GET("/summary", func(ec echo.Context) error {
		return getSummary(ec, history, logger)
	})

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(ec echo.Context) error {
		return websocketWithAuth(hub, tokens, ec, logger)
	})
}

func createSession(c echo.Context, tokens *auth.TokenIssuer, logger *zap.Logger) error {
	session := entities.NewMirrorSession(tokens.TTL())

	token, expiresAt, err := tokens.GenerateSessionToken(session.ID)
	if err != nil {
		logger.Error("Failed to generate session token",
			zap.String("session_id", session.ID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate session token",
		})
	}

	logger.Info("Mirror session created", zap.String("session_id", session.ID))
	return c.JSON(http.StatusCreated, SessionResponse{
		SessionID: session.ID,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

func getHistory(c echo.Context, history HistoryService, logger *zap.Logger) error {
	sessionID := c.Param("id")

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_limit",
				Message: "limit must be a non-negative integer",
			})
		}
		limit = n
	}

	entries, err := history.History(c.Request().Context(), sessionID, limit)
	if err != nil {
		return historyError(c, err, sessionID, logger)
	}
	return c.JSON(http.StatusOK, HistoryResponse{SessionID: sessionID, Entries: entries})
}

func getSummary(c echo.Context, history HistoryService, logger *zap.Logger) error {
	sessionID := c.Param("id")

	summary, err := history.Summary(c.Request().Context(), sessionID)
	if err != nil {
		return historyError(c, err, sessionID, logger)
	}
	return c.JSON(http.StatusOK, summary)
}

func historyError(c echo.Context, err error, sessionID string, logger *zap.Logger) error {
	if errors.Is(err, usecase.ErrSessionNotFound) {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "session_not_found",
			Message: "No mood history recorded for this session",
		})
	}
	logger.Error("Failed to read mood history",
		zap.String("session_id", sessionID),
		zap.Error(err))
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "history_unavailable",
		Message: "Mood history could not be read",
	})
}

// requireSession rejects requests whose token does not belong to :id
func requireSession(tokens *auth.TokenIssuer, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, failure := authenticate(c, tokens)
			if failure != nil {
				logger.Warn("Request rejected", zap.String("reason", failure.Error))
				return c.JSON(http.StatusUnauthorized, failure)
			}
			if claims.SessionID != c.Param("id") {
				return c.JSON(http.StatusForbidden, ErrorResponse{
					Error:   "session_mismatch",
					Message: "Token does not belong to this session",
				})
			}
			return next(c)
		}
	}
}

// authenticate reads the JWT from the Authorization header, falling back to
// the token query parameter since browsers cannot set websocket headers.
func authenticate(c echo.Context, tokens *auth.TokenIssuer) (*auth.JWTClaims, *ErrorResponse) {
	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		token = strings.TrimPrefix(authHeader, "Bearer ")
	}
	if token == "" {
		token = c.QueryParam("token")
	}

	if token == "" {
		return nil, &ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required in Authorization header or token query parameter",
		}
	}

	claims, err := tokens.ValidateToken(token)
	if err != nil {
		return nil, &ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		}
	}
	return claims, nil
}

// websocketWithAuth handles WebSocket connections with JWT authentication
func websocketWithAuth(hub *websocket.Hub, tokens *auth.TokenIssuer, c echo.Context, logger *zap.Logger) error {
	claims, failure := authenticate(c, tokens)
	if failure != nil {
		logger.Warn("WebSocket connection rejected", zap.String("reason", failure.Error))
		return c.JSON(http.StatusUnauthorized, failure)
	}

	logger.Info("WebSocket connection authenticated",
		zap.String("session_id", claims.SessionID),
		zap.String("role", claims.Role))

	return websocket.HandleWebSocketWithAuth(hub, c, claims.SessionID, logger)
}
