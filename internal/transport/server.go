// internal/transport/server.go
package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "shop-assistant/internal/common/errors"
	"shop-assistant/internal/common/logger"
	intentrouter "shop-assistant/internal/dialogue/intent-router"
	"shop-assistant/internal/models"
)

// Conversations is the dialogue surface the HTTP layer fronts.
type Conversations interface {
	HandleTurn(ctx context.Context, conversationID string, userID int64, text string) (*intentrouter.Reply, error)
	EndConversation(ctx context.Context, conversationID string) error
}

type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	UserID         int64  `json:"user_id"`
	Message        string `json:"message"`
}

type chatResponse struct {
	ConversationID string           `json:"conversation_id"`
	Reply          string           `json:"reply"`
	Intent         models.Intent    `json:"intent,omitempty"`
	Products       []models.Product `json:"products,omitempty"`
	Order          *models.Order    `json:"order,omitempty"`
}

type errorResponse struct {
	Code    apperrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
}

// Server exposes the assistant over HTTP.
type Server struct {
	engine *gin.Engine
	convos Conversations
	logger logger.Logger
}

func NewServer(convos Conversations, log logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine: engine,
		convos: convos,
		logger: log.WithFields(map[string]interface{}{"component": "http-server"}),
	}

	engine.GET("/healthz", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/api/v1")
	v1.POST("/chat", s.handleChat)
	v1.DELETE("/conversations/:id", s.handleEndConversation)

	return s
}

// Handler returns the underlying http.Handler for the http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// invalidRequest shapes a rejected request into the error payload.
func invalidRequest(details string) errorResponse {
	se := apperrors.NewInvalidRequestError(details)
	return errorResponse{Code: se.Code, Message: se.Details}
}

func (s *Server) handleChat(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, invalidRequest("cannot read request body"))
		return
	}
	if err := validateChatRequest(body); err != nil {
		c.JSON(http.StatusBadRequest, invalidRequest(err.Error()))
		return
	}

	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, invalidRequest("malformed request body"))
		return
	}

	// A missing conversation id starts a new conversation.
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	reply, err := s.convos.HandleTurn(c.Request.Context(), conversationID, req.UserID, req.Message)
	if err != nil {
		status := http.StatusInternalServerError
		if apperrors.IsRetryable(err) {
			status = http.StatusServiceUnavailable
		}
		s.logger.WithError(err).Error("Turn failed", map[string]interface{}{
			"conversationId": conversationID,
		})
		c.JSON(status, errorResponse{
			Code:    apperrors.CodeOf(err),
			Message: "could not process the message",
		})
		return
	}

	c.JSON(http.StatusOK, chatResponse{
		ConversationID: conversationID,
		Reply:          reply.Text,
		Intent:         reply.Intent,
		Products:       reply.Products,
		Order:          reply.Order,
	})
}

func (s *Server) handleEndConversation(c *gin.Context) {
	conversationID := c.Param("id")
	if err := s.convos.EndConversation(c.Request.Context(), conversationID); err != nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{
			Code:    apperrors.ErrCodeContextStoreUnavailable,
			Message: "could not end the conversation",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ended"})
}
