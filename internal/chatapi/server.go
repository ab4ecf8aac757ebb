// Package chatapi exposes the conversation controller over HTTP/JSON.
package chatapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/walletbot/pkg/conversation"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDHeader        = "X-Request-ID"
	contextKeyRequestID    = "request_id"
	defaultShutdownTimeout = 5 * time.Second

	eventKindButton = "button"
)

// Controller is the conversation surface served over HTTP.
type Controller interface {
	Handle(ctx context.Context, userID conversation.UserID, event conversation.Event) (conversation.Directive, error)
	State(ctx context.Context, userID conversation.UserID) (conversation.State, error)
}

// Config configures the HTTP transport.
type Config struct {
	ListenAddr     string
	AllowedOrigins []string
	Token          TokenConfig
}

// NewRouter builds the gin engine. metrics may be nil to omit /metrics. Without allowed
// origins no CORS headers are emitted and only same-origin callers are served.
func NewRouter(cfg Config, controller Controller, metrics http.Handler, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", "Origin", "Accept", authorizationHeader},
			ExposeHeaders:    []string{requestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	handler := &httpHandler{controller: controller, logger: logger}
	api := router.Group("/api")
	api.Use(authMiddleware(cfg.Token))
	api.POST("/events", handler.handleEvent)
	api.GET("/session", handler.handleSession)
	return router
}

// Run serves router on cfg.ListenAddr until ctx is done.
func Run(ctx context.Context, listenAddr string, router http.Handler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	server := &http.Server{
		Addr:              listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("chat api listening", zap.String("addr", listenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type httpHandler struct {
	controller Controller
	logger     *zap.Logger
}

func (handler *httpHandler) handleEvent(ctx *gin.Context) {
	userID, ok := handler.userID(ctx)
	if !ok {
		return
	}
	var request eventRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	event, err := request.toEvent()
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_event", err.Error()))
		return
	}
	directive, err := handler.controller.Handle(ctx.Request.Context(), userID, event)
	if err != nil {
		handler.logger.Warn("event handling failed",
			zap.String("request_id", ctx.GetString(contextKeyRequestID)),
			zap.String("user_id", userID.String()),
			zap.Error(err))
		ctx.JSON(http.StatusServiceUnavailable, errorResponse("unavailable", "event was not processed"))
		return
	}
	if directive.Sensitive {
		ctx.Header("Cache-Control", "no-store")
	}
	ctx.JSON(http.StatusOK, newDirectiveResponse(directive))
}

func (handler *httpHandler) handleSession(ctx *gin.Context) {
	userID, ok := handler.userID(ctx)
	if !ok {
		return
	}
	state, err := handler.controller.State(ctx.Request.Context(), userID)
	if err != nil {
		ctx.JSON(http.StatusServiceUnavailable, errorResponse("unavailable", "session unavailable"))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"user_id": userID.String(), "state": state.String()})
}

func (handler *httpHandler) userID(ctx *gin.Context) (conversation.UserID, bool) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return conversation.UserID{}, false
	}
	userID, err := conversation.NewUserID(claims.UserID)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid subject"))
		return conversation.UserID{}, false
	}
	return userID, true
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		requestID := strings.TrimSpace(ctx.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx.Set(contextKeyRequestID, requestID)
		ctx.Header(requestIDHeader, requestID)
		ctx.Next()
	}
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

type eventRequest struct {
	Kind   string `json:"kind" binding:"required"`
	Option string `json:"option"`
	Text   string `json:"text"`
	Data   string `json:"data"`
}

func (request eventRequest) toEvent() (conversation.Event, error) {
	switch conversation.EventKind(request.Kind) {
	case conversation.EventMenuSelect:
		option, ok := conversation.ParseMenuOption(request.Option)
		if !ok {
			return conversation.Event{}, fmt.Errorf("unknown menu option %q", request.Option)
		}
		return conversation.MenuSelect(option), nil
	case conversation.EventTextInput:
		return conversation.TextInput(request.Text), nil
	case conversation.EventConfirm:
		return conversation.Confirm(), nil
	case conversation.EventCancel:
		return conversation.Cancel(), nil
	}
	if request.Kind == eventKindButton {
		event, ok := conversation.EventFromButtonData(request.Data)
		if !ok {
			return conversation.Event{}, fmt.Errorf("unknown button %q", request.Data)
		}
		return event, nil
	}
	return conversation.Event{}, fmt.Errorf("unknown event kind %q", request.Kind)
}

type buttonPayload struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

type directiveResponse struct {
	State     string            `json:"state"`
	Text      string            `json:"text"`
	Buttons   [][]buttonPayload `json:"buttons"`
	ImagePNG  []byte            `json:"image_png,omitempty"`
	Sensitive bool              `json:"sensitive"`
}

func newDirectiveResponse(directive conversation.Directive) directiveResponse {
	rows := make([][]buttonPayload, 0, len(directive.Buttons))
	for _, row := range directive.Buttons {
		payloadRow := make([]buttonPayload, 0, len(row))
		for _, button := range row {
			payloadRow = append(payloadRow, buttonPayload{Label: button.Label, Data: button.Data})
		}
		rows = append(rows, payloadRow)
	}
	return directiveResponse{
		State:     directive.State.String(),
		Text:      directive.Text,
		Buttons:   rows,
		ImagePNG:  directive.Image,
		Sensitive: directive.Sensitive,
	}
}
