package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/ksuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	cidpkg "signalhub/internal/cid"
	"signalhub/internal/config"
	"signalhub/internal/gateway"
	"signalhub/internal/logger"
	"signalhub/internal/otelutil"
)

// Server wires the gateway into the HTTP surface.
type Server struct {
	cfg config.Config
	gw  *gateway.Gateway
}

func NewServer(cfg config.Config) *Server {
	return &Server{cfg: cfg, gw: gateway.New(cfg)}
}

// cidMiddleware ensures every control-plane request carries a correlation
// id: incoming values are preserved, otherwise a fresh KSUID is generated.
// The id is echoed in the response and stored on the request context.
func (s *Server) cidMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(cidpkg.HeaderName)
		if id == "" {
			id = ksuid.New().String()
		}
		c.Request = c.Request.WithContext(cidpkg.WithCID(c.Request.Context(), id))
		c.Header(cidpkg.HeaderName, id)
		c.Next()
	}
}

// otelMiddleware opens a span per request and attaches the basic HTTP
// attributes plus the correlation id when present.
func (s *Server) otelMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("signalhub/server")
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+c.Request.URL.Path)
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.target", c.Request.URL.Path),
		)
		if id := cidpkg.FromContext(c.Request.Context()); id != "" {
			span.SetAttributes(attribute.String(cidpkg.AttributeName, id))
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// emitBody is the JSON body accepted by the control-plane emit/broadcast
// routes: an event name plus an opaque payload forwarded verbatim.
type emitBody struct {
	Event string          `json:"event" binding:"required"`
	Data  json.RawMessage `json:"data"`
}

type disconnectBody struct {
	Reason string `json:"reason" binding:"required"`
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.cidMiddleware())
	r.Use(s.otelMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "signalhub",
		})
	})

	r.GET("/ws", s.gw.HandleWS)

	r.GET("/api/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.gw.Stats())
	})

	r.GET("/api/server", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.gw.ServerInfo())
	})

	r.POST("/api/broadcast", func(c *gin.Context) {
		var body emitBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "event is required"})
			return
		}
		s.gw.BroadcastToAll(body.Event, body.Data)
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
	})

	r.POST("/api/rooms/:room/broadcast", func(c *gin.Context) {
		var body emitBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "event is required"})
			return
		}
		s.gw.BroadcastToRoom(c.Param("room"), body.Event, body.Data)
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
	})

	r.POST("/api/users/:userId/emit", func(c *gin.Context) {
		var body emitBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "event is required"})
			return
		}
		s.gw.EmitToUser(c.Param("userId"), body.Event, body.Data)
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
	})

	r.POST("/api/users/:userId/disconnect", func(c *gin.Context) {
		var body disconnectBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
			return
		}
		s.gw.ForceDisconnect(c.Param("userId"), body.Reason)
		c.JSON(http.StatusAccepted, gin.H{"status": "requested"})
	})

	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		os.Exit(1)
	}

	if err := otelutil.Init(); err != nil {
		logger.Info("tracing disabled", zap.Error(err))
	}
	defer otelutil.Flush()

	s := NewServer(cfg)
	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: s.Router(),
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("forced shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting signalhub gateway", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", zap.Error(err))
		os.Exit(1)
	}
}
