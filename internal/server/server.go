// Package server exposes the operational HTTP surface: liveness and a
// status snapshot of the running instance.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gateway/internal/models"
	"gateway/internal/queue"
	"gateway/internal/registry"
)

type Server struct {
	router   *gin.Engine
	instance *models.Instance
	chats    *registry.Registry
	queues   *queue.Manager
	logger   *zap.Logger
	started  time.Time
}

func NewServer(instance *models.Instance, chats *registry.Registry, queues *queue.Manager, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:   router,
		instance: instance,
		chats:    chats,
		queues:   queues,
		logger:   logger,
		started:  time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.router.GET("/status", func(c *gin.Context) {
		depths := s.queues.Depths()
		backlog := 0
		for _, n := range depths {
			backlog += n
		}
		c.JSON(http.StatusOK, gin.H{
			"instance_id":    s.instance.InstanceID,
			"instance_state": s.instance.Status,
			"uptime_seconds": int(time.Since(s.started).Seconds()),
			"chats":          s.chats.Len(),
			"queues":         len(depths),
			"queue_backlog":  backlog,
		})
	})
}

// Run serves until the listener fails; it blocks the calling goroutine.
func (s *Server) Run(addr string) error {
	s.logger.Info("Ops server listening", zap.String("addr", addr))
	return s.router.Run(addr)
}
