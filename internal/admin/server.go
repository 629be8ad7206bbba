package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// StatusSource reports the live counters the /status endpoint surfaces,
// implemented by the dispatch layer that owns the queue and connection
// table. Admin never mutates queue/library state directly through this
// interface — only reads it.
type StatusSource interface {
	QueueLength() int
	ConnectedClients() int
	Playing() bool
}

// ReloadFunc re-reads the on-disk configuration and applies whatever of
// it can be changed live, returning an error if the new configuration is
// invalid. It is the only mutating effect exposed over HTTP.
type ReloadFunc func() error

// Server is the operator-facing HTTP surface: unauthenticated health/
// status endpoints for monitoring, and bcrypt+JWT-guarded operator
// endpoints for config reload.
type Server struct {
	engine    *gin.Engine
	startedAt time.Time
	status    StatusSource
	reload    ReloadFunc
	auth      *OperatorAuth
}

// NewServer builds the gin engine and registers routes. op may be nil to
// disable the operator login and reload endpoints entirely (health/status
// remain available).
func NewServer(status StatusSource, reload ReloadFunc, op *OperatorAuth) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), securityHeaders())

	s := &Server{engine: engine, startedAt: time.Now(), status: status, reload: reload, auth: op}

	engine.GET("/healthz", s.handleHealthz)
	engine.GET("/status", s.handleStatus)
	if op != nil {
		engine.POST("/admin/login", s.handleLogin)
		engine.POST("/admin/reload", op.RequireOperatorGin(), s.handleReload)
	}

	return s
}

// Handler returns the http.Handler to mount (e.g. with http.Server).
func (s *Server) Handler() http.Handler { return s.engine }

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startedAt).String(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"queue_length":      s.status.QueueLength(),
		"connected_clients": s.status.ConnectedClients(),
		"playing":           s.status.Playing(),
		"uptime":            time.Since(s.startedAt).String(),
	})
}

func (s *Server) handleLogin(c *gin.Context) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid request body"})
		return
	}
	token, err := s.auth.Authenticate(body.Username, body.Password, c.ClientIP())
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": "invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "token": token})
}

func (s *Server) handleReload(c *gin.Context) {
	if err := s.reload(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RequireOperatorGin adapts RequireOperator's net/http middleware shape
// into a gin.HandlerFunc, matching the teacher's AuthRequired wrapper.
func (a *OperatorAuth) RequireOperatorGin() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractBearerToken(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "error": "authentication required"})
			return
		}
		if _, err := a.ValidateToken(token); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "error": "invalid or expired token"})
			return
		}
		c.Next()
	}
}
