package server

import (
	"net/http"
	"time"

	"github.com/Protocol-Lattice/design-team/src/config"
	"github.com/Protocol-Lattice/design-team/src/team"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"
)

// SessionHeader carries the id returned by POST /api/session.
const SessionHeader = "X-Session-ID"

// Setup builds the HTTP API in front of the session registry.
func Setup(cfg config.ServerConfig, registry *team.Registry) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", SessionHeader},
		ExposeHeaders: []string{"Content-Length", SessionHeader},
		MaxAge:        12 * time.Hour,
	}))

	maxUpload := cfg.MaxUploadMB << 20
	if maxUpload <= 0 {
		maxUpload = 32 << 20
	}
	r.MaxMultipartMemory = maxUpload

	h := NewAnalysisHandler(registry, maxUpload)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.GET("/options", h.Options)
		api.POST("/session", h.CreateSession)
		api.DELETE("/session", h.DeleteSession)
		api.POST("/analyze", h.Analyze)
		api.GET("/utcp", h.UTCPManual)
		api.POST("/utcp/:tool", h.UTCPCall)
	}

	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		klog.V(2).Infof("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
