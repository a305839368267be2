package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/pdf-rag/internal/audit"
	"github.com/suPer8Hu/pdf-rag/internal/config"
	"github.com/suPer8Hu/pdf-rag/internal/httpapi/handlers"
	"github.com/suPer8Hu/pdf-rag/internal/httpapi/middleware"
	"github.com/suPer8Hu/pdf-rag/internal/httpapi/web"
	"github.com/suPer8Hu/pdf-rag/internal/logger"
	"github.com/suPer8Hu/pdf-rag/internal/rag"
)

func NewRouter(cfg config.Config, svc *rag.Service, auditRepo *audit.Repo, log *logger.Logger) (*gin.Engine, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	// keep the whole upload in memory
	r.MaxMultipartMemory = cfg.UploadMaxBytes + (1 << 20)

	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(log))
	r.Use(middleware.Recovery(log))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": 40400, "message": "route not found", "data": nil})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"code": 40500, "message": "method not allowed", "data": nil})
	})

	tmpl, err := web.Templates()
	if err != nil {
		return nil, err
	}
	r.SetHTMLTemplate(tmpl)
	r.StaticFS("/static", http.FS(web.Static()))

	h := handlers.NewHandler(cfg, svc, auditRepo, log)

	r.GET("/", h.Index)
	r.POST("/upload", h.Upload)
	r.GET("/chat", h.Chat)
	r.POST("/ask", h.Ask)

	r.GET("/healthz", h.Healthz)
	api := r.Group("/api")
	api.GET("/transcript", h.Transcript)
	api.GET("/ingestions", h.Ingestions)

	return r, nil
}
