package handlers

import (
	"github.com/suPer8Hu/pdf-rag/internal/audit"
	"github.com/suPer8Hu/pdf-rag/internal/config"
	"github.com/suPer8Hu/pdf-rag/internal/logger"
	"github.com/suPer8Hu/pdf-rag/internal/rag"
	"github.com/suPer8Hu/pdf-rag/internal/session"
)

type Handler struct {
	Cfg   config.Config
	RAG   *rag.Service
	Sess  *session.Session
	Audit *audit.Repo // optional
	Log   *logger.Logger
}

func NewHandler(cfg config.Config, svc *rag.Service, auditRepo *audit.Repo, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{Cfg: cfg, RAG: svc, Sess: svc.Session(), Audit: auditRepo, Log: log}
}
