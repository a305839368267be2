package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/pdf-rag/internal/httpapi/middleware"
	"github.com/suPer8Hu/pdf-rag/internal/rag"
)

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "ok",
		"data":    data,
	})
}

func fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
		"data":    nil,
	})
}

func (h *Handler) Index(c *gin.Context) {
	_, active := h.Sess.Namespace()
	c.HTML(http.StatusOK, "index.tmpl", gin.H{
		"MaxMB":       h.Cfg.UploadMaxBytes >> 20,
		"HasDocument": active,
	})
}

func (h *Handler) Chat(c *gin.Context) {
	_, active := h.Sess.Namespace()
	c.HTML(http.StatusOK, "chat.tmpl", gin.H{
		"Messages":    h.Sess.Transcript(),
		"HasDocument": active,
	})
}

type askForm struct {
	Question string `form:"question" binding:"required"`
}

func (h *Handler) Ask(c *gin.Context) {
	var f askForm
	if err := c.ShouldBind(&f); err != nil || strings.TrimSpace(f.Question) == "" {
		c.String(http.StatusBadRequest, "No question provided.")
		return
	}

	_, err := h.RAG.Ask(c.Request.Context(), f.Question)
	switch {
	case err == nil, errors.Is(err, rag.ErrQueryFailed):
		// failures are already in the transcript
		c.Redirect(http.StatusSeeOther, "/chat")
	case errors.Is(err, rag.ErrNotIngested):
		c.String(http.StatusConflict, "Nothing ingested yet. Upload a PDF first.")
	case errors.Is(err, rag.ErrEmptyQuestion):
		c.String(http.StatusBadRequest, "No question provided.")
	default:
		h.Log.Error("http", "ask failed", map[string]any{"error": err, "request_id": middleware.RequestIDFrom(c)})
		c.String(http.StatusInternalServerError, "Failed to answer question.")
	}
}

func (h *Handler) Transcript(c *gin.Context) {
	ns, active := h.Sess.Namespace()
	ok(c, gin.H{
		"document_loaded": active,
		"namespace":       ns,
		"messages":        h.Sess.Transcript(),
	})
}

func (h *Handler) Ingestions(c *gin.Context) {
	if h.Audit == nil {
		fail(c, http.StatusNotFound, 40401, "ingestion audit log is not enabled")
		return
	}
	recs, err := h.Audit.ListRecent(c.Request.Context(), 20)
	if err != nil {
		h.Log.Error("http", "list ingestions failed", map[string]any{"error": err})
		fail(c, http.StatusInternalServerError, 50002, "failed to list ingestions")
		return
	}
	ok(c, gin.H{"items": recs})
}

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
