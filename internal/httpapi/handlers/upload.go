package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/pdf-rag/internal/httpapi/middleware"
	"github.com/suPer8Hu/pdf-rag/internal/intake"
)

// multipart boundaries and headers on top of the file itself
const formOverhead = 1 << 20

func (h *Handler) Upload(c *gin.Context) {
	maxBytes := h.Cfg.UploadMaxBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+formOverhead)

	fh, err := c.FormFile(intake.FieldName)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			c.String(http.StatusRequestEntityTooLarge, "File too large.")
			return
		}
		c.String(http.StatusBadRequest, "No file uploaded.")
		return
	}

	up, err := intake.Accept(fh, maxBytes)
	switch {
	case errors.Is(err, intake.ErrNoFile):
		c.String(http.StatusBadRequest, "No file uploaded.")
		return
	case errors.Is(err, intake.ErrNotPDF):
		c.String(http.StatusUnsupportedMediaType, "Only PDF files are allowed!")
		return
	case errors.Is(err, intake.ErrTooLarge):
		c.String(http.StatusRequestEntityTooLarge, "File too large.")
		return
	case err != nil:
		c.String(http.StatusBadRequest, "Could not read upload: "+err.Error())
		return
	}

	res, err := h.RAG.Ingest(c.Request.Context(), up)
	if err != nil {
		h.Log.Error("http", "ingestion failed", map[string]any{
			"filename":   up.Filename,
			"error":      err,
			"request_id": middleware.RequestIDFrom(c),
		})
		c.String(http.StatusInternalServerError, "Failed to process PDF: "+err.Error())
		return
	}

	h.Log.Info("http", "pdf processed", map[string]any{
		"filename":   res.Filename,
		"namespace":  res.Namespace,
		"chunks":     res.Chunks,
		"request_id": middleware.RequestIDFrom(c),
	})
	c.Redirect(http.StatusSeeOther, "/chat")
}
