package handlers

import (
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quillchat/quillchat/internal/common"
	"github.com/quillchat/quillchat/internal/extract"
)

const maxUploadBytes = 10 << 20

// Upload accepts one document, decodes it to text for prompt injection, and
// keeps the original on disk under a collision-proof name.
func (h *Handler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		common.Error(c, http.StatusBadRequest, "No file received.")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		h.Logger.Error("upload read failed", zap.Error(err))
		common.Error(c, http.StatusInternalServerError, "Error uploading file.")
		return
	}
	if len(data) > maxUploadBytes {
		common.Error(c, http.StatusRequestEntityTooLarge, "File too large.")
		return
	}

	content, err := extract.Text(header.Filename, data)
	if err != nil {
		common.Error(c, http.StatusUnsupportedMediaType, err.Error())
		return
	}

	if err := os.MkdirAll(h.Cfg.UploadDir, 0o755); err != nil {
		h.Logger.Error("upload dir create failed", zap.Error(err))
		common.Error(c, http.StatusInternalServerError, "Error uploading file.")
		return
	}
	stored := uuid.NewString() + "-" + filepath.Base(header.Filename)
	if err := os.WriteFile(filepath.Join(h.Cfg.UploadDir, stored), data, 0o644); err != nil {
		h.Logger.Error("upload write failed", zap.Error(err))
		common.Error(c, http.StatusInternalServerError, "Error uploading file.")
		return
	}

	common.OK(c, gin.H{
		"url":     "/uploads/" + stored,
		"content": content,
		"message": "File uploaded and processed successfully",
	})
}
